package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/staynest/staynest-backend/config"
)

// CORSMiddleware configures cross-origin access from the configured frontend
// origins. A wildcard origin disables credentials per the CORS spec.
func CORSMiddleware(serverCfg *config.ServerConfig) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	wildcard := false
	for _, origin := range serverCfg.AllowedOrigins {
		if origin == "*" {
			wildcard = true
			break
		}
	}

	if wildcard {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = serverCfg.AllowedOrigins
	}

	return cors.New(corsCfg)
}
