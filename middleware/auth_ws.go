package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staynest/staynest-backend/logger"
)

// WSJwtAuth authenticates WebSocket upgrade requests. Browsers cannot set an
// Authorization header on WebSocket handshakes, so the token travels in the
// token query parameter, with Sec-WebSocket-Protocol as a fallback.
func WSJwtAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.GetLogger()

		tokenString := c.Query("token")
		if tokenString == "" {
			tokenString = c.GetHeader("Sec-WebSocket-Protocol")
		}

		if tokenString == "" {
			log.Warnw("WebSocket auth failed: missing token",
				"path", c.Request.URL.Path,
				"ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication token"})
			return
		}

		userID, err := validateToken(tokenString, jwtSecret)
		if err != nil {
			log.Warnw("WebSocket auth failed: invalid token",
				"path", c.Request.URL.Path,
				"ip", c.ClientIP(),
				"error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			return
		}

		c.Set(string(UserIDKey), userID)
		c.Next()
	}
}
