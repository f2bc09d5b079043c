// Package router wires the HTTP surface: REST routes, the WebSocket endpoint
// and the operational endpoints.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/staynest/staynest-backend/config"
	"github.com/staynest/staynest-backend/handlers"
	internalws "github.com/staynest/staynest-backend/internal/websocket"
	"github.com/staynest/staynest-backend/middleware"
)

// Dependencies holds everything required to set up routes.
type Dependencies struct {
	Config              *config.Config
	RedisClient         *redis.Client
	NotificationHandler *handlers.NotificationHandler
	MessageHandler      *handlers.MessageHandler
	HealthHandler       *handlers.HealthHandler
	WSHandler           *internalws.Handler
}

// SetupRouter configures and returns the gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))

	// Operational endpoints, no auth
	r.GET("/health", deps.HealthHandler.Liveness)
	r.GET("/health/readiness", deps.HealthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	writeLimiter := middleware.RateLimiter(
		deps.RedisClient,
		deps.Config.RateLimit.RequestsPerMinute,
		time.Duration(deps.Config.RateLimit.WindowSeconds)*time.Second,
	)

	v1 := r.Group("/v1")
	{
		// WebSocket upgrades authenticate via query token
		v1.GET("/ws", middleware.WSJwtAuth(deps.Config.Server.JwtSecretKey), deps.WSHandler.HandleWebSocket)

		authRoutes := v1.Group("")
		authRoutes.Use(middleware.JwtAuth(deps.Config.Server.JwtSecretKey))
		{
			notificationRoutes := authRoutes.Group("/notifications")
			{
				notificationRoutes.POST("", writeLimiter, deps.NotificationHandler.CreateNotification)
				notificationRoutes.GET("", deps.NotificationHandler.GetNotifications)
				notificationRoutes.GET("/unread", deps.NotificationHandler.GetUnreadNotifications)
				notificationRoutes.GET("/unread/count", deps.NotificationHandler.GetUnreadCount)
				notificationRoutes.PATCH("/:notificationId/read", deps.NotificationHandler.MarkNotificationRead)
				notificationRoutes.PATCH("/read-all", deps.NotificationHandler.MarkAllNotificationsRead)
			}

			messageRoutes := authRoutes.Group("/messages")
			{
				messageRoutes.POST("", writeLimiter, deps.MessageHandler.SendMessage)
				messageRoutes.GET("/unread", deps.MessageHandler.GetUnreadMessages)
				messageRoutes.GET("/conversation/:userId", deps.MessageHandler.GetConversation)
				messageRoutes.PATCH("/conversation/:userId/read", deps.MessageHandler.MarkConversationRead)
				messageRoutes.PATCH("/:messageId/read", deps.MessageHandler.MarkMessageRead)
			}
		}
	}

	return r
}
