package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/staynest/staynest-backend/logger"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and readiness of the service and its
// dependencies.
type HealthHandler struct {
	db    Pinger
	redis *redis.Client
	log   *zap.SugaredLogger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{
		db:    db,
		redis: redisClient,
		log:   logger.GetLogger().Named("health_handler"),
	}
}

// Liveness always returns 200 while the process is up.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "up"})
}

// Readiness checks the database and Redis. Redis being down degrades the
// response but does not fail it, since the service stays functional without
// its cache and rate limiter.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	components := gin.H{}
	status := http.StatusOK
	overall := "up"

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warnw("Readiness check: database unreachable", "error", err)
		components["database"] = "down"
		status = http.StatusServiceUnavailable
		overall = "down"
	} else {
		components["database"] = "up"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			h.log.Warnw("Readiness check: redis unreachable", "error", err)
			components["redis"] = "down"
			if overall == "up" {
				overall = "degraded"
			}
		} else {
			components["redis"] = "up"
		}
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"components": components,
	})
}
