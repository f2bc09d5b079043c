package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func rateLimitRouter(limiter gin.HandlerFunc, userID string) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler())
	r.POST("/write", func(c *gin.Context) {
		if userID != "" {
			c.Set(string(UserIDKey), userID)
		}
		c.Next()
	}, limiter, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRateLimiter_UnderLimit(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	limiter := RateLimiter(redisClient, 10, time.Minute)
	r := rateLimitRouter(limiter, "user-1")

	redisMock.ExpectTxPipeline()
	redisMock.ExpectIncr("ratelimit:user-1").SetVal(3)
	redisMock.ExpectExpire("ratelimit:user-1", time.Minute).SetVal(true)
	redisMock.ExpectTxPipelineExec()

	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "7", w.Header().Get("X-RateLimit-Remaining"))
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestRateLimiter_OverLimit(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	limiter := RateLimiter(redisClient, 10, time.Minute)
	r := rateLimitRouter(limiter, "user-1")

	redisMock.ExpectTxPipeline()
	redisMock.ExpectIncr("ratelimit:user-1").SetVal(11)
	redisMock.ExpectExpire("ratelimit:user-1", time.Minute).SetVal(true)
	redisMock.ExpectTxPipelineExec()
	redisMock.ExpectTTL("ratelimit:user-1").SetVal(42 * time.Second)

	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimiter_RedisDownFailsOpen(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	limiter := RateLimiter(redisClient, 10, time.Minute)
	r := rateLimitRouter(limiter, "user-1")

	redisMock.ExpectTxPipeline()
	redisMock.ExpectIncr("ratelimit:user-1").SetErr(assert.AnError)

	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// The request goes through when the limiter backend is unavailable.
	assert.Equal(t, http.StatusOK, w.Code)
}
