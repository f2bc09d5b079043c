package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/staynest/staynest-backend/errors"
	"github.com/staynest/staynest-backend/logger"
)

// ErrorHandler converts errors attached to the gin context into a uniform
// JSON error response. Handlers attach errors with c.Error and abort; this
// middleware decides status codes and what detail is safe to expose.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		log := logger.GetLogger()

		if appError, ok := err.(*errors.AppError); ok {
			statusCode := appError.GetHTTPStatus()

			log.Warnw("Request failed",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"status", statusCode,
				"errorType", appError.Type,
				"message", appError.Message)

			response := gin.H{
				"type":    string(appError.Type),
				"message": appError.Message,
				"code":    strconv.Itoa(statusCode),
			}

			// Detail is only safe to expose for client-side mistakes.
			if appError.Detail != "" && (gin.IsDebugging() ||
				appError.Type == errors.ValidationError ||
				appError.Type == errors.NotFoundError) {
				response["details"] = appError.Detail
			}

			c.JSON(statusCode, response)
			return
		}

		if c.Errors.Last().Type == gin.ErrorTypeBind {
			response := gin.H{
				"type":    string(errors.ValidationError),
				"message": "Failed to bind request",
				"code":    "400",
			}
			if gin.IsDebugging() {
				response["details"] = err.Error()
			}
			c.JSON(400, response)
			return
		}

		log.Errorw("Unexpected server error",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", err)

		response := gin.H{
			"type":    string(errors.ServerError),
			"message": "Internal Server Error",
			"code":    "500",
		}
		if gin.IsDebugging() {
			response["details"] = err.Error()
		}
		c.JSON(500, response)
	}
}
