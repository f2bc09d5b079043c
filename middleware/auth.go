package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/staynest/staynest-backend/errors"
	"github.com/staynest/staynest-backend/logger"
)

// Claims is the JWT claims structure issued by the auth service. The user ID
// travels in the standard subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

// validateToken parses and verifies an HMAC-signed JWT and returns the
// subject user ID.
func validateToken(tokenString, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token missing subject")
	}
	return claims.Subject, nil
}

// JwtAuth authenticates REST requests via a Bearer token in the Authorization
// header and stores the user ID in the gin context.
func JwtAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.GetLogger()

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			_ = c.Error(apperrors.Unauthorized("missing_auth", "Authorization header is required"))
			c.Abort()
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			_ = c.Error(apperrors.Unauthorized("invalid_auth", "Authorization header must be a Bearer token"))
			c.Abort()
			return
		}

		userID, err := validateToken(tokenString, jwtSecret)
		if err != nil {
			log.Warnw("Authentication failed",
				"path", c.Request.URL.Path,
				"ip", c.ClientIP(),
				"error", err)
			_ = c.Error(apperrors.Unauthorized("invalid_token", "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(string(UserIDKey), userID)
		c.Next()
	}
}
