// Package middleware provides the Gin middleware shared by the REST facade
// and the WebSocket endpoint.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// ContextUserID is the gin context key holding the resolved caller identity.
const ContextUserID = "user_id"

// Auth validates a bearer JWT and puts the caller's user id into the context.
// Token issuance lives in the external auth service; this core only trusts
// the identity claim carried by a token signed with the shared secret.
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			} else {
				logrus.WithError(err).Debug("Auth: token validation failed")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			c.Abort()
			return
		}

		userIDFloat, ok := claims["user_id"].(float64)
		if !ok || userIDFloat <= 0 {
			logrus.Warn("Auth: token valid but user_id claim missing or malformed")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, uint(userIDFloat))
		c.Next()
	}
}

// extractToken reads the token from the Authorization header, falling back to
// a query parameter for WebSocket handshakes where custom headers are
// unavailable to browser clients.
func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

// CallerID reads the authenticated user id set by Auth. The bool is false if
// the middleware did not run or the value has an unexpected type.
func CallerID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
