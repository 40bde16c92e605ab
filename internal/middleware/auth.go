package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/moody-app/moody/internal/pkg/jwt"
	"github.com/moody-app/moody/internal/pkg/response"
)

const ContextKeyUserID = "user_id"

// Auth returns a middleware that requires a valid bearer token.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := ValidateToken(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, uid)
		c.Next()
	}
}

// ValidateToken parses a bearer token and returns its user id.
func ValidateToken(rawToken string) (string, error) {
	token := NormalizeToken(rawToken)
	if token == "" {
		return "", errors.New("token is required")
	}
	return jwt.Verify(token)
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// extractToken reads the Authorization header, falling back to the token
// query parameter for EventSource clients that cannot set headers.
func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
