package middleware

import (
	"net/http"
	"strings"

	"github.com/Pizzaface/PizzaPi-sub003/internal/auth"
	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/types"
	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries a long-lived API key as an alternative to a bearer
// token.
const APIKeyHeader = "X-API-Key"

// Authenticator resolves request credentials to a principal.
type Authenticator interface {
	Authenticate(token, apiKey string) (auth.Principal, error)
}

// AuthMiddleware accepts either "Authorization: Bearer <jwt>" or an API key
// header and stores the caller's identity in the context.
func AuthMiddleware(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorResponse{Error: "invalid authorization header format"})
				return
			}
			token = parts[1]
		}
		apiKey := c.GetHeader(APIKeyHeader)
		if token == "" && apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorResponse{Error: "missing credentials"})
			return
		}

		principal, err := authn.Authenticate(token, apiKey)
		if err != nil {
			logger.Debugf("HTTP auth rejected for %s: %v", c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorResponse{Error: "invalid credentials"})
			return
		}

		c.Set("userID", principal.UserID)
		c.Set("userName", principal.UserName)
		c.Next()
	}
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		return "", false
	}
	return userID.(string), true
}
