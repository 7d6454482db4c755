package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harutoki/beastline/server/cache"
	"github.com/harutoki/beastline/server/config"
)

// Gin context keys set by Auth.
const (
	AccountIDKey = "account_id"
	UsernameKey  = "username"
	authScheme   = "Bearer "
)

const cacheCheckTimeout = 2 * time.Second

// BearerToken extracts the raw token from an Authorization header,
// empty when the header is missing or not Bearer-shaped.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, authScheme) {
		return ""
	}
	return strings.TrimPrefix(header, authScheme)
}

// Auth guards a route group: the request must carry a valid player token
// whose session is still registered in the cache. On success the account
// ID and username are placed in the Gin context.
func Auth(sec config.SecurityConfig, store cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := ParseToken(token, sec.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), cacheCheckTimeout)
		defer cancel()
		live, err := store.Exists(ctx, SessionKey(token))
		if err != nil || !live {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		c.Set(AccountIDKey, claims.AccountID)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

// GetAccountID returns the authenticated account ID, 0 when the route
// was not guarded by Auth.
func GetAccountID(c *gin.Context) int64 {
	if v, ok := c.Get(AccountIDKey); ok {
		return v.(int64)
	}
	return 0
}

// GetUsername returns the authenticated username, empty when unguarded.
func GetUsername(c *gin.Context) string {
	if v, ok := c.Get(UsernameKey); ok {
		return v.(string)
	}
	return ""
}
