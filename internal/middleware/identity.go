package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/promptlib/internal/services"
	"github.com/huangang/promptlib/internal/utils"
	"github.com/huangang/promptlib/pkg/response"
)

const ContextIdentity = "identity"

// IdentityRequired verifies the bearer token and stores the caller's
// identity in the request context. EventSource clients cannot set headers,
// so a ?token= query parameter is accepted as well.
func IdentityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "authorization header required")
			c.Abort()
			return
		}

		claims, err := utils.ParseIdentityToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextIdentity, &services.Identity{
			UID:         claims.UID(),
			Email:       claims.Email,
			DisplayName: claims.Name,
			PhotoURL:    claims.Picture,
		})
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

// GetIdentity returns the verified identity, or nil on unauthenticated routes.
func GetIdentity(c *gin.Context) *services.Identity {
	if v, exists := c.Get(ContextIdentity); exists {
		if id, ok := v.(*services.Identity); ok {
			return id
		}
	}
	return nil
}

// GetUID returns the verified uid or "".
func GetUID(c *gin.Context) string {
	if id := GetIdentity(c); id != nil {
		return id.UID
	}
	return ""
}
