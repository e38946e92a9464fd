package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	ContextSessionUID = "session_uid"

	DefaultSessionCookie = "session"
)

// SessionMarker exposes the uid recorded in the session marker cookie.
// The marker is set by the client and proves nothing; it only lets the
// read side prefetch a snapshot for the uid the caller claims to be.
func SessionMarker(cookieName string) gin.HandlerFunc {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	return func(c *gin.Context) {
		if uid, err := c.Cookie(cookieName); err == nil && uid != "" {
			c.Set(ContextSessionUID, uid)
		}
		c.Next()
	}
}

// GetSessionUID returns the marker uid, or "" when no marker was sent.
func GetSessionUID(c *gin.Context) string {
	if v, exists := c.Get(ContextSessionUID); exists {
		if uid, ok := v.(string); ok {
			return uid
		}
	}
	return ""
}

// PrefetchUID returns the uid whose snapshot may be prefetched: the marker
// uid, and only when it matches the verified identity.
func PrefetchUID(c *gin.Context) string {
	marker := GetSessionUID(c)
	if marker == "" || marker != GetUID(c) {
		return ""
	}
	return marker
}
