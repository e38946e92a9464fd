package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/promptlib/internal/config"
	"github.com/huangang/promptlib/internal/middleware"
	"github.com/huangang/promptlib/pkg/response"
)

const defaultSessionMaxAge = 7 * 24 * time.Hour

// SessionHandler manages the owner-id marker cookie. The marker carries no
// proof of identity; it only tells the read side whose snapshot to prefetch.
type SessionHandler struct {
	cookieName string
	maxAge     time.Duration
	secure     bool
}

func NewSessionHandler(cfg config.SessionConfig) *SessionHandler {
	h := &SessionHandler{
		cookieName: cfg.CookieName,
		maxAge:     cfg.MaxAge,
		secure:     cfg.Secure,
	}
	if h.cookieName == "" {
		h.cookieName = middleware.DefaultSessionCookie
	}
	if h.maxAge <= 0 {
		h.maxAge = defaultSessionMaxAge
	}
	return h
}

type setSessionRequest struct {
	UID string `json:"uid"`
}

// Set records the signed-in uid in the marker cookie.
func (h *SessionHandler) Set(c *gin.Context) {
	var req setSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UID == "" {
		response.BadRequest(c, "uid is required")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, req.UID, int(h.maxAge.Seconds()), "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Clear removes the marker cookie.
func (h *SessionHandler) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
