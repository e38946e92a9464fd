package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/promptlib/internal/middleware"
	"github.com/huangang/promptlib/internal/services"
	"github.com/huangang/promptlib/pkg/response"
)

type ProfileHandler struct {
	reader   *services.PromptReader
	profiles *services.UserProfileService
}

func NewProfileHandler(reader *services.PromptReader, profiles *services.UserProfileService) *ProfileHandler {
	return &ProfileHandler{reader: reader, profiles: profiles}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	profile := h.reader.GetUserProfile(c.Request.Context(), middleware.GetUID(c))
	if profile == nil {
		response.Error(c, response.NewNotFound("profile not found"))
		return
	}
	response.Success(c, profile)
}

// Sync upserts the caller's profile from the verified identity.
func (h *ProfileHandler) Sync(c *gin.Context) {
	profile, err := h.profiles.Sync(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}
