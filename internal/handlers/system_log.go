package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/promptlib/internal/middleware"
	"github.com/huangang/promptlib/internal/services"
	"github.com/huangang/promptlib/pkg/response"
)

// ActivityHandler exposes the caller's own audit trail.
type ActivityHandler struct {
	logs *services.SystemLogService
}

func NewActivityHandler(logs *services.SystemLogService) *ActivityHandler {
	return &ActivityHandler{logs: logs}
}

func (h *ActivityHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.logs.ListForUser(c.Request.Context(), middleware.GetUID(c), &req)
	if err != nil {
		response.Error(c, response.NewServerError("failed to load activity"))
		return
	}
	response.Success(c, result)
}
