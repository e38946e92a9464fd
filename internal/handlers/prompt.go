package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/promptlib/internal/middleware"
	"github.com/huangang/promptlib/internal/models"
	"github.com/huangang/promptlib/internal/services"
	"github.com/huangang/promptlib/pkg/response"
)

type PromptHandler struct {
	service *services.PromptService
	reader  *services.PromptReader
}

func NewPromptHandler(service *services.PromptService, reader *services.PromptReader) *PromptHandler {
	return &PromptHandler{
		service: service,
		reader:  reader,
	}
}

// List returns the caller's prompts, newest first, optionally narrowed by
// ?tag= and a case-insensitive ?q= over title and content.
func (h *PromptHandler) List(c *gin.Context) {
	prompts := h.reader.GetPrompts(c.Request.Context(), middleware.GetUID(c))
	response.Success(c, services.FilterPrompts(prompts, c.Query("tag"), c.Query("q")))
}

// Tags returns the sorted, de-duplicated union of the caller's tags.
func (h *PromptHandler) Tags(c *gin.Context) {
	prompts := h.reader.GetPrompts(c.Request.Context(), middleware.GetUID(c))
	response.Success(c, services.AggregateTags(prompts))
}

func (h *PromptHandler) GetByID(c *gin.Context) {
	prompt, ok := h.ownedPrompt(c)
	if !ok {
		return
	}
	response.Success(c, prompt)
}

func (h *PromptHandler) Create(c *gin.Context) {
	var in services.PromptInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	prompt, err := h.service.Create(c.Request.Context(), middleware.GetIdentity(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, prompt)
}

func (h *PromptHandler) Update(c *gin.Context) {
	var patch services.PromptPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	prompt, err := h.service.Update(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, prompt)
}

func (h *PromptHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.GetIdentity(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("id")})
}

type renderRequest struct {
	Values map[string]interface{} `json:"values"`
}

type renderResponse struct {
	Content    string                     `json:"content"`
	Unresolved []string                   `json:"unresolved"`
	Spans      []services.PlaceholderSpan `json:"spans"`
}

// Render substitutes form values into a template prompt. Placeholders whose
// value is unset are left verbatim and reported as unresolved.
func (h *PromptHandler) Render(c *gin.Context) {
	prompt, ok := h.ownedPrompt(c)
	if !ok {
		return
	}

	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	values, err := services.ValuesFromInput(prompt.TemplateFields(), req.Values)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	unresolved := []string{}
	for _, name := range services.PlaceholderNames(prompt.Content) {
		if !values[name].IsSet() {
			unresolved = append(unresolved, name)
		}
	}

	content := services.RenderTemplate(prompt.Content, values)
	response.Success(c, renderResponse{
		Content:    content,
		Unresolved: unresolved,
		Spans:      services.HighlightPlaceholders(content),
	})
}

// ownedPrompt loads :id for the caller. Prompts of other owners are reported
// as missing.
func (h *PromptHandler) ownedPrompt(c *gin.Context) (*models.Prompt, bool) {
	prompt := h.reader.GetPromptByID(c.Request.Context(), c.Param("id"))
	if prompt == nil || prompt.UserID != middleware.GetUID(c) {
		response.Error(c, response.NewNotFound("prompt not found"))
		return nil, false
	}
	return prompt, true
}
