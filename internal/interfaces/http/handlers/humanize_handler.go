package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"kwala.backend/internal/domain/entities"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/internal/interfaces/http/response"
)

const invalidContentMessage = "Invalid content provided. Content must be a non-empty string."

type humanizer interface {
	Humanize(ctx context.Context, text string) (string, error)
}

// HumanizeHandler serves the humanize endpoint
type HumanizeHandler struct {
	pipeline humanizer
}

func NewHumanizeHandler(pipeline humanizer) *HumanizeHandler {
	return &HumanizeHandler{pipeline: pipeline}
}

// Humanize rewrites the given content
// POST /api/humanize
func (h *HumanizeHandler) Humanize(c *gin.Context) {
	var input entities.HumanizeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(invalidContentMessage))
		return
	}

	// content must be a JSON string, not a number or object
	var content string
	if err := json.Unmarshal(input.Content, &content); err != nil || strings.TrimSpace(content) == "" {
		response.Error(c, domainerrors.BadRequest(invalidContentMessage))
		return
	}

	out, err := h.pipeline.Humanize(c.Request.Context(), content)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"humanizedContent": out})
}
