package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"kwala.backend/internal/domain/entities"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/internal/interfaces/http/response"
)

type chatService interface {
	Complete(ctx context.Context, message string) (string, error)
}

// ChatHandler serves text generation
type ChatHandler struct {
	chat chatService
}

func NewChatHandler(chat chatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Completion generates a formatted answer for the prompt
// POST /api/chat/completion
func (h *ChatHandler) Completion(c *gin.Context) {
	var input entities.ChatCompletionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("Message is required"))
		return
	}

	out, err := h.chat.Complete(c.Request.Context(), input.Message)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"response": out})
}
