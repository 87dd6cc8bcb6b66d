package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/internal/domain/services"
	"kwala.backend/pkg/logger"
)

const formatInstruction = "\n\nPlease format the response with clear paragraph breaks using double newlines, " +
	`use "**" for headers, and maintain a clear structure with proper spacing.`

const emptyCompletion = "No response"

// ChatUsecase generates cover letters, emails and replies from a free-form prompt.
type ChatUsecase struct {
	generator services.TextGenerator
}

func NewChatUsecase(generator services.TextGenerator) *ChatUsecase {
	return &ChatUsecase{generator: generator}
}

// Complete asks the generator for a paragraph-formatted answer to message.
func (u *ChatUsecase) Complete(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", domainerrors.BadRequest("Message is required")
	}

	out, err := u.generator.Generate(ctx, message+formatInstruction)
	if err != nil {
		logger.Error(ctx, "Chat completion failed", zap.Error(err))
		if !errors.Is(err, domainerrors.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %v", domainerrors.ErrGenerationFailed, err)
		}
		return "", err
	}
	return normalizeParagraphs(out), nil
}

func normalizeParagraphs(s string) string {
	var paragraphs []string
	for _, p := range strings.Split(s, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return emptyCompletion
	}
	return strings.Join(paragraphs, "\n\n")
}
