// Package llm talks to an OpenAI-compatible chat completion endpoint (Groq by default).
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"kwala.backend/internal/config"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/pkg/jwt"
)

// GroqGenerator implements services.TextGenerator.
type GroqGenerator struct {
	client *openai.Client
	cfg    config.LLMConfig
}

// NewGroqGenerator builds a client for cfg.BaseURL.
func NewGroqGenerator(cfg config.LLMConfig) *GroqGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &GroqGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

// Generate sends prompt as a single user message and returns the first choice.
// The caller's user id from the request context is forwarded as the end-user identifier.
func (g *GroqGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		TopP:        g.cfg.TopP,
	}
	if claims, ok := jwt.ClaimsFromContext(ctx); ok {
		req.User = claims.UserID.String()
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainerrors.ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
