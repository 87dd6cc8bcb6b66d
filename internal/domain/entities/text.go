package entities

import "encoding/json"

// ChatCompletionInput is a free-form generation request.
type ChatCompletionInput struct {
	Message string `json:"message" binding:"required"`
}

// HumanizeInput is the text to rewrite. Content is kept raw so non-string values can be rejected.
type HumanizeInput struct {
	Content json.RawMessage `json:"content"`
}
