package services

import (
	"context"
)

// CodeKind distinguishes the two one-time code emails.
type CodeKind string

const (
	CodeKindVerification  CodeKind = "verification"
	CodeKindPasswordReset CodeKind = "password_reset"
)

// CodeSender delivers a one-time code to an email address.
type CodeSender interface {
	SendCode(ctx context.Context, kind CodeKind, email, code string) error
}

// TextGenerator produces text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Artifact is one captured diagnostic file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// DiagnosticSink keeps debug captures of failed browser sessions.
type DiagnosticSink interface {
	Capture(ctx context.Context, prefix string, artifacts ...Artifact) error
}
