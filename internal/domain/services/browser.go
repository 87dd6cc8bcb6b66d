package services

import (
	"context"
)

// PageOptions are applied to a single page only.
type PageOptions struct {
	UserAgent string
	Width     int
	Height    int
}

// BrowserLauncher starts a browser process.
type BrowserLauncher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is a running browser process.
type Browser interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	// Disconnected is closed when the browser process goes away.
	Disconnected() <-chan struct{}
	Close() error
}

// Page is one isolated tab. Deadlines come from the ctx of each call.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Focus(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, keys string) error
	Click(ctx context.Context, selector string) error
	OuterHTML(ctx context.Context, selector string) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
