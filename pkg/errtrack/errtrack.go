// Package errtrack reports unexpected failures to Sentry when a DSN is configured.
package errtrack

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"kwala.backend/pkg/logger"
)

var (
	enabled bool

	sentryInit = sentry.Init
)

// Init enables reporting. An empty dsn leaves the tracker disabled.
func Init(dsn, environment string) error {
	if dsn == "" {
		enabled = false
		return nil
	}

	err := sentryInit(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		TracesSampleRate: 0,
	})
	if err != nil {
		enabled = false
		return err
	}

	enabled = true
	return nil
}

// Enabled reports whether events are forwarded.
func Enabled() bool {
	return enabled
}

// Capture sends err along with the request and user ids carried by ctx.
func Capture(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if !enabled {
		logger.Debug(ctx, "error not reported", zap.Error(err))
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
			scope.SetTag("request_id", requestID)
		}
		if userID, ok := ctx.Value(logger.UserIDKey).(string); ok {
			scope.SetUser(sentry.User{ID: userID})
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for queued events.
func Flush(timeout time.Duration) bool {
	if !enabled {
		return true
	}
	return sentry.Flush(timeout)
}
