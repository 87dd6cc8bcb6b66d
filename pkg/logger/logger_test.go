package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func resetLogger(t *testing.T) {
	t.Helper()
	log = nil
	once = sync.Once{}
	t.Cleanup(func() {
		log = nil
		once = sync.Once{}
	})
}

func TestGetLogger_NopBeforeInit(t *testing.T) {
	resetLogger(t)
	if GetLogger() == nil {
		t.Fatal("expected nop logger before Init")
	}
	Info(context.Background(), "no panic before init")
}

func TestInitAndContextLogging(t *testing.T) {
	resetLogger(t)
	Init("development")
	if GetLogger() == nil {
		t.Fatal("expected logger initialized")
	}

	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "user-1")
	if WithContext(ctx) == nil {
		t.Fatal("expected contextual logger")
	}

	Info(ctx, "info")
	Debug(ctx, "debug")
	Warn(ctx, "warn")
	Error(ctx, "error")
	LogRequest(ctx, "GET", "/health", 200, 10*time.Millisecond, "127.0.0.1")
	Sync()
}

func TestLogRequest_CarriesContextFields(t *testing.T) {
	resetLogger(t)
	core, logs := observer.New(zap.DebugLevel)
	log = zap.New(core)

	ctx := WithUserID(WithRequestID(context.Background(), "req-42"), "user-7")
	LogRequest(ctx, "POST", "/api/humanize", 429, 3*time.Millisecond, "10.0.0.1")
	Warn(context.Background(), "plain")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	require.Equal(t, "HTTP Request", entries[0].Message)
	require.Equal(t, "req-42", fields["request_id"])
	require.Equal(t, "user-7", fields["user_id"])
	require.Equal(t, int64(429), fields["status"])
	require.Equal(t, "/api/humanize", fields["path"])

	require.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestWithContextNil(t *testing.T) {
	resetLogger(t)
	Init("development")
	if WithContext(nil) == nil {
		t.Fatal("expected base logger for nil context")
	}
}

func TestInit_ProductionAndWithContextWithoutFields(t *testing.T) {
	resetLogger(t)

	Init("production")
	if GetLogger() == nil {
		t.Fatal("expected production logger initialized")
	}

	if WithContext(context.Background()) == nil {
		t.Fatal("expected logger without contextual fields")
	}
}

func TestInit_PanicWhenLoggerBuildFails(t *testing.T) {
	resetLogger(t)
	origBuild := buildLogger
	t.Cleanup(func() { buildLogger = origBuild })

	buildLogger = func(zap.Config) (*zap.Logger, error) {
		return nil, errors.New("build failed")
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when logger builder fails")
		}
	}()
	Init("production")
}
