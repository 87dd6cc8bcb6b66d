package errtrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/require"
)

func TestInit_EmptyDSNDisables(t *testing.T) {
	require.NoError(t, Init("", "test"))
	require.False(t, Enabled())
	require.True(t, Flush(time.Millisecond))

	Capture(context.Background(), errors.New("ignored"))
	Capture(context.Background(), nil)
}

func TestInit_PropagatesClientError(t *testing.T) {
	orig := sentryInit
	t.Cleanup(func() {
		sentryInit = orig
		enabled = false
	})

	sentryInit = func(sentry.ClientOptions) error { return errors.New("bad dsn") }
	require.Error(t, Init("https://key@example.invalid/1", "test"))
	require.False(t, Enabled())

	var got sentry.ClientOptions
	sentryInit = func(opts sentry.ClientOptions) error {
		got = opts
		return nil
	}
	require.NoError(t, Init("https://key@example.invalid/1", "staging"))
	require.True(t, Enabled())
	require.Equal(t, "staging", got.Environment)
}
