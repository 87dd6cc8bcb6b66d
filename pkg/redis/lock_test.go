package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	c := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return NewLocker(c, "test:"), srv
}

func TestLocker_AcquireRelease(t *testing.T) {
	l, srv := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "user-1", time.Minute)
	require.NoError(t, err)
	require.True(t, srv.Exists("test:user-1"))

	_, err = l.Acquire(ctx, "user-1", time.Minute)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release(ctx))
	require.False(t, srv.Exists("test:user-1"))

	again, err := l.Acquire(ctx, "user-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestLocker_ExpiredLockIsNotReleasedByStaleHolder(t *testing.T) {
	l, srv := newTestLocker(t)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "user-1", time.Second)
	require.NoError(t, err)
	srv.FastForward(2 * time.Second)

	fresh, err := l.Acquire(ctx, "user-1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	require.True(t, srv.Exists("test:user-1"))
	require.NoError(t, fresh(ctx))
}

func TestLocker_KeyExpiresAfterTTL(t *testing.T) {
	l, srv := newTestLocker(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "resend:a@x.com", 30*time.Second)
	require.NoError(t, err)

	srv.FastForward(29 * time.Second)
	_, err = l.Acquire(ctx, "resend:a@x.com", 30*time.Second)
	require.ErrorIs(t, err, ErrLocked)

	srv.FastForward(2 * time.Second)
	_, err = l.Acquire(ctx, "resend:a@x.com", 30*time.Second)
	require.NoError(t, err)
}
