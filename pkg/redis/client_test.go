package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitInvalidURL(t *testing.T) {
	err := Init("://invalid-url", "")
	assert.Error(t, err)
}

func TestInitUnreachable(t *testing.T) {
	err := Init("redis://127.0.0.1:0", "secret")
	assert.Error(t, err)
}

func TestInitAndClose(t *testing.T) {
	srv := miniredis.RunT(t)
	prev := GetClient()
	t.Cleanup(func() { SetClient(prev) })

	require.NoError(t, Init("redis://"+srv.Addr(), ""))
	require.NotNil(t, GetClient())
	require.NoError(t, GetClient().Set(context.Background(), "k", "v", time.Second).Err())
	require.NoError(t, Close())
}

func TestPingClient_WrapperExecutes(t *testing.T) {
	c := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.Error(t, pingClient(ctx, c))
}
