package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when the key is already held.
var ErrLocked = errors.New("key is locked")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived keys backed by SET NX with a TTL.
type Locker struct {
	client *redis.Client
	prefix string
}

// NewLocker creates a locker whose keys live under prefix.
func NewLocker(c *redis.Client, prefix string) *Locker {
	return &Locker{client: c, prefix: prefix}
}

// Acquire takes key for ttl. The returned release func is safe to call more than once
// and never deletes a key that was re-acquired by someone else after expiry.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}

	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
	}
	return release, nil
}
