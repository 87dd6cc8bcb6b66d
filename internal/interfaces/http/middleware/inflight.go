package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/internal/interfaces/http/response"
	"kwala.backend/pkg/logger"
	"kwala.backend/pkg/redis"
)

// Locker grants one holder per key until released or ttl passes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// InFlightMiddleware lets each user run at most one request through the route at a time.
// A second request while the first is still running is rejected with CooldownActive.
func InFlightMiddleware(locker Locker, scope string, ttl time.Duration, busy prometheus.Counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.Error(c, domainerrors.Unauthorized("Unauthorized"))
			return
		}

		ctx := c.Request.Context()
		key := scope + ":" + userID.String()
		release, err := locker.Acquire(ctx, key, ttl)
		if err != nil {
			if errors.Is(err, redis.ErrLocked) {
				busy.Inc()
				response.ErrorWithError(c, http.StatusTooManyRequests, domainerrors.CodeCooldownActive, "A request is already in progress")
				return
			}
			// redis being down should not take the route with it
			logger.Warn(ctx, "In-flight lock unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn(ctx, "Failed to release in-flight lock", zap.String("key", key), zap.Error(err))
			}
		}()
		c.Next()
	}
}
