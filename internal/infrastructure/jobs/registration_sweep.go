package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"kwala.backend/pkg/logger"
)

// RegistrationSweeper removes unverified registrations whose grace window has passed.
type RegistrationSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// RegistrationSweepJob runs the sweep once at start and then on a fixed interval.
// It backs up the store's own TTL expiry, which is polled and can lag.
type RegistrationSweepJob struct {
	sweeper  RegistrationSweeper
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRegistrationSweepJob(sweeper RegistrationSweeper, interval time.Duration) *RegistrationSweepJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RegistrationSweepJob{
		sweeper:  sweeper,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (j *RegistrationSweepJob) Start(ctx context.Context) {
	logger.Info(ctx, "Starting registration sweep job", zap.Duration("interval", j.interval))

	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Registration sweep job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Registration sweep job stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *RegistrationSweepJob) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

func (j *RegistrationSweepJob) sweep(ctx context.Context) {
	removed, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		logger.Error(ctx, "Registration sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		logger.Info(ctx, "Removed expired registrations", zap.Int64("count", removed))
	}
}
