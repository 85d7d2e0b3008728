package background

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"golang.org/x/sync/semaphore"
)

// EncodePool bounds the number of concurrent media decode/encode jobs.
// Image decoding allocates the full pixel buffer, so unbounded parallel
// uploads can exhaust memory.
type EncodePool struct {
	sem       *semaphore.Weighted
	size      int64
	queueWait time.Duration
	logger    *slog.Logger
}

// NewEncodePool creates a pool running at most size jobs at once.
// A job waits at most queueWait for a slot; zero means wait for the caller's context.
func NewEncodePool(size int, queueWait time.Duration, logger *slog.Logger) *EncodePool {
	if size < 1 {
		size = 1
	}
	return &EncodePool{
		sem:       semaphore.NewWeighted(int64(size)),
		size:      int64(size),
		queueWait: queueWait,
		logger:    logger,
	}
}

// Size returns the maximum number of concurrent jobs
func (p *EncodePool) Size() int {
	return int(p.size)
}

// Run executes fn once a slot is free. It returns models.ErrEncodeBusy when
// no slot frees up within the queue wait.
func (p *EncodePool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	acquireCtx := ctx
	if p.queueWait > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.queueWait)
		defer cancel()
	}

	if err := p.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			p.logger.WarnContext(ctx, "encode pool saturated",
				slog.Int64("size", p.size),
				slog.Duration("queue_wait", p.queueWait))
			return models.ErrEncodeBusy
		}
		return err
	}
	defer p.sem.Release(1)

	return fn(ctx)
}
