package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// FailureDelayConfig holds the padding applied to failed logins
type FailureDelayConfig struct {
	Base   time.Duration // minimum time a failed attempt takes
	Jitter time.Duration // random extra delay in [0, Jitter)
}

// FailureDelay pads failed authentication attempts so that "unknown account"
// and "wrong password" take indistinguishable time.
type FailureDelay struct {
	config FailureDelayConfig
}

// NewFailureDelay creates a new FailureDelay
func NewFailureDelay(config FailureDelayConfig) *FailureDelay {
	return &FailureDelay{config: config}
}

// Target returns the total duration a failed attempt should take
func (d *FailureDelay) Target() time.Duration {
	target := d.config.Base
	if d.config.Jitter > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(d.config.Jitter)))
		if err == nil {
			target += time.Duration(n.Int64())
		}
	}
	return target
}

// WaitFrom sleeps until at least Target has elapsed since start.
// Returns early with ctx.Err() if the request is cancelled.
func (d *FailureDelay) WaitFrom(ctx context.Context, start time.Time) error {
	if d == nil {
		return nil
	}

	remaining := d.Target() - time.Since(start)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
