package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestFailureDelay_WaitFrom_PadsToBase(t *testing.T) {
	delay := auth.NewFailureDelay(auth.FailureDelayConfig{
		Base:   50 * time.Millisecond,
		Jitter: 20 * time.Millisecond,
	})

	start := time.Now()
	err := delay.WaitFrom(context.Background(), start)

	elapsed := time.Since(start)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestFailureDelay_WaitFrom_ElapsedAlreadyCovered(t *testing.T) {
	delay := auth.NewFailureDelay(auth.FailureDelayConfig{Base: 50 * time.Millisecond})

	start := time.Now().Add(-time.Second)
	before := time.Now()
	err := delay.WaitFrom(context.Background(), start)

	assert.NoError(t, err)
	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestFailureDelay_WaitFrom_Cancelled(t *testing.T) {
	delay := auth.NewFailureDelay(auth.FailureDelayConfig{Base: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := time.Now()
	err := delay.WaitFrom(ctx, time.Now())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(before), 100*time.Millisecond)
}

func TestFailureDelay_Target_WithinJitter(t *testing.T) {
	delay := auth.NewFailureDelay(auth.FailureDelayConfig{
		Base:   10 * time.Millisecond,
		Jitter: 5 * time.Millisecond,
	})

	for i := 0; i < 50; i++ {
		target := delay.Target()
		assert.GreaterOrEqual(t, target, 10*time.Millisecond)
		assert.Less(t, target, 15*time.Millisecond)
	}
}

func TestFailureDelay_NilIsNoop(t *testing.T) {
	var delay *auth.FailureDelay
	assert.NoError(t, delay.WaitFrom(context.Background(), time.Now()))
}
