package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
)

// CounterStore is a shared key-value store with atomic, expiring counters.
// Implementations must make Increment atomic per key and apply ttl only when
// the increment creates the key.
type CounterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// RateTracker counts events per key within a fixed window
type RateTracker struct {
	store   CounterStore
	timeout time.Duration
}

// NewRateTracker creates a RateTracker. A positive timeout bounds every store call.
func NewRateTracker(store CounterStore, timeout time.Duration) *RateTracker {
	return &RateTracker{store: store, timeout: timeout}
}

func (t *RateTracker) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}

// Hit records one event for key and returns the count in the current window.
// The window starts at the first event.
func (t *RateTracker) Hit(ctx context.Context, key string, window time.Duration) (int, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	n, err := t.store.Increment(ctx, key, window)
	if err != nil {
		return 0, storeError(err)
	}
	return int(n), nil
}

// Count returns the current count for key without changing it
func (t *RateTracker) Count(ctx context.Context, key string) (int, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	n, err := t.store.Get(ctx, key)
	if err != nil {
		return 0, storeError(err)
	}
	return int(n), nil
}

// Reset clears the count for key
func (t *RateTracker) Reset(ctx context.Context, key string) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	if err := t.store.Delete(ctx, key); err != nil {
		return storeError(err)
	}
	return nil
}

// Ping checks that the counter store is reachable
func (t *RateTracker) Ping(ctx context.Context) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	if err := t.store.Ping(ctx); err != nil {
		return storeError(err)
	}
	return nil
}

func storeError(err error) error {
	if errors.Is(err, models.ErrCounterStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrCounterStoreUnavailable, err)
}

// BruteForceConfig holds the login lockout policy
type BruteForceConfig struct {
	MaxAttempts   int
	LockoutWindow time.Duration
	KeyPrefix     string
	// FailOpen lets logins proceed when the counter store is unreachable.
	FailOpen bool
}

// BruteForceGuard locks out a (client IP, identifier) pair after repeated
// failed logins. A pair is locked once its failure count reaches MaxAttempts
// and unlocks when the window expires or the count is cleared.
type BruteForceGuard struct {
	tracker *RateTracker
	config  BruteForceConfig
	logger  *slog.Logger
}

// NewBruteForceGuard creates a new BruteForceGuard
func NewBruteForceGuard(tracker *RateTracker, config BruteForceConfig, logger *slog.Logger) *BruteForceGuard {
	return &BruteForceGuard{
		tracker: tracker,
		config:  config,
		logger:  logger,
	}
}

// Config returns the active policy
func (g *BruteForceGuard) Config() BruteForceConfig {
	return g.config
}

// UnknownIdentifier stands in for requests that carry no identifier
const UnknownIdentifier = "unknown"

// Key returns the counter key for a client IP and identifier
func (g *BruteForceGuard) Key(clientIP, identifier string) string {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		identifier = UnknownIdentifier
	}
	return g.config.KeyPrefix + clientIP + ":" + identifier
}

// IsLockedOut reads the lockout state without changing it.
// When the counter store is unreachable it returns ErrCounterStoreUnavailable,
// unless the guard is configured to fail open.
func (g *BruteForceGuard) IsLockedOut(ctx context.Context, clientIP, identifier string) (models.LockoutDecision, error) {
	count, err := g.tracker.Count(ctx, g.Key(clientIP, identifier))
	if err != nil {
		if g.config.FailOpen {
			g.logger.WarnContext(ctx, "counter store unavailable, allowing login attempt",
				slog.String("ip", clientIP),
				slog.Any("error", err))
			return models.NewLockoutDecision(0, g.config.MaxAttempts), nil
		}
		return models.LockoutDecision{}, err
	}

	return models.NewLockoutDecision(count, g.config.MaxAttempts), nil
}

// RecordFailedAttempt counts one failed login and returns the resulting decision.
// The lockout window starts at the first failure.
func (g *BruteForceGuard) RecordFailedAttempt(ctx context.Context, clientIP, identifier string) (models.LockoutDecision, error) {
	count, err := g.tracker.Hit(ctx, g.Key(clientIP, identifier), g.config.LockoutWindow)
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to record failed login attempt",
			slog.String("ip", clientIP),
			slog.Any("error", err))
		return models.NewLockoutDecision(0, g.config.MaxAttempts), err
	}

	decision := models.NewLockoutDecision(count, g.config.MaxAttempts)
	if count == g.config.MaxAttempts {
		g.logger.WarnContext(ctx, "login locked out",
			slog.String("ip", clientIP),
			slog.Int("attempts", count),
			slog.Duration("lockout_window", g.config.LockoutWindow))
	}
	return decision, nil
}

// ClearFailedAttempts unlocks the pair, typically after a successful login
func (g *BruteForceGuard) ClearFailedAttempts(ctx context.Context, clientIP, identifier string) error {
	return g.tracker.Reset(ctx, g.Key(clientIP, identifier))
}

// LockoutMinutes is the lockout window rounded up to whole minutes
func (g *BruteForceGuard) LockoutMinutes() int {
	minutes := int(g.config.LockoutWindow / time.Minute)
	if g.config.LockoutWindow%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// LockoutMessage is the caller-facing text for a locked request.
// It states the wait time but not the attempt count.
func (g *BruteForceGuard) LockoutMessage() string {
	return fmt.Sprintf("Too many failed login attempts. Please try again in %d minutes.", g.LockoutMinutes())
}
