package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/redis/go-redis/v9"
)

// incrementScript increments a counter and sets its expiry only when the
// increment created the key, as one atomic step on the server.
var incrementScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisCounterStore keeps attempt counters in Redis, shared by all API instances.
type RedisCounterStore struct {
	client redis.UniversalClient
}

// NewRedisCounterStore creates a counter store on an existing client
func NewRedisCounterStore(client redis.UniversalClient) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", models.ErrCounterStoreUnavailable, err)
}

// Increment adds one to key. The ttl applies only when the key is created.
func (s *RedisCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := incrementScript.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return count, nil
}

// Get returns the current value of key, or 0 if it does not exist
func (s *RedisCounterStore) Get(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return count, nil
}

// Delete removes key
func (s *RedisCounterStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Ping checks connectivity
func (s *RedisCounterStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore is a process-local counter store for development and tests.
// Counters are not shared between instances.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

// NewMemoryCounterStore creates an empty in-memory counter store
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

// WithClock replaces the time source, for tests
func (s *MemoryCounterStore) WithClock(now func() time.Time) *MemoryCounterStore {
	s.now = now
	return s
}

// live returns the counter for key, dropping it if expired. Caller holds mu.
func (s *MemoryCounterStore) live(key string) *memoryCounter {
	c, ok := s.counters[key]
	if !ok {
		return nil
	}
	if !c.expiresAt.IsZero() && !s.now().Before(c.expiresAt) {
		delete(s.counters, key)
		return nil
	}
	return c
}

func (s *MemoryCounterStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(key)
	if c == nil {
		c = &memoryCounter{}
		if ttl > 0 {
			c.expiresAt = s.now().Add(ttl)
		}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

func (s *MemoryCounterStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.live(key); c != nil {
		return c.count, nil
	}
	return 0, nil
}

func (s *MemoryCounterStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counters, key)
	return nil
}

func (s *MemoryCounterStore) Ping(context.Context) error {
	return nil
}

// Sweep removes expired counters and returns how many were dropped
func (s *MemoryCounterStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.counters {
		if s.live(key) == nil {
			removed++
		}
	}
	return removed
}
