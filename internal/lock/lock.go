// Package lock serializes check-then-create booking sequences. The Redis
// store is authoritative for multi-instance deployments; the in-memory
// store is a single-node fallback and test double. Either way the lock is
// advisory: the unique index on active bookings is the correctness
// backstop.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotAcquired is returned when the key is already held. Callers treat
// it as retryable.
var ErrNotAcquired = errors.New("booking lock not acquired")

// DefaultTTL bounds how long a stale lock can linger after a crashed
// holder.
const DefaultTTL = 30 * time.Second

// Store acquires and releases TTL'd advisory locks. Acquire fails fast
// with ErrNotAcquired when the key is held.
type Store interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// MemoryStore is a process-local lock map with TTL-based staleness, for
// single-node deployments and tests.
type MemoryStore struct {
	clock Clock
	mu    sync.Mutex
	held  map[string]time.Time // key -> expiry
}

func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = realClock{}
	}
	return &MemoryStore{
		clock: clock,
		held:  make(map[string]time.Time),
	}
}

func (s *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.held[key]; ok && now.Before(expiry) {
		return nil, ErrNotAcquired
	}
	s.held[key] = now.Add(ttl)

	return func() {
		s.mu.Lock()
		delete(s.held, key)
		s.mu.Unlock()
	}, nil
}
