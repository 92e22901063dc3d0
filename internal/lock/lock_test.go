package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestMemoryStoreAcquireRelease(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock)
	ctx := context.Background()

	release, err := store.Acquire(ctx, "facility:1:2025-06-01T10:00", DefaultTTL)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := store.Acquire(ctx, "facility:1:2025-06-01T10:00", DefaultTTL); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("second acquire: got %v, want ErrNotAcquired", err)
	}

	// A different key is independent.
	if _, err := store.Acquire(ctx, "facility:2:2025-06-01T10:00", DefaultTTL); err != nil {
		t.Fatalf("unrelated key: %v", err)
	}

	release()
	if _, err := store.Acquire(ctx, "facility:1:2025-06-01T10:00", DefaultTTL); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestMemoryStoreStaleLockExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock)
	ctx := context.Background()

	if _, err := store.Acquire(ctx, "k", 30*time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	clock.advance(29 * time.Second)
	if _, err := store.Acquire(ctx, "k", 30*time.Second); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("before expiry: got %v, want ErrNotAcquired", err)
	}

	// Holder never released; after the TTL the lock is treated as stale.
	clock.advance(2 * time.Second)
	if _, err := store.Acquire(ctx, "k", 30*time.Second); err != nil {
		t.Fatalf("after expiry: %v", err)
	}
}
