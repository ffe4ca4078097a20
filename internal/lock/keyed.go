// Package lock provides the per-listing serialization unit for the booking
// engine: a set of weight-1 semaphores keyed by listing ID. Holding a
// listing's lock makes the conflict-check-then-write sequence atomic for
// that listing while leaving other listings fully parallel.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/pcormier/staybook/backend/internal/domain"
)

// entry is one listing's semaphore plus a refcount so idle entries can be
// removed from the map instead of accumulating forever.
type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Keyed hands out mutual exclusion per key. A weight-1 semaphore.Weighted
// is used instead of sync.Mutex because its Acquire takes a context,
// which gives us deadline-bounded waiting for free.
type Keyed struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

// NewKeyed returns an empty lock set.
func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[uuid.UUID]*entry)}
}

// Acquire blocks until the lock for key is held or ctx expires.
// On success it returns a release function that must be called exactly once,
// typically via defer. When the context deadline expires before the lock is
// granted, the returned error wraps domain.ErrLockTimeout so callers can
// surface it as a retryable failure.
func (k *Keyed) Acquire(ctx context.Context, key uuid.UUID) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.put(key, e)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLockTimeout, key)
		}
		return nil, fmt.Errorf("lock.Keyed.Acquire: %w", err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.sem.Release(1)
			k.put(key, e)
		})
	}
	return release, nil
}

// put drops one reference to the key's entry and deletes it once unused.
func (k *Keyed) put(key uuid.UUID, e *entry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}
