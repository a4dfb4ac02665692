// Package lock provides per-job execution locks so a redelivered message
// cannot run alongside the execution it duplicates.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotAcquired means another holder owns the key.
var ErrNotAcquired = errors.New("lock held by another execution")

// Release gives a lock back. It is safe to call after the TTL expired.
type Release func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// MemoryLocker is an in-process Locker for single-process deployments and tests.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time // key -> expiry
	now  func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]time.Time{}, now: time.Now}
}

func (m *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if exp, ok := m.held[key]; ok && now.Before(exp) {
		return nil, ErrNotAcquired
	}
	exp := now.Add(ttl)
	m.held[key] = exp
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.held[key] == exp {
			delete(m.held, key)
		}
		return nil
	}, nil
}
