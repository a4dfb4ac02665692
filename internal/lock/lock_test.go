package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	release, err := l.Acquire(ctx, "job-1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "job-1", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	_, err = l.Acquire(ctx, "job-2", time.Minute)
	assert.NoError(t, err, "keys are independent")

	require.NoError(t, release(ctx))
	_, err = l.Acquire(ctx, "job-1", time.Minute)
	assert.NoError(t, err)
}

func TestMemoryLocker_ExpiredHolderCannotReleaseNewLock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	stale, err := l.Acquire(ctx, "job-1", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = l.Acquire(ctx, "job-1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	_, err = l.Acquire(ctx, "job-1", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
}
