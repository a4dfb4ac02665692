//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	rc, err := tcredis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := rc.Terminate(ctx); err != nil {
			t.Logf("terminate redis: %v", err)
		}
	})

	host, err := rc.Host(ctx)
	require.NoError(t, err)
	port, err := rc.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, Config{Addr: host + ":" + port.Port()})
	require.NoError(t, err)
	defer client.Close()

	l := NewRedisLocker(client, "test:", nil)

	release, err := l.Acquire(ctx, "job-1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "job-1", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, release(ctx))
	release2, err := l.Acquire(ctx, "job-1", time.Minute)
	require.NoError(t, err)

	// releasing with the old token must not drop the new holder
	require.NoError(t, release(ctx))
	_, err = l.Acquire(ctx, "job-1", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
	require.NoError(t, release2(ctx))

	ttl, err := client.PTTL(ctx, "test:lock:job-1").Result()
	require.NoError(t, err)
	assert.Less(t, ttl, time.Duration(0))
}
