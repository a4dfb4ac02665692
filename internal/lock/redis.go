package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// compare-and-delete so an expired holder cannot release a newer lock
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// RedisLocker implements Locker with SET NX PX and a random token per holder.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

func NewRedisLocker(client redis.UniversalClient, prefix string, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, prefix: prefix, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	full := l.prefix + "lock:" + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", full, err)
	}
	if !ok {
		l.logger.Warn("lock.busy", "key", full)
		return nil, ErrNotAcquired
	}
	l.logger.Debug("lock.acquired", "key", full, "ttl", ttl)
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{full}, token).Err(); err != nil {
			return fmt.Errorf("redis release %s: %w", full, err)
		}
		return nil
	}, nil
}
