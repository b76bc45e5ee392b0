// Package gate provides the distributed mutex that serializes first-seen
// fabrication per request fingerprint. Collisions are rejected, not queued:
// a losing request answers immediately and the client retries.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a crashed holder can block a fingerprint.
const DefaultTTL = 30 * time.Second

// Locker is the narrow interface the engine depends on, so tests can run
// against an in-memory fake instead of redis.
type Locker interface {
	// Acquire returns false when the key is already held. It never blocks.
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisLocker backs the gate with a shared redis instance using SET NX EX.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, lockKey(key), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, lockKey(key)).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

func lockKey(key string) string {
	return "lock:" + key
}
