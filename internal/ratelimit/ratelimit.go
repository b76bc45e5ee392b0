// Package ratelimit throttles exploration of novel paths per client. Only
// GET requests that fall through to fabrication consume the budget; cache
// hits and mutating verbs are never counted.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultWindow = 900 * time.Second
	DefaultLimit  = 10
)

// Limiter is the narrow interface the engine depends on.
type Limiter interface {
	// Allow increments the client's counter. When the limit is exceeded it
	// returns limited=true and the remaining window TTL.
	Allow(ctx context.Context, clientIP string) (limited bool, retryAfter time.Duration, err error)
}

// RedisLimiter implements a sliding-window counter on redis INCR/EXPIRE.
type RedisLimiter struct {
	rdb    *redis.Client
	window time.Duration
	limit  int64
}

func NewRedisLimiter(rdb *redis.Client, window time.Duration, limit int) *RedisLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &RedisLimiter{rdb: rdb, window: window, limit: int64(limit)}
}

func (l *RedisLimiter) Allow(ctx context.Context, clientIP string) (bool, time.Duration, error) {
	key := counterKey(clientIP)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate counter incr: %w", err)
	}

	// First increment in a window sets the expiry.
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("rate counter expire: %w", err)
		}
	}

	if count > l.limit {
		ttl, err := l.rdb.TTL(ctx, key).Result()
		if err != nil {
			return false, 0, fmt.Errorf("rate counter ttl: %w", err)
		}
		return true, ttl, nil
	}

	return false, 0, nil
}

func counterKey(clientIP string) string {
	return "rate:newget:" + clientIP
}
