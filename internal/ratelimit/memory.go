package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	expires time.Time
}

// MemoryLimiter is a process-local Limiter for tests and redis-less runs.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	window  time.Duration
	limit   int64
	clock   func() time.Time
}

func NewMemoryLimiter(windowLen time.Duration, limit int) *MemoryLimiter {
	if windowLen <= 0 {
		windowLen = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryLimiter{
		windows: make(map[string]*window),
		window:  windowLen,
		limit:   int64(limit),
		clock:   time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, clientIP string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	w, ok := l.windows[clientIP]
	if !ok || now.After(w.expires) {
		l.windows[clientIP] = &window{count: 1, expires: now.Add(l.window)}
		return false, 0, nil
	}

	w.count++
	if w.count > l.limit {
		return true, w.expires.Sub(now), nil
	}
	return false, 0, nil
}
