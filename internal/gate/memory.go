package gate

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a process-local Locker used by tests and single-node
// deployments without redis.
type MemoryLocker struct {
	mu    sync.Mutex
	ttl   time.Duration
	held  map[string]time.Time
	clock func() time.Time
}

func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLocker{
		ttl:   ttl,
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return false, nil
	}
	l.held[key] = now.Add(l.ttl)
	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
