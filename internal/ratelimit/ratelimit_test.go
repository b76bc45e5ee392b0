package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_UnderLimit(t *testing.T) {
	l := NewMemoryLimiter(900*time.Second, 10)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		limited, _, err := l.Allow(ctx, "198.51.100.7")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if limited {
			t.Fatalf("request %d limited, want allowed", i+1)
		}
	}
}

func TestMemoryLimiter_EleventhRequestLimited(t *testing.T) {
	l := NewMemoryLimiter(900*time.Second, 10)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		l.Allow(ctx, "ip")
	}

	limited, retryAfter, err := l.Allow(ctx, "ip")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !limited {
		t.Fatal("11th request should be limited")
	}
	if retryAfter <= 0 || retryAfter > 900*time.Second {
		t.Errorf("retryAfter = %v, want (0, 900s]", retryAfter)
	}
}

func TestMemoryLimiter_WindowReset(t *testing.T) {
	l := NewMemoryLimiter(900*time.Second, 2)
	now := time.Now()
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	l.Allow(ctx, "ip")
	l.Allow(ctx, "ip")
	if limited, _, _ := l.Allow(ctx, "ip"); !limited {
		t.Fatal("third request should be limited")
	}

	now = now.Add(901 * time.Second)
	if limited, _, _ := l.Allow(ctx, "ip"); limited {
		t.Error("request after window expiry should be allowed")
	}
}

func TestMemoryLimiter_PerClientIsolation(t *testing.T) {
	l := NewMemoryLimiter(900*time.Second, 1)
	ctx := context.Background()

	l.Allow(ctx, "a")
	if limited, _, _ := l.Allow(ctx, "b"); limited {
		t.Error("clients must not share counters")
	}
}
