package gate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	l := NewMemoryLocker(time.Second)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "fp1")
	if err != nil || !ok {
		t.Fatalf("Acquire = %v, %v; want true, nil", ok, err)
	}

	ok, err = l.Acquire(ctx, "fp1")
	if err != nil || ok {
		t.Fatalf("second Acquire = %v, %v; want false, nil", ok, err)
	}

	if err := l.Release(ctx, "fp1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	ok, _ = l.Acquire(ctx, "fp1")
	if !ok {
		t.Error("Acquire after Release should succeed")
	}
}

func TestMemoryLocker_TTLExpiry(t *testing.T) {
	l := NewMemoryLocker(10 * time.Second)
	now := time.Now()
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := l.Acquire(ctx, "fp"); !ok {
		t.Fatal("first Acquire should succeed")
	}

	now = now.Add(11 * time.Second)
	if ok, _ := l.Acquire(ctx, "fp"); !ok {
		t.Error("Acquire after TTL expiry should succeed")
	}
}

func TestMemoryLocker_ExactlyOneWinner(t *testing.T) {
	l := NewMemoryLocker(time.Minute)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan bool, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Acquire(ctx, "shared")
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for ok := range wins {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}
