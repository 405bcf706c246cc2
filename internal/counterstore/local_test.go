package counterstore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocalStoreIncr(t *testing.T) {
	s := NewLocalStore()
	defer s.Close()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		v, err := s.Incr(ctx, "rate_limit:1:1000")
		if err != nil {
			t.Fatalf("Incr() error: %v", err)
		}
		if v != int64(i) {
			t.Errorf("Incr() = %d, want %d", v, i)
		}
	}
}

func TestLocalStoreIncrConcurrent(t *testing.T) {
	s := NewLocalStore()
	defer s.Close()
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Incr(ctx, "rate_limit:1:2000"); err != nil {
				t.Errorf("Incr() error: %v", err)
			}
		}()
	}
	wg.Wait()

	v, err := s.Incr(ctx, "rate_limit:1:2000")
	if err != nil {
		t.Fatalf("Incr() error: %v", err)
	}
	if v != n+1 {
		t.Errorf("final count = %d, want %d", v, n+1)
	}
}

func TestLocalStoreExpireIndependentKeys(t *testing.T) {
	s := NewLocalStore()
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Incr(ctx, "usage:1:1:1000"); err != nil {
		t.Fatalf("Incr() error: %v", err)
	}
	if err := s.Expire(ctx, "usage:1:1:1000", time.Minute); err != nil {
		t.Fatalf("Expire() error: %v", err)
	}

	v, err := s.Incr(ctx, "usage:1:2:1000")
	if err != nil {
		t.Fatalf("Incr() error: %v", err)
	}
	if v != 1 {
		t.Errorf("unrelated key got count %d, want 1", v)
	}
}
