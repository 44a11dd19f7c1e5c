package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s, err := NewRedisStore(rdb, "vt-test")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	return s, mr
}

func TestRedisStoreConsumeOnce(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()
	exp := time.Now().UTC().Add(time.Hour)

	if err := s.Add(ctx, "u1", "h1", exp); err != nil {
		t.Fatalf("Add: %v", err)
	}

	won, err := s.Consume(ctx, "u1", "h1")
	if err != nil || !won {
		t.Fatalf("first consume: won=%v err=%v", won, err)
	}
	won, err = s.Consume(ctx, "u1", "h1")
	if err != nil || won {
		t.Fatalf("second consume: won=%v err=%v", won, err)
	}
}

func TestRedisStoreConcurrentConsumeSingleWinner(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()
	if err := s.Add(ctx, "u1", "h1", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	const n = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			won, err := s.Consume(ctx, "u1", "h1")
			if err != nil {
				t.Errorf("Consume: %v", err)
				return
			}
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("want exactly 1 winner, got %d", wins)
	}
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, "u1", "h1", time.Now().UTC().Add(time.Minute)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if won, err := s.Consume(ctx, "u1", "h1"); err != nil || won {
		t.Fatalf("lapsed entry consumed: won=%v err=%v", won, err)
	}
}

func TestRedisStoreAddWithPastExpiryIsNoop(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, "u1", "h1", time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if won, _ := s.Consume(ctx, "u1", "h1"); won {
		t.Fatalf("already-lapsed entry must not be stored")
	}
}

func TestRedisStoreRemoveAndClear(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()
	exp := time.Now().UTC().Add(time.Hour)

	for _, h := range []string{"h1", "h2", "h3"} {
		if err := s.Add(ctx, "u1", h, exp); err != nil {
			t.Fatalf("Add %s: %v", h, err)
		}
	}
	if err := s.Add(ctx, "u2", "other", exp); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.RemoveOne(ctx, "u1", "h1"); err != nil {
		t.Fatalf("RemoveOne: %v", err)
	}
	if err := s.RemoveOne(ctx, "u1", "h1"); err != nil {
		t.Fatalf("RemoveOne must be idempotent: %v", err)
	}
	if won, _ := s.Consume(ctx, "u1", "h1"); won {
		t.Fatalf("h1 should be gone")
	}

	if err := s.ClearAll(ctx, "u1"); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	for _, h := range []string{"h2", "h3"} {
		if won, _ := s.Consume(ctx, "u1", h); won {
			t.Fatalf("%s should be gone after ClearAll", h)
		}
	}
	// Other identities are untouched.
	if won, _ := s.Consume(ctx, "u2", "other"); !won {
		t.Fatalf("u2's session must survive u1's ClearAll")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()
	mr.Close()

	if err := s.Add(ctx, "u1", "h1", time.Now().UTC().Add(time.Hour)); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := s.Consume(ctx, "u1", "h1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
