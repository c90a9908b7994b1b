package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/retryguard/internal/core/domain"
)

func TestStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore()
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if err := s.SetEX(ctx, "k", "v", 10*time.Second); err != nil {
		t.Fatal(err)
	}
	if ttl, ok := s.TTL("k"); !ok || ttl != 10*time.Second {
		t.Errorf("TTL = %v, %v; want 10s, true", ttl, ok)
	}

	now = now.Add(9 * time.Second)
	if v, ok, _ := s.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("Get before expiry = %q, %v", v, ok)
	}

	now = now.Add(time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("key should have expired")
	}

	_ = s.Set(ctx, "p", "1")
	if _, ok := s.TTL("p"); ok {
		t.Error("persistent key should report no TTL")
	}
	_ = s.Del(ctx, "p")
	if _, ok, _ := s.Get(ctx, "p"); ok {
		t.Error("deleted key still present")
	}
}

func TestFailureLog(t *testing.T) {
	l := NewFailureLog()
	_ = l.Save(context.Background(), &domain.Failure{Queue: "a"})
	_ = l.Save(context.Background(), &domain.Failure{Queue: "b"})

	all := l.All()
	if l.Count() != 2 || all[0].Queue != "a" || all[1].Queue != "b" {
		t.Errorf("unexpected failures: %+v", all)
	}
}
