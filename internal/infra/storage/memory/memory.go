package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/retryguard/internal/core/domain"
)

// -----------------------------------------------------------------------------
// Ephemeral Store
// -----------------------------------------------------------------------------

type entry struct {
	value     string
	expiresAt time.Time
}

// Store is an in-process key-value store with per-key expiry. It stands in
// for Redis in tests and dry runs.
type Store struct {
	data map[string]entry
	now  func() time.Time
	mu   sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

// SetClock overrides the time source used for expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || s.expired(e) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores value without expiry.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry{value: value}
	return nil
}

func (s *Store) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *Store) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// TTL returns the remaining lifetime of key. ok is false for missing keys
// and keys without expiry.
func (s *Store) TTL(key string) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, found := s.data[key]
	if !found || e.expiresAt.IsZero() || s.expired(e) {
		return 0, false
	}
	return e.expiresAt.Sub(s.now()), true
}

func (s *Store) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

// -----------------------------------------------------------------------------
// Failure Log
// -----------------------------------------------------------------------------

// FailureLog is a failure backend that keeps every failure in memory.
type FailureLog struct {
	failures []*domain.Failure
	mu       sync.RWMutex
}

func NewFailureLog() *FailureLog {
	return &FailureLog{}
}

func (l *FailureLog) Save(ctx context.Context, f *domain.Failure) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, f)
	return nil
}

// All returns the recorded failures, oldest first.
func (l *FailureLog) All() []*domain.Failure {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*domain.Failure, len(l.failures))
	copy(out, l.failures)
	return out
}

func (l *FailureLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.failures)
}
