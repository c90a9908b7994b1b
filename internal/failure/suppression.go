package failure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/retryguard/internal/core/domain"
	"github.com/vietddude/retryguard/internal/metrics"
)

// corruptRetryFloor is the lowest retry counter value still considered
// valid. Concurrent duplicate jobs can push a cleared counter below it.
const corruptRetryFloor = -3

// FailureKey derives the snapshot key for a retry key.
func FailureKey(retryKey string) string {
	return "failure_" + retryKey
}

// RetrySuppression forwards a failure to the wrapped backends only when the
// job will not be retried. Otherwise it parks a snapshot in the store for
// twice the retry delay.
type RetrySuppression struct {
	backends *Multiple
	store    Store
	now      func() time.Time
	log      *slog.Logger
}

// NewRetrySuppression creates the suppression backend.
func NewRetrySuppression(store Store, backends *Multiple, log *slog.Logger) *RetrySuppression {
	if log == nil {
		log = slog.Default()
	}
	if backends == nil {
		backends = NewMultiple()
	}
	return &RetrySuppression{
		backends: backends,
		store:    store,
		now:      time.Now,
		log:      log,
	}
}

// Save implements Backend.
func (s *RetrySuppression) Save(ctx context.Context, f *domain.Failure) error {
	retryable, isRetryable := domain.AsRetryable(f.Job)

	if domain.IsDirtyExit(f.Err) {
		return s.forward(ctx, f, retryable)
	}
	if !isRetryable {
		return s.forward(ctx, f, nil)
	}

	key := retryable.RetryKey()
	pending, err := s.retrying(ctx, key)
	if err != nil {
		return err
	}
	if !pending {
		return s.forward(ctx, f, retryable)
	}

	delay := retryable.RetryDelay()
	if delay <= 0 {
		metrics.FailuresTotal.WithLabelValues(f.Queue, metrics.OutcomeDropped).Inc()
		s.log.Debug("Retry is immediate, nothing to record", "retry_key", key)
		return nil
	}

	if f.FailedAt.IsZero() {
		f.FailedAt = s.now()
	}
	data, err := json.Marshal(domain.NewSnapshot(f))
	if err != nil {
		return fmt.Errorf("failed to marshal failure snapshot: %w", err)
	}
	if err := s.store.SetEX(ctx, FailureKey(key), string(data), 2*delay); err != nil {
		return fmt.Errorf("failed to store failure snapshot: %w", err)
	}

	metrics.FailuresTotal.WithLabelValues(f.Queue, metrics.OutcomeSuppressed).Inc()
	s.log.Debug("Failure suppressed pending retry",
		"retry_key", key,
		"ttl", 2*delay,
		"queue", f.Queue,
	)
	return nil
}

// forward drops any snapshot for the job and hands the failure to the
// wrapped backends.
func (s *RetrySuppression) forward(ctx context.Context, f *domain.Failure, r domain.Retryable) error {
	if r != nil {
		if err := s.store.Del(ctx, FailureKey(r.RetryKey())); err != nil {
			return fmt.Errorf("failed to clean up failure snapshot: %w", err)
		}
	}
	metrics.FailuresTotal.WithLabelValues(f.Queue, metrics.OutcomeForwarded).Inc()
	return s.backends.Save(ctx, f)
}

// retrying reports whether the scheduler holds a retry counter for key.
// A counter below the valid floor is what a clear leaves behind, possibly
// pushed further down by concurrent duplicates. It is deleted, and this
// failure still counts as pending. The delete races with those duplicates;
// a few extra retries are the worst case.
func (s *RetrySuppression) retrying(ctx context.Context, key string) (bool, error) {
	val, found, err := s.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read retry state: %w", err)
	}
	if !found {
		return false, nil
	}

	if leadingInt(val) < corruptRetryFloor {
		if err := s.store.Del(ctx, key); err != nil {
			return false, fmt.Errorf("failed to reset retry state: %w", err)
		}
		metrics.RetryStateCorrections.Inc()
		s.log.Warn("Deleted corrupted retry counter", "retry_key", key, "value", val)
	}
	return true, nil
}

// leadingInt parses the optional sign and digits at the start of s.
// Anything unparseable is 0.
func leadingInt(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
