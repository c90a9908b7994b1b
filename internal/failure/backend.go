package failure

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/vietddude/retryguard/internal/core/domain"
	"github.com/vietddude/retryguard/internal/metrics"
)

// Backend records a job failure.
type Backend interface {
	Save(ctx context.Context, f *domain.Failure) error
}

// Store is the shared ephemeral key-value store holding retry counters and
// snapshots.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Named attaches a name to a backend for logs and metrics.
type Named struct {
	Name string
	Backend
}

// Multiple forwards every failure to each backend in order. A failing
// backend does not stop the others; all errors are returned together.
type Multiple struct {
	backends []Named
}

// NewMultiple creates a fan-out backend.
func NewMultiple(backends ...Named) *Multiple {
	return &Multiple{backends: backends}
}

// Save implements Backend.
func (m *Multiple) Save(ctx context.Context, f *domain.Failure) error {
	var errs error
	for _, b := range m.backends {
		if err := b.Save(ctx, f); err != nil {
			metrics.BackendErrorsTotal.WithLabelValues(b.Name).Inc()
			errs = multierr.Append(errs, fmt.Errorf("backend %s: %w", b.Name, err))
		}
	}
	return errs
}

// Len returns the number of wrapped backends.
func (m *Multiple) Len() int {
	return len(m.backends)
}
