package failure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/retryguard/internal/core/domain"
)

// LookupSnapshot returns the suppressed failure for retryKey, or
// domain.ErrNoSnapshot when none is stored.
func LookupSnapshot(ctx context.Context, store Store, retryKey string) (*domain.Snapshot, error) {
	val, found, err := store.Get(ctx, FailureKey(retryKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read failure snapshot: %w", err)
	}
	if !found {
		return nil, domain.ErrNoSnapshot
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failure snapshot: %w", err)
	}
	return &snap, nil
}
