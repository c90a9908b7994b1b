package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/retryguard/internal/core/domain"
)

// FailureRecord is a reported failure as stored in the failures table.
type FailureRecord struct {
	ID        string          `db:"id"        json:"id"`
	FailedAt  time.Time       `db:"failed_at" json:"failed_at"`
	Queue     string          `db:"queue"     json:"queue"`
	Worker    string          `db:"worker"    json:"worker"`
	Class     string          `db:"class"     json:"class"`
	Args      RawJSON         `db:"args"      json:"args"`
	Exception string          `db:"exception" json:"exception"`
	Error     string          `db:"error"     json:"error"`
	Backtrace RawJSON         `db:"backtrace" json:"backtrace"`
	RetryKey  sql.NullString  `db:"retry_key" json:"-"`
}

// RawJSON holds a JSONB column as-is.
type RawJSON []byte

// Scan implements sql.Scanner.
func (j *RawJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = RawJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into RawJSON", src)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// FailureRepo is a failure backend that keeps every reported failure in
// PostgreSQL.
type FailureRepo struct {
	db  *DB
	now func() time.Time
}

// NewFailureRepo creates a new PostgreSQL failure repository.
func NewFailureRepo(db *DB) *FailureRepo {
	return &FailureRepo{db: db, now: time.Now}
}

// Save records a failure.
func (r *FailureRepo) Save(ctx context.Context, f *domain.Failure) error {
	ex := domain.Describe(f.Err)

	args := f.Payload.Args
	if args == nil {
		args = []any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}
	backtrace := ex.Backtrace
	if backtrace == nil {
		backtrace = []string{}
	}
	backtraceJSON, err := json.Marshal(backtrace)
	if err != nil {
		return fmt.Errorf("failed to marshal backtrace: %w", err)
	}

	var retryKey sql.NullString
	if rj, ok := domain.AsRetryable(f.Job); ok {
		retryKey = sql.NullString{String: rj.RetryKey(), Valid: true}
	}

	failedAt := f.FailedAt
	if failedAt.IsZero() {
		failedAt = r.now()
	}

	query := `
		INSERT INTO failures (id, failed_at, queue, worker, class, args, exception, error, backtrace, retry_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(
		ctx,
		query,
		uuid.NewString(),
		failedAt,
		f.Queue,
		f.Worker,
		f.Payload.Class,
		argsJSON,
		ex.Class,
		ex.Message,
		backtraceJSON,
		retryKey,
	)
	if err != nil {
		return fmt.Errorf("failed to add failure: %w", err)
	}
	return nil
}

// Recent returns the latest reported failures, newest first.
func (r *FailureRepo) Recent(ctx context.Context, limit int) ([]*FailureRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, failed_at, queue, worker, class, args, exception, error, backtrace, retry_key
		FROM failures
		ORDER BY failed_at DESC
		LIMIT $1
	`
	var rows []*FailureRecord
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent failures: %w", err)
	}
	return rows, nil
}

// Count returns the number of reported failures.
func (r *FailureRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM failures`); err != nil {
		return 0, fmt.Errorf("failed to count failures: %w", err)
	}
	return count, nil
}
