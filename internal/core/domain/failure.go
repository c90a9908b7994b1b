package domain

import (
	"errors"
	"time"
)

var (
	// ErrNoSnapshot is returned when no suppressed failure exists for a retry key
	ErrNoSnapshot = errors.New("no suppressed failure snapshot")

	// ErrRulesFormat is returned when a rule document is not a list of rules
	ErrRulesFormat = errors.New("rule document must be a list")
)

// Payload is the serialized job as the queue stores it.
type Payload struct {
	Class string `json:"class"`
	Args  []any  `json:"args"`
}

// Failure is a single failed job execution handed to failure backends.
type Failure struct {
	Job      Job
	Err      error
	Payload  Payload
	Worker   string
	Queue    string
	FailedAt time.Time
}

// Snapshot is the ephemeral record of a failure that was held back
// because a retry is pending.
type Snapshot struct {
	FailedAt  string   `json:"failed_at"`
	Payload   Payload  `json:"payload"`
	Exception string   `json:"exception"`
	Error     string   `json:"error"`
	Backtrace []string `json:"backtrace"`
	Worker    string   `json:"worker"`
	Queue     string   `json:"queue"`
}

// SnapshotTimeFormat is the failed_at layout shared with the dashboard.
const SnapshotTimeFormat = "2006/01/02 15:04:05"

// NewSnapshot captures f for later lookup.
func NewSnapshot(f *Failure) Snapshot {
	ex := Describe(f.Err)
	backtrace := ex.Backtrace
	if backtrace == nil {
		backtrace = []string{}
	}
	return Snapshot{
		FailedAt:  f.FailedAt.Format(SnapshotTimeFormat),
		Payload:   f.Payload,
		Exception: ex.Class,
		Error:     ex.Message,
		Backtrace: backtrace,
		Worker:    f.Worker,
		Queue:     f.Queue,
	}
}
