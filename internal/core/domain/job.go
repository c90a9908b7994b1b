package domain

import "time"

// Job is the failed unit of work as seen by the rule engine.
type Job interface {
	// Name returns the job's type name, matched by class_regex.
	Name() string

	// RetryLimitReached reports whether the job hit its own retry ceiling.
	RetryLimitReached() bool
}

// Retryable is implemented by jobs that take part in scheduled retries.
// Jobs without it are never suppressed.
type Retryable interface {
	// RetryKey identifies the same retryable unit across attempts.
	RetryKey() string

	// RetryDelay is the delay the scheduler computed for the next attempt.
	RetryDelay() time.Duration
}

// AttemptCounter exposes the current retry attempt.
type AttemptCounter interface {
	RetryAttempt() int
}

// AsRetryable returns the job's retry capability, if any.
func AsRetryable(job Job) (Retryable, bool) {
	if job == nil {
		return nil, false
	}
	r, ok := job.(Retryable)
	return r, ok
}
