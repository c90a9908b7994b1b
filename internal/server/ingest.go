package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vietddude/retryguard/internal/core/domain"
	"github.com/vietddude/retryguard/internal/retry"
)

// FailureHandler is the failure pipeline remote workers report into.
type FailureHandler interface {
	Advise(ctx context.Context, job domain.Job, err error, args []any) retry.Decision
	HandleFailure(ctx context.Context, job domain.Job, err error, payload domain.Payload, queue string) error
}

// jobRequest describes a failed job. retry_key makes it retryable and
// retry_attempt exposes its attempt counter.
type jobRequest struct {
	Class        string  `json:"class"`
	Args         []any   `json:"args"`
	RetryKey     string  `json:"retry_key"`
	RetryDelay   float64 `json:"retry_delay"` // seconds
	RetryAttempt *int    `json:"retry_attempt"`
	LimitReached bool    `json:"retry_limit_reached"`
}

type exceptionRequest struct {
	Class     string   `json:"class"`
	Message   string   `json:"message"`
	Backtrace []string `json:"backtrace"`
	DirtyExit bool     `json:"dirty_exit"`
}

type failureRequest struct {
	Job       jobRequest       `json:"job"`
	Exception exceptionRequest `json:"exception"`
	Queue     string           `json:"queue"`
}

func (req *failureRequest) validate() error {
	if req.Job.Class == "" {
		return errors.New("job.class is required")
	}
	if req.Job.RetryDelay < 0 {
		return fmt.Errorf("job.retry_delay must not be negative, got %v", req.Job.RetryDelay)
	}
	return nil
}

func (e exceptionRequest) err() error {
	if e.DirtyExit {
		return &domain.DirtyExitError{Reason: e.Message}
	}
	return &domain.Exception{Class: e.Class, Message: e.Message, Backtrace: e.Backtrace}
}

type remoteJob struct {
	name         string
	limitReached bool
}

func (j remoteJob) Name() string            { return j.name }
func (j remoteJob) RetryLimitReached() bool { return j.limitReached }

type remoteRetryJob struct {
	remoteJob
	key   string
	delay time.Duration
}

func (j remoteRetryJob) RetryKey() string          { return j.key }
func (j remoteRetryJob) RetryDelay() time.Duration { return j.delay }

type countedRemoteJob struct {
	remoteJob
	attempt int
}

func (j countedRemoteJob) RetryAttempt() int { return j.attempt }

type countedRemoteRetryJob struct {
	remoteRetryJob
	attempt int
}

func (j countedRemoteRetryJob) RetryAttempt() int { return j.attempt }

// job builds a domain.Job exposing only the capabilities the request
// describes.
func (j jobRequest) job() domain.Job {
	base := remoteJob{name: j.Class, limitReached: j.LimitReached}
	if j.RetryKey == "" {
		if j.RetryAttempt != nil {
			return countedRemoteJob{remoteJob: base, attempt: *j.RetryAttempt}
		}
		return base
	}

	rj := remoteRetryJob{
		remoteJob: base,
		key:       j.RetryKey,
		delay:     time.Duration(j.RetryDelay * float64(time.Second)),
	}
	if j.RetryAttempt != nil {
		return countedRemoteRetryJob{remoteRetryJob: rj, attempt: *j.RetryAttempt}
	}
	return rj
}

func (s *Server) decodeFailure(w http.ResponseWriter, r *http.Request) (*failureRequest, bool) {
	if s.deps.Guard == nil {
		writeError(w, http.StatusNotImplemented, errors.New("failure pipeline not configured"))
		return nil, false
	}

	var req failureRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return nil, false
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	return &req, true
}

// handleDecide asks the rules what the worker's retry scheduler should do.
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeFailure(w, r)
	if !ok {
		return
	}

	d := s.deps.Guard.Advise(r.Context(), req.Job.job(), req.Exception.err(), req.Job.Args)
	args := d.Args
	if args == nil {
		args = []any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"action":   d.Action.String(),
		"args":     args,
		"retry":    d.Action.IsRetry(),
		"fallback": d.Fallback,
	})
}

// handleReportFailure runs a failed execution through retry suppression.
func (s *Server) handleReportFailure(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeFailure(w, r)
	if !ok {
		return
	}

	payload := domain.Payload{Class: req.Job.Class, Args: req.Job.Args}
	if err := s.deps.Guard.HandleFailure(r.Context(), req.Job.job(), req.Exception.err(), payload, req.Queue); err != nil {
		s.deps.Logger.Error("Failed to handle failure", "class", req.Job.Class, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
