package retry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/retryguard/internal/core/domain"
	"github.com/vietddude/retryguard/internal/failure"
	"github.com/vietddude/retryguard/internal/metrics"
)

// Evaluator decides what to do with a failed job.
type Evaluator interface {
	Evaluate(ctx context.Context, job domain.Job, err error, args []any) (domain.Action, []any, error)
}

// Decision is the advice handed back to the retry scheduler.
type Decision struct {
	Action domain.Action
	Args   []any

	// Fallback is set when the evaluator failed and the failure should go
	// through normal processing.
	Fallback bool
	Err      error
}

// Advisor is the retry scheduler's entry point into the rule engine. It
// never lets an evaluation failure escape: a broken rule engine means the
// failure is processed as if no rule matched.
type Advisor struct {
	engine Evaluator
	store  failure.Store
	log    *slog.Logger
}

// NewAdvisor creates an advisor. store may be nil when no snapshots are kept.
func NewAdvisor(engine Evaluator, store failure.Store, log *slog.Logger) *Advisor {
	if log == nil {
		log = slog.Default()
	}
	return &Advisor{engine: engine, store: store, log: log}
}

// Decide evaluates the rules for a failed job.
func (a *Advisor) Decide(ctx context.Context, job domain.Job, err error, args []any) Decision {
	d, evalErr := a.evaluate(ctx, job, err, args)
	if evalErr != nil {
		metrics.RuleFallbacksTotal.Inc()
		a.log.Error("Rule evaluation failed, using normal processing",
			"job", job.Name(),
			"error", evalErr,
		)
		return Decision{Action: domain.ActionNone, Args: []any{}, Fallback: true, Err: evalErr}
	}

	metrics.RuleDecisionsTotal.WithLabelValues(d.Action.String()).Inc()

	if d.Action == domain.ActionClear {
		a.dropSnapshot(ctx, job)
	}
	return d
}

func (a *Advisor) evaluate(ctx context.Context, job domain.Job, err error, args []any) (d Decision, evalErr error) {
	defer func() {
		if r := recover(); r != nil {
			evalErr = fmt.Errorf("rule evaluation panicked: %v", r)
		}
	}()

	action, actionArgs, evalErr := a.engine.Evaluate(ctx, job, err, args)
	if evalErr != nil {
		return Decision{}, evalErr
	}
	return Decision{Action: action, Args: actionArgs}, nil
}

// dropSnapshot removes any suppressed failure for a cleared job.
func (a *Advisor) dropSnapshot(ctx context.Context, job domain.Job) {
	r, ok := domain.AsRetryable(job)
	if !ok || a.store == nil {
		return
	}
	if err := a.store.Del(ctx, failure.FailureKey(r.RetryKey())); err != nil {
		a.log.Warn("Failed to drop snapshot for cleared job",
			"retry_key", r.RetryKey(),
			"error", err,
		)
	}
}
