package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/retryguard/internal/core/domain"
	"github.com/vietddude/retryguard/internal/failure"
	"github.com/vietddude/retryguard/internal/retry"
	"github.com/vietddude/retryguard/internal/rules"
)

// Guard bundles what a worker process needs on a job failure: the advisor
// for its retry scheduler and the suppression backend for its failure hook.
type Guard struct {
	Engine   *rules.Engine
	Advisor  *retry.Advisor
	Backend  *failure.RetrySuppression
	workerID string
}

// NewGuard wires the rule engine and suppression backend over the shared
// store.
func NewGuard(
	source rules.Source,
	store failure.Store,
	backends *failure.Multiple,
	workerID string,
	log *slog.Logger,
) *Guard {
	engine := rules.NewEngine(source)
	return &Guard{
		Engine:   engine,
		Advisor:  retry.NewAdvisor(engine, store, log),
		Backend:  failure.NewRetrySuppression(store, backends, log),
		workerID: workerID,
	}
}

// Advise asks the rules what the scheduler should do with a failed job.
func (g *Guard) Advise(ctx context.Context, job domain.Job, err error, args []any) retry.Decision {
	return g.Advisor.Decide(ctx, job, err, args)
}

// HandleFailure reports a failed execution through the suppression backend.
func (g *Guard) HandleFailure(
	ctx context.Context,
	job domain.Job,
	err error,
	payload domain.Payload,
	queue string,
) error {
	return g.Backend.Save(ctx, &domain.Failure{
		Job:      job,
		Err:      err,
		Payload:  payload,
		Worker:   g.workerID,
		Queue:    queue,
		FailedAt: time.Now(),
	})
}
