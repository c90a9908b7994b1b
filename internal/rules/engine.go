package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/vietddude/retryguard/internal/core/domain"
)

// Source supplies the current rule list.
type Source interface {
	Rules(ctx context.Context) ([]*Rule, error)
}

// Static is a fixed rule list.
type Static []*Rule

// Rules implements Source.
func (s Static) Rules(context.Context) ([]*Rule, error) {
	return s, nil
}

// Engine evaluates the current rule list against failed jobs. It holds no
// per-evaluation state and is safe for concurrent use.
type Engine struct {
	source Source
	now    func() time.Time
	draw   func() float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandom overrides the [0,1) draw used for chance checks.
func WithRandom(draw func() float64) Option {
	return func(e *Engine) { e.draw = draw }
}

// NewEngine creates an engine reading rules from source.
func NewEngine(source Source, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		now:    time.Now,
		draw:   rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the action and arguments of the first matching rule.
// A retry-type action on a job whose retry limit is reached yields
// ActionNone. Errors from the rule source propagate; callers should treat
// them as "no decision".
func (e *Engine) Evaluate(
	ctx context.Context,
	job domain.Job,
	err error,
	args []any,
) (domain.Action, []any, error) {
	rules, srcErr := e.source.Rules(ctx)
	if srcErr != nil {
		return domain.ActionNone, []any{}, fmt.Errorf("failed to load rules: %w", srcErr)
	}

	in := &input{
		job:       job,
		exception: domain.Describe(err),
		args:      args,
		now:       e.now(),
		draw:      e.draw,
	}

	for _, rule := range rules {
		ok, matchErr := rule.match(in)
		if matchErr != nil {
			return domain.ActionNone, []any{}, matchErr
		}
		if !ok {
			continue
		}
		if rule.action.IsRetry() && rule.limitReached(job) {
			return domain.ActionNone, []any{}, nil
		}
		return rule.action, rule.ActionArgs(), nil
	}
	return domain.ActionNone, []any{}, nil
}

type input struct {
	job       domain.Job
	exception domain.Exception
	args      []any
	now       time.Time
	draw      func() float64

	encoded bool
	json    string
}

// argsJSON encodes the job arguments once per evaluation.
func (in *input) argsJSON() (string, error) {
	if in.encoded {
		return in.json, nil
	}
	args := in.args
	if args == nil {
		args = []any{}
	}
	// Operators write patterns against the literal text, so <, > and & stay
	// unescaped.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(args); err != nil {
		return "", fmt.Errorf("failed to encode job args: %w", err)
	}
	in.json = strings.TrimSuffix(buf.String(), "\n")
	in.encoded = true
	return in.json, nil
}
