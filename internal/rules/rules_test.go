package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/retryguard/internal/core/domain"
)

type testJob struct {
	name         string
	limitReached bool
}

func (j testJob) Name() string            { return j.name }
func (j testJob) RetryLimitReached() bool { return j.limitReached }

type countedJob struct {
	testJob
	attempt int
}

func (j countedJob) RetryAttempt() int { return j.attempt }

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, doc string) *Engine {
	t.Helper()
	rules, err := ParseDocument([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	return NewEngine(Static(rules),
		WithClock(func() time.Time { return fixedNow }),
		WithRandom(func() float64 { return 0.5 }),
	)
}

func evaluate(t *testing.T, e *Engine, job domain.Job, err error, args []any) (domain.Action, []any) {
	t.Helper()
	action, actionArgs, evalErr := e.Evaluate(context.Background(), job, err, args)
	if evalErr != nil {
		t.Fatalf("Evaluate failed: %v", evalErr)
	}
	return action, actionArgs
}

func TestEngine_Match(t *testing.T) {
	e := newTestEngine(t, `
- {args_json_regex: ',"okay",', expiry: '2086-10-01T21:14:21', action: bogus_action_turned_into_nil}
- {class_regex: '[oO]bject', exception_class_regex: 'testError$', action: retry}
- {exception_message_regex: 'h.llo', expiry: bogus_so_ignored, action: clear}
- {chance: 1, args_json_regex: ',"ok",', expiry: '2086-10-01T21:14:21', action: retry_increment_retry_attempt, action_args: [2]}
- {chance: 0, action: retry_increment_retry_attempt, action_args: [99]}
- {expiry: '2014-12-09-T14:24:23', action: retry_increment_retry_attempt, action_args: [99]}
`)

	job1 := testJob{name: "MyObject"}
	job2 := testJob{name: "MyObject", limitReached: true}
	job3 := testJob{name: "Struct"}
	err1 := &testError{msg: "foo"}
	err2 := errors.New("well hello")

	tests := []struct {
		name       string
		job        domain.Job
		err        error
		args       []any
		wantAction domain.Action
		wantArgs   int
	}{
		{"class and exception class", job1, err1, []any{}, domain.ActionRetry, 0},
		{"first rule wins with none", job1, err1, []any{1, "okay", 2}, domain.ActionNone, 0},
		{"message regex", job1, err2, []any{}, domain.ActionClear, 0},
		{"retry limit reached", job2, err1, []any{}, domain.ActionNone, 0},
		{"clear ignores retry limit", job2, err2, []any{}, domain.ActionClear, 0},
		{"class mismatch", job3, err1, []any{}, domain.ActionNone, 0},
		{"args json", job3, err1, []any{1, "ok", 2}, domain.ActionRetryIncrementRetryAttempt, 1},
		{"message regex other class", job3, err2, []any{}, domain.ActionClear, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, args := evaluate(t, e, tt.job, tt.err, tt.args)
			if action != tt.wantAction {
				t.Errorf("action = %v, want %v", action, tt.wantAction)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args = %v, want %d entries", args, tt.wantArgs)
			}
		})
	}

	_, args := evaluate(t, e, job3, err1, []any{1, "ok", 2})
	if args[0] != 2 {
		t.Errorf("action_args = %v, want [2]", args)
	}
}

func TestEngine_BadRulesDoNotCrash(t *testing.T) {
	e := newTestEngine(t, `
- {chance: ok, bogus: 'no'}
- {class_regex: 'bad regex]]))/\1'}
- {exception_message_regex: '[bad regex'}
- {args_json_regex: 1}
- {exception_class_regex: 123}
- {expiry: 42, action: -1.5, action_args: true}
`)

	action, args := evaluate(t, e, testJob{name: "true"}, errors.New("foo"), []any{2, "okay"})
	if action != domain.ActionNone {
		t.Errorf("action = %v, want none", action)
	}
	if len(args) != 1 || args[0] != true {
		t.Errorf("args = %v, want [true]", args)
	}
}

func TestEngine_MalformedAndValidMixed(t *testing.T) {
	e := newTestEngine(t, `
- {exception_message_regex: '(unclosed', action: clear}
- {exception_message_regex: 'timeout', action: retry}
`)

	action, _ := evaluate(t, e, testJob{name: "Job"}, errors.New("read timeout"), nil)
	if action != domain.ActionRetry {
		t.Errorf("action = %v, want retry", action)
	}
}

func TestEngine_Scenarios(t *testing.T) {
	e := newTestEngine(t, `
- {exception_message_regex: 'bar', action: retry_increment_retry_attempt, action_args: [2], retry_limit: 3}
- {exception_message_regex: 'foo', action: retry, retry_limit: 2}
`)

	action, args := evaluate(t, e, testJob{name: "MyTest"}, errors.New("foo"), nil)
	if action != domain.ActionRetry || len(args) != 0 {
		t.Errorf("got (%v, %v), want (retry, [])", action, args)
	}

	action, args = evaluate(t, e, testJob{name: "MyTest", limitReached: true}, errors.New("foo"), nil)
	if action != domain.ActionNone || len(args) != 0 {
		t.Errorf("got (%v, %v), want (none, [])", action, args)
	}

	action, args = evaluate(t, e, testJob{name: "MyTest"}, errors.New("bar"), nil)
	if action != domain.ActionRetryIncrementRetryAttempt || len(args) != 1 || args[0] != 2 {
		t.Errorf("got (%v, %v), want (retry_increment_retry_attempt, [2])", action, args)
	}

	action, args = evaluate(t, e, testJob{name: "MyTest"}, errors.New("nothing"), nil)
	if action != domain.ActionNone || len(args) != 0 {
		t.Errorf("got (%v, %v), want (none, [])", action, args)
	}
}

func TestEngine_RuleRetryLimitTightensCeiling(t *testing.T) {
	e := newTestEngine(t, `
- {exception_message_regex: 'explicitretrylimit', action: retry, retry_limit: 500}
`)
	err := errors.New("explicitretrylimit")

	action, _ := evaluate(t, e, countedJob{testJob{name: "J"}, 499}, err, nil)
	if action != domain.ActionRetry {
		t.Errorf("attempt 499: action = %v, want retry", action)
	}

	action, _ = evaluate(t, e, countedJob{testJob{name: "J"}, 500}, err, nil)
	if action != domain.ActionNone {
		t.Errorf("attempt 500: action = %v, want none", action)
	}

	action, _ = evaluate(t, e, countedJob{testJob{name: "J", limitReached: true}, 1}, err, nil)
	if action != domain.ActionNone {
		t.Errorf("job ceiling reached: action = %v, want none", action)
	}
}

func TestRule_Predicates(t *testing.T) {
	job := testJob{name: "Anything"}
	in := func(draw float64) *input {
		return &input{
			job:       job,
			exception: domain.Describe(errors.New("boom")),
			args:      []any{"x"},
			now:       fixedNow,
			draw:      func() float64 { return draw },
		}
	}

	tests := []struct {
		name string
		def  map[string]any
		draw float64
		want bool
	}{
		{"no matchers", map[string]any{}, 0.99, true},
		{"expired", map[string]any{KeyExpiry: "2020-01-01T00:00:00Z"}, 0, false},
		{"expired ignores other matchers", map[string]any{KeyExpiry: "2020-01-01", KeyClassRegex: "."}, 0, false},
		{"not yet expired", map[string]any{KeyExpiry: "2086-10-01T21:14:21"}, 0, true},
		{"chance zero", map[string]any{KeyChance: 0}, 0, false},
		{"chance one", map[string]any{KeyChance: 1}, 0.999999, true},
		{"percent_chance alias", map[string]any{KeyPercentChance: 0.25}, 0.5, false},
		{"chance out of range", map[string]any{KeyChance: 1.5}, 0, false},
		{"search not full match", map[string]any{KeyExceptionMessageRegex: "oo"}, 0, true},
		{"args json", map[string]any{KeyArgsJSONRegex: `^\["x"\]$`}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRule(tt.def).match(in(tt.draw))
			if err != nil {
				t.Fatalf("match failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRule_Normalization(t *testing.T) {
	r := NewRule(map[string]any{KeyAction: "explode", KeyActionArgs: "single"})
	if r.Action() != domain.ActionNone {
		t.Errorf("Action = %v, want none", r.Action())
	}
	if args := r.ActionArgs(); len(args) != 1 || args[0] != "single" {
		t.Errorf("ActionArgs = %v, want [single]", args)
	}
	if r.Disabled() {
		t.Error("unknown action should not disable the rule")
	}
	if len(r.Issues()) == 0 {
		t.Error("expected an issue for the unknown action")
	}

	if args := NewRule(map[string]any{}).ActionArgs(); args == nil || len(args) != 0 {
		t.Errorf("default ActionArgs = %#v, want empty slice", args)
	}
}

func TestEngine_Idempotent(t *testing.T) {
	e := newTestEngine(t, `
- {class_regex: '^Report', action: clear}
- {action: retry}
`)
	job := testJob{name: "ReportJob"}
	first, _ := evaluate(t, e, job, errors.New("x"), nil)
	second, _ := evaluate(t, e, job, errors.New("x"), nil)
	if first != second || first != domain.ActionClear {
		t.Errorf("got %v then %v, want clear twice", first, second)
	}
}

func TestEngine_ArgsJSONKeepsHTMLCharacters(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		args    []any
	}{
		{"angle brackets", "<b>", []any{"<b>bold</b>"}},
		{"query string", `\?a=1&b=2`, []any{"https://example.com/?a=1&b=2"}},
		{"whole document", `^\["x&y"\]$`, []any{"x&y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, "- {args_json_regex: '"+tt.pattern+"', action: clear}")
			action, _ := evaluate(t, e, testJob{name: "J"}, errors.New("x"), tt.args)
			if action != domain.ActionClear {
				t.Errorf("action = %v, want clear", action)
			}
		})
	}
}

type failingSource struct{}

func (failingSource) Rules(context.Context) ([]*Rule, error) {
	return nil, errors.New("source down")
}

func TestEngine_SourceErrorPropagates(t *testing.T) {
	e := NewEngine(failingSource{})
	action, args, err := e.Evaluate(context.Background(), testJob{name: "J"}, errors.New("x"), nil)
	if err == nil {
		t.Fatal("expected error from failing source")
	}
	if action != domain.ActionNone || len(args) != 0 {
		t.Errorf("got (%v, %v), want (none, [])", action, args)
	}
}

func TestEngine_UnencodableArgs(t *testing.T) {
	e := newTestEngine(t, `- {args_json_regex: '.', action: clear}`)
	_, _, err := e.Evaluate(context.Background(), testJob{name: "J"}, errors.New("x"), []any{make(chan int)})
	if err == nil {
		t.Fatal("expected encode error")
	}
}
