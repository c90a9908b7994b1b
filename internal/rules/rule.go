package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vietddude/retryguard/internal/core/domain"
)

// Rule keys as they appear in a rule document.
const (
	KeyClassRegex            = "class_regex"
	KeyExceptionClassRegex   = "exception_class_regex"
	KeyExceptionMessageRegex = "exception_message_regex"
	KeyArgsJSONRegex         = "args_json_regex"
	KeyExpiry                = "expiry"
	KeyChance                = "chance"
	KeyPercentChance         = "percent_chance"
	KeyAction                = "action"
	KeyActionArgs            = "action_args"
	KeyRetryLimit            = "retry_limit"
)

var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02-T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Rule is a compiled matcher plus action. It is immutable once built.
type Rule struct {
	classRe            *regexp.Regexp
	exceptionClassRe   *regexp.Regexp
	exceptionMessageRe *regexp.Regexp
	argsJSONRe         *regexp.Regexp

	expiry        time.Time
	chance        float64
	hasChance     bool
	retryLimit    int
	hasRetryLimit bool

	action     domain.Action
	actionArgs []any

	// disabled rules never match
	disabled bool
	issues   []string
}

// NewRule builds a rule from a decoded definition. It never fails; problems
// are recorded in Issues.
func NewRule(def map[string]any) *Rule {
	r := &Rule{}

	r.classRe = r.compile(def, KeyClassRegex)
	r.exceptionClassRe = r.compile(def, KeyExceptionClassRegex)
	r.exceptionMessageRe = r.compile(def, KeyExceptionMessageRegex)
	r.argsJSONRe = r.compile(def, KeyArgsJSONRegex)

	if v, ok := def[KeyExpiry]; ok && v != nil {
		if t, ok := parseExpiry(v); ok {
			r.expiry = t
		} else {
			r.note("%s: cannot parse %v, ignoring", KeyExpiry, v)
		}
	}

	chanceKey := KeyChance
	if _, ok := def[chanceKey]; !ok {
		chanceKey = KeyPercentChance
	}
	if v, ok := def[chanceKey]; ok && v != nil {
		p, ok := toFloat(v)
		if !ok || p < 0 || p > 1 {
			r.disable("%s: %v is not a probability in [0,1]", chanceKey, v)
		} else {
			r.chance = p
			r.hasChance = true
		}
	}

	if v, ok := def[KeyRetryLimit]; ok && v != nil {
		f, ok := toFloat(v)
		if !ok || f < 0 || f != float64(int(f)) {
			r.note("%s: %v is not a non-negative integer, ignoring", KeyRetryLimit, v)
		} else {
			r.retryLimit = int(f)
			r.hasRetryLimit = true
		}
	}

	if v, ok := def[KeyAction]; ok && v != nil {
		s, _ := v.(string)
		r.action = domain.ParseAction(s)
		if r.action == domain.ActionNone {
			r.note("%s: unknown action %v", KeyAction, v)
		}
	}

	r.actionArgs = toArgs(def[KeyActionArgs])
	return r
}

// Action returns the configured action.
func (r *Rule) Action() domain.Action { return r.action }

// ActionArgs returns a copy of the configured action arguments.
func (r *Rule) ActionArgs() []any {
	out := make([]any, len(r.actionArgs))
	copy(out, r.actionArgs)
	return out
}

// Disabled reports whether a malformed matcher switched the rule off.
func (r *Rule) Disabled() bool { return r.disabled }

// Issues lists what the parser had to normalize.
func (r *Rule) Issues() []string { return r.issues }

// limitReached applies the rule's own retry_limit on top of the job's ceiling.
func (r *Rule) limitReached(job domain.Job) bool {
	if job.RetryLimitReached() {
		return true
	}
	if !r.hasRetryLimit {
		return false
	}
	if c, ok := job.(domain.AttemptCounter); ok {
		return c.RetryAttempt() >= r.retryLimit
	}
	return false
}

func (r *Rule) match(in *input) (bool, error) {
	if r.disabled {
		return false, nil
	}
	if r.classRe != nil && !r.classRe.MatchString(in.job.Name()) {
		return false, nil
	}
	if r.exceptionClassRe != nil && !r.exceptionClassRe.MatchString(in.exception.Class) {
		return false, nil
	}
	if r.exceptionMessageRe != nil && !r.exceptionMessageRe.MatchString(in.exception.Message) {
		return false, nil
	}
	if !r.expiry.IsZero() && in.now.After(r.expiry) {
		return false, nil
	}
	if r.argsJSONRe != nil {
		s, err := in.argsJSON()
		if err != nil {
			return false, err
		}
		if !r.argsJSONRe.MatchString(s) {
			return false, nil
		}
	}
	if r.hasChance && in.draw() >= r.chance {
		return false, nil
	}
	return true, nil
}

func (r *Rule) compile(def map[string]any, key string) *regexp.Regexp {
	v, ok := def[key]
	if !ok || v == nil {
		return nil
	}
	src, ok := v.(string)
	if !ok {
		r.disable("%s: expected a string, got %T", key, v)
		return nil
	}
	re, err := regexp.Compile(src)
	if err != nil {
		r.disable("%s: %v", key, err)
		return nil
	}
	return re
}

func (r *Rule) disable(format string, args ...any) {
	r.disabled = true
	r.note(format, args...)
}

func (r *Rule) note(format string, args ...any) {
	r.issues = append(r.issues, fmt.Sprintf(format, args...))
}

func parseExpiry(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range expiryLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func toArgs(v any) []any {
	switch a := v.(type) {
	case nil:
		return []any{}
	case []any:
		out := make([]any, len(a))
		for i := range a {
			out[i] = normalize(a[i])
		}
		return out
	default:
		return []any{normalize(a)}
	}
}
