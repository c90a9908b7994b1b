package rules

import (
	"regexp"
	"time"
)

// Info is a read-only view of a compiled rule.
type Info struct {
	Index      int               `json:"index"`
	Matchers   map[string]string `json:"matchers,omitempty"`
	Expiry     *time.Time        `json:"expiry,omitempty"`
	Chance     *float64          `json:"chance,omitempty"`
	RetryLimit *int              `json:"retry_limit,omitempty"`
	Action     string            `json:"action"`
	ActionArgs []any             `json:"action_args"`
	Disabled   bool              `json:"disabled,omitempty"`
	Issues     []string          `json:"issues,omitempty"`
}

// Describe summarizes rules in evaluation order.
func Describe(rules []*Rule) []Info {
	out := make([]Info, 0, len(rules))
	for i, r := range rules {
		info := Info{
			Index:      i,
			Matchers:   map[string]string{},
			Action:     r.action.String(),
			ActionArgs: r.ActionArgs(),
			Disabled:   r.disabled,
			Issues:     r.issues,
		}
		for _, m := range []struct {
			key string
			re  *regexp.Regexp
		}{
			{KeyClassRegex, r.classRe},
			{KeyExceptionClassRegex, r.exceptionClassRe},
			{KeyExceptionMessageRegex, r.exceptionMessageRe},
			{KeyArgsJSONRegex, r.argsJSONRe},
		} {
			if m.re != nil {
				info.Matchers[m.key] = m.re.String()
			}
		}
		if !r.expiry.IsZero() {
			t := r.expiry
			info.Expiry = &t
		}
		if r.hasChance {
			p := r.chance
			info.Chance = &p
		}
		if r.hasRetryLimit {
			n := r.retryLimit
			info.RetryLimit = &n
		}
		out = append(out, info)
	}
	return out
}
