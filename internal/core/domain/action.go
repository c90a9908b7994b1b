package domain

// Action is what a matching rule asks the retry plugin to do.
type Action string

const (
	ActionNone                       Action = ""
	ActionRetry                      Action = "retry"
	ActionClear                      Action = "clear"
	ActionRetryIncrementRetryAttempt Action = "retry_increment_retry_attempt"
)

// ParseAction maps s onto the closed action set. Anything else is ActionNone.
func ParseAction(s string) Action {
	switch a := Action(s); a {
	case ActionRetry, ActionClear, ActionRetryIncrementRetryAttempt:
		return a
	default:
		return ActionNone
	}
}

// IsRetry reports whether the action schedules another attempt.
func (a Action) IsRetry() bool {
	return a == ActionRetry || a == ActionRetryIncrementRetryAttempt
}

// String returns "none" for ActionNone.
func (a Action) String() string {
	if a == ActionNone {
		return "none"
	}
	return string(a)
}
