package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure outcomes recorded by the suppression backend.
const (
	OutcomeForwarded  = "forwarded"
	OutcomeSuppressed = "suppressed"
	OutcomeDropped    = "dropped"
)

var (
	// FailuresTotal tracks how each failure was handled
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retryguard_failures_total",
			Help: "Total number of job failures handled, by outcome",
		},
		[]string{"queue", "outcome"},
	)

	// BackendErrorsTotal tracks errors returned by wrapped failure backends
	BackendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retryguard_backend_errors_total",
			Help: "Total number of errors returned by failure backends",
		},
		[]string{"backend"},
	)

	// RetryStateCorrections tracks deletions of corrupted retry counters
	RetryStateCorrections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retryguard_retry_state_corrections_total",
			Help: "Total number of retry counters deleted for being below the valid floor",
		},
	)

	// RuleDecisionsTotal tracks rule engine decisions per action
	RuleDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retryguard_rule_decisions_total",
			Help: "Total number of rule engine decisions, by action",
		},
		[]string{"action"},
	)

	// RuleFallbacksTotal tracks evaluations that failed and fell back to no action
	RuleFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retryguard_rule_fallbacks_total",
			Help: "Total number of rule evaluations that failed and fell back to normal processing",
		},
	)

	// RulesLoaded tracks the size of the current rule list
	RulesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retryguard_rules_loaded",
			Help: "Number of rules in the current rule list",
		},
	)
)
