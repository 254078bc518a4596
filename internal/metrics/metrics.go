// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Toggle outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

var (
	// ToggleTotal counts toggle requests by outcome.
	ToggleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habitstack_toggle_total",
		Help: "Toggle requests by outcome",
	}, []string{"outcome"})

	// StackCompletions counts toggles that left every entry of a stack completed.
	StackCompletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "habitstack_stack_completions_total",
		Help: "Toggles that completed a whole stack",
	})

	// ProgressDivergence counts toggles whose stack write landed but progress write failed.
	ProgressDivergence = promauto.NewCounter(prometheus.CounterOpts{
		Name: "habitstack_progress_divergence_total",
		Help: "Stack writes not followed by a successful progress write",
	})

	// LockWait observes time spent acquiring the per-stack lock.
	LockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "habitstack_stack_lock_wait_seconds",
		Help:    "Time spent waiting for the per-stack lock",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	})

	// HTTPDuration observes request latency by route template.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "habitstack_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
