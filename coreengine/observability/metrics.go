// Package observability provides Prometheus metrics instrumentation and
// OpenTelemetry tracing for the rubric pipeline engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// RUN METRICS
// =============================================================================

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rubric_runs_total",
			Help: "Total number of pipeline run legs, by the status each leg ended in",
		},
		[]string{"status"}, // completed, failed, suspended
	)

	runDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rubric_run_duration_seconds",
			Help:    "Run leg duration in seconds, from the leg's start to completion, failure or suspension",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	runsSuspendedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rubric_runs_suspended_total",
			Help: "Total number of runs that suspended for blocking questions",
		},
		[]string{"stage"},
	)
)

// =============================================================================
// STAGE METRICS
// =============================================================================

var (
	stageExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rubric_stage_executions_total",
			Help: "Total number of stage executions",
		},
		[]string{"stage", "status"}, // status: success, error
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rubric_stage_duration_seconds",
			Help:    "Stage execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	dimensionExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rubric_dimension_executions_total",
			Help: "Total number of per-dimension analyzer executions",
		},
		[]string{"dimension", "status"},
	)
)

// =============================================================================
// RETRY / ERROR METRICS
// =============================================================================

var (
	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rubric_retries_total",
			Help: "Total number of retry attempts issued by the Resilient Step Runner",
		},
		[]string{"stage"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rubric_errors_total",
			Help: "Total number of classified executor errors",
		},
		[]string{"stage", "code"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordRun records the status an orchestration leg ended in (completed,
// failed or suspended) and its duration. A run that suspends and is later
// resumed is recorded once per leg.
func RecordRun(status string, durationMS int64) {
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.WithLabelValues(status).Observe(float64(durationMS) / 1000.0)
}

// RecordSuspend records a run suspending at stage for unanswered blocking
// questions.
func RecordSuspend(stage string) {
	runsSuspendedTotal.WithLabelValues(stage).Inc()
}

// RecordStage records one stage's execution outcome and duration.
func RecordStage(stage string, status string, durationMS int64) {
	stageExecutionsTotal.WithLabelValues(stage, status).Inc()
	stageDurationSeconds.WithLabelValues(stage).Observe(float64(durationMS) / 1000.0)
}

// RecordDimension records one dimension analyzer's outcome.
func RecordDimension(dimension string, status string) {
	dimensionExecutionsTotal.WithLabelValues(dimension, status).Inc()
}

// RecordRetry records one retry attempt at stage.
func RecordRetry(stage string) {
	retriesTotal.WithLabelValues(stage).Inc()
}

// RecordError records one classified error by stage and code.
func RecordError(stage string, code string) {
	errorsTotal.WithLabelValues(stage, code).Inc()
}
