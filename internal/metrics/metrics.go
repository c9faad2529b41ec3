package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes used as label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
	OutcomeRejected  = "rejected"
)

var (
	// AnalysisRuns counts orchestrated runs by terminal outcome.
	AnalysisRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cvalign_analysis_runs_total",
		Help: "Completed analysis runs by outcome.",
	}, []string{"outcome"})

	// AnalysisDuration observes wall time of one orchestrated run, submission
	// through terminal result.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cvalign_analysis_run_duration_seconds",
		Help:    "Duration of analysis runs from submission to terminal state.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~8.5min
	})

	// PollAttempts counts individual status queries against the analysis
	// service, including swallowed transient failures.
	PollAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cvalign_poll_attempts_total",
		Help: "Status poll attempts against the analysis service.",
	})
)
