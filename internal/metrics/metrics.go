// Package metrics exposes Prometheus instrumentation for the optimization
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors. Register once and share.
type Metrics struct {
	RunsStarted   prometheus.Counter
	RunsCompleted *prometheus.CounterVec
	Iterations    prometheus.Counter
	Improvements  prometheus.Counter
	RunDuration   prometheus.Histogram
}

// New creates and registers the service collectors on the given registerer.
// Pass prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "crest_runs_started_total",
			Help: "Number of optimization runs started.",
		}),
		RunsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crest_runs_completed_total",
			Help: "Number of optimization runs reaching a terminal state, by status.",
		}, []string{"status"}),
		Iterations: factory.NewCounter(prometheus.CounterOpts{
			Name: "crest_iterations_total",
			Help: "Number of completed generate+evaluate cycles across all runs.",
		}),
		Improvements: factory.NewCounter(prometheus.CounterOpts{
			Name: "crest_improvements_total",
			Help: "Number of iterations that strictly improved the best candidate.",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crest_run_duration_seconds",
			Help:    "Wall-clock duration of optimization runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
}
