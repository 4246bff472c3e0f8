// Package metrics exposes Prometheus instrumentation for the task pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TasksClaimed counts successful claims across all worker loops.
	TasksClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rehostd",
		Name:      "tasks_claimed_total",
		Help:      "Number of tasks claimed by workers.",
	})

	// TaskTransitions counts terminal and requeue transitions by outcome.
	TaskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rehostd",
		Name:      "task_transitions_total",
		Help:      "Number of task transitions by outcome (completed, failed, requeued).",
	}, []string{"outcome"})

	// Notifications counts webhook delivery attempts by outcome.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rehostd",
		Name:      "notifications_total",
		Help:      "Number of webhook notifications by outcome (delivered, failed).",
	}, []string{"outcome"})

	// ClaimErrors counts infrastructure failures during claim polling.
	ClaimErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rehostd",
		Name:      "claim_errors_total",
		Help:      "Number of claim attempts aborted by store errors.",
	})

	// TaskDuration observes end-to-end execution time of claimed tasks.
	TaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rehostd",
		Name:      "task_duration_seconds",
		Help:      "End-to-end task execution duration.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
	})

	// StageDuration observes per-stage execution time.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rehostd",
		Name:      "stage_duration_seconds",
		Help:      "Per-stage execution duration.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"stage"})
)

// ObserveStage records one stage execution.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
