// Package metrics exposes Prometheus instrumentation for routing and job
// execution.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoutingOutcomes counts routing results by kind (answer, clarification,
	// plan).
	RoutingOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gitrag",
		Subsystem: "router",
		Name:      "outcomes_total",
		Help:      "Routing outcomes by result kind.",
	}, []string{"kind"})

	// PlannedSteps counts planned steps by action.
	PlannedSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gitrag",
		Subsystem: "router",
		Name:      "planned_steps_total",
		Help:      "Planned steps by action.",
	}, []string{"action"})

	// JobsEnqueued counts enqueued jobs by queue and kind.
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gitrag",
		Subsystem: "jobs",
		Name:      "enqueued_total",
		Help:      "Jobs enqueued by queue and kind.",
	}, []string{"queue", "kind"})

	// JobsCompleted counts finished jobs by queue and terminal status.
	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gitrag",
		Subsystem: "jobs",
		Name:      "completed_total",
		Help:      "Jobs finished by queue and status.",
	}, []string{"queue", "status"})

	// JobDuration observes job execution time by queue.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gitrag",
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Job execution time by queue.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"queue"})

	// ScheduledReportsSent counts scheduled report deliveries.
	ScheduledReportsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gitrag",
		Subsystem: "scheduler",
		Name:      "reports_sent_total",
		Help:      "Scheduled reports delivered.",
	})
)
