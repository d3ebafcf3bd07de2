package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTransitions counts mentorship request state changes (created|accepted|rejected|completed).
	RequestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentorhub_request_transitions_total",
			Help: "Total number of mentorship request state transitions",
		},
		[]string{"transition"},
	)

	// ConnectionTransitions counts connection state changes (activated|reactivated|completed|detached).
	ConnectionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentorhub_connection_transitions_total",
			Help: "Total number of mentorship connection state transitions",
		},
		[]string{"transition"},
	)

	// CapacityRejections counts operations refused because a mentor was at capacity (create|accept).
	CapacityRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentorhub_capacity_rejections_total",
			Help: "Total number of operations refused due to mentor capacity",
		},
		[]string{"operation"},
	)

	// NotificationDispatches counts lifecycle notifications by channel (in_app|email|realtime) and result.
	NotificationDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentorhub_notification_dispatches_total",
			Help: "Total number of lifecycle notification deliveries",
		},
		[]string{"channel", "result"},
	)

	// ActiveMentorships tracks connections that are ACTIVE and not completed.
	ActiveMentorships = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mentorhub_active_mentorships",
			Help: "Number of active, uncompleted mentorship connections",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mentorhub_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// MaintenanceRuns counts scheduled maintenance job executions by job and result.
var MaintenanceRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mentorhub_maintenance_runs_total",
		Help: "Total number of maintenance job runs",
	},
	[]string{"job", "result"},
)
