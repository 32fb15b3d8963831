package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visicontrol_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visicontrol_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// LiveConnections tracks open live notification connections by transport (sse|ws).
	LiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "visicontrol_live_connections",
			Help: "Number of open live notification connections",
		},
		[]string{"transport"},
	)

	// EventsDelivered counts live events queued for delivery, by event name.
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visicontrol_live_events_delivered_total",
			Help: "Total number of live events queued to connections",
		},
		[]string{"event"},
	)

	// EventsDropped counts events discarded because a connection queue was full or closed.
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visicontrol_live_events_dropped_total",
			Help: "Total number of live events dropped for slow or closed connections",
		},
	)

	// NotificationsCreated counts stored notifications by kind.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visicontrol_notifications_created_total",
			Help: "Total number of notifications persisted",
		},
		[]string{"kind"},
	)

	// ReminderRuns records reminder generation runs by result (success|error).
	ReminderRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visicontrol_reminder_runs_total",
			Help: "Total number of reminder generation runs",
		},
		[]string{"result"},
	)
)
