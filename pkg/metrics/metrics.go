package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "talenthub_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// ApplicationsSubmitted counts apply attempts by result (created|duplicate|invalid|error).
	ApplicationsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talenthub_applications_submitted_total",
			Help: "Total number of application submissions",
		},
		[]string{"result"},
	)

	// StatusTransitions counts committed application status changes by target status.
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talenthub_application_transitions_total",
			Help: "Total number of application status transitions",
		},
		[]string{"status"},
	)

	// NotificationsDispatched counts dispatcher runs by notification type and result
	// (stored|invalid_recipient|store_failed).
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talenthub_notifications_dispatched_total",
			Help: "Total number of notification dispatches",
		},
		[]string{"type", "result"},
	)

	// LiveDeliveries counts live push attempts per connection (delivered|dropped).
	LiveDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talenthub_live_deliveries_total",
			Help: "Total number of live channel deliveries",
		},
		[]string{"result"},
	)

	// LiveConnections tracks currently registered live connections.
	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "talenthub_live_connections",
			Help: "Number of registered live channel connections",
		},
	)

	// LiveHandshakes counts websocket handshakes by result (accepted|unauthorized|failed).
	LiveHandshakes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talenthub_live_handshakes_total",
			Help: "Total number of live channel handshakes",
		},
		[]string{"result"},
	)

	// EventsPublished counts outbound domain events by result (published|failed).
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talenthub_events_published_total",
			Help: "Total number of domain events published to the broker",
		},
		[]string{"result"},
	)
)
