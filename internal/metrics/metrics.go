package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "copilot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	FramesAnalyzedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "copilot_frames_analyzed_total",
			Help: "Total number of screenshot frames sent to the model.",
		},
	)

	DuplicateFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "copilot_duplicate_frames_total",
			Help: "Total number of frames skipped as exact duplicates.",
		},
	)

	NotificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_notifications_sent_total",
			Help: "Total number of coaching notifications delivered.",
		},
		[]string{"type"},
	)

	NotificationsBlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_notifications_blocked_total",
			Help: "Total number of notification attempts blocked by policy.",
		},
		[]string{"reason"},
	)

	PushDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copilot_push_deliveries_total",
			Help: "Total number of per-recipient push delivery outcomes.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		FramesAnalyzedTotal,
		DuplicateFramesTotal,
		NotificationsSentTotal,
		NotificationsBlockedTotal,
		PushDeliveriesTotal,
	)
}
