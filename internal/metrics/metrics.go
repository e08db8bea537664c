// Self-monitoring collectors for MIRADOR-SLA.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sla_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_sla_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Breach lifecycle metrics
	BreachesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sla_breaches_detected_total",
			Help: "Total number of breaches detected, by severity and threshold",
		},
		[]string{"severity", "threshold"},
	)

	BreachesResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mirador_sla_breaches_resolved_total",
			Help: "Total number of breaches resolved",
		},
	)

	ActiveBreaches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirador_sla_active_breaches",
			Help: "Number of breaches currently open (active or acknowledged)",
		},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mirador_sla_evaluation_duration_seconds",
			Help:    "Duration of a single metric sample evaluation",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// Escalation metrics
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sla_escalations_total",
			Help: "Total number of breach escalations raised",
		},
		[]string{"severity"},
	)

	// Notification metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sla_notifications_total",
			Help: "Total number of notification dispatch outcomes, by channel and status",
		},
		[]string{"channel", "status"},
	)

	NotificationRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sla_notification_retries_total",
			Help: "Total number of notification delivery retries",
		},
		[]string{"channel"},
	)

	// Pattern analysis metrics
	PatternsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sla_patterns_detected_total",
			Help: "Total number of breach patterns detected, by type",
		},
		[]string{"type"},
	)
)
