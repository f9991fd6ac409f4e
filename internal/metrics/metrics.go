package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Переходы статусов по сущностям
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_status_transitions_total",
			Help: "Status transitions applied to ledger entities",
		},
		[]string{"entity", "to"},
	)

	// Вызовы платёжного провайдера
	GatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "escrow_gateway_call_duration_seconds",
			Help:    "Payment gateway call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
		},
		[]string{"operation", "outcome"},
	)

	// Обработка вебхуков
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_webhook_events_total",
			Help: "Gateway webhook events by type and result",
		},
		[]string{"type", "result"}, // result: applied, duplicate, ignored, failed
	)

	SweepFindings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_sweep_findings_total",
			Help: "Items found by the reconciliation sweep",
		},
		[]string{"kind"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)
)

func RecordTransition(entity, to string) {
	StatusTransitions.WithLabelValues(entity, to).Inc()
}

// RecordGatewayCall фиксирует длительность вызова провайдера; outcome: ok, unavailable, declined.
func RecordGatewayCall(operation, outcome string, duration time.Duration) {
	GatewayCallDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

func RecordWebhook(eventType, result string) {
	WebhookEvents.WithLabelValues(eventType, result).Inc()
}

func RecordSweepFinding(kind string) {
	SweepFindings.WithLabelValues(kind).Inc()
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
