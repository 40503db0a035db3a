package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// webhookDeliveries counts webhook delivery outcomes by event type
	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forprompt_webhook_deliveries_total",
			Help: "Total number of webhook deliveries by outcome",
		},
		[]string{"event", "outcome"},
	)

	// webhookDeliveryDuration tracks end-to-end delivery duration including retries
	webhookDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forprompt_webhook_delivery_duration_seconds",
			Help:    "Webhook delivery duration in seconds including retries",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"event"},
	)

	// webhookAttempts tracks how many HTTP attempts a delivery took
	webhookAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forprompt_webhook_delivery_attempts",
			Help:    "Number of HTTP attempts per webhook delivery",
			Buckets: []float64{1, 2, 3},
		},
		[]string{"event"},
	)

	// usageMeterErrors counts failed usage ledger increments
	usageMeterErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forprompt_usage_meter_errors_total",
			Help: "Total number of failed usage metering operations",
		},
		[]string{"metric"},
	)

	// spansIngested counts ingested spans by type
	spansIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forprompt_spans_ingested_total",
			Help: "Total number of ingested spans by span type",
		},
		[]string{"type"},
	)
)

// RecordWebhookDelivery records the outcome of a single webhook delivery
func RecordWebhookDelivery(event, outcome string, attempts int, duration time.Duration) {
	webhookDeliveries.WithLabelValues(event, outcome).Inc()
	webhookDeliveryDuration.WithLabelValues(event).Observe(duration.Seconds())
	webhookAttempts.WithLabelValues(event).Observe(float64(attempts))
}

// RecordUsageMeterError records a failed ledger increment
func RecordUsageMeterError(metric string) {
	usageMeterErrors.WithLabelValues(metric).Inc()
}

// RecordSpanIngested records a successfully ingested span
func RecordSpanIngested(spanType string) {
	spansIngested.WithLabelValues(spanType).Inc()
}
