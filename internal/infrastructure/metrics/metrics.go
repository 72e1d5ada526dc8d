package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Channel-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Webhook sub-event outcomes by field discriminator
	WebhookItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "webhook_items_total",
			Help:      "Webhook sub-events by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	// Duplicate suppression
	IdempotencySkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "idempotency_skips_total",
			Help:      "Deliveries suppressed by the dedup or debounce guard",
		},
		[]string{"guard"},
	)

	IdempotencyFailOpenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "idempotency_fail_open_total",
			Help:      "Items processed despite an idempotency store error",
		},
	)

	// Conversations
	ConversationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "conversations_created_total",
			Help:      "Total conversations created",
		},
	)

	ConversationsReleasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "conversations_released_total",
			Help:      "Manual-mode conversations released by the sweeper",
		},
	)

	// Responder
	ResponderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "responder_duration_seconds",
			Help:      "Reply engine invocation duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	ResponderFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "responder_fallbacks_total",
			Help:      "Replies substituted with the fallback text",
		},
	)

	// Provider calls
	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "provider_errors_total",
			Help:      "Provider call failures",
		},
		[]string{"call"},
	)

	MediaFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "media_fetches_total",
			Help:      "Media fetch attempts by outcome",
		},
		[]string{"status"},
	)

	// History sync
	HistoryMessagesMergedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "history_messages_merged_total",
			Help:      "Historical messages merged into conversations",
		},
	)

	HistorySyncsFinalizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "history_syncs_finalized_total",
			Help:      "History syncs completed by the quiet-gap finalizer",
		},
	)

	// Idempotency record purge
	IdempotencyPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relaydesk",
			Subsystem: "channel_api",
			Name:      "idempotency_purged_total",
			Help:      "Expired idempotency records removed by the purge job",
		},
	)
)

// RecordRequest records an HTTP request with duration
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSec)
}

// RecordWebhookItem records the outcome of one webhook sub-event
func RecordWebhookItem(kind, status string) {
	WebhookItemsTotal.WithLabelValues(kind, status).Inc()
}

// RecordIdempotencySkip records a suppressed duplicate delivery
func RecordIdempotencySkip(guard string) {
	IdempotencySkipsTotal.WithLabelValues(guard).Inc()
}

// RecordProviderError records a failed outbound provider call
func RecordProviderError(call string) {
	ProviderErrorsTotal.WithLabelValues(call).Inc()
}

// RecordMediaFetch records a media fetch attempt
func RecordMediaFetch(ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	MediaFetchesTotal.WithLabelValues(status).Inc()
}

// RecordResponderCall records a reply engine invocation
func RecordResponderCall(durationSec float64, fallback bool) {
	ResponderDuration.Observe(durationSec)
	if fallback {
		ResponderFallbacksTotal.Inc()
	}
}
