// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track API request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Pipeline metrics track the delivery pipeline itself
var (
	// RequestsAcceptedTotal counts notification requests accepted at intake
	RequestsAcceptedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_requests_accepted_total",
			Help: "Total number of notification requests accepted",
		},
		[]string{"channel", "priority"},
	)

	// MessagesProcessedTotal counts processed delivery jobs by channel and outcome
	MessagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_processed_total",
			Help: "Total number of delivery jobs processed",
		},
		[]string{"channel", "outcome"}, // outcome: sent, retried, failed, skipped
	)

	// ProviderCallDuration measures one provider delivery call
	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_duration_seconds",
			Help:    "Time taken by one provider delivery call",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"channel", "status"},
	)

	// RateLimitDeniedTotal counts delivery attempts deferred by the rate limiter
	RateLimitDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_denied_total",
			Help: "Total number of deliveries deferred by the channel rate limit",
		},
		[]string{"channel"},
	)

	// QueuePublishErrors counts failed publishes to a delivery lane
	QueuePublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_publish_errors_total",
			Help: "Total number of failed queue publishes",
		},
		[]string{"lane"},
	)

	// QueueDepth tracks ready jobs per delivery lane
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of ready delivery jobs per lane",
		},
		[]string{"lane"},
	)

	// CounterFlushTotal counts counter reconciliation cycles by result
	CounterFlushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counter_flush_total",
			Help: "Total number of counter flush cycles",
		},
		[]string{"result"}, // result: success, partial, failure
	)

	// CounterFlushRequests counts per-request flush outcomes
	CounterFlushRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counter_flush_requests_total",
			Help: "Total number of per-request counter flushes",
		},
		[]string{"result"}, // result: applied, empty, error
	)

	// CancellationsTotal counts cancellations by scope and result
	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cancellations_total",
			Help: "Total number of cancellation attempts",
		},
		[]string{"scope", "result"}, // scope: message, request
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordMessageOutcome records the outcome of one processed delivery job
func RecordMessageOutcome(channel, outcome string) {
	MessagesProcessedTotal.WithLabelValues(channel, outcome).Inc()
}

// RecordProviderCall records one provider delivery call
func RecordProviderCall(channel, status string, duration time.Duration) {
	ProviderCallDuration.WithLabelValues(channel, status).Observe(duration.Seconds())
}

// RecordRateLimitDenied records a delivery deferred by the channel throttle
func RecordRateLimitDenied(channel string) {
	RateLimitDeniedTotal.WithLabelValues(channel).Inc()
}

// RecordQueuePublishError records a failed publish to a delivery lane
func RecordQueuePublishError(lane string) {
	QueuePublishErrors.WithLabelValues(lane).Inc()
}

// RecordOperationDuration records the duration of a named database operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
