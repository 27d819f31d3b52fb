package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// End-to-end verification duration (seconds).
	VerificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verification_duration_seconds",
			Help:    "End-to-end email verification duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
		},
		[]string{"provider", "method"},
	)

	// Completed verifications by final classification.
	VerificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_count",
			Help: "Total number of completed verifications",
		},
		[]string{"provider", "reachable"},
	)

	// SMTP sessions by terminal state.
	SMTPSessionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smtp_session_count",
			Help: "Total number of SMTP probe sessions",
		},
		[]string{"provider", "status"},
	)

	// Headless/API backend call latency (milliseconds).
	BackendCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_call_latency_ms",
			Help:    "Headless backend call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"endpoint", "status"},
	)

	// MQ consume-to-ack latency (milliseconds).
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12), // 10ms to ~40s
		},
		[]string{"queue"},
	)

	// Message dispositions by queue.
	MQDispositionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mq_disposition_count",
			Help: "Total number of message acks, requeues and drops",
		},
		[]string{"queue", "disposition"}, // disposition: ack, requeue, drop, redirect
	)

	// Time spent waiting for throttle tokens (seconds).
	ThrottleWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "throttle_wait_duration_seconds",
			Help:    "Time spent waiting for throttle tokens in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4m
		},
	)

	// Verifications currently in flight in the worker.
	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_tasks_in_flight",
			Help: "Number of verifications currently running in the worker",
		},
	)

	// Database query duration (seconds).
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// Slow queries over the configured threshold.
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries over the slow-query threshold",
		},
		[]string{"query"},
	)

	// HTTP request duration (seconds).
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// Webhook deliveries by result.
	WebhookPostCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_post_count",
			Help: "Total number of webhook POST attempts",
		},
		[]string{"status"}, // status: success, failed
	)
)

func RecordVerification(provider, method string, reachable string, duration time.Duration) {
	VerificationDuration.WithLabelValues(provider, method).Observe(duration.Seconds())
	VerificationCount.WithLabelValues(provider, reachable).Inc()
}

func IncrementSMTPSession(provider, status string) {
	SMTPSessionCount.WithLabelValues(provider, status).Inc()
}

func RecordBackendCallLatency(endpoint, status string, duration time.Duration) {
	BackendCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

func RecordMQConsumeLatency(queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(queue).Observe(float64(duration.Milliseconds()))
}

func IncrementMQDisposition(queue, disposition string) {
	MQDispositionCount.WithLabelValues(queue, disposition).Inc()
}

func RecordThrottleWait(duration time.Duration) {
	ThrottleWaitDuration.Observe(duration.Seconds())
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func IncrementSlowQuery(query string) {
	SlowQueryCount.WithLabelValues(query).Inc()
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementWebhookPost(status string) {
	WebhookPostCount.WithLabelValues(status).Inc()
}
