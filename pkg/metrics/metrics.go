// Package metrics holds the process-level collectors of the monitor itself:
// broker delivery, acknowledgement, subscription and pipeline health. The
// per-message classification counters live in internal/emitter.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "monitor"

var (
	MessagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages delivered by the broker (count)",
		},
		[]string{"subscription"},
	)

	AckErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ack_errors_total",
			Help:      "Total number of failed message acknowledgements (count)",
		},
		[]string{"subscription"},
	)

	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total number of broker fetch errors (count)",
		},
		[]string{"subscription"},
	)

	ProcessingPanicsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processing_panics_total",
			Help:      "Total number of recovered panics while classifying a message (count)",
		},
		[]string{"subscription"},
	)

	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_ms",
			Help:      "Classification and emission duration per message in milliseconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		},
		[]string{"subscription"},
	)

	MessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_size_bytes",
			Help:      "Size of consumed message payloads in bytes",
			Buckets:   []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"subscription"},
	)

	SubscriptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Number of active topic pattern subscriptions (count)",
		},
	)

	SubscribeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribe_failures_total",
			Help:      "Total number of topic pattern subscriptions that could not be created (count)",
		},
		[]string{"policy"},
	)

	SubscribeRetryAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribe_retry_attempts_total",
			Help:      "Total number of subscribe retry attempts (count)",
		},
	)

	SchemasLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schemas_loaded",
			Help:      "Number of JSON schemas loaded at startup (count)",
		},
	)

	LogsSuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_suppressed_total",
			Help:      "Total number of log lines dropped by sampling (count)",
		},
		[]string{"sampler"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_failures_total",
			Help:      "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

var registerOnce sync.Once

// Register adds every process collector to reg. Only the first call has an effect.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			MessagesReceivedTotal,
			AckErrorsTotal,
			FetchErrorsTotal,
			ProcessingPanicsTotal,
			ProcessingDuration,
			MessageSizeBytes,
			SubscriptionsActive,
			SubscribeFailuresTotal,
			SubscribeRetryAttemptsTotal,
			SchemasLoaded,
			LogsSuppressedTotal,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
		)
	})
}

func IncMessagesReceived(subscription string, sizeBytes int) {
	MessagesReceivedTotal.WithLabelValues(subscription).Inc()
	MessageSizeBytes.WithLabelValues(subscription).Observe(float64(sizeBytes))
}

func IncAckErrors(subscription string) {
	AckErrorsTotal.WithLabelValues(subscription).Inc()
}

func IncFetchErrors(subscription string) {
	FetchErrorsTotal.WithLabelValues(subscription).Inc()
}

func IncProcessingPanics(subscription string) {
	ProcessingPanicsTotal.WithLabelValues(subscription).Inc()
}

func ObserveProcessingDuration(subscription string, duration time.Duration) {
	ProcessingDuration.WithLabelValues(subscription).Observe(float64(duration.Microseconds()) / 1000)
}

func SetSubscriptionsActive(count int) {
	SubscriptionsActive.Set(float64(count))
}

func IncSubscribeFailures(policy string) {
	SubscribeFailuresTotal.WithLabelValues(policy).Inc()
}

func IncSubscribeRetryAttempts() {
	SubscribeRetryAttemptsTotal.Inc()
}

func SetSchemasLoaded(count int) {
	SchemasLoaded.Set(float64(count))
}

func IncLogsSuppressed(sampler string) {
	LogsSuppressedTotal.WithLabelValues(sampler).Inc()
}
