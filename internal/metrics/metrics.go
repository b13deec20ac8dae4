package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callhook_events_ingested_total",
			Help: "Total number of upstream call events ingested, by event type and outcome.",
		},
		[]string{"event_type", "outcome"},
	)

	EventsDuplicateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "callhook_events_duplicate_total",
			Help: "Total number of upstream events rejected as duplicates of an already-processed event_id.",
		},
	)

	WebhooksQueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callhook_webhooks_queued_total",
			Help: "Total number of outbound webhook deliveries enqueued, by event type.",
		},
		[]string{"event_type"},
	)

	WebhooksDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callhook_webhooks_delivered_total",
			Help: "Total number of outbound webhook deliveries that succeeded, by event type.",
		},
		[]string{"event_type"},
	)

	WebhooksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callhook_webhooks_failed_total",
			Help: "Total number of outbound webhook delivery attempts that failed, by event type and response status.",
		},
		[]string{"event_type", "status"},
	)

	WebhooksDeadLetterTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "callhook_webhooks_dead_letter_total",
			Help: "Total number of outbound webhook deliveries exhausted into dead_letter status.",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callhook_retry_attempts_total",
			Help: "Total number of delivery attempts made, by attempt number (1 is the first attempt).",
		},
		[]string{"attempt"},
	)

	WebhooksQueuedOverflowTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callhook_webhooks_queued_overflow_total",
			Help: "Total number of enqueues accepted past the per-tenant pending-queue soft cap.",
		},
		[]string{"tenant"},
	)

	QueueSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "callhook_queue_size",
			Help: "Current number of delivery queue rows, by status.",
		},
		[]string{"status"},
	)

	QueueOldestAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "callhook_queue_oldest_age_seconds",
			Help: "Age in seconds of the oldest pending delivery queue row.",
		},
	)

	ActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "callhook_active_workers",
			Help: "Current number of delivery worker goroutines actively processing a claim.",
		},
	)

	RateLimitTrackedIdentities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "callhook_rate_limit_tracked_identities",
			Help: "Current number of distinct identities tracked by the rate limiter's token buckets.",
		},
	)

	DeliveryLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callhook_delivery_latency_seconds",
			Help:    "Duration of the outbound HTTP request of a successful delivery, by partner.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"partner"},
	)

	ProcessingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "callhook_processing_duration_seconds",
			Help: "Time spent by a worker processing one claimed delivery, start to finish.",
		},
	)

	IngestionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "callhook_ingestion_duration_seconds",
			Help: "Time spent handling one inbound upstream webhook request.",
		},
	)
)

// MustRegister registers every metric in this package against reg. Panics
// on a duplicate registration, which can only happen from a programming
// error (registering twice against the same registry).
func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		EventsIngestedTotal,
		EventsDuplicateTotal,
		WebhooksQueuedTotal,
		WebhooksDeliveredTotal,
		WebhooksFailedTotal,
		WebhooksDeadLetterTotal,
		RetryAttemptsTotal,
		WebhooksQueuedOverflowTotal,
		QueueSize,
		QueueOldestAgeSeconds,
		ActiveWorkers,
		RateLimitTrackedIdentities,
		DeliveryLatencySeconds,
		ProcessingDurationSeconds,
		IngestionDurationSeconds,
	)
}

func RecordEventIngested(eventType, outcome string) {
	EventsIngestedTotal.WithLabelValues(eventType, outcome).Inc()
}

func RecordEventDuplicate() {
	EventsDuplicateTotal.Inc()
}

func RecordWebhookQueued(eventType string) {
	WebhooksQueuedTotal.WithLabelValues(eventType).Inc()
}

func RecordWebhookDelivered(eventType string) {
	WebhooksDeliveredTotal.WithLabelValues(eventType).Inc()
}

func RecordWebhookFailed(eventType, status string) {
	WebhooksFailedTotal.WithLabelValues(eventType, status).Inc()
}

func RecordWebhookDeadLetter() {
	WebhooksDeadLetterTotal.Inc()
}

func RecordRetryAttempt(attempt int) {
	RetryAttemptsTotal.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

func RecordQueuedOverflow(tenantID string) {
	WebhooksQueuedOverflowTotal.WithLabelValues(tenantID).Inc()
}

func UpdateQueueSize(status string, size float64) {
	QueueSize.WithLabelValues(status).Set(size)
}

func UpdateQueueOldestAge(age float64) {
	QueueOldestAgeSeconds.Set(age)
}

func UpdateActiveWorkers(n float64) {
	ActiveWorkers.Set(n)
}

func UpdateRateLimitTrackedIdentities(n float64) {
	RateLimitTrackedIdentities.Set(n)
}
