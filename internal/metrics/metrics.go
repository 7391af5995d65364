package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Intake metrics
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_webhooks_total",
			Help: "Total number of webhook deliveries received",
		},
		[]string{"event_type", "outcome"},
	)

	WebhookBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbridge_webhook_bytes_total",
			Help: "Total bytes of webhook payload data received",
		},
	)

	DuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbridge_webhook_duplicates_total",
			Help: "Total number of duplicate deliveries short-circuited by the idempotency store",
		},
	)

	SignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_signature_failures_total",
			Help: "Total number of signature or timestamp verification failures",
		},
		[]string{"reason"},
	)

	// Queue metrics
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_jobs_enqueued_total",
			Help: "Total jobs enqueued per priority tier",
		},
		[]string{"queue"},
	)

	// Executor metrics
	JobAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_job_attempts_total",
			Help: "Total job execution attempts by result",
		},
		[]string{"queue", "result"},
	)

	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatbridge_job_duration_seconds",
			Help:    "Duration of job business transformation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_dead_letters_total",
			Help: "Total jobs routed to the dead-letter store",
		},
		[]string{"reason"},
	)

	// Anomaly detection metrics
	SecurityViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_security_violations_total",
			Help: "Total security violations recorded by severity",
		},
		[]string{"severity"},
	)

	IPBlocksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatbridge_ip_blocks_active",
			Help: "Number of currently blocked source IPs",
		},
	)
)
