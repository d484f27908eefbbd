package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflexion_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// StoreQueryLatency records store query latency by operation and table.
	StoreQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reflexion_store_query_latency_seconds",
		Help:    "Store query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// StoreRetries counts retried store operations.
	StoreRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflexion_store_retries_total",
		Help: "Total number of retried store operations",
	}, []string{"operation"})

	// PostLikes counts accepted likes.
	PostLikes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflexion_post_likes_total",
		Help: "Total number of accepted post likes",
	})

	// PostLimitRejections counts bodies rejected for exceeding the unlocked length.
	PostLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflexion_post_limit_rejections_total",
		Help: "Total number of post bodies rejected for exceeding the character limit",
	})

	// ConnectionEvents counts connection lifecycle events by type.
	ConnectionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflexion_connection_events_total",
		Help: "Connection lifecycle events by type",
	}, []string{"event"})

	// WebhookEvents counts payment webhook deliveries by outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflexion_payment_webhook_events_total",
		Help: "Payment webhook deliveries by outcome",
	}, []string{"outcome"})
)

// Connection event labels.
const (
	EventConnectionRequested = "requested"
	EventConnectionCreated   = "created"
	EventConnectionAccepted  = "accepted"
	EventConnectionRejected  = "rejected"
	EventMessageSent         = "message_sent"
	EventRevealRequested     = "reveal_requested"
	EventMutualReveal        = "mutual_reveal"
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		StoreQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
