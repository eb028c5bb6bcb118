// Package metrics provides Prometheus metrics for NoteMesh.
// It tracks RPC traffic, event fan-out and notification materialization
// to make cross-service latency and loss visible.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "notemesh"
)

// RPC metrics track the request/reply path.
var (
	// RPCCallsTotal counts outbound RPC calls by result.
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Total number of RPC calls issued",
		},
		[]string{"queue", "result"}, // result: ok, timeout, disconnected, error
	)

	// RPCCallLatency measures round-trip time of resolved calls.
	RPCCallLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_call_latency_seconds",
			Help:      "Round-trip latency of resolved RPC calls in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// RPCRequestsServedTotal counts requests handled by the RPC server.
	RPCRequestsServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_served_total",
			Help:      "Total number of RPC requests served",
		},
		[]string{"queue", "result"}, // result: ok, handler_error, reply_failed
	)

	// RPCStaleRepliesTotal counts replies that arrived after their
	// correlation entry was evicted.
	RPCStaleRepliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_stale_replies_total",
			Help:      "Total number of replies discarded because no call was pending",
		},
	)

	// RPCPendingCalls tracks the current size of the correlation registry.
	RPCPendingCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rpc_pending_calls",
			Help:      "Current number of in-flight RPC calls",
		},
	)
)

// Event metrics track the publish/consume fan-out path.
var (
	// EventsPublishedTotal counts events published, by type and result.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of events published to the event queue",
		},
		[]string{"type", "result"}, // result: ok, error
	)

	// EventsConsumedTotal counts events consumed, by type and outcome.
	EventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Total number of events consumed from the event queue",
		},
		[]string{"type", "outcome"}, // outcome: persisted, dropped_malformed, dropped_unknown, retried
	)

	// EventDecodeFailuresTotal counts malformed event bodies dropped.
	EventDecodeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_decode_failures_total",
			Help:      "Total number of malformed event bodies acknowledged and dropped",
		},
	)
)

// Notification metrics track materialized records.
var (
	// NotificationsCreatedTotal counts notifications persisted by the consumer.
	NotificationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Total number of notifications created",
		},
	)

	// NotificationPersistLatency measures the storage write time per notification.
	NotificationPersistLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_persist_latency_seconds",
			Help:      "Time to persist a notification record in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
	)
)

// Social metrics track like traffic feeding the event pipeline.
var (
	// LikesTotal counts like/unlike operations.
	LikesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "likes_total",
			Help:      "Total number of like and unlike operations",
		},
		[]string{"operation", "result"}, // operation: like, unlike; result: ok, duplicate, error
	)

	// LikeCountCacheTotal counts like-count cache lookups by outcome.
	LikeCountCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "like_count_cache_total",
			Help:      "Total number of like-count cache lookups",
		},
		[]string{"outcome"}, // outcome: hit, miss, error
	)
)
