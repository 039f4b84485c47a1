package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitamora_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vitamora_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CounterAdjustments counts atomic changes applied to denormalized post counters.
	CounterAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitamora_counter_adjustments_total",
		Help: "Atomic adjustments of denormalized post counters",
	}, []string{"column", "direction"})

	// SpeculativeTransitions counts optimistic client transitions by feature and outcome
	// (confirmed, reverted, discarded).
	SpeculativeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitamora_speculative_transitions_total",
		Help: "Optimistic client-side transitions by outcome",
	}, []string{"feature", "outcome"})

	// RealtimeEventsTotal counts row-change events published per table and type.
	RealtimeEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitamora_realtime_events_total",
		Help: "Row-change events published on the realtime channel",
	}, []string{"table", "type"})

	// WebSocketConnectionsTotal is the gauge of total realtime WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vitamora_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitamora_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// ImageUploadsTotal counts object uploads by outcome.
	ImageUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitamora_image_uploads_total",
		Help: "Image uploads by outcome",
	}, []string{"bucket", "outcome"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
