// Package observability provides Prometheus collectors and OpenTelemetry tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis command failures by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// ActiveWebSockets is the number of open realtime connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forum_websocket_connections_active",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// TasksProcessed counts background tasks by type and outcome (ok, retry, dead).
	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_tasks_processed_total",
		Help: "Total number of background tasks processed",
	}, []string{"type", "outcome"})

	// TasksEnqueued counts tasks accepted by the queue by type.
	TasksEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_tasks_enqueued_total",
		Help: "Total number of background tasks enqueued",
	}, []string{"type"})

	// EmailsSent counts outbound emails by transport and outcome.
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_emails_sent_total",
		Help: "Total number of outbound emails",
	}, []string{"transport", "outcome"})

	// ForumActions counts successful forum mutations by action.
	ForumActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_actions_total",
		Help: "Total number of forum mutations by action",
	}, []string{"action"})
)
