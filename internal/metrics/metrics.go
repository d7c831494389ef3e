// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

// Package metrics exposes Prometheus instrumentation for the message
// pipeline: persistence, fan-out, push dispatch, and the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Message pipeline metrics
	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Total number of chat messages durably persisted",
		},
	)

	MessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_rejected_total",
			Help: "Total number of chat messages rejected before or during persistence",
		},
		[]string{"reason"}, // "validation", "persistence"
	)

	EventsRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_events_relayed_total",
			Help: "Total number of events fanned out to live sessions",
		},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of connected WebSocket sessions",
		},
	)

	WebSocketSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_subscriptions_active",
			Help: "Current number of (session, conversation) subscriptions",
		},
	)

	// Push dispatch metrics
	PushDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_dispatches_total",
			Help: "Total number of push dispatch attempts by outcome",
		},
		[]string{"outcome"}, // "sent", "no_token", "invalid_token", "gateway_error", "disabled"
	)

	PushGatewayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "push_gateway_duration_seconds",
			Help:    "Duration of push gateway calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NotificationsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_recorded_total",
			Help: "Total number of notification records written",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, path string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
