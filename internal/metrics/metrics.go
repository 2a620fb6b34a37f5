// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Detection Metrics
	DetectionBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ids_event_batches_total",
			Help: "Total number of pointer-event batches received",
		},
	)

	DetectionBatchEvents = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ids_event_batch_size",
			Help:    "Number of events per received batch",
			Buckets: []float64{1, 10, 20, 40, 80, 160, 320},
		},
	)

	DetectionVerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ids_verdicts_total",
			Help: "Scoring outcomes by result (anomalous, normal, skipped)",
		},
		[]string{"result"},
	)

	DetectionAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ids_alerts_total",
			Help: "Alert persistence attempts by outcome (written, failed)",
		},
		[]string{"outcome"},
	)

	SuspicionMarksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ids_suspicion_marks_total",
			Help: "Total number of identities marked suspicious",
		},
	)

	SuspiciousIdentities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ids_suspicious_identities",
			Help: "Identities currently tracked by the suspicion registry",
		},
	)

	ForceDecoyPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ids_force_decoy_pushes_total",
			Help: "Force-decoy pushes by outcome (delivered, dropped)",
		},
		[]string{"outcome"},
	)

	// Decoy Metrics
	DecoyDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decoy_decisions_total",
			Help: "Protected-route decisions by outcome and resource",
		},
		[]string{"decision", "resource"},
	)

	// Honeytoken Metrics
	HoneyDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeytoken_documents_total",
			Help: "Honey document lifecycle operations (created, deleted, tombstoned)",
		},
		[]string{"operation"},
	)

	InventoryCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeytoken_inventory_calls_total",
			Help: "Remote inventory calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	InventoryRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeytoken_inventory_retries_total",
			Help: "Remote inventory retry attempts by operation",
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// WebSocket Metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active websocket sessions",
		},
	)

	WSBatchesThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_batches_throttled_total",
			Help: "Event batches dropped by the per-connection rate limiter",
		},
	)

	// Event bus
	EventBusPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_publish_total",
			Help: "Alert events published by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBatch counts a received batch and its size.
func RecordBatch(size int) {
	DetectionBatchesTotal.Inc()
	DetectionBatchEvents.Observe(float64(size))
}

// RecordVerdict counts a scoring outcome: anomalous, normal or skipped.
func RecordVerdict(result string) {
	DetectionVerdictsTotal.WithLabelValues(result).Inc()
}

// RecordAlert counts an alert persistence attempt.
func RecordAlert(err error) {
	if err != nil {
		DetectionAlertsTotal.WithLabelValues("failed").Inc()
		return
	}
	DetectionAlertsTotal.WithLabelValues("written").Inc()
}

// RecordSuspicionMark counts a mark and refreshes the tracked-identity gauge.
func RecordSuspicionMark(tracked int) {
	SuspicionMarksTotal.Inc()
	SuspiciousIdentities.Set(float64(tracked))
}

// RecordForceDecoyPush counts a push attempt.
func RecordForceDecoyPush(delivered bool) {
	if delivered {
		ForceDecoyPushesTotal.WithLabelValues("delivered").Inc()
		return
	}
	ForceDecoyPushesTotal.WithLabelValues("dropped").Inc()
}

// RecordDecoyDecision counts a protected-route decision.
func RecordDecoyDecision(decision, resource string) {
	DecoyDecisionsTotal.WithLabelValues(decision, resource).Inc()
}

// RecordHoneyDocument counts a honey document lifecycle operation.
func RecordHoneyDocument(operation string) {
	HoneyDocumentsTotal.WithLabelValues(operation).Inc()
}

// RecordInventoryCall counts a remote inventory call.
func RecordInventoryCall(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	InventoryCallsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordInventoryRetry counts a retry attempt after a transient failure.
func RecordInventoryRetry(operation string) {
	InventoryRetriesTotal.WithLabelValues(operation).Inc()
}

// RecordEventPublish counts an alert event publish.
func RecordEventPublish(err error) {
	if err != nil {
		EventBusPublishTotal.WithLabelValues("failed").Inc()
		return
	}
	EventBusPublishTotal.WithLabelValues("published").Inc()
}
