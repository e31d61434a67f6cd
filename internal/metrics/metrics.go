// Sessiond - Multi-tenant Messaging Session Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sessiond

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
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
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)

	// Session Metrics
	SessionsRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_registered",
			Help: "Current number of sessions in the registry",
		},
	)

	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionsDestroyed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_destroyed_total",
			Help: "Total number of sessions destroyed",
		},
		[]string{"reason"}, // logout, superseded, unfinished_timeout, inactive_timeout, shutdown
	)

	SessionTeardownFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_teardown_failures_total",
			Help: "Total number of session teardowns that left resources behind",
		},
		[]string{"reason"},
	)

	SessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_engine_events_total",
			Help: "Total number of engine events applied by the session relay",
		},
		[]string{"event"},
	)

	SessionStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_engine_starts_total",
			Help: "Total number of engine start attempts",
		},
		[]string{"mode", "result"}, // mode: primary, conservative; result: success, failure
	)

	SessionStartDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "session_engine_start_duration_seconds",
			Help:    "Duration of engine start attempts in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90, 120},
		},
		[]string{"mode"},
	)

	AutomationDetectionSuspected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_automation_detection_suspected_total",
			Help: "Logouts observed shortly after a session became ready",
		},
	)

	// Health Metrics
	HealthProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_health_probes_total",
			Help: "Total number of liveness probes",
		},
		[]string{"result"}, // connected, not_connected, error
	)

	HealthCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_health_cycle_duration_seconds",
			Help:    "Duration of one health supervisor cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	Reconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_reconnects_total",
			Help: "Total number of reconnection attempts by outcome",
		},
		[]string{"outcome"}, // reconnected, failed, dropped
	)

	// Transcode Metrics
	TranscodeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcode_cache_hits_total",
			Help: "Total number of transcode cache hits",
		},
	)

	TranscodeCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcode_cache_misses_total",
			Help: "Total number of transcode cache misses",
		},
	)

	TranscodeConversions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcode_conversions_total",
			Help: "Total number of successful conversions",
		},
	)

	TranscodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcode_failures_total",
			Help: "Total number of failed conversions",
		},
		[]string{"reason"}, // timeout, engine, circuit_open, storage
	)

	TranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcode_duration_seconds",
			Help:    "Duration of engine conversions in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	TranscodeCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcode_cache_entries",
			Help: "Current number of transcode cache entries",
		},
	)

	TranscodeSweptEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcode_swept_entries_total",
			Help: "Total number of expired cache entries removed",
		},
	)

	// Relay Metrics
	RelayPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_published_total",
			Help: "Total number of session events published",
		},
		[]string{"sink", "result"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
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

// RecordSessionCreated counts a new session record.
func RecordSessionCreated() {
	SessionsCreated.Inc()
	SessionsRegistered.Inc()
}

// RecordSessionDestroyed counts a session teardown with its reason.
func RecordSessionDestroyed(reason string) {
	SessionsDestroyed.WithLabelValues(reason).Inc()
	SessionsRegistered.Dec()
}

// RecordSessionTeardownFailure counts a teardown that returned an error.
func RecordSessionTeardownFailure(reason string) {
	SessionTeardownFailures.WithLabelValues(reason).Inc()
}

// RecordSessionEvent counts an applied engine event.
func RecordSessionEvent(event string) {
	SessionEvents.WithLabelValues(event).Inc()
}

// RecordEngineStart records one engine start attempt.
func RecordEngineStart(conservative bool, duration time.Duration, err error) {
	mode := "primary"
	if conservative {
		mode = "conservative"
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	SessionStarts.WithLabelValues(mode, result).Inc()
	SessionStartDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordAutomationSuspected counts a logout inside the detection window.
func RecordAutomationSuspected() {
	AutomationDetectionSuspected.Inc()
}

// RecordHealthProbe records a liveness probe result.
func RecordHealthProbe(result string) {
	HealthProbes.WithLabelValues(result).Inc()
}

// RecordHealthCycle records the duration of a supervisor cycle.
func RecordHealthCycle(duration time.Duration) {
	HealthCycleDuration.Observe(duration.Seconds())
}

// RecordReconnect records a reconnection outcome.
func RecordReconnect(outcome string) {
	Reconnects.WithLabelValues(outcome).Inc()
}

// RecordTranscodeLookup records a cache hit or miss.
func RecordTranscodeLookup(hit bool) {
	if hit {
		TranscodeCacheHits.Inc()
	} else {
		TranscodeCacheMisses.Inc()
	}
}

// RecordTranscode records an engine conversion. A non-empty failReason marks a failure.
func RecordTranscode(duration time.Duration, failReason string) {
	TranscodeDuration.Observe(duration.Seconds())
	if failReason != "" {
		TranscodeFailures.WithLabelValues(failReason).Inc()
		return
	}
	TranscodeConversions.Inc()
}

// RecordTranscodeSweep records entries removed by a sweep and the remaining count.
func RecordTranscodeSweep(removed, remaining int) {
	TranscodeSweptEntries.Add(float64(removed))
	TranscodeCacheEntries.Set(float64(remaining))
}

// RecordRelayPublish records a relay publish result for a sink.
func RecordRelayPublish(sink string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	RelayPublished.WithLabelValues(sink, result).Inc()
}

// RecordCircuitBreakerTransition records a breaker state change.
// States follow gobreaker: closed=0, half-open=1, open=2.
func RecordCircuitBreakerTransition(name, from, to string, toValue float64) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(toValue)
}
