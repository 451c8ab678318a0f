// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Stream consumption (reads, acks, reclaims, terminations)
// - Debounce behavior (coalescing, fires, pending tutors)
// - Recomputation throughput and latency
// - Database query performance (DuckDB)
// - Dead-letter store activity
// - Ops API latency and throughput

var (
	// Stream Consumption Metrics
	StreamEntriesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_entries_read_total",
			Help: "Total number of entries read from the event stream",
		},
	)

	StreamEntriesAcked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_entries_acked_total",
			Help: "Total number of entries acknowledged",
		},
	)

	StreamEntriesTerminated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_entries_terminated_total",
			Help: "Total number of entries terminated as poison",
		},
	)

	StreamEntriesReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_entries_reclaimed_total",
			Help: "Total number of redelivered entries reclaimed from failed or stalled consumers",
		},
	)

	StreamAckFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_ack_failures_total",
			Help: "Total number of acknowledgement attempts that failed",
		},
	)

	StreamReadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_read_errors_total",
			Help: "Total number of stream read errors",
		},
	)

	StreamBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stream_read_batch_size",
			Help:    "Number of entries returned per stream read",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	EventsParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_parse_failed_total",
			Help: "Total number of entries whose payload failed to parse or validate",
		},
	)

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_processed_total",
			Help: "Total number of session events admitted to the pipeline",
		},
		[]string{"event_type"}, // "session.completed", "session.amended"
	)

	// Debounce Metrics
	DebounceEventsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "debounce_events_coalesced_total",
			Help: "Total number of events absorbed into an already-pending recomputation",
		},
	)

	DebounceFires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debounce_fires_total",
			Help: "Total number of debounce fires",
		},
		[]string{"reason"}, // "quiet_window", "max_delay", "flush"
	)

	DebouncePendingTutors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "debounce_pending_tutors",
			Help: "Current number of tutors with a pending recomputation",
		},
	)

	DebounceHoldDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "debounce_hold_duration_seconds",
			Help:    "Time between a tutor's first pending event and the fire",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	// Recomputation Metrics
	RecomputationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recomputations_started_total",
			Help: "Total number of recomputation runs started",
		},
	)

	RecomputationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recomputations_completed_total",
			Help: "Total number of recomputation runs completed",
		},
		[]string{"result"}, // "success", "partial", "failure"
	)

	RecomputationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recomputation_duration_seconds",
			Help:    "Duration of full per-tutor recomputation runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecomputationQueuedMerges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recomputation_queued_merges_total",
			Help: "Total number of follow-up requests merged into an already-queued run",
		},
	)

	RecomputationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recomputations_in_flight",
			Help: "Current number of per-tutor recomputation runs executing",
		},
	)

	WindowsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metric_windows_saved_total",
			Help: "Total number of window metric rows upserted",
		},
		[]string{"window_id"},
	)

	WindowFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metric_window_failures_total",
			Help: "Total number of window calculations or saves that failed",
		},
		[]string{"window_id", "stage"}, // stage: "calculate", "persist"
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBWriteRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duckdb_write_retries_total",
			Help: "Total number of retried DuckDB write attempts",
		},
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

	// Dead Letter Metrics
	DeadLettersAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_letters_added_total",
			Help: "Total number of poison entries recorded in the dead-letter store",
		},
		[]string{"category"}, // connection, timeout, validation, storage, calculation, capacity, unknown
	)

	DeadLettersRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dead_letters_removed_total",
			Help: "Total number of dead letters deleted by operators",
		},
	)

	DeadLettersExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dead_letters_expired_total",
			Help: "Total number of dead letters removed by retention",
		},
	)

	DeadLetterDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dead_letter_entries",
			Help: "Current number of entries in the dead-letter store",
		},
	)

	// Event Log Publish Metrics
	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published to the stream",
		},
	)

	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_publish_errors_total",
			Help: "Total number of event publish failures after retries",
		},
	)

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

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordBatchRead records a stream read and its batch size
func RecordBatchRead(size int, err error) {
	if err != nil {
		StreamReadErrors.Inc()
		return
	}
	StreamBatchSize.Observe(float64(size))
	if size > 0 {
		StreamEntriesRead.Add(float64(size))
	}
}

// RecordAck records an acknowledgement attempt
func RecordAck(err error) {
	if err != nil {
		StreamAckFailures.Inc()
		return
	}
	StreamEntriesAcked.Inc()
}

// RecordTerminated records a poison entry being terminated
func RecordTerminated() {
	StreamEntriesTerminated.Inc()
}

// RecordReclaimed records redelivered entries reclaimed during recovery
func RecordReclaimed(count int) {
	if count > 0 {
		StreamEntriesReclaimed.Add(float64(count))
	}
}

// RecordEventProcessed records a session event admitted to the pipeline
func RecordEventProcessed(eventType string) {
	EventsProcessed.WithLabelValues(eventType).Inc()
}

// RecordParseFailure records an entry that failed payload parsing or validation
func RecordParseFailure() {
	EventsParseFailed.Inc()
}

// RecordDebounceFire records a debounce fire and how long the tutor was held
func RecordDebounceFire(reason string, held time.Duration) {
	DebounceFires.WithLabelValues(reason).Inc()
	DebounceHoldDuration.Observe(held.Seconds())
}

// RecordCoalesced records an event absorbed into a pending recomputation
func RecordCoalesced() {
	DebounceEventsCoalesced.Inc()
}

// UpdatePendingTutors updates the pending-tutor gauge
func UpdatePendingTutors(count int) {
	DebouncePendingTutors.Set(float64(count))
}

// RecordRecomputationStarted records a recomputation run beginning execution
func RecordRecomputationStarted() {
	RecomputationsStarted.Inc()
	RecomputationsInFlight.Inc()
}

// RecordRecomputation records a completed recomputation run
func RecordRecomputation(result string, duration time.Duration) {
	RecomputationsCompleted.WithLabelValues(result).Inc()
	RecomputationDuration.Observe(duration.Seconds())
	RecomputationsInFlight.Dec()
}

// RecordQueuedMerge records a dispatch merged into an already-queued follow-up
func RecordQueuedMerge() {
	RecomputationQueuedMerges.Inc()
}

// RecordWindowSaved records a persisted window metric row
func RecordWindowSaved(windowID string) {
	WindowsSaved.WithLabelValues(windowID).Inc()
}

// RecordWindowFailure records a failed window calculation or save
func RecordWindowFailure(windowID, stage string) {
	WindowFailures.WithLabelValues(windowID, stage).Inc()
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordBreakerTransition records a circuit breaker state change
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

// breakerStateValue maps breaker state names to gauge values
func breakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}

// RecordDeadLetter records a poison entry added to the dead-letter store
func RecordDeadLetter(category string) {
	DeadLettersAdded.WithLabelValues(category).Inc()
}

// RecordDeadLetterRemoval records an operator deleting a dead letter
func RecordDeadLetterRemoval() {
	DeadLettersRemoved.Inc()
}

// RecordDeadLetterExpiry records retention removing a dead letter
func RecordDeadLetterExpiry(count int) {
	if count > 0 {
		DeadLettersExpired.Add(float64(count))
	}
}

// UpdateDeadLetterDepth updates the dead-letter depth gauge
func UpdateDeadLetterDepth(count int64) {
	DeadLetterDepth.Set(float64(count))
}

// RecordPublish records an event publish attempt
func RecordPublish(err error) {
	if err != nil {
		EventPublishErrors.Inc()
		return
	}
	EventsPublished.Inc()
}

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
