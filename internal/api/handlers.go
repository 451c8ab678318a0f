// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/praeceptor/internal/config"
	"github.com/tomtom215/praeceptor/internal/deadletter"
	"github.com/tomtom215/praeceptor/internal/debounce"
	"github.com/tomtom215/praeceptor/internal/models"
	"github.com/tomtom215/praeceptor/internal/stats"
	"github.com/tomtom215/praeceptor/internal/validation"
)

// MetricsStore is the database surface the read-path handlers need.
// *database.DB satisfies it.
type MetricsStore interface {
	// Ping verifies database connectivity for the readiness probe.
	Ping(ctx context.Context) error

	// GetWindowMetrics returns the latest row per window for one tutor.
	GetWindowMetrics(ctx context.Context, entityKey string) ([]models.WindowResult, error)

	// GetWindowMetricsHistory returns up to limit rows for one tutor and
	// window, newest first.
	GetWindowMetricsHistory(ctx context.Context, entityKey, windowID string, limit int) ([]models.WindowResult, error)

	// CountWindowMetrics returns the total number of persisted rows.
	CountWindowMetrics(ctx context.Context) (int64, error)

	// BreakerState reports the write-path circuit breaker state.
	BreakerState() string
}

// EventPublisher publishes session events to the log. *eventlog.Publisher
// satisfies it. The ingress endpoint degrades to 503 when nil.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *models.SessionEvent) error
}

// WorkerStatus is this process's view of the pipeline worker.
// *worker.Worker satisfies it.
type WorkerStatus interface {
	IsRunning() bool
	ConsumerInfo() models.ConsumerInfo
	PendingEntries() int
	LastEventAt() time.Time
}

// EventLogConn reports event log connectivity for the readiness probe.
// *nats.Conn satisfies it directly.
type EventLogConn interface {
	IsConnected() bool
}

// DeadLetterStore is the store surface the dead-letter handlers need.
// *deadletter.Store satisfies it.
type DeadLetterStore interface {
	List(ctx context.Context) ([]*models.DeadLetterEntry, error)
	Get(ctx context.Context, id uint64) (*models.DeadLetterEntry, error)
	Delete(ctx context.Context, id uint64) error
	Count(ctx context.Context) (int64, error)
	Stats() deadletter.Stats
}

// Handler contains dependencies for the ops API handlers.
//
// Handler methods are split across multiple files:
//   - handlers.go: Handler struct, constructor, shared helpers (this file)
//   - handlers_health.go: liveness and readiness probes
//   - handlers_stats.go: worker stats snapshot
//   - handlers_tutors.go: tutor window metrics read path
//   - handlers_events.go: event ingress
//
// Dead-letter endpoints live on their own DeadLetterHandlers struct in
// handlers_deadletters.go.
type Handler struct {
	db         MetricsStore
	registry   *stats.Registry
	config     *config.Config
	publisher  EventPublisher
	worker     WorkerStatus
	logConn    EventLogConn
	aggregator *debounce.Aggregator
	startTime  time.Time
}

// NewHandler creates an API handler over the metrics store and stats
// registry. Optional components (publisher, worker, log connection,
// aggregator) are attached with the Set* methods; handlers that need an
// absent component answer 503 or report it as down.
func NewHandler(db MetricsStore, registry *stats.Registry, cfg *config.Config) *Handler {
	return &Handler{
		db:        db,
		registry:  registry,
		config:    cfg,
		startTime: time.Now(),
	}
}

// SetEventPublisher attaches the event log publisher used by the ingress
// endpoint. Should be called once during startup.
func (h *Handler) SetEventPublisher(publisher EventPublisher) {
	h.publisher = publisher
}

// SetWorker attaches the pipeline worker for readiness and stats detail.
// Should be called once during startup.
func (h *Handler) SetWorker(worker WorkerStatus) {
	h.worker = worker
}

// SetEventLogConn attaches the log connection checked by the readiness
// probe. Should be called once during startup.
func (h *Handler) SetEventLogConn(conn EventLogConn) {
	h.logConn = conn
}

// SetAggregator attaches the debounce aggregator for stats detail.
// Should be called once during startup.
func (h *Handler) SetAggregator(aggregator *debounce.Aggregator) {
	h.aggregator = aggregator
}

// sanitizeLogValue removes control characters from strings to prevent
// log injection. Newlines, carriage returns, and other control bytes in
// attacker-supplied values could otherwise forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// validateRequest validates a struct using go-playground/validator.
// Returns nil if validation passes, or an APIError describing the
// failed fields.
func validateRequest(v interface{}) *APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	apiErr := validationErr.ToAPIError()
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}
