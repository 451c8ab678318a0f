// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/praeceptor/internal/logging"
	"github.com/tomtom215/praeceptor/internal/models"
)

// maxIngressBodyBytes bounds the ingress request body. A session event
// is well under 1 KiB; 64 KiB leaves generous headroom.
const maxIngressBodyBytes = 64 * 1024

// PublishEventResponse echoes the identifiers of an accepted event so
// the caller can trace it through the pipeline.
type PublishEventResponse struct {
	EventID   string `json:"event_id"`
	EntityKey string `json:"entity_key"`
	EventType string `json:"event_type"`
	Topic     string `json:"topic"`
}

// PublishEvent handles POST /api/v1/events: validated ingress that wraps
// the submitted session facts in a SessionEvent and publishes it to the
// log. Returns 202 Accepted; the recomputation itself happens
// asynchronously once the worker consumes the entry.
//
// This is an operator path for injection and backfill. The event id is
// generated server-side and doubles as the publish deduplication key,
// so retrying a failed request publishes a distinct event.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, maxIngressBodyBytes)

	var req PublishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Request body is not a valid event: " + err.Error())
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	if h.publisher == nil {
		rw.ServiceUnavailable("Event ingress is not enabled")
		return
	}

	event := models.NewSessionEvent(req.EntityKey)
	if req.EventType != "" {
		event.EventType = req.EventType
	}
	event.Session = req.Session

	if err := h.publisher.PublishEvent(r.Context(), event); err != nil {
		rw.PublishError(err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("event_id", event.EventID).
		Str("entity_key", sanitizeLogValue(event.EntityKey)).
		Str("event_type", event.EventType).
		Msg("Event accepted via ingress")

	rw.Accepted(PublishEventResponse{
		EventID:   event.EventID,
		EntityKey: event.EntityKey,
		EventType: event.EventType,
		Topic:     event.Topic(),
	})
}
