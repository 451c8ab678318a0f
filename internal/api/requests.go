// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package api provides HTTP request validation structs with
// go-playground/validator tags. These structs validate incoming request
// parameters before any store or publisher is touched.
//
// Example usage:
//
//	req := ListDeadLettersRequest{
//	    Limit:  getIntParam(r, "limit", 50),
//	    Offset: getIntParam(r, "offset", 0),
//	}
//	if apiErr := validateRequest(&req); apiErr != nil {
//	    NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
//	    return
//	}
package api

import "github.com/tomtom215/praeceptor/internal/models"

// TutorMetricsRequest represents the validated path parameter for the
// tutor metrics read endpoints. The entity key bounds match the event
// schema, so a key that was accepted at ingress is always queryable.
type TutorMetricsRequest struct {
	EntityKey string `validate:"required,min=1,max=128"`
}

// TutorMetricsHistoryRequest represents the validated query parameters
// for the per-window history endpoint.
//
// Fields:
//   - WindowID: Trailing window identifier (7d, 30d, 90d, 12w)
//   - Limit: Maximum rows to return, newest first (1-1000)
type TutorMetricsHistoryRequest struct {
	WindowID string `validate:"required,window_id"`
	Limit    int    `validate:"min=1,max=1000"`
}

// ListDeadLettersRequest represents the validated query parameters for
// the dead-letter list endpoint.
//
// Fields:
//   - Limit: Results per page (1-1000)
//   - Offset: Starting offset into the filtered list
//   - Category: Optional failure-category filter
type ListDeadLettersRequest struct {
	Limit    int    `validate:"min=1,max=1000"`
	Offset   int    `validate:"min=0,max=1000000"`
	Category string `validate:"omitempty,oneof=unknown connection timeout validation storage calculation capacity"`
}

// PublishEventRequest is the body for the event ingress endpoint. The
// handler wraps it in a full SessionEvent (fresh event id, timestamp,
// schema version) before publishing, so callers supply only the facts.
//
// EventType defaults to session.completed when omitted.
type PublishEventRequest struct {
	EntityKey string             `json:"entity_key" validate:"required,min=1,max=128"`
	EventType string             `json:"event_type" validate:"omitempty,oneof=session.completed session.amended"`
	Session   models.SessionFact `json:"payload" validate:"required"`
}
