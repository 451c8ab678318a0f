// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/praeceptor/internal/models"
)

// TutorMetricsResponse is the response for the latest-per-window read.
type TutorMetricsResponse struct {
	EntityKey string                `json:"entity_key"`
	Windows   []models.WindowResult `json:"windows"`
	Count     int                   `json:"count"`
}

// TutorMetricsHistoryResponse is the response for the per-window history read.
type TutorMetricsHistoryResponse struct {
	EntityKey string                `json:"entity_key"`
	WindowID  string                `json:"window_id"`
	Rows      []models.WindowResult `json:"rows"`
	Count     int                   `json:"count"`
}

// TutorMetrics handles GET /api/v1/tutors/{entityKey}/metrics.
// Returns the latest persisted row per window for one tutor, ordered by
// window id. A tutor with no recomputations yet yields an empty list,
// not a 404: dashboards poll this before the first event lands.
func (h *Handler) TutorMetrics(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := TutorMetricsRequest{
		EntityKey: chi.URLParam(r, "entityKey"),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	if h.db == nil {
		rw.ServiceUnavailable("Metrics store is not available")
		return
	}

	windows, err := h.db.GetWindowMetrics(r.Context(), req.EntityKey)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if windows == nil {
		windows = []models.WindowResult{}
	}

	rw.Success(TutorMetricsResponse{
		EntityKey: req.EntityKey,
		Windows:   windows,
		Count:     len(windows),
	})
}

// TutorMetricsHistory handles GET /api/v1/tutors/{entityKey}/metrics/history.
// Returns up to limit rows for one tutor and window, newest first. The
// window query parameter is required and must be a trailing-window id.
func (h *Handler) TutorMetricsHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	keyReq := TutorMetricsRequest{
		EntityKey: chi.URLParam(r, "entityKey"),
	}
	if apiErr := validateRequest(&keyReq); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	req := TutorMetricsHistoryRequest{
		WindowID: r.URL.Query().Get("window"),
		Limit:    getIntParam(r, "limit", 30),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	if h.db == nil {
		rw.ServiceUnavailable("Metrics store is not available")
		return
	}

	rows, err := h.db.GetWindowMetricsHistory(r.Context(), keyReq.EntityKey, req.WindowID, req.Limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if rows == nil {
		rows = []models.WindowResult{}
	}

	rw.Success(TutorMetricsHistoryResponse{
		EntityKey: keyReq.EntityKey,
		WindowID:  req.WindowID,
		Rows:      rows,
		Count:     len(rows),
	})
}
