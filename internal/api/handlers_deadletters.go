// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/praeceptor/internal/deadletter"
	"github.com/tomtom215/praeceptor/internal/logging"
	"github.com/tomtom215/praeceptor/internal/models"
)

// DeadLetterStatsResponse is the API view of the store's statistics.
type DeadLetterStatsResponse struct {
	Depth         int64 `json:"depth"`
	TotalRecorded int64 `json:"total_recorded"`
	TotalDeleted  int64 `json:"total_deleted"`
	TotalExpired  int64 `json:"total_expired"`
	DBSizeBytes   int64 `json:"db_size_bytes"`
}

// DeadLetterHandlers provides HTTP handlers for dead-letter inspection.
// Entries are read-only except for operator discard: a dead letter is
// the terminal record of a poison entry, so there is no retry endpoint;
// recovery is re-publishing the preserved payload through the ingress.
type DeadLetterHandlers struct {
	store DeadLetterStore
}

// NewDeadLetterHandlers creates dead-letter handlers over the store.
func NewDeadLetterHandlers(store DeadLetterStore) *DeadLetterHandlers {
	return &DeadLetterHandlers{store: store}
}

// List handles GET /api/v1/deadletters.
// Returns a paginated list, optionally filtered by failure category.
func (h *DeadLetterHandlers) List(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := ListDeadLettersRequest{
		Limit:    getIntParam(r, "limit", 50),
		Offset:   getIntParam(r, "offset", 0),
		Category: r.URL.Query().Get("category"),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	all, err := h.store.List(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Dead-letter list failed")
		rw.InternalError("Failed to list dead-letter entries")
		return
	}

	entries := make([]*models.DeadLetterEntry, 0, len(all))
	for _, entry := range all {
		if req.Category != "" && entry.Category != req.Category {
			continue
		}
		entries = append(entries, entry)
	}

	total := len(entries)

	start := req.Offset
	if start > total {
		start = total
	}
	end := start + req.Limit
	if end > total {
		end = total
	}
	page := entries[start:end]

	rw.SuccessWithPagination(page, &PaginationMeta{
		Total:   int64(total),
		Count:   len(page),
		Offset:  req.Offset,
		Limit:   req.Limit,
		HasMore: end < total,
	})
}

// Get handles GET /api/v1/deadletters/{id}.
func (h *DeadLetterHandlers) Get(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, ok := parseEntryID(rw, r)
	if !ok {
		return
	}

	entry, err := h.store.Get(r.Context(), id)
	if errors.Is(err, deadletter.ErrEntryNotFound) {
		rw.NotFound("Dead-letter entry not found")
		return
	}
	if err != nil {
		logging.Error().Err(err).Uint64("entry_id", id).Msg("Dead-letter read failed")
		rw.InternalError("Failed to read dead-letter entry")
		return
	}

	rw.Success(entry)
}

// Delete handles DELETE /api/v1/deadletters/{id}.
// Discards an entry an operator has dealt with (re-published or written
// off). Deletion is the only mutation the API offers.
func (h *DeadLetterHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, ok := parseEntryID(rw, r)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, deadletter.ErrEntryNotFound) {
		rw.NotFound("Dead-letter entry not found")
		return
	}
	if err != nil {
		logging.Error().Err(err).Uint64("entry_id", id).Msg("Dead-letter delete failed")
		rw.InternalError("Failed to delete dead-letter entry")
		return
	}

	logger := logging.Ctx(r.Context())
	logger.Info().Uint64("entry_id", id).Msg("Dead-letter entry discarded")
	rw.NoContent()
}

// Stats handles GET /api/v1/deadletters/stats.
func (h *DeadLetterHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	stats := h.store.Stats()

	rw.Success(DeadLetterStatsResponse{
		Depth:         stats.Depth,
		TotalRecorded: stats.TotalRecorded,
		TotalDeleted:  stats.TotalDeleted,
		TotalExpired:  stats.TotalExpired,
		DBSizeBytes:   stats.DBSizeBytes,
	})
}

// parseEntryID extracts and parses the {id} URL parameter. On failure it
// writes the error response and returns false.
func parseEntryID(rw *ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		rw.BadRequest("Entry ID is required")
		return 0, false
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		rw.BadRequest("Entry ID must be a positive integer")
		return 0, false
	}

	return id, true
}
