// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/praeceptor/internal/models"
)

func windowRow(entityKey, windowID string) models.WindowResult {
	return models.WindowResult{
		EntityKey:       entityKey,
		WindowID:        windowID,
		CalculationDate: "2026-03-14",
		MetricValues: models.MetricValues{
			models.MetricSessionsCompleted: 12,
			models.MetricHoursTaught:       9.5,
		},
		ComputedAt: time.Now().UTC(),
		Status:     models.WindowStatusOK,
	}
}

// =============================================================================
// TutorMetrics Tests
// =============================================================================

func TestTutorMetrics_ReturnsLatestRows(t *testing.T) {
	t.Parallel()

	h, db, _, _, _ := newTestHandler()
	db.windows = []models.WindowResult{
		windowRow("tutor-a", "30d"),
		windowRow("tutor-a", "7d"),
		windowRow("tutor-a", "90d"),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors/tutor-a/metrics", nil)
	req = withURLParam(req, "entityKey", "tutor-a")
	w := httptest.NewRecorder()

	h.TutorMetrics(w, req)

	assertStatusCode(t, w.Code, http.StatusOK, "TutorMetrics")

	var resp TutorMetricsResponse
	decodeData(t, decodeEnvelope(t, w, "TutorMetrics"), &resp, "TutorMetrics")

	if resp.EntityKey != "tutor-a" {
		t.Errorf("Expected entity_key tutor-a, got %q", resp.EntityKey)
	}
	if resp.Count != 3 || len(resp.Windows) != 3 {
		t.Errorf("Expected 3 windows, got count=%d len=%d", resp.Count, len(resp.Windows))
	}
	if db.lastEntityKey != "tutor-a" {
		t.Errorf("Expected store queried for tutor-a, got %q", db.lastEntityKey)
	}
}

func TestTutorMetrics_EmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	h, _, _, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors/tutor-new/metrics", nil)
	req = withURLParam(req, "entityKey", "tutor-new")
	w := httptest.NewRecorder()

	h.TutorMetrics(w, req)

	assertStatusCode(t, w.Code, http.StatusOK, "TutorMetrics_Empty")

	var resp TutorMetricsResponse
	decodeData(t, decodeEnvelope(t, w, "TutorMetrics_Empty"), &resp, "TutorMetrics_Empty")

	if resp.Count != 0 {
		t.Errorf("Expected count 0, got %d", resp.Count)
	}
	if resp.Windows == nil {
		t.Error("Expected empty list, got null")
	}
}

func TestTutorMetrics_MissingKeyRejected(t *testing.T) {
	t.Parallel()

	h, _, _, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors//metrics", nil)
	req = withURLParam(req, "entityKey", "")
	w := httptest.NewRecorder()

	h.TutorMetrics(w, req)

	assertStatusCode(t, w.Code, http.StatusBadRequest, "TutorMetrics_MissingKey")

	envelope := decodeEnvelope(t, w, "TutorMetrics_MissingKey")
	if envelope.Error == nil || envelope.Error.Code != ErrCodeValidationFailed {
		t.Errorf("Expected %s error, got %+v", ErrCodeValidationFailed, envelope.Error)
	}
}

func TestTutorMetrics_OverlongKeyRejected(t *testing.T) {
	t.Parallel()

	h, _, _, _, _ := newTestHandler()

	key := strings.Repeat("k", 129)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors/"+key+"/metrics", nil)
	req = withURLParam(req, "entityKey", key)
	w := httptest.NewRecorder()

	h.TutorMetrics(w, req)

	assertStatusCode(t, w.Code, http.StatusBadRequest, "TutorMetrics_OverlongKey")
}

func TestTutorMetrics_DatabaseErrorIs500(t *testing.T) {
	t.Parallel()

	h, db, _, _, _ := newTestHandler()
	db.windowsErr = errors.New("catalog lookup failed")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors/tutor-a/metrics", nil)
	req = withURLParam(req, "entityKey", "tutor-a")
	w := httptest.NewRecorder()

	h.TutorMetrics(w, req)

	assertStatusCode(t, w.Code, http.StatusInternalServerError, "TutorMetrics_DBError")

	envelope := decodeEnvelope(t, w, "TutorMetrics_DBError")
	if envelope.Error == nil || envelope.Error.Code != ErrCodeDatabaseError {
		t.Errorf("Expected %s error, got %+v", ErrCodeDatabaseError, envelope.Error)
	}
}

// =============================================================================
// TutorMetricsHistory Tests
// =============================================================================

func TestTutorMetricsHistory_QueriesWindow(t *testing.T) {
	t.Parallel()

	h, db, _, _, _ := newTestHandler()
	db.history = []models.WindowResult{
		windowRow("tutor-a", "7d"),
		windowRow("tutor-a", "7d"),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors/tutor-a/metrics/history?window=7d&limit=10", nil)
	req = withURLParam(req, "entityKey", "tutor-a")
	w := httptest.NewRecorder()

	h.TutorMetricsHistory(w, req)

	assertStatusCode(t, w.Code, http.StatusOK, "History")

	var resp TutorMetricsHistoryResponse
	decodeData(t, decodeEnvelope(t, w, "History"), &resp, "History")

	if resp.WindowID != "7d" || resp.Count != 2 {
		t.Errorf("Expected 2 rows for 7d, got %+v", resp)
	}
	if db.lastWindowID != "7d" || db.lastLimit != 10 {
		t.Errorf("Expected store queried with window=7d limit=10, got %q/%d", db.lastWindowID, db.lastLimit)
	}
}

func TestTutorMetricsHistory_DefaultLimit(t *testing.T) {
	t.Parallel()

	h, db, _, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors/tutor-a/metrics/history?window=30d", nil)
	req = withURLParam(req, "entityKey", "tutor-a")
	w := httptest.NewRecorder()

	h.TutorMetricsHistory(w, req)

	assertStatusCode(t, w.Code, http.StatusOK, "History_DefaultLimit")

	if db.lastLimit != 30 {
		t.Errorf("Expected default limit 30, got %d", db.lastLimit)
	}
}

func TestTutorMetricsHistory_InvalidWindowRejected(t *testing.T) {
	t.Parallel()

	h, _, _, _, _ := newTestHandler()

	for _, window := range []string{"", "7x", "0d", "monthly"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors/tutor-a/metrics/history?window="+window, nil)
		req = withURLParam(req, "entityKey", "tutor-a")
		w := httptest.NewRecorder()

		h.TutorMetricsHistory(w, req)

		assertStatusCode(t, w.Code, http.StatusBadRequest, "History_InvalidWindow("+window+")")
	}
}

func TestTutorMetricsHistory_LimitOutOfRangeRejected(t *testing.T) {
	t.Parallel()

	h, _, _, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors/tutor-a/metrics/history?window=7d&limit=5000", nil)
	req = withURLParam(req, "entityKey", "tutor-a")
	w := httptest.NewRecorder()

	h.TutorMetricsHistory(w, req)

	assertStatusCode(t, w.Code, http.StatusBadRequest, "History_LimitTooHigh")
}
