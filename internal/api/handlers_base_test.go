// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/praeceptor/internal/config"
	"github.com/tomtom215/praeceptor/internal/deadletter"
	"github.com/tomtom215/praeceptor/internal/models"
	"github.com/tomtom215/praeceptor/internal/stats"
)

// =============================================================================
// Mocks
// =============================================================================

type mockMetricsStore struct {
	pingErr      error
	windows      []models.WindowResult
	windowsErr   error
	history      []models.WindowResult
	historyErr   error
	count        int64
	breakerState string

	lastEntityKey string
	lastWindowID  string
	lastLimit     int
}

func (m *mockMetricsStore) Ping(_ context.Context) error {
	return m.pingErr
}

func (m *mockMetricsStore) GetWindowMetrics(_ context.Context, entityKey string) ([]models.WindowResult, error) {
	m.lastEntityKey = entityKey
	return m.windows, m.windowsErr
}

func (m *mockMetricsStore) GetWindowMetricsHistory(_ context.Context, entityKey, windowID string, limit int) ([]models.WindowResult, error) {
	m.lastEntityKey = entityKey
	m.lastWindowID = windowID
	m.lastLimit = limit
	return m.history, m.historyErr
}

func (m *mockMetricsStore) CountWindowMetrics(_ context.Context) (int64, error) {
	return m.count, nil
}

func (m *mockMetricsStore) BreakerState() string {
	if m.breakerState == "" {
		return "closed"
	}
	return m.breakerState
}

type mockPublisher struct {
	err    error
	events []*models.SessionEvent
}

func (m *mockPublisher) PublishEvent(_ context.Context, event *models.SessionEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

type mockWorkerStatus struct {
	running bool
	info    models.ConsumerInfo
	pending int
	lastAt  time.Time
}

func (m *mockWorkerStatus) IsRunning() bool                   { return m.running }
func (m *mockWorkerStatus) ConsumerInfo() models.ConsumerInfo { return m.info }
func (m *mockWorkerStatus) PendingEntries() int               { return m.pending }
func (m *mockWorkerStatus) LastEventAt() time.Time            { return m.lastAt }

type mockLogConn struct {
	connected bool
}

func (m *mockLogConn) IsConnected() bool { return m.connected }

type mockDeadLetterStore struct {
	entries   []*models.DeadLetterEntry
	listErr   error
	deleteErr error
	stats     deadletter.Stats
	deleted   []uint64
}

func (m *mockDeadLetterStore) List(_ context.Context) ([]*models.DeadLetterEntry, error) {
	return m.entries, m.listErr
}

func (m *mockDeadLetterStore) Get(_ context.Context, id uint64) (*models.DeadLetterEntry, error) {
	for _, entry := range m.entries {
		if entry.EntryID == id {
			return entry, nil
		}
	}
	return nil, deadletter.ErrEntryNotFound
}

func (m *mockDeadLetterStore) Delete(_ context.Context, id uint64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, entry := range m.entries {
		if entry.EntryID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			m.deleted = append(m.deleted, id)
			return nil
		}
	}
	return deadletter.ErrEntryNotFound
}

func (m *mockDeadLetterStore) Count(_ context.Context) (int64, error) {
	return int64(len(m.entries)), nil
}

func (m *mockDeadLetterStore) Stats() deadletter.Stats {
	return m.stats
}

// =============================================================================
// Helpers
// =============================================================================

// testEnvelope mirrors APIResponse with raw data for typed re-decoding.
type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func assertStatusCode(t *testing.T, got, want int, testName string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected status %d, got %d", testName, want, got)
	}
}

// decodeEnvelope decodes the standardized response envelope.
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, testName string) *testEnvelope {
	t.Helper()

	var envelope testEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("%s: failed to decode response: %v", testName, err)
	}
	return &envelope
}

// decodeData re-decodes the envelope's data field into out.
func decodeData(t *testing.T, envelope *testEnvelope, out interface{}, testName string) {
	t.Helper()

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("%s: failed to decode data: %v", testName, err)
	}
}

// withURLParam injects a chi URL parameter into the request context, for
// calling handlers directly without routing.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// testConfig returns a config with debounce settings the stats tests
// can assert against.
func testConfig() *config.Config {
	return &config.Config{
		Debounce: config.DebounceConfig{
			Enabled:         true,
			WindowSeconds:   30,
			MaxDelaySeconds: 120,
		},
	}
}

// newTestHandler builds a handler with every dependency healthy.
func newTestHandler() (*Handler, *mockMetricsStore, *mockPublisher, *mockWorkerStatus, *mockLogConn) {
	db := &mockMetricsStore{}
	publisher := &mockPublisher{}
	worker := &mockWorkerStatus{
		running: true,
		info: models.ConsumerInfo{
			GroupName:  "metrics-workers",
			ConsumerID: "worker-1",
			Running:    true,
		},
	}
	logConn := &mockLogConn{connected: true}

	h := NewHandler(db, stats.NewRegistry(), testConfig())
	h.SetEventPublisher(publisher)
	h.SetWorker(worker)
	h.SetEventLogConn(logConn)

	return h, db, publisher, worker, logConn
}

// validIngressBody returns a well-formed ingress request body.
func validIngressBody(t *testing.T, entityKey string) []byte {
	t.Helper()

	req := PublishEventRequest{
		EntityKey: entityKey,
		Session: models.SessionFact{
			SessionID:       "7b7f87ec-6a25-4d49-8c0e-2f4f1f6f2a10",
			StudentKey:      "student-1",
			Subject:         "algebra",
			StartedAt:       time.Now().Add(-2 * time.Hour).UTC(),
			DurationMinutes: 60,
			Rating:          4.5,
			EarningsCents:   4500,
			Completed:       true,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal ingress body: %v", err)
	}
	return body
}
