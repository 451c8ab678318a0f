// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/praeceptor/internal/logging"
	"github.com/tomtom215/praeceptor/internal/models"
)

// version reported by the health endpoints.
const version = "1.0.0"

// Healthz handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":   true,
		"version": version,
		"uptime":  time.Since(h.startTime).Seconds(),
	})
}

// Readyz handles readiness probe requests (Kubernetes-style).
// Returns 200 OK only when the database answers a ping, the event log
// connection is up, and the worker is consuming. A 503 keeps traffic
// away while a dependency is down; the body names the failing leg.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil
	logConnected := h.logConn != nil && h.logConn.IsConnected()
	workerRunning := h.worker != nil && h.worker.IsRunning()

	ready := dbConnected && logConnected && workerRunning

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	health := models.HealthStatus{
		Status:            status,
		Version:           version,
		DatabaseConnected: dbConnected,
		EventLogConnected: logConnected,
		WorkerRunning:     workerRunning,
		Uptime:            time.Since(h.startTime).Seconds(),
	}

	// Not-ready is a state, not an error: the health payload rides in
	// data either way, only the status code changes.
	rw := NewResponseWriter(w, r)
	rw.writeJSON(statusCode, APIResponse{
		Success: ready,
		Data:    health,
		Meta: &APIMeta{
			Timestamp:  time.Now(),
			DurationMs: time.Since(rw.startTime).Milliseconds(),
			RequestID:  logging.RequestIDFromContext(r.Context()),
		},
	})
}
