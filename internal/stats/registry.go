// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package stats maintains the worker's operational counters. A single
// Registry is shared by the consumer, the debouncer, the orchestrator, and
// the persistence path; all updates are atomic and Snapshot returns a
// consistent-enough copy for the ops API without locking writers.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/tomtom215/praeceptor/internal/models"
)

// Counter names accepted by Increment. Typed helpers are preferred at call
// sites; the name-based form exists for callers that hold a stat name as
// data (the ops API, tests).
const (
	StatEventsProcessed         = "events_processed"
	StatRecomputationsTriggered = "recomputations_triggered"
	StatWindowsSaved            = "windows_saved"
	StatErrors                  = "errors"
	StatEntitiesUpdated         = "entities_updated"
	StatEntriesReclaimed        = "entries_reclaimed"
	StatEntriesDeadLettered     = "entries_dead_lettered"
)

// Registry holds the worker's live counters.
type Registry struct {
	eventsProcessed         atomic.Int64
	recomputationsTriggered atomic.Int64
	windowsSaved            atomic.Int64
	errors                  atomic.Int64
	entitiesUpdated         atomic.Int64
	entriesReclaimed        atomic.Int64
	entriesDeadLettered     atomic.Int64
	pendingCount            atomic.Int64

	startedAt time.Time
}

// NewRegistry returns a Registry with all counters at zero and the start
// time pinned to now.
func NewRegistry() *Registry {
	return &Registry{startedAt: time.Now()}
}

// Increment adds one to the named counter. Unknown names are ignored so a
// stale caller cannot panic the pipeline.
func (r *Registry) Increment(name string) {
	switch name {
	case StatEventsProcessed:
		r.eventsProcessed.Add(1)
	case StatRecomputationsTriggered:
		r.recomputationsTriggered.Add(1)
	case StatWindowsSaved:
		r.windowsSaved.Add(1)
	case StatErrors:
		r.errors.Add(1)
	case StatEntitiesUpdated:
		r.entitiesUpdated.Add(1)
	case StatEntriesReclaimed:
		r.entriesReclaimed.Add(1)
	case StatEntriesDeadLettered:
		r.entriesDeadLettered.Add(1)
	}
}

// AddEventsProcessed adds n processed events.
func (r *Registry) AddEventsProcessed(n int64) {
	r.eventsProcessed.Add(n)
}

// IncRecomputationsTriggered counts a recomputation run being dispatched.
func (r *Registry) IncRecomputationsTriggered() {
	r.recomputationsTriggered.Add(1)
}

// AddWindowsSaved adds n persisted window rows.
func (r *Registry) AddWindowsSaved(n int64) {
	r.windowsSaved.Add(n)
}

// IncErrors counts a pipeline error.
func (r *Registry) IncErrors() {
	r.errors.Add(1)
}

// IncEntitiesUpdated counts a tutor whose metrics were refreshed.
func (r *Registry) IncEntitiesUpdated() {
	r.entitiesUpdated.Add(1)
}

// AddEntriesReclaimed adds n entries reclaimed from failed consumers.
func (r *Registry) AddEntriesReclaimed(n int64) {
	r.entriesReclaimed.Add(n)
}

// IncEntriesDeadLettered counts a poison entry moved to the dead-letter store.
func (r *Registry) IncEntriesDeadLettered() {
	r.entriesDeadLettered.Add(1)
}

// SetPending records the current number of tutors with a pending or firing
// recomputation.
func (r *Registry) SetPending(n int64) {
	r.pendingCount.Store(n)
}

// Pending returns the current pending-tutor count.
func (r *Registry) Pending() int64 {
	return r.pendingCount.Load()
}

// Errors returns the current error count.
func (r *Registry) Errors() int64 {
	return r.errors.Load()
}

// StartedAt returns when the registry (and so the worker) started.
func (r *Registry) StartedAt() time.Time {
	return r.startedAt
}

// Uptime returns how long the worker has been running.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.startedAt)
}

// Snapshot returns a point-in-time copy of all counters. Counters are read
// individually; the snapshot is not a single atomic cut but every value in
// it was true at some instant during the call.
func (r *Registry) Snapshot() models.WorkerStats {
	return models.WorkerStats{
		EventsProcessed:         r.eventsProcessed.Load(),
		RecomputationsTriggered: r.recomputationsTriggered.Load(),
		WindowsSaved:            r.windowsSaved.Load(),
		Errors:                  r.errors.Load(),
		EntitiesUpdated:         r.entitiesUpdated.Load(),
		EntriesReclaimed:        r.entriesReclaimed.Load(),
		EntriesDeadLettered:     r.entriesDeadLettered.Load(),
		PendingCount:            r.pendingCount.Load(),
	}
}
