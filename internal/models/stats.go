// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package models

import (
	"time"
)

// WorkerStats is the process-wide counter snapshot. All counters are
// monotonically increasing except PendingCount, which tracks the live
// number of debounce records in PENDING/FIRING state.
type WorkerStats struct {
	EventsProcessed         int64 `json:"events_processed"`
	RecomputationsTriggered int64 `json:"recomputations_triggered"`
	WindowsSaved            int64 `json:"windows_saved"`
	Errors                  int64 `json:"errors"`
	EntitiesUpdated         int64 `json:"entities_updated"`
	EntriesReclaimed        int64 `json:"entries_reclaimed"`
	EntriesDeadLettered     int64 `json:"entries_dead_lettered"`
	PendingCount            int64 `json:"pending_count"`
}

// HealthStatus is the health check response.
type HealthStatus struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	DatabaseConnected bool    `json:"database_connected"`
	EventLogConnected bool    `json:"event_log_connected"`
	WorkerRunning     bool    `json:"worker_running"`
	Uptime            float64 `json:"uptime_seconds"`
}

// StatsDetail is the full observability snapshot served by the ops API:
// the worker counters plus per-component detail.
type StatsDetail struct {
	Worker    WorkerStats   `json:"worker"`
	Consumer  ConsumerInfo  `json:"consumer"`
	Debounce  DebounceInfo  `json:"debounce"`
	Persister PersisterInfo `json:"persister"`
	StartedAt time.Time     `json:"started_at"`
}

// ConsumerInfo describes this member's view of the consumer group.
type ConsumerInfo struct {
	GroupName  string `json:"group_name"`
	ConsumerID string `json:"consumer_id"`
	Running    bool   `json:"running"`
}

// DebounceInfo describes the aggregator configuration and live state.
type DebounceInfo struct {
	Enabled         bool  `json:"enabled"`
	WindowSeconds   int   `json:"window_seconds"`
	MaxDelaySeconds int   `json:"max_delay_seconds"`
	PendingKeys     int64 `json:"pending_keys"`
}

// PersisterInfo describes the persistence writer's breaker state.
type PersisterInfo struct {
	BreakerState string `json:"breaker_state"`
}

// DeadLetterEntry is a permanently failed entry set aside for inspection
// instead of silent loss. The original entry was acknowledged to keep the
// stream moving.
type DeadLetterEntry struct {
	EntryID    uint64    `json:"entry_id"`
	EntityKey  string    `json:"entity_key"`
	Reason     string    `json:"reason"`
	Category   string    `json:"category"`
	Payload    []byte    `json:"payload,omitempty"`
	Deliveries uint64    `json:"deliveries"`
	FirstSeen  time.Time `json:"first_seen"`
	RecordedAt time.Time `json:"recorded_at"`
}
