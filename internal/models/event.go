// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package models

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version. Increment on breaking
// changes to SessionEvent; consumers accept older versions.
const SchemaVersion = 1

// Event type constants. The upstream producer publishes one
// EventTypeSessionCompleted per validated tutoring session.
const (
	// EventTypeSessionCompleted marks a finished tutoring session.
	EventTypeSessionCompleted = "session.completed"
	// EventTypeSessionAmended marks a correction to an already published
	// session (re-rated, duration adjusted). Processed identically: the
	// fact row is upserted and the tutor's windows recompute.
	EventTypeSessionAmended = "session.amended"
)

// SessionEvent is the canonical payload carried by every stream entry.
//
// EntityKey identifies the tutor whose rolling metrics the event affects;
// Session carries the facts the calculator aggregates. The event is
// validated at ingress and rejected deterministically when malformed,
// before it can reach the calculator.
type SessionEvent struct {
	// Schema version for forward/backward compatibility.
	SchemaVersion int `json:"schema_version,omitempty"`

	// EventID doubles as the log's message id for publish deduplication.
	EventID   string    `json:"event_id" validate:"required,uuid4"`
	EntityKey string    `json:"entity_key" validate:"required,min=1,max=128"`
	EventType string    `json:"event_type" validate:"required,oneof=session.completed session.amended"`
	Timestamp time.Time `json:"timestamp" validate:"required"`

	Session SessionFact `json:"payload" validate:"required"`
}

// SessionFact describes one completed tutoring session. It is idempotently
// recorded by SessionID, so redelivered events converge to one fact row.
type SessionFact struct {
	SessionID       string    `json:"session_id" validate:"required,uuid4"`
	StudentKey      string    `json:"student_key" validate:"required,min=1,max=128"`
	Subject         string    `json:"subject" validate:"required,min=1,max=64"`
	StartedAt       time.Time `json:"started_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=1,max=1440"`

	// Rating is the student's 1-5 rating; 0 means not rated.
	Rating float64 `json:"rating,omitempty" validate:"min=0,max=5"`

	EarningsCents int64 `json:"earnings_cents,omitempty" validate:"min=0"`

	// Completed distinguishes held sessions from no-shows and
	// cancellations, which still publish events for completion-rate math.
	Completed bool `json:"completed"`
}

// NewSessionEvent creates an event with a fresh id, timestamp, and schema
// version for the given tutor.
func NewSessionEvent(entityKey string) *SessionEvent {
	return &SessionEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		EntityKey:     entityKey,
		EventType:     EventTypeSessionCompleted,
		Timestamp:     time.Now().UTC(),
	}
}

// EnsureSchemaVersion sets the schema version if the producer omitted it.
func (e *SessionEvent) EnsureSchemaVersion() {
	if e.SchemaVersion == 0 {
		e.SchemaVersion = SchemaVersion
	}
}

// Topic returns the log subject for this event.
// Format: sessions.<event_type suffix>, e.g. sessions.completed.
func (e *SessionEvent) Topic() string {
	switch e.EventType {
	case EventTypeSessionAmended:
		return "sessions.amended"
	default:
		return "sessions.completed"
	}
}
