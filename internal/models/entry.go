// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package models

import "time"

// StreamEntry is one claimed entry from the event log as the worker sees
// it: the log-assigned id, the routing key, the raw payload, and enough
// delivery metadata to tell fresh deliveries from reclaimed ones.
type StreamEntry struct {
	// EntryID is the log-assigned stream sequence (monotonic).
	EntryID uint64 `json:"entry_id"`

	// EntityKey is the tutor key extracted from the entry headers, used
	// for debounce routing before the payload is decoded.
	EntityKey string `json:"entity_key"`

	// Payload is the raw event bytes.
	Payload []byte `json:"payload"`

	// EnqueuedAt is when the log accepted the entry.
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Deliveries counts delivery attempts. Greater than one means the
	// entry was redelivered after a consumer crashed or stalled past the
	// claim idle threshold.
	Deliveries uint64 `json:"deliveries"`
}

// Redelivered reports whether this entry was reclaimed from an earlier
// failed or stalled delivery.
func (e *StreamEntry) Redelivered() bool {
	return e.Deliveries > 1
}
