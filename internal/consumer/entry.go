// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package consumer

import (
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/praeceptor/internal/models"
)

// entityKeyHeader is the message header carrying the tutor key, set by
// the publisher so entries can be routed to debounce records without
// decoding the payload.
const entityKeyHeader = "entity_key"

// Entry is one claimed stream entry: the decoded log metadata plus the
// underlying message for ack, term, and claim-extension operations.
type Entry struct {
	models.StreamEntry

	msg jetstream.Msg
}

// wrapMessage builds an Entry from a fetched message. Log metadata that
// cannot be read leaves the zero values in place; the entry is still
// processable from its payload.
func wrapMessage(msg jetstream.Msg) *Entry {
	entry := &Entry{
		StreamEntry: models.StreamEntry{
			EntityKey:  msg.Headers().Get(entityKeyHeader),
			Payload:    msg.Data(),
			Deliveries: 1,
		},
		msg: msg,
	}

	if meta, err := msg.Metadata(); err == nil {
		entry.EntryID = meta.Sequence.Stream
		entry.EnqueuedAt = meta.Timestamp
		entry.Deliveries = meta.NumDelivered
	}

	return entry
}

// ID returns the log-assigned stream sequence.
func (e *Entry) ID() uint64 {
	return e.EntryID
}

// Subject returns the log subject the entry was published under.
func (e *Entry) Subject() string {
	return e.msg.Subject()
}

// Age returns how long the entry has been in the log.
func (e *Entry) Age() time.Duration {
	if e.EnqueuedAt.IsZero() {
		return 0
	}
	return time.Since(e.EnqueuedAt)
}

// ExtendClaim resets the entry's idle clock so the server does not
// redeliver it while this member is still working on it. Callers holding
// entries longer than the claim idle threshold must extend periodically.
func (e *Entry) ExtendClaim() error {
	return e.msg.InProgress()
}
