// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package deadletter provides a durable poison-entry store using BadgerDB.
//
// Entries that cannot be processed (malformed payloads, permanent
// failures at max deliveries) are acknowledged on the stream to keep it
// moving and recorded here for operator inspection. Without the store a
// poison entry would either block its consumer forever or vanish
// silently; the dead-letter store trades neither.
//
// # Architecture
//
// The store sits at the end of the worker's failure path:
//
//	Entry → process → permanent failure / max deliveries
//	                → Record (ACID, fsync) → ack on stream
//
// Recorded entries are inspectable and deletable over the ops API.
//
// # Components
//
//   - Store: BadgerDB-backed record of poison entries
//   - Sweeper: Background goroutine that enforces retention and runs
//     value-log garbage collection
//
// # Usage
//
//	store, err := deadletter.Open(&cfg.DeadLetter)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	id, err := store.Record(ctx, &models.DeadLetterEntry{
//	    EntityKey:  "tutor-42",
//	    Reason:     "unmarshal event: unexpected end of JSON input",
//	    Category:   "validation",
//	    Payload:    raw,
//	    Deliveries: 5,
//	})
//
//	sweeper := deadletter.NewSweeper(store)
//	sweeper.Start(ctx)
//	defer sweeper.Stop()
//
// # Retention
//
// Entries carry a native BadgerDB TTL equal to the configured retention
// as a backstop; the sweeper additionally removes expired entries on a
// fixed cadence so expiry is visible in the metrics, then reclaims
// value-log space.
//
// # Metrics
//
//	dead_letters_added_total    # Entries recorded, by category
//	dead_letters_removed_total  # Entries deleted by operators
//	dead_letters_expired_total  # Entries removed by retention
//	dead_letter_entries         # Current store depth
//
// # Thread Safety
//
// All store operations are safe for concurrent use.
package deadletter
