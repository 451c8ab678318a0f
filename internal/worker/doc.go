// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package worker assembles the recomputation pipeline: consumer-group
// reads, fact recording, debounce coalescing, and dispatch into the
// recomputation orchestrator, with acknowledgment deferred until the
// covering recomputation has finished.
//
// Architecture:
//
//	event log ──▶ readLoop ──▶ processEntry ──▶ fact store
//	                               │
//	                               ├─ track entry under its tutor key
//	                               └─ aggregator.OnEvent(key)
//
//	aggregator fires ──▶ commandLoop ──▶ take tracked entries
//	                                         │
//	                                         ▼
//	                            orchestrator.Dispatch(key, events, done)
//	                                         │
//	                    done(results) ──▶ ack entries (or retry/dead-letter)
//
// # Recovery
//
// Start runs a reclaim pass before the first read: entries claimed by a
// consumer that crashed or stalled past the claim idle threshold are
// redelivered here and processed like fresh ones. Fact recording is
// idempotent and window upserts are keyed, so reprocessing converges on
// the same rows instead of duplicating them.
//
// # Acknowledgment
//
// An entry is acknowledged only after a recomputation covering it has
// persisted at least one window. A run that saves nothing leaves its
// entries unacknowledged for redelivery, unless an entry is on its final
// delivery, in which case it is recorded to the dead-letter store and
// terminated so it cannot poison the group forever. Entries that fail to
// decode or validate skip the retry ladder entirely: they will never
// parse better on redelivery.
//
// # Shutdown
//
// Stop drains in order: the read loop exits, held debounce state is
// flushed, the command loop drains every flushed command into the
// orchestrator, and the orchestrator drain waits for in-flight runs.
// Entries still tracked after the drain stay unacknowledged; redelivery
// hands them to the next consumer.
//
// # Usage
//
//	w := worker.New(worker.DefaultConfig(), group, db, agg, orch, dlq, registry)
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Stop()
//
// Start returns once the group is joined and the loops are running; it
// does not block for the lifetime of the worker.
package worker
