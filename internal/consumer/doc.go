// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package consumer implements the consumer-group protocol over JetStream
// durable pull consumers.
//
// A group is a durable consumer on the SESSIONS stream; every worker
// process that joins with the same group name shares the unacknowledged
// backlog, and the server delivers each entry to exactly one active
// member at a time. Claims are implicit: a delivered entry stays claimed
// by its member until acknowledged, terminated, or idle past the claim
// threshold (AckWait), after which the server redelivers it to some
// member. Redelivered entries report Deliveries > 1 so recovery work is
// observable.
//
// # Lifecycle
//
//	manager, _ := consumer.NewGroupManager(stream, cfg, registry)
//	if err := manager.JoinGroup(ctx); err != nil { ... }
//
//	// Recovery before progress: the first read after joining surfaces
//	// entries abandoned by crashed members ahead of steady-state work.
//	entries, _ := manager.ClaimStale(ctx)
//	process(entries)
//
//	for {
//		entries, err := manager.ReadBatch(ctx, cfg.BatchSize)
//		...
//	}
//
// Entries held across slow processing (debounce holds, long
// recomputations) must have their claims extended with
// Entry.ExtendClaim before the idle threshold elapses, or the server
// will hand them to another member while the first is still working.
//
// Acknowledgements use synchronous double-acks with bounded retry;
// an entry whose ack permanently fails stays claimed and is eventually
// redelivered, never silently dropped. Poison entries are terminated
// with a reason, which stops redelivery without blocking the stream.
package consumer
