// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package debounce coalesces bursts of session events per tutor into a
// single recompute command.
//
// Each tutor key owns at most one record, driven through a small state
// machine:
//
//	IDLE ──event──> PENDING ──window elapses──> FIRING ──emit──> IDLE
//	                  │  ▲
//	                  └──┘ further events slide fire_at forward
//
// While a key is PENDING, every further event extends fire_at to
// now + window (sliding window), capped at first_event_at + max_delay so
// continuous traffic cannot starve the recompute forever. When fire_at
// elapses the record transitions to FIRING and exactly one command is
// emitted for the key, covering every event accumulated since the record
// was created. Events arriving while the key is FIRING start a fresh
// PENDING record, so nothing is lost during an active computation.
//
// IDLE is represented by absence: a key has a record only while PENDING
// or FIRING, and the live record count is the pending_count the stats
// registry reports.
//
// Timers go through the Clock interface so the PENDING to FIRING
// transition is deterministic under test instead of an opaque scheduled
// closure. With debouncing disabled the aggregator degenerates to a
// pass-through that emits one command per event, which is how the
// immediate-mode pipeline tests run.
package debounce
