// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

/*
Package metrics provides Prometheus instrumentation for the worker pipeline.

All metrics are registered with the default registry via promauto at package
init time and exposed on the ops API's /metrics endpoint.

# Metric Groups

  - Stream consumption: entries read, acked, terminated, reclaimed
  - Debounce: coalesced events, fires, pending tutors
  - Recomputation: dispatches, duration, failures, queued merges
  - Database: query duration and errors per operation and table
  - Dead letters: additions, removals, expiries, current depth
  - Circuit breaker: state and transitions for the persistence path
  - Ops API: request counts, latency, active requests
  - System: build info and uptime

# Usage

Record helpers keep call sites terse:

	start := time.Now()
	err := db.UpsertWindowMetrics(ctx, ...)
	metrics.RecordDBQuery("UPSERT", "tutor_window_metrics", time.Since(start), err)

Gauges that mirror internal state (pending tutors, dead-letter depth) are
updated by their owning components rather than scraped lazily.
*/
package metrics
