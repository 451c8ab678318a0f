// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package database provides DuckDB-backed persistence for session facts and
// tutor window metrics.
//
// The package owns two tables:
//
//   - session_facts: one row per tutoring session, idempotent by session_id.
//     Redelivered events converge to a single row; amendments overwrite it.
//     This is the substrate the reference calculator aggregates over.
//
//   - tutor_window_metrics: one row per (tutor_key, window_id,
//     calculation_date), written with INSERT ... ON CONFLICT DO UPDATE so a
//     recomputation for the same key on the same day overwrites rather than
//     duplicates.
//
// Write paths retry transient failures (transaction conflicts, connection
// drops) with bounded exponential backoff behind a circuit breaker, and fail
// fast on DuckDB internal errors where the connection must not be reused.
// Close checkpoints the WAL so a restart never replays stale writes.
//
// The internal/database/query subpackage holds SQL WHERE-clause building
// helpers for filtered reads over session_facts and tutor_window_metrics.
package database
