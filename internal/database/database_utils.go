// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package database

import (
	"context"
	"fmt"
	"time"
)

// defaultQueryTimeout bounds queries whose callers did not set a deadline.
const defaultQueryTimeout = 30 * time.Second

// ensureContext returns a context with a deadline, applying the default
// query timeout when the caller's context has none.
func ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// Checkpoint forces DuckDB to merge the write-ahead log into the database
// file. Called on close and available to operators via tests and tooling.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// RecordCounts holds per-table row counts for the readiness probe and tests.
type RecordCounts struct {
	SessionFacts  int64 `json:"session_facts"`
	WindowMetrics int64 `json:"window_metrics"`
}

// GetRecordCounts returns the row counts of both tables.
func (db *DB) GetRecordCounts(ctx context.Context) (RecordCounts, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var counts RecordCounts

	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM session_facts").Scan(&counts.SessionFacts); err != nil {
		return counts, fmt.Errorf("count session_facts: %w", err)
	}

	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tutor_window_metrics").Scan(&counts.WindowMetrics); err != nil {
		return counts, fmt.Errorf("count tutor_window_metrics: %w", err)
	}

	return counts, nil
}
