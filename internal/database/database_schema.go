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

// schemaTimeout bounds schema bootstrap. Table creation is fast; the
// generous limit covers WAL replay on large database files.
const schemaTimeout = 60 * time.Second

// initialize creates the schema. Idempotent: every statement is
// CREATE ... IF NOT EXISTS, so restarts and multiple workers sharing a
// database file are safe.
func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	return db.createTables(ctx)
}

// createTables runs the table and index creation statements in order.
func (db *DB) createTables(ctx context.Context) error {
	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create table failed: %w", err)
		}
	}
	return nil
}

// getTableCreationQueries returns the DDL for the metrics schema.
//
// session_facts is keyed by session_id so redelivered events converge to one
// row. tutor_window_metrics is keyed (tutor_key, window_id,
// calculation_date) so same-day recomputations overwrite.
func getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS session_facts (
			session_id       VARCHAR PRIMARY KEY,
			tutor_key        VARCHAR NOT NULL,
			student_key      VARCHAR NOT NULL,
			subject          VARCHAR NOT NULL,
			started_at       TIMESTAMP NOT NULL,
			duration_minutes INTEGER NOT NULL,
			rating           DOUBLE NOT NULL DEFAULT 0,
			earnings_cents   BIGINT NOT NULL DEFAULT 0,
			completed        BOOLEAN NOT NULL DEFAULT false,
			event_id         VARCHAR,
			event_time       TIMESTAMP NOT NULL,
			recorded_at      TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,

		`CREATE INDEX IF NOT EXISTS idx_session_facts_tutor_started
			ON session_facts (tutor_key, started_at)`,

		`CREATE TABLE IF NOT EXISTS tutor_window_metrics (
			tutor_key        VARCHAR NOT NULL,
			window_id        VARCHAR NOT NULL,
			calculation_date DATE NOT NULL,
			metric_values    JSON NOT NULL,
			computed_at      TIMESTAMP NOT NULL,
			status           VARCHAR NOT NULL DEFAULT 'ok',
			error            VARCHAR,
			PRIMARY KEY (tutor_key, window_id, calculation_date)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_window_metrics_tutor
			ON tutor_window_metrics (tutor_key, computed_at)`,
	}
}
