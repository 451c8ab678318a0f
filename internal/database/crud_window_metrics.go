// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/praeceptor/internal/faults"
	"github.com/tomtom215/praeceptor/internal/metrics"
	"github.com/tomtom215/praeceptor/internal/models"
	"github.com/tomtom215/praeceptor/internal/validation"
)

const upsertWindowMetricsQuery = `
INSERT INTO tutor_window_metrics (
	tutor_key, window_id, calculation_date, metric_values,
	computed_at, status, error
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (tutor_key, window_id, calculation_date) DO UPDATE SET
	metric_values = EXCLUDED.metric_values,
	computed_at   = EXCLUDED.computed_at,
	status        = EXCLUDED.status,
	error         = EXCLUDED.error`

// UpsertWindowMetrics persists one window result, keyed
// (tutor_key, window_id, calculation_date). A recomputation for the same
// tutor and window on the same day overwrites the existing row, so the
// table never accumulates duplicates no matter how often an entity is
// redelivered or recomputed.
func (db *DB) UpsertWindowMetrics(ctx context.Context, result *models.WindowResult) error {
	if result.EntityKey == "" {
		return faults.Permanent(faults.CategoryValidation,
			"window result missing entity key", nil)
	}
	if !validation.IsWindowID(result.WindowID) {
		return faults.Permanent(faults.CategoryValidation,
			fmt.Sprintf("window result has invalid window id %q", result.WindowID), nil)
	}

	calcDate, err := time.Parse("2006-01-02", result.CalculationDate)
	if err != nil {
		return faults.Permanent(faults.CategoryValidation,
			fmt.Sprintf("window result has invalid calculation date %q", result.CalculationDate), err)
	}

	payload, err := json.Marshal(result.MetricValues)
	if err != nil {
		return faults.Permanent(faults.CategoryValidation,
			"window result metric values not serializable", err)
	}

	unlock := db.lockTutor(result.EntityKey)
	defer unlock()

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err = db.execWithRetry(ctx, "upsert_window_metrics", func(ctx context.Context) error {
		stmt, err := db.getStmt(ctx, upsertWindowMetricsQuery)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			result.EntityKey, result.WindowID, calcDate,
			string(payload), result.ComputedAt.UTC(), result.Status,
			nullableString(result.Error),
		)
		return err
	})

	metrics.RecordDBQuery("upsert_window_metrics", "tutor_window_metrics", time.Since(start), err)
	if err == nil {
		metrics.RecordWindowSaved(result.WindowID)
	}
	return err
}

// GetWindowMetrics returns the most recent persisted row per window for one
// tutor. This is the dashboard read path: the latest calculation_date wins
// for each window_id.
func (db *DB) GetWindowMetrics(ctx context.Context, tutorKey string) ([]models.WindowResult, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	const query = `
SELECT tutor_key, window_id, strftime(calculation_date, '%Y-%m-%d'),
       metric_values, computed_at, status, COALESCE(error, '')
FROM tutor_window_metrics
WHERE tutor_key = ?
QUALIFY row_number() OVER (PARTITION BY window_id ORDER BY calculation_date DESC) = 1
ORDER BY window_id`

	return db.queryWindowMetrics(ctx, query, tutorKey)
}

// GetWindowMetricsHistory returns every persisted row for one tutor and
// window ordered newest first, bounded by limit.
func (db *DB) GetWindowMetricsHistory(ctx context.Context, tutorKey, windowID string, limit int) ([]models.WindowResult, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 30
	}

	const query = `
SELECT tutor_key, window_id, strftime(calculation_date, '%Y-%m-%d'),
       metric_values, computed_at, status, COALESCE(error, '')
FROM tutor_window_metrics
WHERE tutor_key = ? AND window_id = ?
ORDER BY calculation_date DESC
LIMIT ?`

	return db.queryWindowMetrics(ctx, query, tutorKey, windowID, limit)
}

// GetWindowMetricsRow retrieves one row by its full key.
// Returns ErrNotFound when the row does not exist.
func (db *DB) GetWindowMetricsRow(ctx context.Context, tutorKey, windowID, calculationDate string) (*models.WindowResult, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	const query = `
SELECT tutor_key, window_id, strftime(calculation_date, '%Y-%m-%d'),
       metric_values, computed_at, status, COALESCE(error, '')
FROM tutor_window_metrics
WHERE tutor_key = ? AND window_id = ? AND calculation_date = ?`

	rows, err := db.queryWindowMetrics(ctx, query, tutorKey, windowID, calculationDate)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// CountWindowMetrics returns the total number of persisted window rows.
func (db *DB) CountWindowMetrics(ctx context.Context) (int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var count int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tutor_window_metrics").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count window metrics: %w", err)
	}
	return count, nil
}

// queryWindowMetrics runs a window metrics SELECT and scans the rows,
// decoding the metric_values JSON column back into the metrics map.
func (db *DB) queryWindowMetrics(ctx context.Context, query string, args ...interface{}) ([]models.WindowResult, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query window metrics: %w", err)
	}
	defer closeWithLog(rows, "window metrics rows")

	var results []models.WindowResult
	for rows.Next() {
		var (
			result  models.WindowResult
			rawJSON string
		)
		if err := rows.Scan(
			&result.EntityKey, &result.WindowID, &result.CalculationDate,
			&rawJSON, &result.ComputedAt, &result.Status, &result.Error,
		); err != nil {
			return nil, fmt.Errorf("scan window metrics row: %w", err)
		}
		if rawJSON != "" {
			if err := json.Unmarshal([]byte(rawJSON), &result.MetricValues); err != nil {
				return nil, fmt.Errorf("decode metric values for %s/%s: %w",
					result.EntityKey, result.WindowID, err)
			}
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate window metrics rows: %w", err)
	}
	return results, nil
}

// nullableString maps the empty string to SQL NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
