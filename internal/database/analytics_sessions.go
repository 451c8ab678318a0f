// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// This file contains the session fact aggregation behind the reference
// metric calculator.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/praeceptor/internal/metrics"
	"github.com/tomtom215/praeceptor/internal/models"
)

// aggregateSessionMetricsQuery computes the tutor metric set over one
// trailing window in a single pass.
//
// Metric semantics:
//   - sessions_completed counts held sessions only.
//   - hours_taught and earnings sum over held sessions.
//   - average_rating averages held sessions that were actually rated
//     (rating 0 is the unrated sentinel, never a grade).
//   - completion_rate divides held sessions by all sessions in the window,
//     so no-shows and cancellations drag it down; 0 when the window is empty.
//
// Sums are cast to DOUBLE because DuckDB widens integer SUMs to HUGEINT,
// which the driver cannot scan into Go integers.
const aggregateSessionMetricsQuery = `
SELECT
	COUNT(*) FILTER (WHERE completed) AS sessions_completed,
	CAST(COALESCE(SUM(duration_minutes) FILTER (WHERE completed), 0) AS DOUBLE) AS minutes_taught,
	COALESCE(AVG(rating) FILTER (WHERE completed AND rating > 0), 0) AS average_rating,
	COALESCE(CAST(COUNT(*) FILTER (WHERE completed) AS DOUBLE) / NULLIF(COUNT(*), 0), 0) AS completion_rate,
	CAST(COALESCE(SUM(earnings_cents) FILTER (WHERE completed), 0) AS DOUBLE) AS earnings_cents
FROM session_facts
WHERE tutor_key = ? AND started_at >= ? AND started_at <= ?`

// AggregateSessionMetrics computes the metric set for one tutor over the
// trailing window [since, until]. Both bounds apply to started_at.
func (db *DB) AggregateSessionMetrics(ctx context.Context, tutorKey string, since, until time.Time) (models.MetricValues, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var (
		sessionsCompleted int64
		minutesTaught     float64
		averageRating     float64
		completionRate    float64
		earningsCents     float64
	)

	start := time.Now()
	err := db.conn.QueryRowContext(ctx, aggregateSessionMetricsQuery,
		tutorKey, since.UTC(), until.UTC(),
	).Scan(&sessionsCompleted, &minutesTaught, &averageRating, &completionRate, &earningsCents)
	metrics.RecordDBQuery("aggregate_session_metrics", "session_facts", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("aggregate session metrics for %s: %w", tutorKey, err)
	}

	return models.MetricValues{
		models.MetricSessionsCompleted: float64(sessionsCompleted),
		models.MetricHoursTaught:       minutesTaught / 60,
		models.MetricAverageRating:     averageRating,
		models.MetricCompletionRate:    completionRate,
		models.MetricEarningsCents:     earningsCents,
	}, nil
}
