// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package models

import "time"

// Window result statuses.
const (
	// WindowStatusOK marks a window that was computed and persisted.
	WindowStatusOK = "ok"
	// WindowStatusFailed marks a window whose calculation or persistence
	// failed; it is retried on the entity's next triggering event.
	WindowStatusFailed = "failed"
)

// Metric names produced by the reference calculator.
const (
	MetricSessionsCompleted = "sessions_completed"
	MetricHoursTaught       = "hours_taught"
	MetricAverageRating     = "average_rating"
	MetricCompletionRate    = "completion_rate"
	MetricEarningsCents     = "earnings_cents"
)

// MetricValues holds the computed metrics for one (entity, window) pair.
// Keys are metric names, e.g. sessions_completed, hours_taught,
// average_rating, completion_rate, earnings_cents.
type MetricValues map[string]float64

// WindowResult is the outcome of recomputing one trailing window for one
// entity. Persisted rows are keyed (entity_key, window_id,
// calculation_date) and upserted, never duplicated.
type WindowResult struct {
	EntityKey       string       `json:"entity_key"`
	WindowID        string       `json:"window_id"`
	CalculationDate string       `json:"calculation_date"` // YYYY-MM-DD, UTC
	MetricValues    MetricValues `json:"metric_values,omitempty"`
	ComputedAt      time.Time    `json:"computed_at"`
	Status          string       `json:"status"`
	Error           string       `json:"error,omitempty"`
}

// OK reports whether the window was computed and persisted.
func (r *WindowResult) OK() bool {
	return r.Status == WindowStatusOK
}

// CalculationDateUTC formats t as the calculation-date key (UTC civil day).
func CalculationDateUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
