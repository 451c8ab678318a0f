// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package database

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/praeceptor/internal/models"
)

// insertFact writes one session fact with explicit metric-relevant values.
func insertFact(t *testing.T, db *DB, tutorKey string, startedAt time.Time, minutes int, rating float64, earnings int64, completed bool) {
	t.Helper()
	event := makeSessionEvent(tutorKey, startedAt)
	event.Session.DurationMinutes = minutes
	event.Session.Rating = rating
	event.Session.EarningsCents = earnings
	event.Session.Completed = completed

	_, err := db.InsertSessionFact(context.Background(), event)
	checkNoError(t, err)
}

func TestAggregateSessionMetrics_FullWindow(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	until := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	since := until.AddDate(0, 0, -7)

	// Three held sessions, one rated 4 and one rated 5, one unrated
	insertFact(t, db, "tutor-1", until.Add(-24*time.Hour), 60, 4, 3000, true)
	insertFact(t, db, "tutor-1", until.Add(-48*time.Hour), 90, 5, 4500, true)
	insertFact(t, db, "tutor-1", until.Add(-72*time.Hour), 30, 0, 1500, true)
	// One no-show: counts against completion rate, contributes nothing else
	insertFact(t, db, "tutor-1", until.Add(-36*time.Hour), 60, 0, 0, false)
	// Outside the window: ignored entirely
	insertFact(t, db, "tutor-1", until.AddDate(0, 0, -8), 60, 1, 9999, true)
	// Different tutor: ignored entirely
	insertFact(t, db, "tutor-2", until.Add(-24*time.Hour), 60, 1, 9999, true)

	values, err := db.AggregateSessionMetrics(ctx, "tutor-1", since, until)
	checkNoError(t, err)

	checkFloatEqual(t, models.MetricSessionsCompleted, values[models.MetricSessionsCompleted], 3)
	checkFloatEqual(t, models.MetricHoursTaught, values[models.MetricHoursTaught], 3) // 60+90+30 minutes
	checkFloatEqual(t, models.MetricAverageRating, values[models.MetricAverageRating], 4.5)
	checkFloatEqual(t, models.MetricCompletionRate, values[models.MetricCompletionRate], 0.75)
	checkFloatEqual(t, models.MetricEarningsCents, values[models.MetricEarningsCents], 9000)
}

func TestAggregateSessionMetrics_EmptyWindow(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	until := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	values, err := db.AggregateSessionMetrics(context.Background(), "tutor-none", until.AddDate(0, 0, -7), until)
	checkNoError(t, err)

	if len(values) != 5 {
		t.Fatalf("Expected 5 metrics, got %d", len(values))
	}
	for name, value := range values {
		checkFloatEqual(t, name, value, 0)
	}
}

func TestAggregateSessionMetrics_OnlyNoShows(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	until := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	insertFact(t, db, "tutor-1", until.Add(-24*time.Hour), 60, 0, 0, false)
	insertFact(t, db, "tutor-1", until.Add(-48*time.Hour), 60, 0, 0, false)

	values, err := db.AggregateSessionMetrics(context.Background(), "tutor-1", until.AddDate(0, 0, -7), until)
	checkNoError(t, err)

	checkFloatEqual(t, models.MetricSessionsCompleted, values[models.MetricSessionsCompleted], 0)
	checkFloatEqual(t, models.MetricCompletionRate, values[models.MetricCompletionRate], 0)
	checkFloatEqual(t, models.MetricHoursTaught, values[models.MetricHoursTaught], 0)
}

// TestAggregateSessionMetrics_UnratedExcludedFromAverage verifies that the
// rating average ignores the rating-0 unrated sentinel rather than letting
// it pull the average down.
func TestAggregateSessionMetrics_UnratedExcludedFromAverage(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	until := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	insertFact(t, db, "tutor-1", until.Add(-24*time.Hour), 60, 3, 0, true)
	insertFact(t, db, "tutor-1", until.Add(-48*time.Hour), 60, 0, 0, true)
	insertFact(t, db, "tutor-1", until.Add(-72*time.Hour), 60, 0, 0, true)

	values, err := db.AggregateSessionMetrics(context.Background(), "tutor-1", until.AddDate(0, 0, -7), until)
	checkNoError(t, err)

	checkFloatEqual(t, models.MetricAverageRating, values[models.MetricAverageRating], 3)
	checkFloatEqual(t, models.MetricSessionsCompleted, values[models.MetricSessionsCompleted], 3)
}

func TestAggregateSessionMetrics_WindowBoundsInclusive(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	until := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	since := until.AddDate(0, 0, -7)

	// Exactly on each bound: both count
	insertFact(t, db, "tutor-1", since, 60, 0, 100, true)
	insertFact(t, db, "tutor-1", until, 60, 0, 100, true)
	// One microsecond before the window opens: excluded
	insertFact(t, db, "tutor-1", since.Add(-time.Microsecond), 60, 0, 100, true)

	values, err := db.AggregateSessionMetrics(context.Background(), "tutor-1", since, until)
	checkNoError(t, err)
	checkFloatEqual(t, models.MetricSessionsCompleted, values[models.MetricSessionsCompleted], 2)
}

func TestAggregateSessionMetrics_CanceledContext(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	until := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	_, err := db.AggregateSessionMetrics(ctx, "tutor-1", until.AddDate(0, 0, -7), until)
	checkError(t, err)
}
