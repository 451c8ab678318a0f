// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/praeceptor/internal/faults"
	"github.com/tomtom215/praeceptor/internal/logging"
	"github.com/tomtom215/praeceptor/internal/metrics"
	"github.com/tomtom215/praeceptor/internal/models"
)

// ErrNotFound is returned by point reads when no row matches.
var ErrNotFound = errors.New("not found")

const insertSessionFactQuery = `
INSERT INTO session_facts (
	session_id, tutor_key, student_key, subject, started_at,
	duration_minutes, rating, earnings_cents, completed, event_id, event_time
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (session_id) DO NOTHING`

const amendSessionFactQuery = `
INSERT INTO session_facts (
	session_id, tutor_key, student_key, subject, started_at,
	duration_minutes, rating, earnings_cents, completed, event_id, event_time
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (session_id) DO UPDATE SET
	student_key      = EXCLUDED.student_key,
	subject          = EXCLUDED.subject,
	started_at       = EXCLUDED.started_at,
	duration_minutes = EXCLUDED.duration_minutes,
	rating           = EXCLUDED.rating,
	earnings_cents   = EXCLUDED.earnings_cents,
	completed        = EXCLUDED.completed,
	event_id         = EXCLUDED.event_id,
	event_time       = EXCLUDED.event_time
WHERE EXCLUDED.event_time >= session_facts.event_time`

// SessionFactRow is a persisted session fact with its tutor key and the
// bookkeeping columns the tests and the ops API read back.
type SessionFactRow struct {
	TutorKey   string             `json:"tutor_key"`
	Fact       models.SessionFact `json:"fact"`
	EventTime  time.Time          `json:"event_time"`
	RecordedAt time.Time          `json:"recorded_at"`
}

// RecordSessionEvent persists the event's session fact. Completion events
// insert idempotently (redeliveries are no-ops); amendment events overwrite
// the existing row unless a newer amendment already landed.
// Returns whether the statement changed a row.
func (db *DB) RecordSessionEvent(ctx context.Context, event *models.SessionEvent) (bool, error) {
	if event.EventType == models.EventTypeSessionAmended {
		return db.AmendSessionFact(ctx, event)
	}
	return db.InsertSessionFact(ctx, event)
}

// InsertSessionFact inserts the event's session fact, idempotent by
// session_id. A redelivered event finds the row already present and changes
// nothing, which is what makes crash recovery safe: reclaimed entries are
// reprocessed as ordinary duplicates.
func (db *DB) InsertSessionFact(ctx context.Context, event *models.SessionEvent) (bool, error) {
	return db.execSessionFact(ctx, "insert_session_fact", insertSessionFactQuery, event)
}

// AmendSessionFact overwrites the session fact row with the amended values.
// The event_time guard drops stale writes, so a redelivered original can
// never clobber a later amendment.
func (db *DB) AmendSessionFact(ctx context.Context, event *models.SessionEvent) (bool, error) {
	return db.execSessionFact(ctx, "amend_session_fact", amendSessionFactQuery, event)
}

// execSessionFact runs a session fact write with per-tutor serialization,
// conflict retry, and breaker protection.
func (db *DB) execSessionFact(ctx context.Context, operation, query string, event *models.SessionEvent) (bool, error) {
	unlock := db.lockTutor(event.EntityKey)
	defer unlock()

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	fact := event.Session
	start := time.Now()
	var affected int64

	err := db.execWithRetry(ctx, operation, func(ctx context.Context) error {
		stmt, err := db.getStmt(ctx, query)
		if err != nil {
			return err
		}
		res, err := stmt.ExecContext(ctx,
			fact.SessionID, event.EntityKey, fact.StudentKey, fact.Subject,
			fact.StartedAt.UTC(), fact.DurationMinutes, fact.Rating,
			fact.EarningsCents, fact.Completed, event.EventID, event.Timestamp.UTC(),
		)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})

	metrics.RecordDBQuery(operation, "session_facts", time.Since(start), err)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetSessionFact retrieves a persisted session fact by session id.
// Returns ErrNotFound when no row exists.
func (db *DB) GetSessionFact(ctx context.Context, sessionID string) (*SessionFactRow, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	const query = `
SELECT session_id, tutor_key, student_key, subject, started_at,
       duration_minutes, rating, earnings_cents, completed,
       event_time, recorded_at
FROM session_facts WHERE session_id = ?`

	var row SessionFactRow
	err := db.conn.QueryRowContext(ctx, query, sessionID).Scan(
		&row.Fact.SessionID, &row.TutorKey, &row.Fact.StudentKey,
		&row.Fact.Subject, &row.Fact.StartedAt, &row.Fact.DurationMinutes,
		&row.Fact.Rating, &row.Fact.EarningsCents, &row.Fact.Completed,
		&row.EventTime, &row.RecordedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session fact %s: %w", sessionID, err)
	}
	return &row, nil
}

// CountSessionFacts returns the number of fact rows for a tutor since the
// given time. Used by the readiness checks and tests.
func (db *DB) CountSessionFacts(ctx context.Context, tutorKey string, since time.Time) (int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	const query = `
SELECT COUNT(*) FROM session_facts
WHERE tutor_key = ? AND started_at >= ?`

	var count int64
	if err := db.conn.QueryRowContext(ctx, query, tutorKey, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count session facts for %s: %w", tutorKey, err)
	}
	return count, nil
}

// execWithRetry runs fn behind the write breaker, retrying transaction
// conflicts and connection drops with short exponential backoff. Internal
// errors fail fast: the connection must not be reused. Exhausted retries
// and conflicts surface as retryable; everything else is permanent.
func (db *DB) execWithRetry(ctx context.Context, operation string, fn func(context.Context) error) error {
	const maxRetries = 3

	_, err := db.writeBreaker.Execute(func() (interface{}, error) {
		var lastErr error
		for attempt := 0; attempt < maxRetries; attempt++ {
			if attempt > 0 {
				backoff := time.Millisecond * time.Duration(1<<uint(attempt))
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}

			lastErr = fn(ctx)
			if lastErr == nil {
				return nil, nil
			}

			if isInternalError(lastErr) {
				// DuckDB invalidated the connection; retrying makes it worse.
				return nil, faults.Permanent(faults.CategoryStorage,
					fmt.Sprintf("%s hit internal database error", operation), lastErr)
			}

			if !isTransactionConflict(lastErr) && !isConnectionError(lastErr) {
				return nil, faults.Permanent(faults.CategoryStorage,
					fmt.Sprintf("%s failed", operation), lastErr)
			}

			logging.Debug().
				Err(lastErr).
				Str("operation", operation).
				Int("attempt", attempt+1).
				Msg("Retrying database write after transient failure")
		}

		return nil, faults.Retryable(faults.CategoryStorage,
			fmt.Sprintf("%s exhausted %d attempts", operation, maxRetries), lastErr)
	})

	return err
}
