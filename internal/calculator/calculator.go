// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package calculator computes tutor performance metrics over trailing
// windows. The Calculator interface is the pipeline's extension point; the
// reference implementation aggregates persisted session facts in DuckDB.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/praeceptor/internal/faults"
	"github.com/tomtom215/praeceptor/internal/models"
)

// Calculator computes the metric set for one entity over one trailing
// window. Implementations must be safe for concurrent use: the orchestrator
// runs calculations for different entities in parallel.
type Calculator interface {
	Calculate(ctx context.Context, entityKey string, window Window) (models.MetricValues, error)
}

// SessionReader is the slice of the storage layer the reference calculator
// reads from.
type SessionReader interface {
	AggregateSessionMetrics(ctx context.Context, tutorKey string, since, until time.Time) (models.MetricValues, error)
}

// SessionMetricsCalculator is the reference Calculator. Each Calculate call
// aggregates the entity's session facts over the trailing window ending at
// the call time.
type SessionMetricsCalculator struct {
	reader SessionReader
	now    func() time.Time
}

// NewSessionMetricsCalculator creates the reference calculator over the
// given fact store.
func NewSessionMetricsCalculator(reader SessionReader) *SessionMetricsCalculator {
	return &SessionMetricsCalculator{
		reader: reader,
		now:    time.Now,
	}
}

// Calculate aggregates the entity's facts over the window. Failures carry
// the shared fault taxonomy: bad inputs are permanent, storage trouble and
// context expiry are retryable.
func (c *SessionMetricsCalculator) Calculate(ctx context.Context, entityKey string, window Window) (models.MetricValues, error) {
	if entityKey == "" {
		return nil, faults.Permanent(faults.CategoryValidation,
			"calculate requires an entity key", nil)
	}
	if window.Duration <= 0 {
		return nil, faults.Permanent(faults.CategoryValidation,
			fmt.Sprintf("window %q has no duration", window.ID), nil)
	}

	until := c.now().UTC()
	since := until.Add(-window.Duration)

	values, err := c.reader.AggregateSessionMetrics(ctx, entityKey, since, until)
	if err != nil {
		return nil, classify(err, entityKey, window)
	}
	return values, nil
}

// classify maps a storage error into the shared fault taxonomy:
// pre-classified faults pass through, context expiry becomes a timeout,
// anything else is retryable storage trouble.
func classify(err error, entityKey string, window Window) error {
	if faults.IsRetryable(err) || faults.IsPermanent(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return faults.Retryable(faults.CategoryTimeout,
			fmt.Sprintf("window %s for %s timed out", window.ID, entityKey), err)
	}
	return faults.Retryable(faults.CategoryStorage,
		fmt.Sprintf("window %s for %s failed to aggregate", window.ID, entityKey), err)
}
