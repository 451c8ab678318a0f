// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package query provides SQL query building utilities for the database package.
// It reduces code duplication and provides type-safe query construction.
package query

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder constructs SQL WHERE clauses with parameterized arguments.
// It ensures consistent parameter handling and reduces SQL injection risks.
//
// Example usage:
//
//	wb := query.NewWhereBuilder()
//	wb.AddDateRange(startDate, endDate)
//	wb.AddTutors([]string{"tutor-1", "tutor-2"})
//	whereClause, args := wb.Build()
//	// WHERE started_at >= ? AND started_at <= ? AND tutor_key IN (?, ?)
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []interface{}{},
	}
}

// AddClause adds a raw WHERE clause with its arguments.
// This is useful for custom conditions not covered by helper methods.
//
// Parameters:
//   - clause: SQL condition fragment (e.g., "completed = ?")
//   - args: Arguments to bind to placeholders in the clause
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddDateRange adds start and/or end date filters on started_at.
// Nil dates are skipped, allowing flexible date range queries.
func (wb *WhereBuilder) AddDateRange(startDate, endDate *time.Time) *WhereBuilder {
	if startDate != nil {
		wb.clauses = append(wb.clauses, "started_at >= ?")
		wb.args = append(wb.args, *startDate)
	}
	if endDate != nil {
		wb.clauses = append(wb.clauses, "started_at <= ?")
		wb.args = append(wb.args, *endDate)
	}
	return wb
}

// AddTutors adds a tutor filter using IN clause.
// Generates "tutor_key IN (?, ?, ...)" with proper parameterization.
func (wb *WhereBuilder) AddTutors(tutorKeys []string) *WhereBuilder {
	return wb.addIn("tutor_key", tutorKeys)
}

// AddWindows adds a window filter using IN clause.
// Generates "window_id IN (?, ?, ...)" for filtering persisted metrics by
// trailing window ("7d", "30d", "90d").
func (wb *WhereBuilder) AddWindows(windowIDs []string) *WhereBuilder {
	return wb.addIn("window_id", windowIDs)
}

// AddSubjects adds a subject filter using IN clause.
// Generates "subject IN (?, ?, ...)" for filtering session facts.
func (wb *WhereBuilder) AddSubjects(subjects []string) *WhereBuilder {
	return wb.addIn("subject", subjects)
}

// addIn appends "column IN (?, ...)" when values is non-empty.
func (wb *WhereBuilder) addIn(column string, values []string) *WhereBuilder {
	if len(values) > 0 {
		placeholders := make([]string, len(values))
		for i, value := range values {
			placeholders[i] = "?"
			wb.args = append(wb.args, value)
		}
		wb.clauses = append(wb.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	}
	return wb
}

// Build constructs the final WHERE clause and returns it with arguments.
// Clauses are joined with "AND". Returns ("1=1", []) if no clauses were added.
//
// Example:
//
//	whereClause, args := wb.Build()
//	query := fmt.Sprintf("SELECT * FROM table WHERE %s", whereClause)
//	db.Query(query, args...)
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix returns the WHERE clause with "WHERE " prefix.
// Useful for direct SQL construction without manual prefix addition.
func (wb *WhereBuilder) BuildWithPrefix() (string, []interface{}) {
	whereClause, args := wb.Build()
	return "WHERE " + whereClause, args
}

// Count returns the number of clauses added to the builder.
func (wb *WhereBuilder) Count() int {
	return len(wb.clauses)
}

// IsEmpty returns true if no clauses have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}
