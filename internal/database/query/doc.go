// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package query provides SQL query building utilities for the database package.
//
// This package reduces code duplication and provides type-safe query construction
// for parameterized SQL WHERE clauses. It ensures consistent parameter handling
// and prevents SQL injection vulnerabilities.
//
// # Overview
//
// The WhereBuilder is the primary component, providing a fluent interface for
// constructing WHERE clauses with properly parameterized queries:
//
//	wb := query.NewWhereBuilder()
//	wb.AddDateRange(startDate, endDate)
//	wb.AddTutors([]string{"tutor-1", "tutor-2"})
//	wb.AddWindows([]string{"7d", "30d"})
//	whereClause, args := wb.Build()
//	// Result: "started_at >= ? AND started_at <= ? AND tutor_key IN (?, ?) AND window_id IN (?, ?)"
//	// Args: [startDate, endDate, "tutor-1", "tutor-2", "7d", "30d"]
//
// # Available Filter Methods
//
//   - AddDateRange: Filters by started_at date range
//   - AddTutors: Filters by tutor key list (IN clause)
//   - AddWindows: Filters persisted metrics by window id (7d, 30d, 90d)
//   - AddSubjects: Filters session facts by subject
//   - AddClause: Adds custom WHERE clause with parameters
//
// # SQL Injection Prevention
//
// All methods use parameterized queries with ? placeholders:
//
//	// Safe - parameters are properly escaped by the database driver
//	wb.AddTutors(userInput)  // Generates: "tutor_key IN (?, ?)"
//
// # Thread Safety
//
// WhereBuilder instances are not thread-safe. Create a new instance per query
// or protect concurrent access with appropriate synchronization.
package query
