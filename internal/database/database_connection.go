// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package database

import (
	"runtime"
	"strings"
	"time"
)

// configureConnectionPool tunes the sql.DB pool for DuckDB.
// DuckDB is an embedded database, so connections are cheap handles into the
// same process; the pool bounds concurrent query parallelism rather than
// network sockets.
func (db *DB) configureConnectionPool() error {
	maxOpen := db.cfg.Threads
	if maxOpen <= 0 {
		maxOpen = runtime.NumCPU()
	}

	db.conn.SetMaxOpenConns(maxOpen)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)

	return nil
}

// isTransactionConflict reports whether the error is a DuckDB optimistic
// concurrency conflict. These are transient: the losing transaction aborts
// and a retry with fresh reads succeeds.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "transaction conflict") ||
		strings.Contains(msg, "conflict on update") ||
		strings.Contains(msg, "write-write conflict") ||
		strings.Contains(msg, "could not serialize")
}

// isConnectionError reports whether the error indicates a broken or closed
// connection. Retrying on a fresh pooled connection may succeed.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "driver: bad connection")
}

// isInternalError reports whether DuckDB has entered an internal error
// state. Such connections must not be reused; the operation fails fast
// instead of retrying.
func isInternalError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "internal error") ||
		strings.Contains(msg, "fatal error") ||
		strings.Contains(msg, "database has been invalidated")
}
