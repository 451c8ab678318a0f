// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/praeceptor/internal/config"
	"github.com/tomtom215/praeceptor/internal/faults"
	"github.com/tomtom215/praeceptor/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods for
// session facts and tutor window metrics.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// Prepared statement caching for hot write paths
	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex

	// Per-tutor write locks for concurrent UPSERTs. DuckDB uses optimistic
	// concurrency control, so two transactions touching the same row abort
	// with a conflict; serializing per key avoids the churn entirely for the
	// common case of one worker recomputing one tutor.
	tutorLocks sync.Map

	// Circuit breaker guarding the upsert path. Opens after consecutive
	// write failures so a wedged database file sheds load instead of
	// stacking retries.
	writeBreaker *gobreaker.CircuitBreaker[interface{}]
}

// New creates a new database connection and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "2GB"
	}

	// Ensure parent directory exists for database file.
	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	// Disable auto-install/auto-load to prevent hangs in restricted network
	// environments. The metrics schema needs no extensions.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:         conn,
		cfg:          cfg,
		stmtCache:    make(map[string]*sql.Stmt),
		writeBreaker: faults.NewBreaker(faults.DefaultBreakerConfig("duckdb-writes")),
	}

	if err := db.configureConnectionPool(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to configure connection pool: %w", err)
	}

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", maxMemory).
		Msg("Database initialized")

	return db, nil
}

// Conn returns the underlying SQL database connection.
// Used by packages that need direct database access, such as the
// calculator for aggregating session facts.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// BreakerState returns the write circuit breaker state for the stats
// endpoint ("closed", "half-open", "open").
func (db *DB) BreakerState() string {
	return faults.BreakerState(db.writeBreaker)
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// Close checkpoints the WAL and closes the database connection.
// Cached prepared statements are closed first; statement close errors are
// logged but do not block shutdown.
func (db *DB) Close() error {
	db.stmtCacheMu.Lock()
	for query, stmt := range db.stmtCache {
		closeWithLog(stmt, "prepared statement")
		delete(db.stmtCache, query)
	}
	db.stmtCacheMu.Unlock()

	// Checkpoint merges the WAL into the database file so a restart never
	// replays stale writes. Failure is non-fatal; DuckDB replays on open.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Checkpoint on close failed")
	}

	return db.conn.Close()
}

// getStmt returns a cached prepared statement for the query, preparing and
// caching it on first use. Callers must not close the returned statement.
func (db *DB) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtCacheMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()

	// Re-check under the write lock; another goroutine may have prepared it.
	if stmt, ok := db.stmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	db.stmtCache[query] = stmt
	return stmt, nil
}

// lockTutor acquires the per-tutor write mutex, creating it on first use.
// Returns the unlock function.
func (db *DB) lockTutor(tutorKey string) func() {
	muInterface, _ := db.tutorLocks.LoadOrStore(tutorKey, &sync.Mutex{})
	mu := muInterface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
