// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package database

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// mockCloser implements io.Closer for testing
type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.err
}

func TestCloseWithLog(t *testing.T) {
	t.Run("nil closer does not panic", func(t *testing.T) {
		closeWithLog(nil, "test")
	})

	t.Run("successful close", func(t *testing.T) {
		closer := &mockCloser{err: nil}
		closeWithLog(closer, "test resource")

		if !closer.closed {
			t.Error("Expected closer to be closed")
		}
	})

	t.Run("error during close does not panic", func(t *testing.T) {
		closer := &mockCloser{err: errors.New("close failed: connection reset")}
		closeWithLog(closer, "database connection")

		if !closer.closed {
			t.Error("Expected closer to be closed")
		}
	})
}

func TestCloseQuietly(t *testing.T) {
	t.Run("nil closer does not panic", func(t *testing.T) {
		closeQuietly(nil)
	})

	t.Run("successful close is silent", func(t *testing.T) {
		closer := &mockCloser{err: nil}
		closeQuietly(closer)

		if !closer.closed {
			t.Error("Expected closer to be closed")
		}
	})

	t.Run("error during close is ignored", func(t *testing.T) {
		closer := &mockCloser{err: errors.New("close failed")}
		closeQuietly(closer)

		if !closer.closed {
			t.Error("Expected closer to be closed even with error")
		}
	})

	t.Run("works with various io.Closer implementations", func(t *testing.T) {
		reader := strings.NewReader("test data")
		nopCloser := io.NopCloser(reader)
		closeQuietly(nopCloser) // Should not panic
	})
}

func TestIsTransactionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"transaction conflict", errors.New("TransactionContext Error: transaction conflict"), true},
		{"conflict on update", errors.New("Conflict on update of row"), true},
		{"write-write conflict", errors.New("write-write conflict detected"), true},
		{"serialization failure", errors.New("could not serialize access"), true},
		{"unrelated error", errors.New("syntax error near SELECT"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransactionConflict(tt.err); got != tt.want {
				t.Errorf("isTransactionConflict(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial: connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"database closed", errors.New("sql: database is closed"), true},
		{"bad connection", errors.New("driver: bad connection"), true},
		{"unrelated error", errors.New("constraint violation"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.want {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsInternalError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"internal error", errors.New("INTERNAL Error: unexpected state"), true},
		{"fatal error", errors.New("FATAL Error: storage corruption"), true},
		{"invalidated database", errors.New("database has been invalidated"), true},
		{"transient conflict", errors.New("transaction conflict"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isInternalError(tt.err); got != tt.want {
				t.Errorf("isInternalError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
