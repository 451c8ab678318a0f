// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package faults defines the error taxonomy shared by the consumer, the
// orchestrator, and the persistence writer. Every failure in the pipeline is
// either retryable (transient: connectivity, timeouts, write conflicts) or
// permanent (poison: malformed payloads, constraint violations), and the
// retry policy here decides how long a retryable failure waits between
// attempts.
package faults

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Category classifies errors for dead-letter routing and metrics labels.
type Category int

const (
	// CategoryUnknown is the default for unclassified errors.
	CategoryUnknown Category = iota
	// CategoryConnection indicates network or connection failures.
	CategoryConnection
	// CategoryTimeout indicates an operation timeout.
	CategoryTimeout
	// CategoryValidation indicates payload validation failures.
	CategoryValidation
	// CategoryStorage indicates database operation failures.
	CategoryStorage
	// CategoryCalculation indicates metric calculator failures.
	CategoryCalculation
	// CategoryCapacity indicates resource capacity exhaustion.
	CategoryCapacity
)

// String returns the category label used in logs and metric labels.
func (c Category) String() string {
	switch c {
	case CategoryConnection:
		return "connection"
	case CategoryTimeout:
		return "timeout"
	case CategoryValidation:
		return "validation"
	case CategoryStorage:
		return "storage"
	case CategoryCalculation:
		return "calculation"
	case CategoryCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// RetryableError represents a transient failure worth retrying.
type RetryableError struct {
	Message  string
	Cause    error
	Category Category
}

// NewRetryableError creates a retryable error, inferring a category from
// the message when none is supplied through Retryable.
func NewRetryableError(message string, cause error) *RetryableError {
	return &RetryableError{
		Message:  message,
		Cause:    cause,
		Category: categorize(message),
	}
}

// Retryable creates a retryable error with an explicit category.
func Retryable(category Category, message string, cause error) *RetryableError {
	return &RetryableError{Message: message, Cause: cause, Category: category}
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *RetryableError) Unwrap() error {
	return e.Cause
}

// PermanentError represents an unrecoverable failure. The owning entry is
// acknowledged and dead-lettered rather than retried.
type PermanentError struct {
	Message  string
	Cause    error
	Category Category
}

// NewPermanentError creates a permanent error, inferring a category from
// the message. Unclassifiable permanent failures default to validation,
// since malformed input is by far the most common cause.
func NewPermanentError(message string, cause error) *PermanentError {
	category := categorize(message)
	if category == CategoryUnknown {
		category = CategoryValidation
	}
	return &PermanentError{Message: message, Cause: cause, Category: category}
}

// Permanent creates a permanent error with an explicit category.
func Permanent(category Category, message string, cause error) *PermanentError {
	return &PermanentError{Message: message, Cause: cause, Category: category}
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// categorize infers a category from the error message.
func categorize(message string) Category {
	m := strings.ToLower(message)
	switch {
	case containsAny(m, "connection", "connect", "refused", "reset", "unreachable", "network"):
		return CategoryConnection
	case containsAny(m, "timeout", "deadline", "timed out"):
		return CategoryTimeout
	case containsAny(m, "invalid", "validation", "malformed", "parse", "decode"):
		return CategoryValidation
	case containsAny(m, "database", "sql", "query", "constraint", "conflict"):
		return CategoryStorage
	case containsAny(m, "calculate", "calculator", "window"):
		return CategoryCalculation
	case containsAny(m, "capacity", "full", "limit", "exceeded"):
		return CategoryCapacity
	default:
		return CategoryUnknown
	}
}

// containsAny reports whether s contains any of the substrings.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether the error chain contains a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsPermanent reports whether the error chain contains a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// CategoryOf extracts the category from a classified error, or
// CategoryUnknown for plain errors.
func CategoryOf(err error) Category {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.Category
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return CategoryUnknown
}

// RetryPolicy defines bounded exponential backoff for transient failures.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (first try included).
	MaxAttempts int

	// InitialBackoff is the backoff before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff growth.
	MaxBackoff time.Duration

	// Multiplier is the exponential growth factor.
	Multiplier float64

	// JitterFraction is the random jitter fraction (0.0-1.0).
	JitterFraction float64

	rng   *rand.Rand
	rngMu sync.Mutex
}

// DefaultRetryPolicy returns production defaults.
func DefaultRetryPolicy() *RetryPolicy {
	return NewRetryPolicy(0)
}

// NewRetryPolicy creates a RetryPolicy with a specific random seed.
// A zero seed selects a time-based seed; a non-zero seed gives
// deterministic jitter for tests.
func NewRetryPolicy(seed int64) *RetryPolicy {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		//nolint:gosec // G404: weak random is fine for backoff jitter
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Backoff returns the wait before retry number retryCount (0-based).
func (p *RetryPolicy) Backoff(retryCount int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(retryCount))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	p.rngMu.Lock()
	jitter := backoff * p.JitterFraction * (p.rng.Float64()*2 - 1) // -jitter to +jitter
	p.rngMu.Unlock()

	return time.Duration(backoff + jitter)
}

// ShouldRetry reports whether another attempt is allowed for err after
// attempt number attempt (0-based). Permanent errors are never retried.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt+1 >= p.MaxAttempts {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	return true
}
