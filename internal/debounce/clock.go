// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package debounce

import "time"

// Timer is a rearmable one-shot timer. *time.Timer satisfies it.
type Timer interface {
	// Stop prevents the timer from firing. Reports whether it stopped
	// the timer before it fired.
	Stop() bool

	// Reset reschedules the timer to fire after d. Reports whether the
	// timer was still armed.
	Reset(d time.Duration) bool
}

// Clock abstracts time for the aggregator so firing is testable.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// realClock delegates to the time package.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
