// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package calculator

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// windowPattern matches trailing-window identifiers: a positive count
// followed by a day or week unit.
var windowPattern = regexp.MustCompile(`^([1-9][0-9]*)([dw])$`)

// Window is a parsed trailing-window identifier. The recomputation fan-out
// runs one calculation per configured window.
type Window struct {
	// ID is the canonical identifier, e.g. "7d" or "12w".
	ID string
	// Duration is the trailing span the window covers.
	Duration time.Duration
}

// ParseWindow parses a trailing-window identifier such as 7d, 30d, or 12w.
func ParseWindow(id string) (Window, error) {
	m := windowPattern.FindStringSubmatch(id)
	if m == nil {
		return Window{}, fmt.Errorf("invalid window id %q: expected <count><d|w>, e.g. 7d", id)
	}

	count, err := strconv.Atoi(m[1])
	if err != nil {
		return Window{}, fmt.Errorf("invalid window id %q: %w", id, err)
	}

	unit := 24 * time.Hour
	if m[2] == "w" {
		unit = 7 * 24 * time.Hour
	}

	return Window{ID: id, Duration: time.Duration(count) * unit}, nil
}

// ParseWindows parses the configured window list, rejecting duplicates.
// At least one window is required: an entity trigger with no windows to
// fan out over would be a silent no-op.
func ParseWindows(ids []string) ([]Window, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one window is required")
	}

	windows := make([]Window, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate window id %q", id)
		}
		seen[id] = struct{}{}

		window, err := ParseWindow(id)
		if err != nil {
			return nil, err
		}
		windows = append(windows, window)
	}
	return windows, nil
}

// MustParseWindow parses id and panics on failure. For tests and
// compile-time-constant identifiers only.
func MustParseWindow(id string) Window {
	window, err := ParseWindow(id)
	if err != nil {
		panic(err)
	}
	return window
}
