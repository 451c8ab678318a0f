// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package logging provides centralized zerolog-based structured logging
// for Praeceptor.
//
// All components log through a single global zerolog logger configured at
// startup: JSON output for production, console output for development.
//
// The package provides:
//   - Zero-allocation structured logging via zerolog
//   - Context-aware logging with correlation ID propagation
//   - An slog adapter so suture/sutureslog can log through zerolog
//   - Test logger constructors for capturing output in tests
//
// # Quick Start
//
//	import "github.com/tomtom215/praeceptor/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	// Log messages with structured fields
//	logging.Info().Str("entity_key", key).Msg("Recompute triggered")
//	logging.Error().Err(err).Uint64("entry_id", seq).Msg("Ack failed")
//
// Always terminate log chains with .Msg() or .Send(); a chain without a
// terminator is never emitted.
package logging
