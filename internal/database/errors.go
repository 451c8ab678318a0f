// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package database

import (
	"io"

	"github.com/tomtom215/praeceptor/internal/logging"
)

// closeWithLog closes a resource and logs any error with the resource type
// for context. Use for cleanup paths where the error cannot be returned.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Err(err).Str("resource", resourceType).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource ignoring any error. Use only in error
// paths where a close failure adds no information.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
