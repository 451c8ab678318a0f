// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package models defines the data types shared across the pipeline:
// session-completion events as they travel the log, stream entries as the
// consumer sees them, computed window results as the writer persists them,
// and the worker statistics snapshot exposed by the ops API.
//
// Types here are plain data with JSON tags; behavior lives in the packages
// that own each pipeline stage.
package models
