// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package supervisor provides Suture-based process supervision for the
// metrics pipeline.
//
// # Tree Structure
//
// The tree is organized into three layers, each a child supervisor of
// the root:
//
//	praeceptor (root)
//	├── data-layer      dead-letter retention sweeper
//	├── pipeline-layer  consume → debounce → recompute worker
//	└── api-layer       ops HTTP server
//
// The layering provides failure isolation: a crashing pipeline worker is
// restarted with backoff without taking down the HTTP surface, so health
// probes and dead-letter inspection keep working while the pipeline
// recovers. Restarting the worker is safe because the event log holds
// unacknowledged entries for redelivery and every write it performs is
// idempotent.
//
// # Service Contract
//
// Services implement suture.Service: Serve(ctx) starts the component,
// blocks until the context is canceled, then shuts the component down
// with a fresh timeout context (the original is already canceled). A
// non-nil error from Serve other than ctx.Err() triggers a restart
// under the supervisor's backoff policy. Wrappers for the pipeline
// worker, the retention sweeper, and the HTTP server live in the
// services subpackage.
//
// Components that other components hold handles to — the NATS
// connection, the DuckDB pool, the Badger store — are deliberately NOT
// supervised: restarting them would invalidate every handle. They are
// constructed before the tree starts and closed after it stops, in
// cmd/worker.
//
// Suture events (restarts, backoff, failures) are logged through
// sutureslog, bridged to zerolog by internal/logging's slog adapter.
package supervisor
