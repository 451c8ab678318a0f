// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package services provides suture.Service wrappers that adapt the
// pipeline's components to the supervisor tree.
//
// Each component exposes a Start/Stop (or ListenAndServe/Shutdown)
// lifecycle; suture expects a single blocking Serve(ctx). The wrappers
// translate between the two:
//
//  1. Start the component; a start failure returns immediately so
//     suture restarts the service under its backoff policy.
//  2. Block until the supervisor cancels the context.
//  3. Shut the component down. Shutdown uses a fresh timeout context
//     because the original is already canceled.
//  4. Return ctx.Err() so suture records a normal termination.
//
// The wrappers depend on narrow local interfaces rather than the
// component packages, so they can be tested with mocks and never
// create import cycles:
//
//   - WorkerService wraps the metrics worker (PipelineRunner,
//     satisfied by *worker.Worker).
//   - SweeperService wraps the dead-letter retention sweeper
//     (RetentionSweeper, satisfied by *deadletter.Sweeper).
//   - HTTPServerService wraps the ops API server (HTTPServer,
//     satisfied by *http.Server).
package services
