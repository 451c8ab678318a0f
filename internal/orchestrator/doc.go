// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package orchestrator serializes per-tutor metric recomputation.
//
// A recomputation reads every session fact for one tutor and rebuilds
// the tutor's metrics across all configured trailing windows. Two runs
// for the same tutor must never overlap: they would race on the same
// rows and could persist results computed from different snapshots out
// of order. The orchestrator guarantees at most one run per entity key
// at a time while leaving distinct keys free to run concurrently.
//
// # Architecture
//
//	Dispatch(key) ─┬─ key idle    → spawn run goroutine
//	               └─ key running → merge into the single queued
//	                                follow-up for that key
//
//	run: limiter.Wait → compute+persist every window → callbacks
//	     → start queued follow-up, or release the key
//
// A dispatch that arrives mid-run is never lost and never runs
// concurrently: it becomes (or joins) the key's queued follow-up,
// which starts immediately after the current run completes and
// therefore sees every fact the merged dispatches announced.
//
// # Windows
//
// Each run computes all configured windows independently. A window
// that fails calculation or persistence is recorded with status
// "failed" so the staleness is visible downstream; the remaining
// windows still persist. Failed windows heal on the key's next run.
//
// # Cancellation
//
// Calculator calls run under their own timeout, never under the drain
// context: a computation that has started always finishes or times
// out on its own. Drain stops new runs from starting, drops queued
// follow-ups, and waits for in-flight runs; dropped work is recovered
// through stream redelivery because its entries were never
// acknowledged.
//
// # Usage
//
//	orch, err := orchestrator.New(orchestrator.Config{
//	    Windows:            windows,
//	    DispatchRate:       cfg.Recompute.DispatchRate,
//	    DispatchBurst:      cfg.Recompute.DispatchBurst,
//	    CalculationTimeout: cfg.Recompute.CalculationTimeout,
//	}, calc, db, registry)
//
//	err = orch.Dispatch("tutor-42", 3, func(results []models.WindowResult) {
//	    ackCarriedEntries()
//	})
//
//	defer orch.Drain(30 * time.Second)
//
// # Thread Safety
//
// Dispatch, Drain, and the introspection methods are safe for
// concurrent use. Completion callbacks run on the key's run goroutine
// and must not block for long.
package orchestrator
