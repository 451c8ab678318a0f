// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package services

import (
	"context"
	"fmt"
)

// PipelineRunner matches the metrics worker lifecycle.
//
// Satisfied by *worker.Worker:
//   - Start(ctx) error - joins the consumer group and spawns the
//     read and command loops
//   - Stop() - drains in flight work and blocks until the loops exit
//   - IsRunning() bool - running state for health checks
type PipelineRunner interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// WorkerService wraps the metrics worker as a supervised service.
//
// A restart here is the pipeline's crash recovery path: the event log
// keeps every unacknowledged entry, so the restarted worker reclaims
// the previous incarnation's stale claims and replays them against
// idempotent writes. Suture restarting this service is therefore safe
// at any point in a recomputation.
type WorkerService struct {
	runner PipelineRunner
	name   string
}

// NewWorkerService creates a new worker service wrapper.
func NewWorkerService(runner PipelineRunner) *WorkerService {
	return &WorkerService{
		runner: runner,
		name:   "pipeline-worker",
	}
}

// Serve implements suture.Service.
//
// Starts the worker, blocks until the context is canceled, then stops
// it. Stop blocks until the worker has drained: reads stop first, then
// pending debounce windows are flushed and in-flight recomputations
// complete. A start failure is returned for suture to retry with
// backoff (the usual cause is the event log being unreachable).
func (s *WorkerService) Serve(ctx context.Context) error {
	if err := s.runner.Start(ctx); err != nil {
		return fmt.Errorf("worker start failed: %w", err)
	}

	<-ctx.Done()

	s.runner.Stop()

	return ctx.Err()
}

// String implements fmt.Stringer. Suture uses this to identify the
// service in log messages.
func (s *WorkerService) String() string {
	return s.name
}
