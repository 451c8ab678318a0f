// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package services

import (
	"context"
	"fmt"
)

// RetentionSweeper matches the dead-letter sweeper lifecycle.
//
// Satisfied by *deadletter.Sweeper:
//   - Start(ctx) error - spawns the retention/GC loop
//   - Stop() - blocks until the loop exits
//   - IsRunning() bool - running state
type RetentionSweeper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// SweeperService wraps the dead-letter retention sweeper as a
// supervised service. The sweeper deletes entries past retention and
// runs Badger value-log GC; losing a tick to a restart is harmless
// because every pass re-scans from the current state.
type SweeperService struct {
	sweeper RetentionSweeper
	name    string
}

// NewSweeperService creates a new sweeper service wrapper.
func NewSweeperService(sweeper RetentionSweeper) *SweeperService {
	return &SweeperService{
		sweeper: sweeper,
		name:    "deadletter-sweeper",
	}
}

// Serve implements suture.Service.
//
// Starts the sweeper loop, blocks until the context is canceled, then
// stops it. Stop blocks until the background goroutine exits.
func (s *SweeperService) Serve(ctx context.Context) error {
	if err := s.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("dead-letter sweeper start failed: %w", err)
	}

	<-ctx.Done()

	s.sweeper.Stop()

	return ctx.Err()
}

// String implements fmt.Stringer. Suture uses this to identify the
// service in log messages.
func (s *SweeperService) String() string {
	return s.name
}
