// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package deadletter

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/praeceptor/internal/logging"
)

// Sweeper removes dead letters older than the configured retention and
// reclaims BadgerDB value-log space.
type Sweeper struct {
	store     *Store
	interval  time.Duration
	retention time.Duration

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	mu      sync.Mutex
	running bool

	// Stats
	lastRun     time.Time
	lastRemoved int64
}

// NewSweeper creates a retention sweeper for the store.
func NewSweeper(store *Store) *Sweeper {
	return &Sweeper{
		store:     store,
		interval:  store.cfg.SweepInterval,
		retention: store.retention,
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()

	logging.Info().Dur("interval", s.interval).Msg("Dead-letter sweeper started")
	return nil
}

// Stop gracefully stops the sweep loop.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info().Msg("Dead-letter sweeper stopped")
}

// IsRunning returns whether the sweeper is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run is the main sweep loop goroutine.
func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes expired entries, runs value-log GC, and refreshes the
// depth gauge.
func (s *Sweeper) sweep() {
	start := time.Now()
	cutoff := start.Add(-s.retention)

	removed, err := s.store.deleteExpired(cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("Dead-letter sweep failed to delete expired entries")
	}

	if err := s.store.RunGC(); err != nil {
		logging.Error().Err(err).Msg("Dead-letter sweep GC error")
	}

	depth, err := s.store.Count(context.Background())
	if err != nil {
		logging.Warn().Err(err).Msg("Dead-letter sweep failed to refresh depth")
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastRemoved = removed
	s.mu.Unlock()

	if removed > 0 {
		logging.Info().
			Int64("removed", removed).
			Int64("depth", depth).
			Dur("duration", time.Since(start)).
			Msg("Dead-letter sweep removed expired entries")
	}
}

// RunNow triggers an immediate sweep.
func (s *Sweeper) RunNow() {
	s.sweep()
}

// SweeperStats contains statistics about retention sweeps.
type SweeperStats struct {
	LastRun     time.Time
	LastRemoved int64
}

// GetStats returns sweep statistics.
func (s *Sweeper) GetStats() SweeperStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SweeperStats{
		LastRun:     s.lastRun,
		LastRemoved: s.lastRemoved,
	}
}
