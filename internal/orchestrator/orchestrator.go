// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/praeceptor/internal/calculator"
	"github.com/tomtom215/praeceptor/internal/faults"
	"github.com/tomtom215/praeceptor/internal/logging"
	"github.com/tomtom215/praeceptor/internal/metrics"
	"github.com/tomtom215/praeceptor/internal/models"
	"github.com/tomtom215/praeceptor/internal/stats"
)

// ErrStopped is returned by Dispatch once Drain has begun.
var ErrStopped = fmt.Errorf("orchestrator is stopped")

// Persister stores one computed window result. *database.DB satisfies it.
type Persister interface {
	UpsertWindowMetrics(ctx context.Context, result *models.WindowResult) error
}

// CompletionFunc receives the results of the run that covered the
// dispatch. Merged dispatches share one run and therefore one result
// set. Callbacks run on the key's run goroutine; keep them short.
type CompletionFunc func(results []models.WindowResult)

// Config holds orchestrator settings.
type Config struct {
	// Windows are the trailing windows recomputed on every run.
	Windows []calculator.Window

	// DispatchRate is the global run-start rate in runs per second.
	DispatchRate float64

	// DispatchBurst is the run-start burst allowance.
	DispatchBurst int

	// CalculationTimeout bounds each calculator call and each persist.
	CalculationTimeout time.Duration
}

// pending is a job that has not started: the merged dispatches waiting
// on the key. Events and callbacks accumulate as dispatches merge.
type pending struct {
	events    int64
	callbacks []CompletionFunc
}

// slot marks a key as owned by a run goroutine. queued holds the key's
// single follow-up job, if any; it never grows beyond one because
// later dispatches merge into it.
type slot struct {
	queued *pending
}

// Orchestrator enforces at most one in-flight recomputation per entity
// key while distinct keys run concurrently.
type Orchestrator struct {
	calc      calculator.Calculator
	persister Persister
	registry  *stats.Registry
	limiter   *rate.Limiter
	retry     *faults.RetryPolicy

	windows     []calculator.Window
	calcTimeout time.Duration
	now         func() time.Time

	// baseCtx gates limiter waits only; it never reaches a calculator
	// call, so a started computation always finishes or times out on
	// its own. Drain cancels it to release runs still waiting to start.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	slots   map[string]*slot
	stopped bool
}

// New creates an orchestrator. The calculator and persister are
// required; zero config values fall back to production defaults.
func New(cfg Config, calc calculator.Calculator, persister Persister, registry *stats.Registry) (*Orchestrator, error) {
	if calc == nil {
		return nil, fmt.Errorf("calculator is required")
	}
	if persister == nil {
		return nil, fmt.Errorf("persister is required")
	}
	if len(cfg.Windows) == 0 {
		return nil, fmt.Errorf("at least one window is required")
	}
	if cfg.DispatchRate <= 0 {
		cfg.DispatchRate = 50
	}
	if cfg.DispatchBurst < 1 {
		cfg.DispatchBurst = 10
	}
	if cfg.CalculationTimeout <= 0 {
		cfg.CalculationTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		calc:        calc,
		persister:   persister,
		registry:    registry,
		limiter:     rate.NewLimiter(rate.Limit(cfg.DispatchRate), cfg.DispatchBurst),
		retry:       faults.DefaultRetryPolicy(),
		windows:     cfg.Windows,
		calcTimeout: cfg.CalculationTimeout,
		now:         time.Now,
		baseCtx:     ctx,
		cancel:      cancel,
		slots:       make(map[string]*slot),
	}, nil
}

// Dispatch requests a recomputation for the key. It never blocks: when
// the key is already running, the request merges into the key's single
// queued follow-up, which executes immediately after the current run
// and sees every fact the merged dispatches announced. done, when not
// nil, is invoked with the covering run's results; jobs dropped by a
// drain never invoke it, leaving their entries to redelivery.
func (o *Orchestrator) Dispatch(entityKey string, events int64, done CompletionFunc) error {
	if entityKey == "" {
		return faults.Permanent(faults.CategoryValidation, "entity key is required", nil)
	}

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return ErrStopped
	}

	if s, running := o.slots[entityKey]; running {
		if s.queued == nil {
			s.queued = &pending{}
		} else {
			metrics.RecordQueuedMerge()
		}
		s.queued.events += events
		if done != nil {
			s.queued.callbacks = append(s.queued.callbacks, done)
		}
		o.mu.Unlock()

		logging.Debug().
			Str("entity_key", entityKey).
			Int64("events", events).
			Msg("recomputation queued behind in-flight run")
		return nil
	}

	o.slots[entityKey] = &slot{}
	o.wg.Add(1)
	o.mu.Unlock()

	job := &pending{events: events}
	if done != nil {
		job.callbacks = append(job.callbacks, done)
	}
	go o.runKey(entityKey, job)

	return nil
}

// runKey owns the key until its slot is released. Each iteration is one
// full run; a queued follow-up chains directly into the next iteration,
// so no second goroutine can ever hold the same key.
func (o *Orchestrator) runKey(entityKey string, job *pending) {
	defer o.wg.Done()

	for job != nil {
		if err := o.limiter.Wait(o.baseCtx); err != nil {
			o.abandon(entityKey, job, err)
			return
		}

		results := o.recompute(entityKey, job.events)

		for _, done := range job.callbacks {
			done(results)
		}

		job = o.takeQueued(entityKey)
	}
}

// recompute runs every configured window once and persists each result
// independently. It always returns one result per window: a failure is
// embedded with status failed instead of aborting the run, so one bad
// window cannot block the rest.
func (o *Orchestrator) recompute(entityKey string, events int64) []models.WindowResult {
	start := time.Now()
	metrics.RecordRecomputationStarted()
	if o.registry != nil {
		o.registry.IncRecomputationsTriggered()
	}

	results := make([]models.WindowResult, 0, len(o.windows))
	saved := 0
	for _, w := range o.windows {
		result := o.computeWindow(entityKey, w)
		if result.OK() {
			saved++
		}
		results = append(results, result)
	}

	if o.registry != nil && saved > 0 {
		o.registry.AddWindowsSaved(int64(saved))
		o.registry.IncEntitiesUpdated()
	}

	outcome := outcomeLabel(saved, len(o.windows))
	metrics.RecordRecomputation(outcome, time.Since(start))

	evt := logging.Debug()
	if saved < len(o.windows) {
		evt = logging.Warn()
	}
	evt.Str("entity_key", entityKey).
		Int64("events", events).
		Int("windows_saved", saved).
		Int("windows_total", len(o.windows)).
		Str("outcome", outcome).
		Dur("duration", time.Since(start)).
		Msg("recomputation completed")

	return results
}

// computeWindow calculates and persists one trailing window. A window
// that fails is still persisted with status failed so the staleness is
// visible to readers; the next successful run overwrites it.
func (o *Orchestrator) computeWindow(entityKey string, w calculator.Window) models.WindowResult {
	values, err := o.calculate(entityKey, w)

	now := o.now().UTC()
	result := models.WindowResult{
		EntityKey:       entityKey,
		WindowID:        w.ID,
		CalculationDate: models.CalculationDateUTC(now),
		MetricValues:    values,
		ComputedAt:      now,
		Status:          models.WindowStatusOK,
	}
	if err != nil {
		result.Status = models.WindowStatusFailed
		result.Error = err.Error()
		result.MetricValues = nil
		if o.registry != nil {
			o.registry.IncErrors()
		}
		metrics.RecordWindowFailure(w.ID, "calculate")
		logging.Error().
			Err(err).
			Str("entity_key", entityKey).
			Str("window_id", w.ID).
			Msg("window calculation failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.calcTimeout)
	defer cancel()

	if perr := o.persister.UpsertWindowMetrics(ctx, &result); perr != nil {
		if o.registry != nil {
			o.registry.IncErrors()
		}
		metrics.RecordWindowFailure(w.ID, "persist")
		logging.Error().
			Err(perr).
			Str("entity_key", entityKey).
			Str("window_id", w.ID).
			Msg("window persistence failed")

		if result.Status == models.WindowStatusOK {
			result.Status = models.WindowStatusFailed
			result.Error = perr.Error()
		}
	}

	return result
}

// calculate runs one calculator attempt per bounded retry, each under
// its own timeout detached from the drain context.
func (o *Orchestrator) calculate(entityKey string, w calculator.Window) (models.MetricValues, error) {
	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), o.calcTimeout)
		values, err := o.calc.Calculate(ctx, entityKey, w)
		cancel()

		if err == nil {
			return values, nil
		}
		if !o.retry.ShouldRetry(err, attempt) {
			return nil, err
		}

		backoff := o.retry.Backoff(attempt)
		logging.Debug().
			Err(err).
			Str("entity_key", entityKey).
			Str("window_id", w.ID).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("retrying window calculation")
		time.Sleep(backoff)
	}
}

// takeQueued claims the key's queued follow-up or releases the key.
// Once a drain has begun, queued jobs are dropped instead of started.
func (o *Orchestrator) takeQueued(entityKey string) *pending {
	o.mu.Lock()
	s := o.slots[entityKey]
	if s != nil && s.queued != nil && !o.stopped {
		job := s.queued
		s.queued = nil
		o.mu.Unlock()
		return job
	}
	var dropped *pending
	if s != nil {
		dropped = s.queued
	}
	delete(o.slots, entityKey)
	o.mu.Unlock()

	if dropped != nil {
		logging.Warn().
			Str("entity_key", entityKey).
			Int64("events", dropped.events).
			Msg("queued recomputation dropped by drain; entries left for redelivery")
	}
	return nil
}

// abandon releases a key whose run never started, along with any
// follow-up queued behind it. Neither job's callbacks fire, so their
// entries stay unacknowledged and the stream redelivers them.
func (o *Orchestrator) abandon(entityKey string, job *pending, err error) {
	o.mu.Lock()
	if s := o.slots[entityKey]; s != nil && s.queued != nil {
		job.events += s.queued.events
	}
	delete(o.slots, entityKey)
	o.mu.Unlock()

	logging.Warn().
		Err(err).
		Str("entity_key", entityKey).
		Int64("events", job.events).
		Msg("recomputation dropped before start; entries left for redelivery")
}

// Drain stops accepting dispatches, drops queued follow-ups, and waits
// up to timeout for in-flight runs to finish. It returns an error when
// runs are still executing at the deadline.
func (o *Orchestrator) Drain(timeout time.Duration) error {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info().Msg("recomputation orchestrator drained")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("drain timed out after %s: %d keys still in flight", timeout, o.InFlight())
	}
}

// InFlight returns the number of keys currently owned by a run.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.slots)
}

// QueuedFor reports whether the key has a queued follow-up.
func (o *Orchestrator) QueuedFor(entityKey string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.slots[entityKey]
	return ok && s.queued != nil
}

// Windows returns the configured trailing windows.
func (o *Orchestrator) Windows() []calculator.Window {
	return o.windows
}

func outcomeLabel(saved, total int) string {
	switch {
	case saved == total:
		return "success"
	case saved == 0:
		return "failure"
	default:
		return "partial"
	}
}
