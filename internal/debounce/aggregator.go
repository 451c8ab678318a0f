// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package debounce

import (
	"sync"
	"time"

	"github.com/tomtom215/praeceptor/internal/logging"
	"github.com/tomtom215/praeceptor/internal/metrics"
	"github.com/tomtom215/praeceptor/internal/stats"
)

// Fire reasons reported on emitted commands.
const (
	// ReasonQuietWindow means the sliding window elapsed without a new event.
	ReasonQuietWindow = "quiet_window"
	// ReasonMaxDelay means continuous traffic hit the starvation cap.
	ReasonMaxDelay = "max_delay"
	// ReasonFlush means a shutdown flush forced the fire.
	ReasonFlush = "flush"
	// ReasonImmediate means debouncing is disabled.
	ReasonImmediate = "immediate"
)

// State is the per-key debounce state.
type State int

const (
	// StateIdle means no record exists for the key.
	StateIdle State = iota
	// StatePending means events are accumulating toward a fire.
	StatePending
	// StateFiring means the fire is being emitted.
	StateFiring
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFiring:
		return "firing"
	default:
		return "unknown"
	}
}

// Command orders one recomputation for a tutor, covering every event
// accumulated while the key was pending.
type Command struct {
	EntityKey string
	Events    int64
	Reason    string
	HeldFor   time.Duration
}

// Config holds aggregator settings.
type Config struct {
	// Enabled turns coalescing on. When false every event emits its own
	// command immediately.
	Enabled bool

	// Window is the sliding quiet window.
	Window time.Duration

	// MaxDelay caps the total hold time from the first accumulated
	// event, so continuous traffic cannot starve the fire.
	MaxDelay time.Duration

	// BufferSize is the command channel capacity. Fires block when the
	// buffer is full rather than dropping commands.
	BufferSize int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Window:     30 * time.Second,
		MaxDelay:   120 * time.Second,
		BufferSize: 1024,
	}
}

// record tracks one key's accumulation between IDLE states. The
// generation distinguishes a record from its successor when events
// arrive during a fire.
type record struct {
	gen          uint64
	state        State
	firstEventAt time.Time
	fireAt       time.Time
	events       int64
	timer        Timer
}

// Aggregator owns the debounce records and their timers. All state
// transitions happen under one mutex; emits happen outside it.
type Aggregator struct {
	cfg      Config
	clock    Clock
	registry *stats.Registry
	commands chan Command
	done     chan struct{}

	mu      sync.Mutex
	records map[string]*record
	nextGen uint64
	closed  bool
}

// NewAggregator creates an aggregator using the wall clock.
func NewAggregator(cfg Config, registry *stats.Registry) *Aggregator {
	return NewAggregatorWithClock(cfg, registry, realClock{})
}

// NewAggregatorWithClock creates an aggregator with a custom clock.
func NewAggregatorWithClock(cfg Config, registry *stats.Registry, clock Clock) *Aggregator {
	if cfg.Window <= 0 {
		cfg.Window = 30 * time.Second
	}
	if cfg.MaxDelay < cfg.Window {
		cfg.MaxDelay = 4 * cfg.Window
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}

	return &Aggregator{
		cfg:      cfg,
		clock:    clock,
		registry: registry,
		commands: make(chan Command, cfg.BufferSize),
		done:     make(chan struct{}),
		records:  make(map[string]*record),
	}
}

// Commands returns the channel recompute commands are emitted on. The
// channel is never closed; consumers select against their own shutdown
// signal.
func (a *Aggregator) Commands() <-chan Command {
	return a.commands
}

// OnEvent records one event for the key, creating or extending its
// debounce record. With debouncing disabled it emits immediately.
func (a *Aggregator) OnEvent(entityKey string) {
	if entityKey == "" {
		return
	}

	if !a.cfg.Enabled {
		a.emit(Command{EntityKey: entityKey, Events: 1, Reason: ReasonImmediate})
		return
	}

	now := a.clock.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	rec, ok := a.records[entityKey]
	switch {
	case !ok:
		// IDLE -> PENDING
		a.startRecord(entityKey, now)

	case rec.state == StatePending:
		// Slide fire_at forward, capped at the starvation bound.
		rec.events++
		if next := a.capFireAt(now, rec.firstEventAt); next.After(rec.fireAt) {
			rec.fireAt = next
		}
		delay := rec.fireAt.Sub(now)
		if delay < 0 {
			delay = 0
		}
		rec.timer.Reset(delay)
		metrics.RecordCoalesced()

	case rec.state == StateFiring:
		// The running fire already captured its event count; this event
		// belongs to a fresh record so it is never lost.
		a.startRecord(entityKey, now)
	}
}

// startRecord installs a new PENDING record and arms its timer.
// Callers hold a.mu.
func (a *Aggregator) startRecord(entityKey string, now time.Time) {
	a.nextGen++
	rec := &record{
		gen:          a.nextGen,
		state:        StatePending,
		firstEventAt: now,
		fireAt:       a.capFireAt(now, now),
		events:       1,
	}
	gen := rec.gen
	rec.timer = a.clock.AfterFunc(rec.fireAt.Sub(now), func() {
		a.fire(entityKey, gen)
	})
	a.records[entityKey] = rec
	a.updatePending()
}

// capFireAt returns now + window, capped at firstEventAt + max delay.
func (a *Aggregator) capFireAt(now, firstEventAt time.Time) time.Time {
	fireAt := now.Add(a.cfg.Window)
	limit := firstEventAt.Add(a.cfg.MaxDelay)
	if fireAt.After(limit) {
		return limit
	}
	return fireAt
}

// fire transitions a record PENDING -> FIRING -> IDLE, emitting exactly
// one command. Stale pops (the timer fired but an extension moved
// fire_at) re-arm for the gap instead of firing early.
func (a *Aggregator) fire(entityKey string, gen uint64) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}

	rec, ok := a.records[entityKey]
	if !ok || rec.gen != gen || rec.state == StateFiring {
		// Superseded by a newer record or a concurrent pop.
		a.mu.Unlock()
		return
	}

	now := a.clock.Now()
	if now.Before(rec.fireAt) {
		rec.timer = a.clock.AfterFunc(rec.fireAt.Sub(now), func() {
			a.fire(entityKey, gen)
		})
		a.mu.Unlock()
		return
	}

	rec.state = StateFiring
	reason := ReasonQuietWindow
	if !now.Before(rec.firstEventAt.Add(a.cfg.MaxDelay)) {
		reason = ReasonMaxDelay
	}
	cmd := Command{
		EntityKey: entityKey,
		Events:    rec.events,
		Reason:    reason,
		HeldFor:   now.Sub(rec.firstEventAt),
	}
	a.mu.Unlock()

	a.emit(cmd)

	a.mu.Lock()
	if cur, ok := a.records[entityKey]; ok && cur.gen == gen && cur.state == StateFiring {
		// FIRING -> IDLE. A record with a newer generation means events
		// arrived during the emit and the key is PENDING again.
		delete(a.records, entityKey)
		a.updatePending()
	}
	a.mu.Unlock()
}

// emit delivers the command, blocking when the buffer is full so
// commands are never dropped. Close unblocks outstanding emits.
func (a *Aggregator) emit(cmd Command) {
	metrics.RecordDebounceFire(cmd.Reason, cmd.HeldFor)
	logging.Debug().
		Str("entity_key", cmd.EntityKey).
		Int64("events", cmd.Events).
		Str("reason", cmd.Reason).
		Dur("held_for", cmd.HeldFor).
		Msg("recompute command emitted")

	select {
	case a.commands <- cmd:
	case <-a.done:
	}
}

// Flush fires every pending key immediately. Used on graceful shutdown
// so held work completes and acknowledges before the process exits.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}

	now := a.clock.Now()
	fires := make([]Command, 0, len(a.records))
	for key, rec := range a.records {
		if rec.state != StatePending {
			continue
		}
		rec.timer.Stop()
		fires = append(fires, Command{
			EntityKey: key,
			Events:    rec.events,
			Reason:    ReasonFlush,
			HeldFor:   now.Sub(rec.firstEventAt),
		})
		delete(a.records, key)
	}
	a.updatePending()
	a.mu.Unlock()

	for _, cmd := range fires {
		a.emit(cmd)
	}
}

// Close stops all timers and discards pending records. Their entries
// remain unacknowledged upstream, so redelivery recovers the work.
func (a *Aggregator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	close(a.done)

	for key, rec := range a.records {
		if rec.timer != nil {
			rec.timer.Stop()
		}
		delete(a.records, key)
	}
	a.updatePending()

	return nil
}

// PendingCount returns the number of keys currently held.
func (a *Aggregator) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// StateOf reports the key's current state.
func (a *Aggregator) StateOf(entityKey string) State {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records[entityKey]
	if !ok {
		return StateIdle
	}
	return rec.state
}

// updatePending publishes the live record count. Callers hold a.mu.
func (a *Aggregator) updatePending() {
	count := len(a.records)
	if a.registry != nil {
		a.registry.SetPending(int64(count))
	}
	metrics.UpdatePendingTutors(count)
}
