// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/praeceptor/internal/consumer"
	"github.com/tomtom215/praeceptor/internal/debounce"
	"github.com/tomtom215/praeceptor/internal/eventlog"
	"github.com/tomtom215/praeceptor/internal/faults"
	"github.com/tomtom215/praeceptor/internal/logging"
	"github.com/tomtom215/praeceptor/internal/metrics"
	"github.com/tomtom215/praeceptor/internal/models"
	"github.com/tomtom215/praeceptor/internal/orchestrator"
	"github.com/tomtom215/praeceptor/internal/stats"
	"github.com/tomtom215/praeceptor/internal/validation"
)

// Log is the consumer-group surface the worker reads from and
// acknowledges through. *consumer.GroupManager satisfies it.
type Log interface {
	JoinGroup(ctx context.Context) error
	ClaimStale(ctx context.Context) ([]*consumer.Entry, error)
	ReadBatch(ctx context.Context, maxCount int) ([]*consumer.Entry, error)
	Ack(ctx context.Context, entry *consumer.Entry) error
	Term(entry *consumer.Entry, reason string) error
	GroupName() string
	ConsumerID() string
}

// FactStore persists session facts ahead of recomputation. *database.DB
// satisfies it.
type FactStore interface {
	RecordSessionEvent(ctx context.Context, event *models.SessionEvent) (bool, error)
}

// Recomputer serializes per-tutor recomputation.
// *orchestrator.Orchestrator satisfies it.
type Recomputer interface {
	Dispatch(entityKey string, events int64, done orchestrator.CompletionFunc) error
	Drain(timeout time.Duration) error
}

// DeadLetters captures poison entries. *deadletter.Store satisfies it.
type DeadLetters interface {
	Record(ctx context.Context, entry *models.DeadLetterEntry) (uint64, error)
}

// Config holds worker settings.
type Config struct {
	// BatchSize caps entries per read.
	BatchSize int

	// MaxDeliver mirrors the group's delivery bound. An entry failing on
	// its final delivery is dead-lettered instead of being left to hit
	// the cap, where the server would drop it silently.
	MaxDeliver int

	// DrainTimeout bounds the shutdown wait for in-flight
	// recomputations.
	DrainTimeout time.Duration

	// AckTimeout bounds acknowledgment calls made from completion
	// callbacks, which run detached from the read loop's context.
	AckTimeout time.Duration

	// ReadRetryWait is the pause after a failed batch read.
	ReadRetryWait time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     10,
		MaxDeliver:    5,
		DrainTimeout:  30 * time.Second,
		AckTimeout:    15 * time.Second,
		ReadRetryWait: time.Second,
	}
}

// Worker drives the pipeline: it reads entries from the consumer group,
// records facts, holds each entry under its tutor key until a debounce
// fire covers it, and acknowledges entries once their recomputation has
// persisted progress.
type Worker struct {
	cfg         Config
	log         Log
	facts       FactStore
	aggregator  *debounce.Aggregator
	recomputer  Recomputer
	deadLetters DeadLetters
	registry    *stats.Registry

	// pending maps tutor key to the claimed entries waiting for a
	// debounce fire. Entries leave the map when a fire dispatches them;
	// they are settled by the run's completion callback.
	mu      sync.Mutex
	pending map[string][]*consumer.Entry

	running     atomic.Bool
	lastEventAt atomic.Value // time.Time

	stopCh   chan struct{}
	readDone chan struct{}
	cmdStop  chan struct{}
	cmdDone  chan struct{}
}

// New creates a worker. The registry may be nil, in which case a fresh
// one is used.
func New(cfg Config, log Log, facts FactStore, aggregator *debounce.Aggregator,
	recomputer Recomputer, deadLetters DeadLetters, registry *stats.Registry) (*Worker, error) {
	if log == nil {
		return nil, fmt.Errorf("consumer group is required")
	}
	if facts == nil {
		return nil, fmt.Errorf("fact store is required")
	}
	if aggregator == nil {
		return nil, fmt.Errorf("debounce aggregator is required")
	}
	if recomputer == nil {
		return nil, fmt.Errorf("recomputer is required")
	}
	if deadLetters == nil {
		return nil, fmt.Errorf("dead-letter store is required")
	}
	if registry == nil {
		registry = stats.NewRegistry()
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 5
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 15 * time.Second
	}
	if cfg.ReadRetryWait <= 0 {
		cfg.ReadRetryWait = time.Second
	}

	return &Worker{
		cfg:         cfg,
		log:         log,
		facts:       facts,
		aggregator:  aggregator,
		recomputer:  recomputer,
		deadLetters: deadLetters,
		registry:    registry,
		pending:     make(map[string][]*consumer.Entry),
	}, nil
}

// Start joins the consumer group, reprocesses entries reclaimed from
// stalled members, and launches the read and command loops. It returns an
// error only when the group cannot be joined; read failures after that
// are retried inside the loop.
func (w *Worker) Start(ctx context.Context) error {
	if w.running.Swap(true) {
		return fmt.Errorf("worker already running")
	}

	w.stopCh = make(chan struct{})
	w.readDone = make(chan struct{})
	w.cmdStop = make(chan struct{})
	w.cmdDone = make(chan struct{})

	if err := w.log.JoinGroup(ctx); err != nil {
		w.running.Store(false)
		return fmt.Errorf("failed to join consumer group: %w", err)
	}

	// The command loop must be consuming before anything can fire, or a
	// full command buffer would block the aggregator.
	go w.commandLoop()

	w.reclaim(ctx)

	go w.readLoop(ctx)

	logging.Info().
		Str("group", w.log.GroupName()).
		Str("consumer_id", w.log.ConsumerID()).
		Int("batch_size", w.cfg.BatchSize).
		Msg("worker started")

	return nil
}

// Stop drains the pipeline in dependency order: the read loop exits, held
// debounce state is flushed, the command loop drains every flushed fire
// into the orchestrator, and the orchestrator drain waits for in-flight
// runs. Entries still tracked afterwards stay unacknowledged; redelivery
// hands them to the next consumer.
func (w *Worker) Stop() {
	if !w.running.Swap(false) {
		return
	}

	close(w.stopCh)
	<-w.readDone

	w.aggregator.Flush()

	close(w.cmdStop)
	<-w.cmdDone

	if err := w.aggregator.Close(); err != nil {
		logging.Warn().Err(err).Msg("aggregator close failed")
	}

	if err := w.recomputer.Drain(w.cfg.DrainTimeout); err != nil {
		logging.Warn().Err(err).Msg("recomputation drain incomplete")
	}

	w.mu.Lock()
	orphaned := 0
	for _, entries := range w.pending {
		orphaned += len(entries)
	}
	w.pending = make(map[string][]*consumer.Entry)
	w.mu.Unlock()

	if orphaned > 0 {
		logging.Info().
			Int("entries", orphaned).
			Msg("unacknowledged entries left for redelivery")
	}

	logging.Info().
		Str("group", w.log.GroupName()).
		Str("consumer_id", w.log.ConsumerID()).
		Msg("worker stopped")
}

// reclaim reprocesses entries stranded by a crashed or stalled member
// before the first fresh read, so recovery work cannot be starved by new
// traffic. A failed reclaim is logged and skipped: the claim idle
// threshold redelivers the entries through the normal read path anyway.
func (w *Worker) reclaim(ctx context.Context) {
	entries, err := w.log.ClaimStale(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("stale entry reclaim failed, continuing with fresh reads")
		return
	}
	if len(entries) == 0 {
		return
	}

	logging.Info().
		Int("entries", len(entries)).
		Msg("reprocessing reclaimed entries")

	for _, entry := range entries {
		w.processEntry(ctx, entry)
	}
}

// readLoop pulls entry batches until stopped. An empty batch means the
// wait elapsed with no traffic and is not an error.
func (w *Worker) readLoop(ctx context.Context) {
	defer close(w.readDone)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		entries, err := w.log.ReadBatch(ctx, w.cfg.BatchSize)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			logging.Warn().Err(err).Msg("batch read failed")
			select {
			case <-w.stopCh:
				return
			case <-time.After(w.cfg.ReadRetryWait):
			}
			continue
		}

		for _, entry := range entries {
			w.processEntry(ctx, entry)
		}
	}
}

// processEntry runs ingress for one entry: decode, validate, record the
// session fact, then hold the entry under its tutor key until a debounce
// fire carries it into a recomputation. The entry is not acknowledged
// here; acknowledgment is the completion callback's job.
func (w *Worker) processEntry(ctx context.Context, entry *consumer.Entry) {
	event, err := eventlog.DeserializeEvent(entry.Payload)
	if err != nil {
		metrics.RecordParseFailure()
		w.poison(ctx, entry, faults.Permanent(faults.CategoryValidation, "event payload does not decode", err))
		return
	}

	if verr := validation.ValidateStruct(event); verr != nil {
		metrics.RecordParseFailure()
		w.poison(ctx, entry, faults.Permanent(faults.CategoryValidation, "event failed validation", verr))
		return
	}

	// The decoded payload is authoritative for routing. The header copy
	// on the entry exists for pre-decode observability only.
	key := event.EntityKey

	changed, err := w.facts.RecordSessionEvent(ctx, event)
	if err != nil {
		w.entryFailed(ctx, entry, err)
		return
	}
	if !changed {
		logging.Debug().
			Str("entity_key", key).
			Str("event_id", event.EventID).
			Uint64("entry_id", entry.ID()).
			Msg("fact unchanged, duplicate or stale delivery")
	}

	w.registry.AddEventsProcessed(1)
	metrics.RecordEventProcessed(event.EventType)
	w.lastEventAt.Store(time.Now())

	w.trackPending(key, entry)
	w.aggregator.OnEvent(key)
}

// entryFailed handles a fact-store failure. Transient errors leave the
// entry unacknowledged so the claim idle threshold redelivers it;
// permanent errors and final deliveries are dead-lettered, because
// another delivery would repeat the failure until the delivery cap drops
// the entry silently.
func (w *Worker) entryFailed(ctx context.Context, entry *consumer.Entry, err error) {
	if faults.IsPermanent(err) || entry.Deliveries >= uint64(w.cfg.MaxDeliver) {
		w.poison(ctx, entry, err)
		return
	}

	w.registry.IncErrors()
	logging.Warn().
		Uint64("entry_id", entry.ID()).
		Str("entity_key", entry.EntityKey).
		Uint64("deliveries", entry.Deliveries).
		Err(err).
		Msg("fact recording failed, awaiting redelivery")
}

// poison captures the entry in the dead-letter store, then terminates it
// so the group stops redelivering it. When the capture itself fails the
// entry is left unacknowledged instead: redelivery retries the capture,
// and nothing is lost silently.
func (w *Worker) poison(ctx context.Context, entry *consumer.Entry, cause error) {
	w.registry.IncErrors()

	dead := &models.DeadLetterEntry{
		EntityKey:  entry.EntityKey,
		Reason:     cause.Error(),
		Category:   faults.CategoryOf(cause).String(),
		Payload:    entry.Payload,
		Deliveries: entry.Deliveries,
		FirstSeen:  entry.EnqueuedAt,
	}

	id, err := w.deadLetters.Record(ctx, dead)
	if err != nil {
		logging.Error().
			Uint64("entry_id", entry.ID()).
			Str("entity_key", entry.EntityKey).
			Err(err).
			Msg("dead-letter capture failed, leaving entry for redelivery")
		return
	}

	w.registry.IncEntriesDeadLettered()

	logging.Error().
		Uint64("entry_id", entry.ID()).
		Uint64("dead_letter_id", id).
		Str("entity_key", entry.EntityKey).
		Str("category", dead.Category).
		Str("reason", dead.Reason).
		Msg("entry dead-lettered")

	// Term after a successful capture. If it fails the entry is
	// redelivered and captured again; retention bounds the duplicates.
	if err := w.log.Term(entry, cause.Error()); err != nil {
		logging.Warn().
			Uint64("entry_id", entry.ID()).
			Err(err).
			Msg("terminate failed after dead-letter capture")
	}
}

// commandLoop turns debounce fires into orchestrator dispatches. It exits
// only after draining the buffer, so fires flushed during shutdown still
// reach the orchestrator.
func (w *Worker) commandLoop() {
	defer close(w.cmdDone)

	for {
		select {
		case <-w.cmdStop:
			w.drainCommands()
			return
		case cmd := <-w.aggregator.Commands():
			w.dispatch(cmd)
		}
	}
}

// drainCommands empties the command buffer after stop is signaled.
func (w *Worker) drainCommands() {
	for {
		select {
		case cmd := <-w.aggregator.Commands():
			w.dispatch(cmd)
		default:
			return
		}
	}
}

// dispatch hands one debounce fire to the orchestrator, moving the fire's
// tracked entries into its completion callback. A rejected dispatch
// leaves the entries unacknowledged; redelivery retries them on a running
// worker.
func (w *Worker) dispatch(cmd debounce.Command) {
	entries := w.takePending(cmd.EntityKey)

	err := w.recomputer.Dispatch(cmd.EntityKey, cmd.Events, func(results []models.WindowResult) {
		w.finish(cmd.EntityKey, entries, results)
	})
	if err != nil {
		logging.Warn().
			Str("entity_key", cmd.EntityKey).
			Int("entries", len(entries)).
			Err(err).
			Msg("dispatch rejected, entries await redelivery")
	}
}

// finish settles the entries a completed run covered. Any saved window is
// progress worth acknowledging: failed windows were persisted as failed
// and heal on the entity's next run. A run that saved nothing leaves the
// entries for redelivery, dead-lettering any on their final delivery.
func (w *Worker) finish(key string, entries []*consumer.Entry, results []models.WindowResult) {
	if len(entries) == 0 {
		return
	}

	saved := 0
	for i := range results {
		if results[i].OK() {
			saved++
		}
	}

	if saved == 0 && len(results) > 0 {
		w.retryOrPoison(key, entries, results[0].Error)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.AckTimeout)
	defer cancel()

	for _, entry := range entries {
		if err := w.log.Ack(ctx, entry); err != nil {
			logging.Warn().
				Uint64("entry_id", entry.ID()).
				Str("entity_key", key).
				Err(err).
				Msg("ack failed, idempotent replay will converge")
		}
	}
}

// retryOrPoison handles a run that persisted nothing. Window-level errors
// were already counted by the orchestrator, so entries kept for
// redelivery add no error counts here.
func (w *Worker) retryOrPoison(key string, entries []*consumer.Entry, reason string) {
	if reason == "" {
		reason = "recomputation saved no windows"
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.AckTimeout)
	defer cancel()

	kept := 0
	for _, entry := range entries {
		if entry.Deliveries >= uint64(w.cfg.MaxDeliver) {
			w.poison(ctx, entry, faults.Permanent(faults.CategoryCalculation, reason, nil))
			continue
		}
		kept++
	}

	if kept > 0 {
		logging.Warn().
			Str("entity_key", key).
			Int("entries", kept).
			Str("reason", reason).
			Msg("recomputation saved nothing, entries await redelivery")
	}
}

func (w *Worker) trackPending(key string, entry *consumer.Entry) {
	w.mu.Lock()
	w.pending[key] = append(w.pending[key], entry)
	w.mu.Unlock()
}

func (w *Worker) takePending(key string) []*consumer.Entry {
	w.mu.Lock()
	entries := w.pending[key]
	delete(w.pending, key)
	w.mu.Unlock()
	return entries
}

// IsRunning reports whether the worker loops are active.
func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

// PendingEntries returns how many claimed entries are waiting for a
// debounce fire to carry them into a recomputation.
func (w *Worker) PendingEntries() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, entries := range w.pending {
		n += len(entries)
	}
	return n
}

// LastEventAt returns when ingress last completed for an entry, zero
// before the first one.
func (w *Worker) LastEventAt() time.Time {
	if v := w.lastEventAt.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// ConsumerInfo describes the group membership for the stats API.
func (w *Worker) ConsumerInfo() models.ConsumerInfo {
	return models.ConsumerInfo{
		GroupName:  w.log.GroupName(),
		ConsumerID: w.log.ConsumerID(),
		Running:    w.running.Load(),
	}
}
