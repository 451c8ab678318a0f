// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/praeceptor/internal/consumer"
	"github.com/tomtom215/praeceptor/internal/debounce"
	"github.com/tomtom215/praeceptor/internal/eventlog"
	"github.com/tomtom215/praeceptor/internal/faults"
	"github.com/tomtom215/praeceptor/internal/models"
	"github.com/tomtom215/praeceptor/internal/orchestrator"
	"github.com/tomtom215/praeceptor/internal/stats"
)

// fakeLog is an in-memory consumer group. ReadBatch hands out the queued
// batches in order, then emulates the block timeout elapsing with no
// traffic.
type fakeLog struct {
	mu       sync.Mutex
	joinErr  error
	claimErr error
	stale    []*consumer.Entry
	batches  [][]*consumer.Entry
	readErr  error
	ackErr   error
	acked    []uint64
	termed   map[uint64]string
	calls    []string
}

func newFakeLog() *fakeLog {
	return &fakeLog{termed: make(map[uint64]string)}
}

func (f *fakeLog) JoinGroup(ctx context.Context) error {
	return f.joinErr
}

func (f *fakeLog) ClaimStale(ctx context.Context) ([]*consumer.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "claim")
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	entries := f.stale
	f.stale = nil
	return entries, nil
}

func (f *fakeLog) ReadBatch(ctx context.Context, maxCount int) ([]*consumer.Entry, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "read")
	if f.readErr != nil {
		err := f.readErr
		f.readErr = nil
		f.mu.Unlock()
		return nil, err
	}
	if len(f.batches) == 0 {
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	f.mu.Unlock()
	return batch, nil
}

func (f *fakeLog) Ack(ctx context.Context, entry *consumer.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, entry.ID())
	return nil
}

func (f *fakeLog) Term(entry *consumer.Entry, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.termed[entry.ID()] = reason
	return nil
}

func (f *fakeLog) GroupName() string  { return "metrics-workers" }
func (f *fakeLog) ConsumerID() string { return "worker-test" }

func (f *fakeLog) ackedIDs() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, len(f.acked))
	copy(out, f.acked)
	return out
}

func (f *fakeLog) termReason(id uint64) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reason, ok := f.termed[id]
	return reason, ok
}

func (f *fakeLog) firstCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[0]
}

type fakeFacts struct {
	mu     sync.Mutex
	events []*models.SessionEvent
	errFor map[string]error
}

func newFakeFacts() *fakeFacts {
	return &fakeFacts{errFor: make(map[string]error)}
}

func (f *fakeFacts) RecordSessionEvent(ctx context.Context, event *models.SessionEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor[event.EntityKey]; err != nil {
		return false, err
	}
	f.events = append(f.events, event)
	return true, nil
}

func (f *fakeFacts) recorded() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type dispatchCall struct {
	entityKey string
	events    int64
}

// fakeRecomputer invokes the completion callback synchronously so tests
// observe acknowledgment without polling.
type fakeRecomputer struct {
	mu         sync.Mutex
	err        error
	results    []models.WindowResult
	resultsFor map[string][]models.WindowResult
	dispatches []dispatchCall
}

func newFakeRecomputer() *fakeRecomputer {
	return &fakeRecomputer{resultsFor: make(map[string][]models.WindowResult)}
}

func (f *fakeRecomputer) Dispatch(entityKey string, events int64, done orchestrator.CompletionFunc) error {
	f.mu.Lock()
	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return err
	}
	f.dispatches = append(f.dispatches, dispatchCall{entityKey: entityKey, events: events})
	results := f.results
	if r, ok := f.resultsFor[entityKey]; ok {
		results = r
	}
	f.mu.Unlock()

	if done != nil {
		done(results)
	}
	return nil
}

func (f *fakeRecomputer) Drain(timeout time.Duration) error { return nil }

func (f *fakeRecomputer) dispatched() []dispatchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]dispatchCall, len(f.dispatches))
	copy(out, f.dispatches)
	return out
}

type fakeDeadLetters struct {
	mu      sync.Mutex
	err     error
	entries []*models.DeadLetterEntry
}

func (f *fakeDeadLetters) Record(ctx context.Context, entry *models.DeadLetterEntry) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.entries = append(f.entries, entry)
	return uint64(len(f.entries)), nil
}

func (f *fakeDeadLetters) recorded() []*models.DeadLetterEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.DeadLetterEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

type fixture struct {
	worker      *Worker
	log         *fakeLog
	facts       *fakeFacts
	recomputer  *fakeRecomputer
	deadLetters *fakeDeadLetters
	registry    *stats.Registry
	aggregator  *debounce.Aggregator
}

// okResults builds an all-saved run outcome for the given key.
func okResults(entityKey string) []models.WindowResult {
	windows := []string{"7d", "30d", "90d"}
	results := make([]models.WindowResult, len(windows))
	for i, id := range windows {
		results[i] = models.WindowResult{
			EntityKey:       entityKey,
			WindowID:        id,
			CalculationDate: "2026-03-14",
			MetricValues:    models.MetricValues{models.MetricSessionsCompleted: 1},
			Status:          models.WindowStatusOK,
		}
	}
	return results
}

func failedResults(entityKey, reason string) []models.WindowResult {
	results := okResults(entityKey)
	for i := range results {
		results[i].Status = models.WindowStatusFailed
		results[i].Error = reason
		results[i].MetricValues = nil
	}
	return results
}

// newFixture builds a worker over fakes. Debounce runs in immediate mode
// so each event emits its own command; tests that exercise coalescing
// construct their own aggregator.
func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	registry := stats.NewRegistry()
	aggregator := debounce.NewAggregator(debounce.Config{Enabled: false, BufferSize: 64}, registry)
	log := newFakeLog()
	facts := newFakeFacts()
	recomputer := newFakeRecomputer()
	deadLetters := &fakeDeadLetters{}

	w, err := New(cfg, log, facts, aggregator, recomputer, deadLetters, registry)
	require.NoError(t, err)

	t.Cleanup(w.Stop)

	return &fixture{
		worker:      w,
		log:         log,
		facts:       facts,
		recomputer:  recomputer,
		deadLetters: deadLetters,
		registry:    registry,
		aggregator:  aggregator,
	}
}

func makeEvent(entityKey string) *models.SessionEvent {
	event := models.NewSessionEvent(entityKey)
	event.Session = models.SessionFact{
		SessionID:       uuid.New().String(),
		StudentKey:      "student-1",
		Subject:         "algebra",
		StartedAt:       time.Now().UTC().Add(-time.Hour),
		DurationMinutes: 60,
		Rating:          4.5,
		EarningsCents:   4500,
		Completed:       true,
	}
	return event
}

func makeEntry(t *testing.T, id, deliveries uint64, event *models.SessionEvent) *consumer.Entry {
	t.Helper()
	payload, err := eventlog.SerializeEvent(event)
	require.NoError(t, err)

	return &consumer.Entry{StreamEntry: models.StreamEntry{
		EntryID:    id,
		EntityKey:  event.EntityKey,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC().Add(-time.Second),
		Deliveries: deliveries,
	}}
}

func rawEntry(id, deliveries uint64, entityKey string, payload []byte) *consumer.Entry {
	return &consumer.Entry{StreamEntry: models.StreamEntry{
		EntryID:    id,
		EntityKey:  entityKey,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC().Add(-time.Second),
		Deliveries: deliveries,
	}}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNew_Validation(t *testing.T) {
	registry := stats.NewRegistry()
	aggregator := debounce.NewAggregator(debounce.Config{Enabled: false}, registry)
	log := newFakeLog()
	facts := newFakeFacts()
	recomputer := newFakeRecomputer()
	deadLetters := &fakeDeadLetters{}

	_, err := New(Config{}, nil, facts, aggregator, recomputer, deadLetters, registry)
	assert.ErrorContains(t, err, "consumer group")

	_, err = New(Config{}, log, nil, aggregator, recomputer, deadLetters, registry)
	assert.ErrorContains(t, err, "fact store")

	_, err = New(Config{}, log, facts, nil, recomputer, deadLetters, registry)
	assert.ErrorContains(t, err, "aggregator")

	_, err = New(Config{}, log, facts, aggregator, nil, deadLetters, registry)
	assert.ErrorContains(t, err, "recomputer")

	_, err = New(Config{}, log, facts, aggregator, recomputer, nil, registry)
	assert.ErrorContains(t, err, "dead-letter")

	w, err := New(Config{}, log, facts, aggregator, recomputer, deadLetters, nil)
	require.NoError(t, err)
	assert.NotNil(t, w)
}

func TestNew_Defaults(t *testing.T) {
	f := newFixture(t, Config{})

	assert.Equal(t, 10, f.worker.cfg.BatchSize)
	assert.Equal(t, 5, f.worker.cfg.MaxDeliver)
	assert.Equal(t, 30*time.Second, f.worker.cfg.DrainTimeout)
	assert.Equal(t, 15*time.Second, f.worker.cfg.AckTimeout)
	assert.Equal(t, time.Second, f.worker.cfg.ReadRetryWait)
}

func TestStart_JoinFailureLeavesWorkerStopped(t *testing.T) {
	f := newFixture(t, Config{})
	f.log.joinErr = errors.New("stream offline")

	err := f.worker.Start(context.Background())
	require.ErrorContains(t, err, "stream offline")
	assert.False(t, f.worker.IsRunning())
}

func TestStart_SecondStartRejected(t *testing.T) {
	f := newFixture(t, Config{})

	require.NoError(t, f.worker.Start(context.Background()))
	err := f.worker.Start(context.Background())
	assert.ErrorContains(t, err, "already running")
}

func TestProcessEntry_RecordsFactAndFires(t *testing.T) {
	f := newFixture(t, Config{})
	event := makeEvent("tutor-1")
	entry := makeEntry(t, 11, 1, event)

	f.worker.processEntry(context.Background(), entry)

	assert.Equal(t, 1, f.facts.recorded())
	assert.Equal(t, 1, f.worker.PendingEntries())
	assert.False(t, f.worker.LastEventAt().IsZero())
	assert.Equal(t, int64(1), f.registry.Snapshot().EventsProcessed)

	select {
	case cmd := <-f.aggregator.Commands():
		assert.Equal(t, "tutor-1", cmd.EntityKey)
		assert.Equal(t, int64(1), cmd.Events)
	case <-time.After(time.Second):
		t.Fatal("no debounce command emitted")
	}
}

func TestProcessEntry_MalformedPayloadDeadLettered(t *testing.T) {
	f := newFixture(t, Config{})
	entry := rawEntry(21, 1, "tutor-2", []byte("{not json"))

	f.worker.processEntry(context.Background(), entry)

	dead := f.deadLetters.recorded()
	require.Len(t, dead, 1)
	assert.Equal(t, "tutor-2", dead[0].EntityKey)
	assert.Equal(t, "validation", dead[0].Category)
	assert.Contains(t, dead[0].Reason, "does not decode")
	assert.Equal(t, []byte("{not json"), dead[0].Payload)

	reason, termed := f.log.termReason(21)
	assert.True(t, termed)
	assert.Contains(t, reason, "does not decode")

	assert.Zero(t, f.facts.recorded())
	assert.Zero(t, f.worker.PendingEntries())
	snap := f.registry.Snapshot()
	assert.Equal(t, int64(1), snap.Errors)
	assert.Equal(t, int64(1), snap.EntriesDeadLettered)
}

func TestProcessEntry_InvalidEventDeadLettered(t *testing.T) {
	f := newFixture(t, Config{})

	event := makeEvent("tutor-3")
	event.EventID = "not-a-uuid"
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	f.worker.processEntry(context.Background(), rawEntry(31, 1, "tutor-3", payload))

	dead := f.deadLetters.recorded()
	require.Len(t, dead, 1)
	assert.Equal(t, "validation", dead[0].Category)
	assert.Contains(t, dead[0].Reason, "failed validation")
	assert.Zero(t, f.facts.recorded())
}

func TestProcessEntry_TransientFactErrorAwaitsRedelivery(t *testing.T) {
	f := newFixture(t, Config{MaxDeliver: 3})
	f.facts.errFor["tutor-4"] = errors.New("database locked")

	f.worker.processEntry(context.Background(), makeEntry(t, 41, 1, makeEvent("tutor-4")))

	assert.Empty(t, f.deadLetters.recorded())
	_, termed := f.log.termReason(41)
	assert.False(t, termed)
	assert.Zero(t, f.worker.PendingEntries())
	assert.Equal(t, int64(1), f.registry.Snapshot().Errors)
}

func TestProcessEntry_FactErrorOnFinalDeliveryDeadLettered(t *testing.T) {
	f := newFixture(t, Config{MaxDeliver: 3})
	f.facts.errFor["tutor-5"] = errors.New("database locked")

	f.worker.processEntry(context.Background(), makeEntry(t, 51, 3, makeEvent("tutor-5")))

	dead := f.deadLetters.recorded()
	require.Len(t, dead, 1)
	assert.Equal(t, uint64(3), dead[0].Deliveries)
	assert.Contains(t, dead[0].Reason, "database locked")

	_, termed := f.log.termReason(51)
	assert.True(t, termed)
}

func TestProcessEntry_PermanentFactErrorDeadLettered(t *testing.T) {
	f := newFixture(t, Config{MaxDeliver: 3})
	f.facts.errFor["tutor-6"] = faults.Permanent(faults.CategoryStorage, "constraint violation", nil)

	f.worker.processEntry(context.Background(), makeEntry(t, 61, 1, makeEvent("tutor-6")))

	dead := f.deadLetters.recorded()
	require.Len(t, dead, 1)
	assert.Equal(t, "storage", dead[0].Category)

	_, termed := f.log.termReason(61)
	assert.True(t, termed)
}

func TestProcessEntry_DeadLetterFailureLeavesEntryUnacknowledged(t *testing.T) {
	f := newFixture(t, Config{})
	f.deadLetters.err = errors.New("disk full")

	f.worker.processEntry(context.Background(), rawEntry(71, 1, "tutor-7", []byte("garbage")))

	assert.Empty(t, f.deadLetters.recorded())
	_, termed := f.log.termReason(71)
	assert.False(t, termed, "entry must stay redeliverable when capture fails")
	assert.Empty(t, f.log.ackedIDs())
	assert.Equal(t, int64(0), f.registry.Snapshot().EntriesDeadLettered)
}

func TestDispatch_AcksEntriesAfterSuccessfulRun(t *testing.T) {
	f := newFixture(t, Config{})
	f.recomputer.results = okResults("tutor-8")

	ctx := context.Background()
	f.worker.processEntry(ctx, makeEntry(t, 81, 1, makeEvent("tutor-8")))
	f.worker.processEntry(ctx, makeEntry(t, 82, 1, makeEvent("tutor-8")))
	require.Equal(t, 2, f.worker.PendingEntries())

	// The first fire carries every entry tracked for the key.
	f.worker.dispatch(debounce.Command{EntityKey: "tutor-8", Events: 2, Reason: "quiet_window"})

	assert.ElementsMatch(t, []uint64{81, 82}, f.log.ackedIDs())
	assert.Zero(t, f.worker.PendingEntries())

	calls := f.recomputer.dispatched()
	require.Len(t, calls, 1)
	assert.Equal(t, dispatchCall{entityKey: "tutor-8", events: 2}, calls[0])
}

func TestDispatch_RejectedDispatchKeepsEntriesUnacked(t *testing.T) {
	f := newFixture(t, Config{})
	f.recomputer.err = orchestrator.ErrStopped

	f.worker.processEntry(context.Background(), makeEntry(t, 91, 1, makeEvent("tutor-9")))
	f.worker.dispatch(debounce.Command{EntityKey: "tutor-9", Events: 1, Reason: "immediate"})

	assert.Empty(t, f.log.ackedIDs())
	assert.Empty(t, f.deadLetters.recorded())
}

func TestFinish_PartialSaveStillAcks(t *testing.T) {
	f := newFixture(t, Config{})
	results := okResults("tutor-10")
	results[1].Status = models.WindowStatusFailed
	results[1].Error = "calculator timeout"
	f.recomputer.results = results

	f.worker.processEntry(context.Background(), makeEntry(t, 101, 1, makeEvent("tutor-10")))
	f.worker.dispatch(debounce.Command{EntityKey: "tutor-10", Events: 1, Reason: "quiet_window"})

	assert.Equal(t, []uint64{101}, f.log.ackedIDs())
}

func TestFinish_NothingSavedLeavesEntriesForRedelivery(t *testing.T) {
	f := newFixture(t, Config{MaxDeliver: 3})
	f.recomputer.results = failedResults("tutor-11", "database offline")

	f.worker.processEntry(context.Background(), makeEntry(t, 111, 1, makeEvent("tutor-11")))
	f.worker.dispatch(debounce.Command{EntityKey: "tutor-11", Events: 1, Reason: "quiet_window"})

	assert.Empty(t, f.log.ackedIDs())
	assert.Empty(t, f.deadLetters.recorded())
	_, termed := f.log.termReason(111)
	assert.False(t, termed)
}

func TestFinish_NothingSavedFinalDeliveryDeadLettered(t *testing.T) {
	f := newFixture(t, Config{MaxDeliver: 3})
	f.recomputer.results = failedResults("tutor-12", "database offline")

	ctx := context.Background()
	f.worker.processEntry(ctx, makeEntry(t, 121, 3, makeEvent("tutor-12")))
	f.worker.processEntry(ctx, makeEntry(t, 122, 1, makeEvent("tutor-12")))
	f.worker.dispatch(debounce.Command{EntityKey: "tutor-12", Events: 2, Reason: "quiet_window"})

	dead := f.deadLetters.recorded()
	require.Len(t, dead, 1)
	assert.Equal(t, "calculation", dead[0].Category)
	assert.Contains(t, dead[0].Reason, "database offline")

	_, termed := f.log.termReason(121)
	assert.True(t, termed, "exhausted entry should be terminated")
	_, termed = f.log.termReason(122)
	assert.False(t, termed, "fresh entry should stay redeliverable")
	assert.Empty(t, f.log.ackedIDs())
}

func TestWorker_EndToEndImmediateMode(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 5, ReadRetryWait: time.Millisecond})
	f.recomputer.resultsFor["tutor-a"] = okResults("tutor-a")
	f.recomputer.resultsFor["tutor-b"] = okResults("tutor-b")

	f.log.batches = [][]*consumer.Entry{
		{
			makeEntry(t, 1, 1, makeEvent("tutor-a")),
			makeEntry(t, 2, 1, makeEvent("tutor-b")),
		},
		{
			makeEntry(t, 3, 1, makeEvent("tutor-a")),
		},
	}

	require.NoError(t, f.worker.Start(context.Background()))

	waitUntil(t, 2*time.Second, func() bool {
		return len(f.log.ackedIDs()) == 3
	}, "entries were not acknowledged")

	assert.ElementsMatch(t, []uint64{1, 2, 3}, f.log.ackedIDs())
	assert.Equal(t, 3, f.facts.recorded())
	assert.Empty(t, f.deadLetters.recorded())
	assert.Equal(t, int64(3), f.registry.Snapshot().EventsProcessed)

	f.worker.Stop()
	assert.False(t, f.worker.IsRunning())
	assert.Zero(t, f.worker.PendingEntries())
}

func TestWorker_ReclaimRunsBeforeReads(t *testing.T) {
	f := newFixture(t, Config{ReadRetryWait: time.Millisecond})
	f.recomputer.resultsFor["tutor-c"] = okResults("tutor-c")
	f.log.stale = []*consumer.Entry{makeEntry(t, 9, 2, makeEvent("tutor-c"))}

	require.NoError(t, f.worker.Start(context.Background()))

	waitUntil(t, 2*time.Second, func() bool {
		return len(f.log.ackedIDs()) == 1
	}, "reclaimed entry was not acknowledged")

	assert.Equal(t, "claim", f.log.firstCall())
	assert.Equal(t, []uint64{9}, f.log.ackedIDs())
}

func TestWorker_ReclaimFailureDoesNotAbortStart(t *testing.T) {
	f := newFixture(t, Config{ReadRetryWait: time.Millisecond})
	f.log.claimErr = errors.New("consumer info unavailable")
	f.recomputer.resultsFor["tutor-d"] = okResults("tutor-d")
	f.log.batches = [][]*consumer.Entry{{makeEntry(t, 14, 1, makeEvent("tutor-d"))}}

	require.NoError(t, f.worker.Start(context.Background()))

	waitUntil(t, 2*time.Second, func() bool {
		return len(f.log.ackedIDs()) == 1
	}, "fresh entry was not processed after reclaim failure")
}

func TestWorker_ReadErrorRetries(t *testing.T) {
	f := newFixture(t, Config{ReadRetryWait: time.Millisecond})
	f.log.readErr = errors.New("fetch failed")
	f.recomputer.resultsFor["tutor-e"] = okResults("tutor-e")
	f.log.batches = [][]*consumer.Entry{{makeEntry(t, 15, 1, makeEvent("tutor-e"))}}

	require.NoError(t, f.worker.Start(context.Background()))

	waitUntil(t, 2*time.Second, func() bool {
		return len(f.log.ackedIDs()) == 1
	}, "read was not retried after a transient failure")
}

func TestStop_FlushesHeldDebounceState(t *testing.T) {
	registry := stats.NewRegistry()
	// A wide window that never fires on its own: only the shutdown flush
	// can move these entries.
	aggregator := debounce.NewAggregator(debounce.Config{
		Enabled:    true,
		Window:     time.Hour,
		MaxDelay:   2 * time.Hour,
		BufferSize: 64,
	}, registry)
	log := newFakeLog()
	facts := newFakeFacts()
	recomputer := newFakeRecomputer()
	recomputer.resultsFor["tutor-f"] = okResults("tutor-f")
	deadLetters := &fakeDeadLetters{}

	w, err := New(Config{ReadRetryWait: time.Millisecond}, log, facts, aggregator, recomputer, deadLetters, registry)
	require.NoError(t, err)

	log.batches = [][]*consumer.Entry{{
		makeEntry(t, 16, 1, makeEvent("tutor-f")),
		makeEntry(t, 17, 1, makeEvent("tutor-f")),
	}}

	require.NoError(t, w.Start(context.Background()))

	waitUntil(t, 2*time.Second, func() bool {
		return w.PendingEntries() == 2
	}, "entries were not tracked")
	assert.Empty(t, log.ackedIDs(), "nothing should be acknowledged while the window holds")

	w.Stop()

	assert.ElementsMatch(t, []uint64{16, 17}, log.ackedIDs())
	calls := recomputer.dispatched()
	require.Len(t, calls, 1, "flush should produce one coalesced dispatch")
	assert.Equal(t, dispatchCall{entityKey: "tutor-f", events: 2}, calls[0])
}

func TestStop_Idempotent(t *testing.T) {
	f := newFixture(t, Config{})

	// Stop before Start is a no-op.
	f.worker.Stop()

	require.NoError(t, f.worker.Start(context.Background()))
	f.worker.Stop()
	f.worker.Stop()
	assert.False(t, f.worker.IsRunning())
}

func TestConsumerInfo(t *testing.T) {
	f := newFixture(t, Config{})

	info := f.worker.ConsumerInfo()
	assert.Equal(t, "metrics-workers", info.GroupName)
	assert.Equal(t, "worker-test", info.ConsumerID)
	assert.False(t, info.Running)

	require.NoError(t, f.worker.Start(context.Background()))
	assert.True(t, f.worker.ConsumerInfo().Running)

	f.worker.Stop()
	assert.False(t, f.worker.ConsumerInfo().Running)
}

func TestLastEventAt_ZeroBeforeFirstEntry(t *testing.T) {
	f := newFixture(t, Config{})
	assert.True(t, f.worker.LastEventAt().IsZero())
}
