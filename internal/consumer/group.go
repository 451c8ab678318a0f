// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/praeceptor/internal/faults"
	"github.com/tomtom215/praeceptor/internal/logging"
	"github.com/tomtom215/praeceptor/internal/metrics"
	"github.com/tomtom215/praeceptor/internal/stats"
)

// GroupConfig holds consumer group settings.
type GroupConfig struct {
	// GroupName is the durable consumer name shared by all members.
	GroupName string

	// ConsumerID identifies this member in logs. JetStream balances
	// delivery across members internally, so the id carries no protocol
	// meaning.
	ConsumerID string

	// FilterSubject restricts delivery to matching log subjects.
	FilterSubject string

	// BatchSize is the maximum entries returned per read.
	BatchSize int

	// BlockTimeout is how long a read blocks waiting for entries.
	BlockTimeout time.Duration

	// ClaimIdleThreshold is how long a delivered entry may sit
	// unacknowledged before the server reclaims it for redelivery.
	ClaimIdleThreshold time.Duration

	// MaxDeliver bounds redelivery attempts per entry.
	MaxDeliver int

	// AckMaxAttempts bounds ack retries before the entry is abandoned
	// to redelivery.
	AckMaxAttempts int
}

// DefaultGroupConfig returns production defaults for a consumer group.
func DefaultGroupConfig(group, consumerID string) GroupConfig {
	return GroupConfig{
		GroupName:          group,
		ConsumerID:         consumerID,
		FilterSubject:      "sessions.>",
		BatchSize:          10,
		BlockTimeout:       2 * time.Second,
		ClaimIdleThreshold: 30 * time.Second,
		MaxDeliver:         5,
		AckMaxAttempts:     3,
	}
}

// ConsumerProvider is the subset of jetstream.Stream used to join a
// group. The stream handle returned by the initializer satisfies it.
type ConsumerProvider interface {
	CreateOrUpdateConsumer(ctx context.Context, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
}

// PullConsumer is the subset of jetstream.Consumer used for reads.
// This interface allows for testing with mock implementations.
type PullConsumer interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
	Info(ctx context.Context) (*jetstream.ConsumerInfo, error)
}

// GroupInfo is a point-in-time view of the group's backlog.
type GroupInfo struct {
	// Backlog counts entries not yet delivered to any member.
	Backlog uint64
	// Unacked counts entries delivered but not yet acknowledged.
	Unacked int
}

// GroupManager joins one worker process to a consumer group and mediates
// all reads and acknowledgements against the log.
type GroupManager struct {
	provider ConsumerProvider
	cfg      GroupConfig
	registry *stats.Registry
	retry    *faults.RetryPolicy

	cons PullConsumer
}

// NewGroupManager creates a manager for the given stream handle.
// Returns an error if the provider is nil or the group name is empty.
func NewGroupManager(provider ConsumerProvider, cfg GroupConfig, registry *stats.Registry) (*GroupManager, error) {
	if provider == nil {
		return nil, fmt.Errorf("consumer provider required")
	}
	if cfg.GroupName == "" {
		return nil, fmt.Errorf("group name required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 2 * time.Second
	}
	if cfg.AckMaxAttempts <= 0 {
		cfg.AckMaxAttempts = 3
	}

	return &GroupManager{
		provider: provider,
		cfg:      cfg,
		registry: registry,
		retry:    faults.DefaultRetryPolicy(),
	}, nil
}

// JoinGroup creates or binds the durable group consumer. Joining is
// idempotent: every member issues the same consumer configuration and
// the server converges them onto one durable.
func (g *GroupManager) JoinGroup(ctx context.Context) error {
	consumerCfg := jetstream.ConsumerConfig{
		Durable:       g.cfg.GroupName,
		Description:   "tutor metrics recomputation group",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       g.cfg.ClaimIdleThreshold,
		MaxDeliver:    g.cfg.MaxDeliver,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
		FilterSubject: g.cfg.FilterSubject,
		// Cap outstanding claims so a stalled member cannot strand a
		// large slice of the backlog until the idle threshold.
		MaxAckPending: g.cfg.BatchSize * 4,
	}

	cons, err := g.provider.CreateOrUpdateConsumer(ctx, consumerCfg)
	if err != nil {
		return fmt.Errorf("join group %s: %w", g.cfg.GroupName, err)
	}
	g.cons = cons

	logging.Info().
		Str("group", g.cfg.GroupName).
		Str("consumer_id", g.cfg.ConsumerID).
		Str("filter", g.cfg.FilterSubject).
		Dur("claim_idle_threshold", g.cfg.ClaimIdleThreshold).
		Msg("joined consumer group")

	return nil
}

// ClaimStale performs the recovery read that runs before steady-state
// consumption. The server redelivers entries whose claims idled out, so
// a single fetch surfaces abandoned work; reclaimed entries are counted
// and logged. Fresh entries arriving in the same fetch are returned too
// and processed normally.
func (g *GroupManager) ClaimStale(ctx context.Context) ([]*Entry, error) {
	entries, err := g.ReadBatch(ctx, g.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("claim stale entries: %w", err)
	}

	reclaimed := 0
	for _, entry := range entries {
		if entry.Redelivered() {
			reclaimed++
			logging.Warn().
				Uint64("entry_id", entry.ID()).
				Str("entity_key", entry.EntityKey).
				Uint64("deliveries", entry.Deliveries).
				Str("consumer_id", g.cfg.ConsumerID).
				Msg("reclaimed stale entry")
		}
	}

	if reclaimed > 0 {
		g.registry.AddEntriesReclaimed(int64(reclaimed))
		metrics.RecordReclaimed(reclaimed)
	}

	return entries, nil
}

// ReadBatch fetches up to maxCount entries, blocking up to the
// configured timeout when the backlog is empty. An empty slice with a
// nil error means the wait elapsed without new entries.
func (g *GroupManager) ReadBatch(ctx context.Context, maxCount int) ([]*Entry, error) {
	if g.cons == nil {
		return nil, fmt.Errorf("not joined to group %s", g.cfg.GroupName)
	}
	if maxCount <= 0 {
		maxCount = g.cfg.BatchSize
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch, err := g.cons.Fetch(maxCount, jetstream.FetchMaxWait(g.cfg.BlockTimeout))
	if err != nil {
		metrics.RecordBatchRead(0, err)
		return nil, fmt.Errorf("read batch: %w", err)
	}

	entries := make([]*Entry, 0, maxCount)
	for msg := range batch.Messages() {
		entries = append(entries, wrapMessage(msg))
	}

	if err := batch.Error(); err != nil {
		// Entries already received stay valid; surface the truncation.
		metrics.RecordBatchRead(len(entries), err)
		return entries, fmt.Errorf("read batch after %d entries: %w", len(entries), err)
	}

	metrics.RecordBatchRead(len(entries), nil)
	return entries, nil
}

// Ack acknowledges an entry with a synchronous double-ack, retrying with
// backoff up to the configured attempt bound. On exhaustion the entry is
// left claimed: the server redelivers it after the idle threshold, and
// idempotent persistence absorbs the duplicate.
func (g *GroupManager) Ack(ctx context.Context, entry *Entry) error {
	var lastErr error

	for attempt := 0; attempt < g.cfg.AckMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.retry.Backoff(attempt)):
			}
		}

		if err := entry.msg.DoubleAck(ctx); err != nil {
			lastErr = err
			metrics.RecordAck(err)
			logging.Warn().
				Uint64("entry_id", entry.ID()).
				Int("attempt", attempt+1).
				Err(err).
				Msg("ack failed")
			continue
		}

		metrics.RecordAck(nil)
		return nil
	}

	return fmt.Errorf("ack entry %d abandoned after %d attempts: %w",
		entry.ID(), g.cfg.AckMaxAttempts, lastErr)
}

// Term terminates a poison entry so the server stops redelivering it.
// The entry is gone from the group's backlog once termination succeeds;
// callers record it in the dead-letter store first.
func (g *GroupManager) Term(entry *Entry, reason string) error {
	if err := entry.msg.TermWithReason(reason); err != nil {
		return fmt.Errorf("terminate entry %d: %w", entry.ID(), err)
	}

	metrics.RecordTerminated()
	logging.Error().
		Uint64("entry_id", entry.ID()).
		Str("entity_key", entry.EntityKey).
		Str("reason", reason).
		Msg("entry terminated")

	return nil
}

// Info returns the group's live backlog counts.
func (g *GroupManager) Info(ctx context.Context) (GroupInfo, error) {
	if g.cons == nil {
		return GroupInfo{}, fmt.Errorf("not joined to group %s", g.cfg.GroupName)
	}

	info, err := g.cons.Info(ctx)
	if err != nil {
		return GroupInfo{}, fmt.Errorf("group info: %w", err)
	}

	return GroupInfo{
		Backlog: info.NumPending,
		Unacked: info.NumAckPending,
	}, nil
}

// GroupName returns the configured group name.
func (g *GroupManager) GroupName() string {
	return g.cfg.GroupName
}

// ConsumerID returns this member's id.
func (g *GroupManager) ConsumerID() string {
	return g.cfg.ConsumerID
}
