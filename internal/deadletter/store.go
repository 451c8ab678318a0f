// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package deadletter

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/tomtom215/praeceptor/internal/config"
	"github.com/tomtom215/praeceptor/internal/faults"
	"github.com/tomtom215/praeceptor/internal/logging"
	"github.com/tomtom215/praeceptor/internal/metrics"
	"github.com/tomtom215/praeceptor/internal/models"
)

// Store persists poison entries in BadgerDB. Entries land here after
// the worker gives up on them, so writes are rare and reads are driven
// by operators; the store is tuned for durability over throughput.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
	cfg *config.DeadLetterConfig

	retention time.Duration

	// Statistics
	totalRecorded atomic.Int64
	totalDeleted  atomic.Int64
	totalExpired  atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// Key prefixes. The id sequence lives under its own prefix so entry
// iteration never sees it.
const (
	prefixEntry = "entry:"
	sequenceKey = "seq:entry_id"
)

const (
	// idBandwidth is the badger.Sequence lease size. Leased but unused
	// ids are discarded on restart, leaving gaps in the id space.
	idBandwidth = 100

	// gcDiscardRatio is the value-log rewrite threshold for RunGC.
	gcDiscardRatio = 0.5

	closeTimeout = 30 * time.Second
)

// entryKey builds the storage key for an entry id. Ids are encoded
// big-endian so iteration yields entries in insertion order.
func entryKey(id uint64) []byte {
	key := make([]byte, len(prefixEntry)+8)
	copy(key, prefixEntry)
	binary.BigEndian.PutUint64(key[len(prefixEntry):], id)
	return key
}

// Open creates or reopens the dead-letter store at the configured path.
func Open(cfg *config.DeadLetterConfig) (*Store, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("dead-letter store path is required")
	}

	opts := badger.DefaultOptions(cfg.Path)
	// Poison entries are rare and must survive a crash.
	opts.SyncWrites = true
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), idBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open entry id sequence: %w", err)
	}

	s := &Store{
		db:        db,
		seq:       seq,
		cfg:       cfg,
		retention: cfg.Retention(),
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("retention_days", cfg.RetentionDays).
		Msg("Dead-letter store opened")
	return s, nil
}

// Record persists a poison entry and returns its assigned id. The
// entry's EntryID is set here; ids start at 1, so a zero entry id never
// appears in responses. RecordedAt defaults to now and FirstSeen to
// RecordedAt when the caller does not know the original delivery time.
func (s *Store) Record(ctx context.Context, entry *models.DeadLetterEntry) (uint64, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return 0, ErrStoreClosed
	}
	s.mu.RUnlock()

	if entry == nil {
		return 0, ErrNilEntry
	}

	next, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next entry id: %w", err)
	}
	id := next + 1

	entry.EntryID = id
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	if entry.FirstSeen.IsZero() {
		entry.FirstSeen = entry.RecordedAt
	}
	if entry.Category == "" {
		entry.Category = faults.CategoryUnknown.String()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("marshal entry: %w", err)
	}

	// Native TTL is a backstop; the sweeper removes expired entries
	// explicitly so expiry shows up in the metrics.
	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(entryKey(id), data)
		if s.retention > 0 {
			e = e.WithTTL(s.retention)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return 0, fmt.Errorf("write entry: %w", err)
	}

	s.totalRecorded.Add(1)
	metrics.RecordDeadLetter(entry.Category)

	return id, nil
}

// Get retrieves a single entry by id. Returns ErrEntryNotFound when the
// entry does not exist or has expired.
func (s *Store) Get(ctx context.Context, id uint64) (*models.DeadLetterEntry, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	var entry models.DeadLetterEntry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}

		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entry); err != nil {
				return fmt.Errorf("unmarshal entry: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// List returns all entries in insertion order (ascending entry id).
// Retention keeps the store small, so loading the full set is fine;
// the API layer filters and paginates.
//
// DETERMINISM: Uses BadgerDB's View() transaction which provides
// snapshot isolation, so the result set is a consistent point-in-time
// view even under concurrent writes.
func (s *Store) List(ctx context.Context) ([]*models.DeadLetterEntry, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	var entries []*models.DeadLetterEntry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixEntry)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			// Check for context cancellation
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()

			var entry models.DeadLetterEntry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Dead-letter store failed to unmarshal entry")
				continue
			}

			entries = append(entries, &entry)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// Delete permanently removes an entry. Returns ErrEntryNotFound when
// the entry does not exist.
func (s *Store) Delete(ctx context.Context, id uint64) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		key := entryKey(id)

		// Badger deletes are blind writes, so check existence first.
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}

		return txn.Delete(key)
	})
	if err != nil {
		return err
	}

	s.totalDeleted.Add(1)
	metrics.RecordDeadLetterRemoval()

	return nil
}

// Count returns the number of live entries and refreshes the depth
// gauge.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return 0, ErrStoreClosed
	}
	s.mu.RUnlock()

	var count int64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixEntry)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}

	metrics.UpdateDeadLetterDepth(count)

	return count, nil
}

// deleteExpired removes entries recorded before the cutoff and returns
// the number removed. Called by the sweeper.
func (s *Store) deleteExpired(cutoff time.Time) (int64, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return 0, ErrStoreClosed
	}
	s.mu.RUnlock()

	var count int64

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Collect keys to delete (can't delete while iterating)
		var keysToDelete [][]byte
		prefix := []byte(prefixEntry)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var entry models.DeadLetterEntry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				// Skip entries we can't parse
				continue
			}

			if entry.RecordedAt.Before(cutoff) {
				keyCopy := make([]byte, len(item.Key()))
				copy(keyCopy, item.Key())
				keysToDelete = append(keysToDelete, keyCopy)
			}
		}

		for _, key := range keysToDelete {
			if err := txn.Delete(key); err != nil {
				return err
			}
			count++
		}

		return nil
	})
	if err != nil {
		// The transaction rolled back, so nothing was removed.
		return 0, fmt.Errorf("delete expired entries: %w", err)
	}

	s.totalExpired.Add(count)
	metrics.RecordDeadLetterExpiry(int(count))

	return count, nil
}

// Stats contains store counters for monitoring.
type Stats struct {
	// Depth is the current number of live entries.
	Depth int64

	// TotalRecorded is the total number of Record operations.
	TotalRecorded int64

	// TotalDeleted is the total number of operator deletions.
	TotalDeleted int64

	// TotalExpired is the total number of entries removed by retention.
	TotalExpired int64

	// DBSizeBytes is the estimated database size.
	DBSizeBytes int64
}

// Stats returns current store statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return Stats{}
	}

	var depth int64
	if err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixEntry)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			depth++
		}
		return nil
	}); err != nil {
		logging.Warn().Err(err).Msg("Dead-letter stats failed to count entries")
		// Continue with zero depth
	}

	lsm, vlog := s.db.Size()

	metrics.UpdateDeadLetterDepth(depth)

	return Stats{
		Depth:         depth,
		TotalRecorded: s.totalRecorded.Load(),
		TotalDeleted:  s.totalDeleted.Load(),
		TotalExpired:  s.totalExpired.Load(),
		DBSizeBytes:   lsm + vlog,
	}
}

// RunGC triggers BadgerDB value-log garbage collection. Called
// periodically by the sweeper to reclaim space.
func (s *Store) RunGC() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	// Run GC until no more cleanup is possible
	for {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close releases the id sequence and shuts the store down. A close
// timeout prevents indefinite hangs if BadgerDB cannot flush.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Return unused leased ids so restarts don't burn the whole lease.
	if err := s.seq.Release(); err != nil {
		logging.Warn().Err(err).Msg("Dead-letter store failed to release id sequence")
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Dead-letter store closed")
		return nil
	case <-time.After(closeTimeout):
		logging.Warn().Dur("timeout", closeTimeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", closeTimeout)
	}
}

// Errors
var (
	// ErrStoreClosed is returned when the store is closed.
	ErrStoreClosed = fmt.Errorf("dead-letter store is closed")

	// ErrNilEntry is returned when a nil entry is passed to Record.
	ErrNilEntry = fmt.Errorf("entry cannot be nil")

	// ErrEntryNotFound is returned when an entry doesn't exist.
	ErrEntryNotFound = fmt.Errorf("dead-letter entry not found")
)
