// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package testinfra

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/praeceptor/internal/eventlog"
)

const (
	// DefaultJetStreamMaxMem caps the embedded server's memory storage.
	// Test streams hold a handful of events.
	DefaultJetStreamMaxMem = 64 << 20 // 64MB

	// DefaultJetStreamMaxStore caps the embedded server's file storage.
	DefaultJetStreamMaxStore = 256 << 20 // 256MB
)

// EventLog is a fully wired in-process event log for integration tests:
// an embedded server with JetStream enabled, a client connection, the
// sessions stream, and a publisher bound to the server.
type EventLog struct {
	Server    *eventlog.EmbeddedServer
	Conn      *nats.Conn
	JetStream jetstream.JetStream
	Stream    jetstream.Stream
	Publisher *eventlog.Publisher

	storeDir     string
	ownsStoreDir bool
}

// EventLogOption configures the event log fixture.
type EventLogOption func(*eventLogConfig)

type eventLogConfig struct {
	storeDir  string
	streamCfg eventlog.StreamConfig
	maxMem    int64
	maxStore  int64
}

// WithStoreDir places JetStream storage under dir. The caller owns the
// directory; without this option the fixture creates a temporary
// directory and removes it on Terminate.
func WithStoreDir(dir string) EventLogOption {
	return func(c *eventLogConfig) {
		c.storeDir = dir
	}
}

// WithStreamConfig overrides the default sessions stream settings, for
// tests that need a short duplicate window or tight retention.
func WithStreamConfig(cfg eventlog.StreamConfig) EventLogOption {
	return func(c *eventLogConfig) {
		c.streamCfg = cfg
	}
}

// NewEventLog starts an embedded event log on a free port and ensures
// the sessions stream exists.
//
// Example:
//
//	ctx := context.Background()
//	eventLog, err := testinfra.NewEventLog(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer eventLog.Terminate(ctx)
func NewEventLog(ctx context.Context, opts ...EventLogOption) (*EventLog, error) {
	cfg := &eventLogConfig{
		streamCfg: eventlog.DefaultStreamConfig(),
		maxMem:    DefaultJetStreamMaxMem,
		maxStore:  DefaultJetStreamMaxStore,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	storeDir := cfg.storeDir
	ownsStoreDir := false
	if storeDir == "" {
		dir, err := os.MkdirTemp("", "praeceptor-eventlog-")
		if err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		storeDir = dir
		ownsStoreDir = true
	}

	srvCfg := eventlog.DefaultServerConfig()
	srvCfg.Port = -1 // pick a free port
	srvCfg.StoreDir = storeDir
	srvCfg.JetStreamMaxMem = cfg.maxMem
	srvCfg.JetStreamMaxStore = cfg.maxStore

	srv, err := eventlog.NewEmbeddedServer(&srvCfg)
	if err != nil {
		if ownsStoreDir {
			os.RemoveAll(storeDir) //nolint:errcheck
		}
		return nil, fmt.Errorf("start embedded server: %w", err)
	}

	l := &EventLog{
		Server:       srv,
		storeDir:     storeDir,
		ownsStoreDir: ownsStoreDir,
	}

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		l.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("connect to embedded server: %w", err)
	}
	l.Conn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		l.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	l.JetStream = js

	initializer, err := eventlog.NewStreamInitializer(js, &cfg.streamCfg)
	if err != nil {
		l.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("create stream initializer: %w", err)
	}

	stream, err := initializer.EnsureStream(ctx)
	if err != nil {
		l.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	l.Stream = stream

	publisher, err := eventlog.NewPublisher(eventlog.DefaultPublisherConfig(srv.ClientURL()), nil)
	if err != nil {
		l.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("create publisher: %w", err)
	}
	l.Publisher = publisher

	return l, nil
}

// ClientURL returns the embedded server's client URL, for components
// that open their own connections.
func (l *EventLog) ClientURL() string {
	return l.Server.ClientURL()
}

// Terminate tears the fixture down in reverse construction order and
// removes the store directory when the fixture created it. It is safe
// to call on a partially constructed fixture.
func (l *EventLog) Terminate(ctx context.Context) error {
	var errs []error

	if l.Publisher != nil {
		if err := l.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if l.Conn != nil {
		l.Conn.Close()
	}
	if l.Server != nil {
		if err := l.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
		}
	}
	if l.ownsStoreDir {
		if err := os.RemoveAll(l.storeDir); err != nil {
			errs = append(errs, fmt.Errorf("remove store dir: %w", err))
		}
	}

	return errors.Join(errs...)
}
