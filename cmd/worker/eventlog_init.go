// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/praeceptor/internal/config"
	"github.com/tomtom215/praeceptor/internal/eventlog"
	"github.com/tomtom215/praeceptor/internal/faults"
	"github.com/tomtom215/praeceptor/internal/logging"
)

// EventLogComponents holds the event log handles whose lifecycles are
// managed by main, not the supervisor tree: a restarted connection or
// embedded server would invalidate the stream handle every pipeline
// component holds.
type EventLogComponents struct {
	server    *eventlog.EmbeddedServer
	conn      *natsgo.Conn
	stream    jetstream.Stream
	publisher *eventlog.Publisher

	mu     sync.Mutex
	closed bool
}

// InitEventLog brings up the event log: the embedded server when
// configured, the client connection, the sessions stream, and the
// ingress publisher. On error, components already started are shut
// down before returning.
func InitEventLog(ctx context.Context, cfg *config.Config) (*EventLogComponents, error) {
	logging.Info().Msg("Initializing event log...")

	components := &EventLogComponents{}

	var natsURL string

	// Step 1: embedded server for standalone deployments
	if cfg.NATS.EmbeddedServer {
		serverCfg := eventlog.DefaultServerConfig()
		serverCfg.StoreDir = cfg.NATS.StoreDir
		serverCfg.JetStreamMaxMem = cfg.NATS.MaxMemory
		serverCfg.JetStreamMaxStore = cfg.NATS.MaxStore

		server, err := eventlog.NewEmbeddedServer(&serverCfg)
		if err != nil {
			return nil, fmt.Errorf("start embedded server: %w", err)
		}
		components.server = server
		natsURL = server.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	} else {
		natsURL = cfg.NATS.URL
		logging.Info().Str("url", natsURL).Msg("Using external NATS server")
	}

	// Step 2: client connection
	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("connect to event log: %w", err)
	}
	components.conn = nc
	logging.Info().Msg("Event log connection established")

	// Step 3: JetStream context and the sessions stream
	js, err := jetstream.New(nc)
	if err != nil {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := eventlog.StreamConfigForRetention(cfg.NATS.StreamRetentionDays)
	initializer, err := eventlog.NewStreamInitializer(js, &streamCfg)
	if err != nil {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("create stream initializer: %w", err)
	}

	stream, err := initializer.EnsureStream(ctx)
	if err != nil {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("ensure stream exists: %w", err)
	}
	components.stream = stream

	streamInfo := stream.CachedInfo()
	logging.Info().
		Str("name", streamInfo.Config.Name).
		Strs("subjects", streamInfo.Config.Subjects).
		Dur("max_age", streamInfo.Config.MaxAge).
		Msg("Session stream ready")

	// Step 4: ingress publisher with circuit breaker protection
	publisherCfg := eventlog.DefaultPublisherConfig(natsURL)
	if cfg.NATS.PublishRetries > 0 {
		publisherCfg.PublishRetries = cfg.NATS.PublishRetries
	}

	publisher, err := eventlog.NewPublisher(publisherCfg, nil)
	if err != nil {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("create publisher: %w", err)
	}
	publisher.SetCircuitBreaker(faults.NewBreaker(faults.DefaultBreakerConfig("eventlog-publish")))
	components.publisher = publisher
	logging.Info().Msg("Event log publisher created")

	logging.Info().Msg("Event log initialized successfully")
	return components, nil
}

// Stream returns the sessions stream handle for consumer-group binding.
func (c *EventLogComponents) Stream() jetstream.Stream {
	return c.stream
}

// Publisher returns the ingress publisher.
func (c *EventLogComponents) Publisher() *eventlog.Publisher {
	return c.publisher
}

// Conn returns the client connection, used by the readiness probe.
func (c *EventLogComponents) Conn() *natsgo.Conn {
	return c.conn
}

// Shutdown stops the event log components in reverse construction
// order: publisher, connection, then the embedded server. It is safe
// to call on a partially initialized set and is idempotent.
func (c *EventLogComponents) Shutdown(ctx context.Context) {
	if c == nil {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	logging.Info().Msg("Shutting down event log...")

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
		logging.Info().Msg("Event log publisher closed")
	}

	if c.conn != nil {
		c.conn.Close()
		logging.Info().Msg("Event log connection closed")
	}

	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
		}
		logging.Info().Msg("Embedded NATS server stopped")
	}

	logging.Info().Msg("Event log shutdown complete")
}
