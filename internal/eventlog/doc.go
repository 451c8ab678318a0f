// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package eventlog provides the append-only session event log backed by
// NATS JetStream, with an embedded server option, stream provisioning,
// and a resilient Watermill publisher.
//
// All tutoring-session events flow through one JetStream stream before
// reaching the recomputation worker:
//
//	┌─────────────┐   ┌──────────────┐   ┌─────────────┐
//	│  Scheduler  │   │ Rating Form  │   │ Ops Replay  │
//	│   Service   │   │   Service    │   │    Tool     │
//	└──────┬──────┘   └──────┬───────┘   └──────┬──────┘
//	       │                 │                  │
//	       └────────────────┬┴──────────────────┘
//	                        │ POST /api/v1/events
//	                        ▼
//	              ┌─────────────────────┐
//	              │   NATS JetStream    │  ← Append-only event log
//	              │  stream "SESSIONS"  │
//	              └─────────┬───────────┘
//	                        │ durable pull consumers
//	          ┌─────────────┼─────────────┐
//	          ▼             ▼             ▼
//	   ┌────────────┐ ┌────────────┐ ┌────────────┐
//	   │  worker 1  │ │  worker 2  │ │  worker N  │
//	   └────────────┘ └────────────┘ └────────────┘
//
// The stream is provisioned idempotently by StreamInitializer before any
// publisher or consumer starts. Entries are retained for a configurable
// number of days and deduplicated by Nats-Msg-Id within the duplicate
// window, so producers may retry publishes without creating double
// entries.
//
// # Components
//
//   - EmbeddedServer: in-process NATS server with JetStream enabled, for
//     single-binary deployments without external infrastructure.
//   - StreamInitializer: idempotent create-or-update of the SESSIONS
//     stream.
//   - Publisher: Watermill NATS publisher with reconnection handling,
//     optional circuit breaker protection, and message id deduplication.
//   - Serializer: JSON codec for models.SessionEvent with validation on
//     the encode path.
//
// # Usage
//
//	srv, err := eventlog.NewEmbeddedServer(&serverCfg)
//	if err != nil {
//		return err
//	}
//	defer srv.Shutdown(ctx)
//
//	init, _ := eventlog.NewStreamInitializer(js, &streamCfg)
//	if _, err := init.EnsureStream(ctx); err != nil {
//		return err
//	}
//
//	pub, _ := eventlog.NewPublisher(pubCfg, nil)
//	pub.SetCircuitBreaker(faults.NewBreaker(faults.DefaultBreakerConfig("eventlog-publish")))
//	err = pub.PublishEvent(ctx, event)
package eventlog
