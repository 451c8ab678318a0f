// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package api exposes the ops HTTP surface: health probes, the worker
// stats snapshot, the tutor metrics read path, event ingress, and
// dead-letter inspection.
//
// Routing uses chi v5. Every request carries an X-Request-ID that flows
// through the logging context and into the response envelope, so a log
// line and the response a client saw can be matched after the fact.
//
// # Endpoints
//
//	GET    /healthz                              liveness probe
//	GET    /readyz                               readiness probe (DB, event log, worker)
//	GET    /api/v1/stats                         worker counters + component detail
//	GET    /api/v1/tutors/{entityKey}/metrics    latest row per window
//	GET    /api/v1/tutors/{entityKey}/metrics/history
//	POST   /api/v1/events                        validated event ingress
//	GET    /api/v1/deadletters                   list (limit/offset/category)
//	GET    /api/v1/deadletters/stats             store depth and totals
//	GET    /api/v1/deadletters/{id}              single entry
//	DELETE /api/v1/deadletters/{id}              operator discard
//	GET    /metrics                              Prometheus
//
// # Response envelope
//
// All JSON endpoints use the standardized envelope: {success, data,
// error, meta}. Errors carry a machine-readable code and the request id.
//
// # Dependencies
//
// Handlers take narrow interfaces (MetricsStore, EventPublisher,
// WorkerStatus, DeadLetterStore) so the package tests against fakes and
// the binary wires the real database, publisher, worker, and Badger
// store. Optional components are attached with Set* methods after
// construction; handlers degrade to 503 when one is absent.
package api
