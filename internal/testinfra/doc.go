// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package testinfra provides in-process infrastructure fixtures for
// integration testing.
//
// Praeceptor's external surfaces all embed cleanly into a test process:
// the event log is an embedded NATS server with JetStream, the metrics
// store is a DuckDB file, and the dead-letter store is a Badger
// directory. Integration tests therefore run against the real
// implementations with no containers and no network access.
//
// # Event Log Fixture
//
// EventLog brings up the full event-log surface in one call: embedded
// server, client connection, the sessions stream, and a publisher bound
// to it.
//
//	func TestPipeline(t *testing.T) {
//	    ctx := context.Background()
//	    eventLog, err := testinfra.NewEventLog(ctx,
//	        testinfra.WithStoreDir(t.TempDir()),
//	    )
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer eventLog.Terminate(ctx)
//
//	    // Publish through eventLog.Publisher, consume from eventLog.Stream.
//	}
//
// # Benefits Over Mocks
//
// Tests built on the fixture exercise real JetStream semantics:
// redelivery timing, duplicate suppression, and consumer-group claims
// behave exactly as they do in production. The fixture picks a free
// port per instance, so packages can run their integration tests in
// parallel.
package testinfra
