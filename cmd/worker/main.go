// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

// Package main is the entry point for the Praeceptor metrics worker.
//
// Praeceptor keeps tutor performance metrics fresh by recomputing them
// in response to session events. The worker consumes an append-only
// event log through a consumer group, coalesces per-tutor bursts with
// a debounce window, recomputes trailing metric windows (7d/30d/90d by
// default), and upserts the results into DuckDB. Poison entries are
// captured in a BadgerDB dead-letter store. An ops HTTP API exposes
// health probes, worker stats, tutor metrics reads, event ingress, and
// dead-letter inspection.
//
// # Application Architecture
//
// The worker initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Database: Initialize DuckDB with the session fact and window metrics tables
//  3. Event Log: Start the embedded NATS server (or connect to an external one),
//     ensure the sessions stream exists, and create the ingress publisher
//  4. Dead Letters: Open the BadgerDB store and its retention sweeper
//  5. Pipeline: Build the calculator, orchestrator, debounce aggregator,
//     consumer group membership, and the worker loop
//  6. Supervisor Tree: Register the sweeper, worker, and HTTP server as
//     supervised services with automatic restart
//  7. HTTP Server: Ops API with health, stats, ingress, and dead-letter routes
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Horizontal Scaling
//
// Multiple worker processes sharing CONSUMER_GROUP_NAME split the
// stream between them; each entry is delivered to exactly one member
// at a time. An entry claimed by a member that crashes or stalls is
// redelivered to a healthy member once CONSUMER_CLAIM_IDLE_THRESHOLD
// passes. Recomputation is idempotent, so redelivery converges instead
// of double-counting.
//
// # Signal Handling
//
// The worker handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops reading new entries from the log
//   - Flushes held debounce state and drains in-flight recomputations
//   - Leaves unacknowledged entries for redelivery to other members
//   - Stops the HTTP server and closes the event log and stores
//
// # Example Usage
//
// Standalone mode with the embedded event log (default):
//
//	export DUCKDB_PATH=/data/praeceptor.duckdb
//	export NATS_STORE_DIR=/data/nats/jetstream
//	./praeceptor-worker
//
// Against an external NATS cluster:
//
//	export NATS_EMBEDDED=false
//	export NATS_URL=nats://nats.internal:4222
//	./praeceptor-worker
//
// A fleet of workers sharing one group:
//
//	export NATS_EMBEDDED=false
//	export NATS_URL=nats://nats.internal:4222
//	export CONSUMER_GROUP_NAME=metrics-workers
//	./praeceptor-worker   # run N copies; CONSUMER_ID is generated per process
//
// Docker (standalone):
//
//	docker run -d \
//	  -v praeceptor-data:/data \
//	  -p 8093:8093 \
//	  ghcr.io/tomtom215/praeceptor
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/praeceptor/internal/api"
	"github.com/tomtom215/praeceptor/internal/calculator"
	"github.com/tomtom215/praeceptor/internal/config"
	"github.com/tomtom215/praeceptor/internal/consumer"
	"github.com/tomtom215/praeceptor/internal/database"
	"github.com/tomtom215/praeceptor/internal/deadletter"
	"github.com/tomtom215/praeceptor/internal/debounce"
	"github.com/tomtom215/praeceptor/internal/logging"
	"github.com/tomtom215/praeceptor/internal/orchestrator"
	"github.com/tomtom215/praeceptor/internal/stats"
	"github.com/tomtom215/praeceptor/internal/supervisor"
	"github.com/tomtom215/praeceptor/internal/supervisor/services"
	"github.com/tomtom215/praeceptor/internal/worker"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Praeceptor metrics worker")

	// Log configuration status - show the event log source
	if cfg.NATS.EmbeddedServer {
		logging.Info().
			Str("db_path", cfg.Database.Path).
			Str("group", cfg.Consumer.GroupName).
			Strs("windows", cfg.Recompute.Windows).
			Msg("Configuration loaded (embedded event log)")
	} else {
		logging.Info().
			Str("nats_url", cfg.NATS.URL).
			Str("db_path", cfg.Database.Path).
			Str("group", cfg.Consumer.GroupName).
			Strs("windows", cfg.Recompute.Windows).
			Msg("Configuration loaded")
	}

	if !cfg.Debounce.Enabled {
		logging.Warn().Msg("Debounce coalescing is DISABLED (DEBOUNCE_ENABLED=false)")
		logging.Warn().Msg("Every event triggers an immediate recomputation - expect amplified load under bursts")
	}
	if cfg.Server.RateLimit <= 0 {
		logging.Warn().Msg("API rate limiting is DISABLED (SERVER_RATE_LIMIT=0)")
	}

	// Initialize database with the fact and window metrics schema
	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event log handles are owned here, not by the supervisor tree: a
	// restart would invalidate the stream handle the pipeline holds.
	elog, err := InitEventLog(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event log")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		elog.Shutdown(shutdownCtx)
	}()

	// Dead-letter store and its retention sweeper
	dlq, err := deadletter.Open(&cfg.DeadLetter)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open dead-letter store")
	}
	defer func() {
		if err := dlq.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing dead-letter store")
		}
	}()
	sweeper := deadletter.NewSweeper(dlq)
	logging.Info().Str("path", cfg.DeadLetter.Path).Msg("Dead-letter store opened")

	// Shared stats registry feeding the ops API and Prometheus
	registry := stats.NewRegistry()

	// Recompute pipeline: calculator -> orchestrator -> aggregator -> worker
	windows, err := calculator.ParseWindows(cfg.Recompute.Windows)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid recompute windows")
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Windows:            windows,
		DispatchRate:       cfg.Recompute.DispatchRate,
		DispatchBurst:      cfg.Recompute.DispatchBurst,
		CalculationTimeout: cfg.Recompute.CalculationTimeout,
	}, calculator.NewSessionMetricsCalculator(db), db, registry)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create orchestrator")
	}

	aggregator := debounce.NewAggregator(debounce.Config{
		Enabled:  cfg.Debounce.Enabled,
		Window:   cfg.Debounce.Window(),
		MaxDelay: cfg.Debounce.MaxDelay(),
	}, registry)

	consumerID := cfg.Consumer.ConsumerID
	if consumerID == "" {
		consumerID = generateConsumerID()
	}

	groupCfg := consumer.DefaultGroupConfig(cfg.Consumer.GroupName, consumerID)
	groupCfg.BatchSize = cfg.Consumer.BatchSize
	groupCfg.BlockTimeout = cfg.Consumer.BlockTimeout()
	groupCfg.ClaimIdleThreshold = cfg.Consumer.ClaimIdleThreshold
	groupCfg.MaxDeliver = cfg.Consumer.MaxDeliver
	groupCfg.AckMaxAttempts = cfg.Consumer.AckMaxAttempts

	group, err := consumer.NewGroupManager(elog.Stream(), groupCfg, registry)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create consumer group manager")
	}

	workerCfg := worker.DefaultConfig()
	workerCfg.BatchSize = cfg.Consumer.BatchSize
	workerCfg.MaxDeliver = cfg.Consumer.MaxDeliver

	w, err := worker.New(workerCfg, group, db, aggregator, orch, dlq, registry)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create pipeline worker")
	}
	logging.Info().
		Str("group", cfg.Consumer.GroupName).
		Str("consumer_id", consumerID).
		Msg("Pipeline worker created")

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	// Create supervisor tree
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Ops API handler and router
	handler := api.NewHandler(db, registry, cfg)
	handler.SetEventPublisher(elog.Publisher())
	handler.SetWorker(w)
	handler.SetEventLogConn(elog.Conn())
	handler.SetAggregator(aggregator)

	router := api.NewRouter(handler, api.NewChiMiddlewareFromServer(&cfg.Server))
	router.ConfigureDeadLetters(api.NewDeadLetterHandlers(dlq))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	tree.AddDataService(services.NewSweeperService(sweeper))
	tree.AddPipelineService(services.NewWorkerService(w))
	logging.Info().Msg("Sweeper and pipeline worker added to supervisor tree")

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Worker stopped gracefully")
}

// generateConsumerID builds a per-process member identity from the
// hostname and a random suffix. The id only appears in logs and stats;
// JetStream balances delivery across members without it.
func generateConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
