// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

/*
Package config provides centralized configuration management for Praeceptor.

This package handles loading, validation, and parsing of configuration for
all worker components. It ensures consistent configuration across the
pipeline and provides sensible defaults for optional settings.

# Configuration Sources

Configuration is loaded through Koanf v2 in layers, later layers winning:

 1. Defaults: built-in sensible defaults for every setting
 2. Config File: optional YAML file (config.yaml, or CONFIG_PATH)
 3. Environment Variables: override any setting

# Configuration Structure

The package organizes configuration into logical groups:

  - ServerConfig: ops HTTP server settings (host, port, timeouts)
  - LoggingConfig: log level and output format
  - DatabaseConfig: DuckDB path and performance tuning
  - NATSConfig: event log settings (embedded server, stream limits)
  - ConsumerConfig: consumer-group membership and read/ack behavior
  - DebounceConfig: per-tutor coalescing window and delay cap
  - RecomputeConfig: metric windows and dispatch throttling
  - DeadLetterConfig: poison-entry store path and retention

# Environment Variables

HTTP Server (ServerConfig):
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_PORT: Listen port (default: 8093)
  - HTTP_TIMEOUT: Request timeout (default: 30s)
  - ENVIRONMENT: Deployment mode, development or production

Event Log (NATSConfig):
  - NATS_URL: Server URL (default: nats://127.0.0.1:4222)
  - NATS_EMBEDDED: Run an embedded JetStream server (default: true)
  - NATS_STORE_DIR: JetStream file store directory
  - NATS_MAX_MEMORY / NATS_MAX_STORE: JetStream storage limits
  - NATS_RETENTION_DAYS: Stream retention (default: 7)

Consumer (ConsumerConfig):
  - CONSUMER_GROUP_NAME: Durable consumer-group name (default: metrics-workers)
  - CONSUMER_ID: Member identity (auto-generated when empty)
  - CONSUMER_BATCH_SIZE: Max entries per read (default: 10)
  - CONSUMER_BLOCK_MS: Read poll blocking time (default: 2000)
  - CONSUMER_CLAIM_IDLE_THRESHOLD: Idle time before unacked entries are
    redelivered to another member (default: 30s)
  - CONSUMER_MAX_DELIVER: Delivery attempts before an entry is considered
    poison (default: 5)
  - CONSUMER_ACK_MAX_ATTEMPTS: Acknowledgement retry bound (default: 3)

Debounce (DebounceConfig):
  - DEBOUNCE_ENABLED: Coalesce event bursts per tutor (default: true)
  - DEBOUNCE_WINDOW_SECONDS: Sliding quiet window (default: 30)
  - DEBOUNCE_MAX_DELAY_SECONDS: Cap on total deferral (default: 120)

Recompute (RecomputeConfig):
  - WINDOWS: Comma-separated trailing windows (default: 7d,30d,90d)
  - DISPATCH_RATE: Recomputation dispatches per second (default: 50)
  - DISPATCH_BURST: Dispatch burst allowance (default: 10)

Database (DatabaseConfig):
  - DUCKDB_PATH: Database file path (default: /data/praeceptor.duckdb)
  - DUCKDB_THREADS: Thread count (default: CPU count)
  - DUCKDB_MAX_MEMORY: Memory limit (default: 2GB)

Dead Letters (DeadLetterConfig):
  - DEADLETTER_PATH: Badger store directory (default: /data/deadletters)
  - DEADLETTER_RETENTION_DAYS: Entry retention (default: 14)
  - DEADLETTER_SWEEP_INTERVAL: Retention sweep cadence (default: 1h)

Logging (LoggingConfig):
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json or console (default: json)
  - LOG_CALLER: Include file:line in log entries (default: false)

# Usage Example

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatal("Failed to load config:", err)
	}
	fmt.Printf("Consumer group: %s\n", cfg.Consumer.GroupName)
	fmt.Printf("Database: %s\n", cfg.Database.Path)

# Thread Safety

The Config struct is immutable after LoadWithKoanf() returns, making it safe
for concurrent access from multiple goroutines without synchronization.
*/
package config
