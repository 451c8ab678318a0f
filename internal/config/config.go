// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package config

import (
	"time"
)

// Config holds all worker configuration loaded from defaults, an optional
// YAML file, and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting
//
// Thread Safety:
// Config is immutable after LoadWithKoanf() and safe for concurrent read
// access from multiple goroutines.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Database   DatabaseConfig   `koanf:"database"`
	NATS       NATSConfig       `koanf:"nats"`
	Consumer   ConsumerConfig   `koanf:"consumer"`
	Debounce   DebounceConfig   `koanf:"debounce"`
	Recompute  RecomputeConfig  `koanf:"recompute"`
	DeadLetter DeadLetterConfig `koanf:"deadletter"`
}

// ServerConfig holds the ops HTTP server settings. The server exposes
// health, stats, metrics, and the event ingress endpoint; it is not a
// user-facing API.
//
// Environment Variables:
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 8093)
//   - HTTP_TIMEOUT: Request read/write timeout (default: 30s)
//   - ENVIRONMENT: development or production
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // Deployment mode for startup validation
	CORSOrigins []string      `koanf:"cors_origins"`
	RateLimit   int           `koanf:"rate_limit"` // Requests per minute per client, 0 disables
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: Include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig holds DuckDB settings for the session fact table and the
// tutor window metrics table.
//
// Environment Variables:
//   - DUCKDB_PATH: Database file path (default: /data/praeceptor.duckdb)
//   - DUCKDB_MAX_MEMORY: Memory limit (default: 2GB)
//   - DUCKDB_THREADS: Thread count, 0 = runtime.NumCPU() (default: 0)
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// NATSConfig holds event log settings. The stream is the system of record
// for session events; the worker can run against an external NATS server or
// start an embedded one for standalone deployments.
//
// Environment Variables:
//   - NATS_URL: Server URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: Start embedded JetStream server (default: true)
//   - NATS_STORE_DIR: JetStream file store directory (default: /data/nats/jetstream)
//   - NATS_MAX_MEMORY: JetStream memory limit (default: 1GB)
//   - NATS_MAX_STORE: JetStream disk limit (default: 10GB)
//   - NATS_RETENTION_DAYS: Stream retention in days (default: 7)
//   - NATS_PUBLISH_RETRIES: Publish retry attempts for the ingress path (default: 3)
type NATSConfig struct {
	URL                 string        `koanf:"url"`
	EmbeddedServer      bool          `koanf:"embedded_server"`
	StoreDir            string        `koanf:"store_dir"`
	MaxMemory           int64         `koanf:"max_memory"`
	MaxStore            int64         `koanf:"max_store"`
	StreamRetentionDays int           `koanf:"stream_retention_days"`
	PublishRetries      int           `koanf:"publish_retries"`
	PublishTimeout      time.Duration `koanf:"publish_timeout"`
}

// ConsumerConfig holds consumer-group membership and read/ack behavior.
// Multiple worker processes sharing GroupName split the stream between
// them; each entry is delivered to exactly one member at a time.
//
// Environment Variables:
//   - CONSUMER_GROUP_NAME: Durable group name (default: metrics-workers)
//   - CONSUMER_ID: Member identity, auto-generated when empty
//   - CONSUMER_BATCH_SIZE: Max entries per read (default: 10)
//   - CONSUMER_BLOCK_MS: Poll blocking time in milliseconds (default: 2000)
//   - CONSUMER_CLAIM_IDLE_THRESHOLD: Idle time before pending entries are
//     redelivered to another member (default: 30s)
//   - CONSUMER_MAX_DELIVER: Delivery attempts before poison (default: 5)
//   - CONSUMER_ACK_MAX_ATTEMPTS: Acknowledgement retry bound (default: 3)
type ConsumerConfig struct {
	GroupName          string        `koanf:"group_name"`
	ConsumerID         string        `koanf:"consumer_id"` // Auto-generated if empty
	BatchSize          int           `koanf:"batch_size"`
	BlockMS            int           `koanf:"block_ms"`
	ClaimIdleThreshold time.Duration `koanf:"claim_idle_threshold"`
	MaxDeliver         int           `koanf:"max_deliver"`
	AckMaxAttempts     int           `koanf:"ack_max_attempts"`
}

// BlockTimeout returns the read poll blocking time as a duration.
func (c ConsumerConfig) BlockTimeout() time.Duration {
	return time.Duration(c.BlockMS) * time.Millisecond
}

// DebounceConfig holds the per-tutor coalescing settings. A burst of events
// for one tutor triggers a single recomputation after WindowSeconds of
// quiet; MaxDelaySeconds caps the total deferral so a steady event stream
// cannot starve a tutor's refresh.
//
// Environment Variables:
//   - DEBOUNCE_ENABLED: Coalesce bursts per tutor (default: true)
//   - DEBOUNCE_WINDOW_SECONDS: Sliding quiet window (default: 30)
//   - DEBOUNCE_MAX_DELAY_SECONDS: Total deferral cap (default: 120)
type DebounceConfig struct {
	Enabled         bool `koanf:"enabled"`
	WindowSeconds   int  `koanf:"window_seconds"`
	MaxDelaySeconds int  `koanf:"max_delay_seconds"`
}

// Window returns the sliding quiet window as a duration.
func (c DebounceConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// MaxDelay returns the total deferral cap as a duration.
func (c DebounceConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelaySeconds) * time.Second
}

// RecomputeConfig holds the metric windows and dispatch throttling.
//
// Environment Variables:
//   - WINDOWS: Comma-separated trailing windows, e.g. 7d,30d,90d
//   - DISPATCH_RATE: Recomputation dispatches per second (default: 50)
//   - DISPATCH_BURST: Dispatch burst allowance (default: 10)
//   - CALCULATION_TIMEOUT: Per-window calculator timeout (default: 30s)
type RecomputeConfig struct {
	Windows            []string      `koanf:"windows"`
	DispatchRate       float64       `koanf:"dispatch_rate"`
	DispatchBurst      int           `koanf:"dispatch_burst"`
	CalculationTimeout time.Duration `koanf:"calculation_timeout"`
}

// DeadLetterConfig holds the poison-entry store settings.
//
// Environment Variables:
//   - DEADLETTER_PATH: Badger store directory (default: /data/deadletters)
//   - DEADLETTER_RETENTION_DAYS: Entry retention in days (default: 14)
//   - DEADLETTER_SWEEP_INTERVAL: Retention sweep cadence (default: 1h)
type DeadLetterConfig struct {
	Path          string        `koanf:"path"`
	RetentionDays int           `koanf:"retention_days"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// Retention returns the dead-letter retention as a duration.
func (c DeadLetterConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
