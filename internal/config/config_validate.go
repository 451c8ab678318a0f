// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	if err := c.validateConsumer(); err != nil {
		return err
	}

	if err := c.validateDebounce(); err != nil {
		return err
	}

	if err := c.validateRecompute(); err != nil {
		return err
	}

	return c.validateDeadLetter()
}

// validateServer validates the ops HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout < time.Second {
		return fmt.Errorf("HTTP_TIMEOUT must be at least 1s, got %s", c.Server.Timeout)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("SERVER_RATE_LIMIT must not be negative, got %d", c.Server.RateLimit)
	}
	return nil
}

// validateLogging validates the logging configuration
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateDatabase validates the DuckDB configuration
func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH must not be empty")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative, got %d", c.Database.Threads)
	}
	return nil
}

// NATS limit constants
const (
	natsMinMemory    = 64 * 1024 * 1024  // 64MB
	natsMinStore     = 100 * 1024 * 1024 // 100MB
	natsMaxRetention = 365
	natsMinRetention = 1
)

// validateNATS validates the event log configuration
func (c *Config) validateNATS() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL must not be empty")
	}
	if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		return fmt.Errorf("NATS_URL must start with nats:// or tls://, got %q", c.NATS.URL)
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	if c.NATS.MaxMemory < natsMinMemory {
		return fmt.Errorf("NATS_MAX_MEMORY must be at least 64MB, got %d", c.NATS.MaxMemory)
	}
	if c.NATS.MaxStore < natsMinStore {
		return fmt.Errorf("NATS_MAX_STORE must be at least 100MB, got %d", c.NATS.MaxStore)
	}
	if c.NATS.StreamRetentionDays < natsMinRetention || c.NATS.StreamRetentionDays > natsMaxRetention {
		return fmt.Errorf("NATS_RETENTION_DAYS must be between %d and %d, got %d",
			natsMinRetention, natsMaxRetention, c.NATS.StreamRetentionDays)
	}
	if c.NATS.PublishRetries < 0 {
		return fmt.Errorf("NATS_PUBLISH_RETRIES must not be negative, got %d", c.NATS.PublishRetries)
	}
	return nil
}

// Consumer limit constants
const (
	consumerMaxBatchSize  = 10000
	consumerMinBlockMS    = 100
	consumerMaxBlockMS    = 60000
	consumerMinClaimIdle  = time.Second
	consumerMaxDeliverCap = 100
)

// groupNamePattern restricts group names to characters that are safe in
// JetStream durable names.
var groupNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validateConsumer validates the consumer-group configuration
func (c *Config) validateConsumer() error {
	if c.Consumer.GroupName == "" {
		return fmt.Errorf("CONSUMER_GROUP_NAME must not be empty")
	}
	if !groupNamePattern.MatchString(c.Consumer.GroupName) {
		return fmt.Errorf("CONSUMER_GROUP_NAME must match %s, got %q",
			groupNamePattern.String(), c.Consumer.GroupName)
	}
	if c.Consumer.ConsumerID != "" && !groupNamePattern.MatchString(c.Consumer.ConsumerID) {
		return fmt.Errorf("CONSUMER_ID must match %s, got %q",
			groupNamePattern.String(), c.Consumer.ConsumerID)
	}
	if c.Consumer.BatchSize < 1 || c.Consumer.BatchSize > consumerMaxBatchSize {
		return fmt.Errorf("CONSUMER_BATCH_SIZE must be between 1 and %d, got %d",
			consumerMaxBatchSize, c.Consumer.BatchSize)
	}
	if c.Consumer.BlockMS < consumerMinBlockMS || c.Consumer.BlockMS > consumerMaxBlockMS {
		return fmt.Errorf("CONSUMER_BLOCK_MS must be between %d and %d, got %d",
			consumerMinBlockMS, consumerMaxBlockMS, c.Consumer.BlockMS)
	}
	if c.Consumer.ClaimIdleThreshold < consumerMinClaimIdle {
		return fmt.Errorf("CONSUMER_CLAIM_IDLE_THRESHOLD must be at least %s, got %s",
			consumerMinClaimIdle, c.Consumer.ClaimIdleThreshold)
	}
	if c.Consumer.MaxDeliver < 1 || c.Consumer.MaxDeliver > consumerMaxDeliverCap {
		return fmt.Errorf("CONSUMER_MAX_DELIVER must be between 1 and %d, got %d",
			consumerMaxDeliverCap, c.Consumer.MaxDeliver)
	}
	if c.Consumer.AckMaxAttempts < 1 {
		return fmt.Errorf("CONSUMER_ACK_MAX_ATTEMPTS must be at least 1, got %d", c.Consumer.AckMaxAttempts)
	}
	return nil
}

// validateDebounce validates the coalescing configuration
func (c *Config) validateDebounce() error {
	if !c.Debounce.Enabled {
		return nil // Window settings are ignored when coalescing is off
	}
	if c.Debounce.WindowSeconds < 1 {
		return fmt.Errorf("DEBOUNCE_WINDOW_SECONDS must be at least 1, got %d", c.Debounce.WindowSeconds)
	}
	if c.Debounce.MaxDelaySeconds < c.Debounce.WindowSeconds {
		return fmt.Errorf("DEBOUNCE_MAX_DELAY_SECONDS must be >= DEBOUNCE_WINDOW_SECONDS (%d), got %d",
			c.Debounce.WindowSeconds, c.Debounce.MaxDelaySeconds)
	}
	return nil
}

// windowIDPattern matches trailing-window identifiers such as 7d, 30d, 12w.
var windowIDPattern = regexp.MustCompile(`^([1-9][0-9]*)([dw])$`)

// validateRecompute validates the metric window list and dispatch throttle
func (c *Config) validateRecompute() error {
	if len(c.Recompute.Windows) == 0 {
		return fmt.Errorf("WINDOWS must name at least one trailing window, e.g. 7d,30d,90d")
	}
	seen := make(map[string]struct{}, len(c.Recompute.Windows))
	for _, w := range c.Recompute.Windows {
		if !windowIDPattern.MatchString(w) {
			return fmt.Errorf("WINDOWS entry %q is invalid: want <n>d or <n>w, e.g. 7d, 30d, 12w", w)
		}
		if _, dup := seen[w]; dup {
			return fmt.Errorf("WINDOWS entry %q is duplicated", w)
		}
		seen[w] = struct{}{}
	}
	if c.Recompute.DispatchRate <= 0 {
		return fmt.Errorf("DISPATCH_RATE must be positive, got %v", c.Recompute.DispatchRate)
	}
	if c.Recompute.DispatchBurst < 1 {
		return fmt.Errorf("DISPATCH_BURST must be at least 1, got %d", c.Recompute.DispatchBurst)
	}
	if c.Recompute.CalculationTimeout < time.Second {
		return fmt.Errorf("CALCULATION_TIMEOUT must be at least 1s, got %s", c.Recompute.CalculationTimeout)
	}
	return nil
}

// validateDeadLetter validates the poison-entry store configuration
func (c *Config) validateDeadLetter() error {
	if c.DeadLetter.Path == "" {
		return fmt.Errorf("DEADLETTER_PATH must not be empty")
	}
	if c.DeadLetter.RetentionDays < 1 {
		return fmt.Errorf("DEADLETTER_RETENTION_DAYS must be at least 1, got %d", c.DeadLetter.RetentionDays)
	}
	if c.DeadLetter.SweepInterval < time.Minute {
		return fmt.Errorf("DEADLETTER_SWEEP_INTERVAL must be at least 1m, got %s", c.DeadLetter.SweepInterval)
	}
	return nil
}
