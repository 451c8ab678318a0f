// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/praeceptor/config.yaml",
	"/etc/praeceptor/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8093,
			Timeout:     30 * time.Second,
			Environment: "development", // Set ENVIRONMENT=production for production checks
			CORSOrigins: []string{"*"},
			RateLimit:   120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			Path:      "/data/praeceptor.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		NATS: NATSConfig{
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamRetentionDays: 7,
			PublishRetries:      3,
			PublishTimeout:      5 * time.Second,
		},
		Consumer: ConsumerConfig{
			GroupName:          "metrics-workers",
			ConsumerID:         "", // Auto-generated per process when empty
			BatchSize:          10,
			BlockMS:            2000,
			ClaimIdleThreshold: 30 * time.Second,
			MaxDeliver:         5,
			AckMaxAttempts:     3,
		},
		Debounce: DebounceConfig{
			Enabled:         true,
			WindowSeconds:   30,
			MaxDelaySeconds: 120,
		},
		Recompute: RecomputeConfig{
			Windows:            []string{"7d", "30d", "90d"},
			DispatchRate:       50,
			DispatchBurst:      10,
			CalculationTimeout: 30 * time.Second,
		},
		DeadLetter: DeadLetterConfig{
			Path:          "/data/deadletters",
			RetentionDays: 14,
			SweepInterval: time.Hour,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
//   - Stable environment variable names independent of struct layout
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// CONSUMER_GROUP_NAME -> consumer.group_name
	// DEBOUNCE_WINDOW_SECONDS -> debounce.window_seconds
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
	"recompute.windows",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Only explicitly mapped variables are honored so that unrelated environment
// variables cannot pollute the configuration.
//
// Examples:
//   - CONSUMER_GROUP_NAME -> consumer.group_name
//   - DEBOUNCE_WINDOW_SECONDS -> debounce.window_seconds
//   - DUCKDB_PATH -> database.path
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":         "server.host",
		"http_port":         "server.port",
		"http_timeout":      "server.timeout",
		"environment":       "server.environment",
		"cors_origins":      "server.cors_origins",
		"server_rate_limit": "server.rate_limit",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// NATS mappings
		"nats_url":             "nats.url",
		"nats_embedded":        "nats.embedded_server",
		"nats_store_dir":       "nats.store_dir",
		"nats_max_memory":      "nats.max_memory",
		"nats_max_store":       "nats.max_store",
		"nats_retention_days":  "nats.stream_retention_days",
		"nats_publish_retries": "nats.publish_retries",
		"nats_publish_timeout": "nats.publish_timeout",

		// Consumer mappings
		"consumer_group_name":           "consumer.group_name",
		"consumer_id":                   "consumer.consumer_id",
		"consumer_batch_size":           "consumer.batch_size",
		"consumer_block_ms":             "consumer.block_ms",
		"consumer_claim_idle_threshold": "consumer.claim_idle_threshold",
		"consumer_max_deliver":          "consumer.max_deliver",
		"consumer_ack_max_attempts":     "consumer.ack_max_attempts",

		// Debounce mappings
		"debounce_enabled":           "debounce.enabled",
		"debounce_window_seconds":    "debounce.window_seconds",
		"debounce_max_delay_seconds": "debounce.max_delay_seconds",

		// Recompute mappings
		"windows":             "recompute.windows",
		"dispatch_rate":       "recompute.dispatch_rate",
		"dispatch_burst":      "recompute.dispatch_burst",
		"calculation_timeout": "recompute.calculation_timeout",

		// Dead-letter mappings
		"deadletter_path":           "deadletter.path",
		"deadletter_retention_days": "deadletter.retention_days",
		"deadletter_sweep_interval": "deadletter.sweep_interval",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
