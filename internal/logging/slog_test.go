// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package logging

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlogHandlerEmitsThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	slogger := NewSlogLogger()
	slogger.Info("service started", "service", "worker", "restarts", int64(2))

	out := buf.String()
	assert.Contains(t, out, `"message":"service started"`)
	assert.Contains(t, out, `"service":"worker"`)
	assert.Contains(t, out, `"restarts":2`)
}

func TestSlogHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	slogger := NewSlogLogger()
	slogger.Debug("below threshold")
	slogger.Info("below threshold")
	slogger.Warn("at threshold")
	slogger.Error("above threshold")

	out := buf.String()
	assert.NotContains(t, out, "below threshold")
	assert.Contains(t, out, "at threshold")
	assert.Contains(t, out, "above threshold")
}

func TestSlogHandlerWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	slogger := NewSlogLogger().With("supervisor", "root").WithGroup("svc")
	slogger.Info("restarting", "name", "consumer", "backoff", 15*time.Second)

	out := buf.String()
	assert.Contains(t, out, `"supervisor":"root"`)
	assert.Contains(t, out, `"svc.name":"consumer"`)
}

func TestSlogLevelMapping(t *testing.T) {
	assert.Equal(t, "debug", slogLevel(slog.LevelDebug).String())
	assert.Equal(t, "info", slogLevel(slog.LevelInfo).String())
	assert.Equal(t, "warn", slogLevel(slog.LevelWarn).String())
	assert.Equal(t, "error", slogLevel(slog.LevelError).String())
}
