// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// getCounterValue extracts the value from a Prometheus counter
func getCounterValue(counter prometheus.Counter) float64 {
	var m io_prometheus_client.Metric
	if err := counter.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// getGaugeValue extracts the value from a Prometheus gauge
func getGaugeValue(gauge prometheus.Gauge) float64 {
	var m io_prometheus_client.Metric
	if err := gauge.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func TestRecordBatchRead(t *testing.T) {
	t.Run("successful read adds batch size", func(t *testing.T) {
		before := getCounterValue(StreamEntriesRead)
		RecordBatchRead(10, nil)
		after := getCounterValue(StreamEntriesRead)
		if after != before+10 {
			t.Errorf("expected entries read to increase by 10, got %f -> %f", before, after)
		}
	})

	t.Run("empty read observes zero without counting entries", func(t *testing.T) {
		before := getCounterValue(StreamEntriesRead)
		RecordBatchRead(0, nil)
		after := getCounterValue(StreamEntriesRead)
		if after != before {
			t.Errorf("expected entries read unchanged, got %f -> %f", before, after)
		}
	})

	t.Run("read error increments error counter only", func(t *testing.T) {
		beforeRead := getCounterValue(StreamEntriesRead)
		beforeErr := getCounterValue(StreamReadErrors)
		RecordBatchRead(5, errors.New("connection reset"))
		if getCounterValue(StreamEntriesRead) != beforeRead {
			t.Error("entries read should not change on error")
		}
		if getCounterValue(StreamReadErrors) != beforeErr+1 {
			t.Error("expected read errors to increase by 1")
		}
	})
}

func TestRecordAck(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		before := getCounterValue(StreamEntriesAcked)
		RecordAck(nil)
		if getCounterValue(StreamEntriesAcked) != before+1 {
			t.Error("expected acked counter to increase by 1")
		}
	})

	t.Run("failure", func(t *testing.T) {
		before := getCounterValue(StreamAckFailures)
		RecordAck(errors.New("timeout"))
		if getCounterValue(StreamAckFailures) != before+1 {
			t.Error("expected ack failures to increase by 1")
		}
	})
}

func TestRecordReclaimed(t *testing.T) {
	before := getCounterValue(StreamEntriesReclaimed)
	RecordReclaimed(3)
	RecordReclaimed(0) // no-op
	after := getCounterValue(StreamEntriesReclaimed)
	if after != before+3 {
		t.Errorf("expected reclaimed to increase by 3, got %f -> %f", before, after)
	}
}

func TestRecordDebounceFire(t *testing.T) {
	reasons := []string{"quiet_window", "max_delay", "flush"}
	for _, reason := range reasons {
		t.Run(reason, func(t *testing.T) {
			RecordDebounceFire(reason, 30*time.Second)
		})
	}
}

func TestUpdatePendingTutors(t *testing.T) {
	UpdatePendingTutors(7)
	if v := getGaugeValue(DebouncePendingTutors); v != 7 {
		t.Errorf("expected pending tutors=7, got %f", v)
	}

	UpdatePendingTutors(0)
	if v := getGaugeValue(DebouncePendingTutors); v != 0 {
		t.Errorf("expected pending tutors=0, got %f", v)
	}
}

func TestRecordRecomputation(t *testing.T) {
	results := []string{"success", "partial", "failure"}
	for _, result := range results {
		t.Run(result, func(t *testing.T) {
			RecordRecomputation(result, 250*time.Millisecond)
		})
	}
}

func TestRecordWindowMetrics(t *testing.T) {
	RecordWindowSaved("7d")
	RecordWindowSaved("30d")
	RecordWindowFailure("30d", "calculate")
	RecordWindowFailure("90d", "persist")

	var m io_prometheus_client.Metric
	counter, err := WindowsSaved.GetMetricWithLabelValues("7d")
	if err != nil {
		t.Fatalf("failed to get counter: %v", err)
	}
	if err := counter.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if m.GetCounter().GetValue() < 1 {
		t.Errorf("expected 7d saves >= 1, got %f", m.GetCounter().GetValue())
	}
}

// TestRecordDBQuery tests database query metric recording
func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		duration  time.Duration
		err       error
	}{
		{
			name:      "successful INSERT query",
			operation: "INSERT",
			table:     "sessions",
			duration:  5 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "successful UPSERT query",
			operation: "UPSERT",
			table:     "tutor_window_metrics",
			duration:  10 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "failed query with short error",
			operation: "SELECT",
			table:     "sessions",
			duration:  100 * time.Millisecond,
			err:       errors.New("connection refused"),
		},
		{
			name:      "failed query with long error - should truncate to 50 chars",
			operation: "UPSERT",
			table:     "tutor_window_metrics",
			duration:  50 * time.Millisecond,
			err:       errors.New(strings.Repeat("x", 120)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Record the query - should not panic
			RecordDBQuery(tt.operation, tt.table, tt.duration, tt.err)
		})
	}
}

func TestRecordBreakerTransition(t *testing.T) {
	RecordBreakerTransition("persister", "closed", "open")

	var m io_prometheus_client.Metric
	gauge, err := CircuitBreakerState.GetMetricWithLabelValues("persister")
	if err != nil {
		t.Fatalf("failed to get gauge: %v", err)
	}
	if err := gauge.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if m.GetGauge().GetValue() != 2 {
		t.Errorf("expected open state gauge=2, got %f", m.GetGauge().GetValue())
	}

	RecordBreakerTransition("persister", "open", "half-open")
	if err := gauge.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if m.GetGauge().GetValue() != 1 {
		t.Errorf("expected half-open state gauge=1, got %f", m.GetGauge().GetValue())
	}
}

func TestBreakerStateValue(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
		{"bogus", -1},
	}
	for _, tt := range tests {
		if got := breakerStateValue(tt.state); got != tt.want {
			t.Errorf("breakerStateValue(%q) = %f, want %f", tt.state, got, tt.want)
		}
	}
}

func TestDeadLetterMetrics(t *testing.T) {
	categories := []string{"validation", "storage", "calculation"}
	for _, category := range categories {
		t.Run("category_"+category, func(t *testing.T) {
			RecordDeadLetter(category)
		})
	}

	before := getCounterValue(DeadLettersExpired)
	RecordDeadLetterExpiry(4)
	RecordDeadLetterExpiry(0) // no-op
	if getCounterValue(DeadLettersExpired) != before+4 {
		t.Error("expected expired counter to increase by 4")
	}

	UpdateDeadLetterDepth(12)
	if v := getGaugeValue(DeadLetterDepth); v != 12 {
		t.Errorf("expected dead letter depth=12, got %f", v)
	}
}

func TestRecordPublish(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		before := getCounterValue(EventsPublished)
		RecordPublish(nil)
		if getCounterValue(EventsPublished) != before+1 {
			t.Error("expected published counter to increase by 1")
		}
	})

	t.Run("failure", func(t *testing.T) {
		before := getCounterValue(EventPublishErrors)
		RecordPublish(errors.New("no responders"))
		if getCounterValue(EventPublishErrors) != before+1 {
			t.Error("expected publish errors to increase by 1")
		}
	})
}

func TestTrackActiveRequest(t *testing.T) {
	base := getGaugeValue(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	if v := getGaugeValue(APIActiveRequests); v != base+2 {
		t.Errorf("expected active requests=%f, got %f", base+2, v)
	}
	TrackActiveRequest(false)
	TrackActiveRequest(false)
	if v := getGaugeValue(APIActiveRequests); v != base {
		t.Errorf("expected active requests=%f, got %f", base, v)
	}
}

// TestConcurrentRecording verifies the helpers are safe under concurrent use
func TestConcurrentRecording(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordBatchRead(1, nil)
				RecordAck(nil)
				RecordCoalesced()
				RecordEventProcessed("session.completed")
				RecordRecomputation("success", time.Millisecond)
			}
		}()
	}
	wg.Wait()
}

// TestMetricGathering tests that metrics can be gathered using testutil
func TestMetricGathering(t *testing.T) {
	RecordDBQuery("TEST", "test_table", time.Millisecond, nil)
	RecordAPIRequest("GET", "/test", "200", time.Millisecond)

	// Verify we can lint the metrics (checks for consistency issues)
	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}

func BenchmarkRecordBatchRead(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordBatchRead(10, nil)
	}
}

func BenchmarkRecordDBQuery(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordDBQuery("UPSERT", "tutor_window_metrics", time.Millisecond, nil)
	}
}

func BenchmarkTrackActiveRequest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		TrackActiveRequest(true)
		TrackActiveRequest(false)
	}
}
