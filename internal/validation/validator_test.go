// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/praeceptor/internal/models"
)

// ===================================================================================================
// Singleton Validator Tests
// ===================================================================================================

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}

	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

// ===================================================================================================
// ValidateStruct Tests
// ===================================================================================================

// validSessionEvent builds a SessionEvent that passes all validation tags.
func validSessionEvent() models.SessionEvent {
	return models.SessionEvent{
		SchemaVersion: models.SchemaVersion,
		EventID:       uuid.NewString(),
		EntityKey:     "tutor-42",
		EventType:     models.EventTypeSessionCompleted,
		Timestamp:     time.Now().UTC(),
		Session: models.SessionFact{
			SessionID:       uuid.NewString(),
			StudentKey:      "student-7",
			Subject:         "algebra",
			StartedAt:       time.Now().UTC().Add(-time.Hour),
			DurationMinutes: 60,
			Rating:          4.5,
			EarningsCents:   4500,
			Completed:       true,
		},
	}
}

func TestValidateStruct_ValidEvent(t *testing.T) {
	event := validSessionEvent()
	if err := ValidateStruct(&event); err != nil {
		t.Errorf("ValidateStruct() returned unexpected error: %v", err)
	}
}

func TestValidateStruct_InvalidEvent(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.SessionEvent)
		wantField string
		wantTag   string
	}{
		{
			name:      "missing event id",
			mutate:    func(e *models.SessionEvent) { e.EventID = "" },
			wantField: "EventID",
			wantTag:   "required",
		},
		{
			name:      "malformed event id",
			mutate:    func(e *models.SessionEvent) { e.EventID = "not-a-uuid" },
			wantField: "EventID",
			wantTag:   "uuid4",
		},
		{
			name:      "missing entity key",
			mutate:    func(e *models.SessionEvent) { e.EntityKey = "" },
			wantField: "EntityKey",
			wantTag:   "required",
		},
		{
			name:      "entity key too long",
			mutate:    func(e *models.SessionEvent) { e.EntityKey = strings.Repeat("k", 129) },
			wantField: "EntityKey",
			wantTag:   "max",
		},
		{
			name:      "unknown event type",
			mutate:    func(e *models.SessionEvent) { e.EventType = "session.started" },
			wantField: "EventType",
			wantTag:   "oneof",
		},
		{
			name:      "zero duration",
			mutate:    func(e *models.SessionEvent) { e.Session.DurationMinutes = 0 },
			wantField: "DurationMinutes",
			wantTag:   "required",
		},
		{
			name:      "negative duration",
			mutate:    func(e *models.SessionEvent) { e.Session.DurationMinutes = -5 },
			wantField: "DurationMinutes",
			wantTag:   "min",
		},
		{
			name:      "duration above one day",
			mutate:    func(e *models.SessionEvent) { e.Session.DurationMinutes = 2000 },
			wantField: "DurationMinutes",
			wantTag:   "max",
		},
		{
			name:      "rating above scale",
			mutate:    func(e *models.SessionEvent) { e.Session.Rating = 5.5 },
			wantField: "Rating",
			wantTag:   "max",
		},
		{
			name:      "negative earnings",
			mutate:    func(e *models.SessionEvent) { e.Session.EarningsCents = -1 },
			wantField: "EarningsCents",
			wantTag:   "min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := validSessionEvent()
			tt.mutate(&event)

			verr := ValidateStruct(&event)
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}

			found := false
			for _, fe := range verr.Errors() {
				if fe.Field() == tt.wantField && fe.Tag() == tt.wantTag {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error on field %q with tag %q, got %v", tt.wantField, tt.wantTag, verr)
			}
		})
	}
}

// ===================================================================================================
// Custom window_id Validator Tests
// ===================================================================================================

type windowRequest struct {
	WindowID string `validate:"required,window_id"`
}

func TestWindowIDValidator(t *testing.T) {
	valid := []string{"7d", "30d", "90d", "365d", "1w", "12w"}
	for _, w := range valid {
		t.Run("valid_"+w, func(t *testing.T) {
			req := windowRequest{WindowID: w}
			if err := ValidateStruct(&req); err != nil {
				t.Errorf("ValidateStruct(%q) returned unexpected error: %v", w, err)
			}
		})
	}

	invalid := []string{"d", "7", "07d", "-7d", "7m", "seven"}
	for _, w := range invalid {
		t.Run("invalid_"+w, func(t *testing.T) {
			req := windowRequest{WindowID: w}
			verr := ValidateStruct(&req)
			if verr == nil {
				t.Fatalf("ValidateStruct(%q) = nil, want error", w)
			}
			if verr.Errors()[0].Tag() != "window_id" {
				t.Errorf("expected window_id tag, got %q", verr.Errors()[0].Tag())
			}
		})
	}
}

func TestIsWindowID(t *testing.T) {
	if !IsWindowID("30d") {
		t.Error("IsWindowID(30d) = false, want true")
	}
	if IsWindowID("30x") {
		t.Error("IsWindowID(30x) = true, want false")
	}
	if IsWindowID("") {
		t.Error("IsWindowID(\"\") = true, want false")
	}
}

// ===================================================================================================
// Error Translation Tests
// ===================================================================================================

func TestToAPIError_SingleError(t *testing.T) {
	event := validSessionEvent()
	event.EventID = ""

	verr := ValidateStruct(&event)
	if verr == nil {
		t.Fatal("expected validation error")
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "EventID") {
		t.Errorf("Message = %q, want mention of EventID", apiErr.Message)
	}
	if apiErr.Details["field"] != "EventID" {
		t.Errorf("Details[field] = %v, want EventID", apiErr.Details["field"])
	}
}

func TestToAPIError_MultipleErrors(t *testing.T) {
	event := validSessionEvent()
	event.EventID = ""
	event.EntityKey = ""

	verr := ValidateStruct(&event)
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if len(verr.Errors()) < 2 {
		t.Fatalf("expected at least 2 errors, got %d", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("Details[fields] has unexpected type %T", apiErr.Details["fields"])
	}
	if len(fields) != len(verr.Errors()) {
		t.Errorf("fields count = %d, want %d", len(fields), len(verr.Errors()))
	}
}

func TestErrorMessages(t *testing.T) {
	event := validSessionEvent()
	event.Session.DurationMinutes = -5

	verr := ValidateStruct(&event)
	if verr == nil {
		t.Fatal("expected validation error")
	}

	msg := verr.Error()
	if !strings.Contains(msg, "DurationMinutes must be at least 1") {
		t.Errorf("Error() = %q, want min message for DurationMinutes", msg)
	}
}
