// Praeceptor - Tutor Performance Metrics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/praeceptor

package eventlog

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/praeceptor/internal/models"
	"github.com/tomtom215/praeceptor/internal/validation"
)

// Serializer handles event encoding/decoding for log entries.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal converts an event to JSON bytes.
// The event is validated first so malformed events never reach the log.
func (s *Serializer) Marshal(event *models.SessionEvent) ([]byte, error) {
	if err := validation.ValidateStruct(event); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return data, nil
}

// Unmarshal converts JSON bytes to an event.
// Decoding does not validate; consumers validate explicitly so they can
// distinguish a malformed payload from a malformed event.
func (s *Serializer) Unmarshal(data []byte) (*models.SessionEvent, error) {
	var event models.SessionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	event.EnsureSchemaVersion()

	return &event, nil
}

// SerializeEvent is a convenience function that marshals an event to JSON.
func SerializeEvent(event *models.SessionEvent) ([]byte, error) {
	return NewSerializer().Marshal(event)
}

// DeserializeEvent is a convenience function that unmarshals JSON to an event.
func DeserializeEvent(data []byte) (*models.SessionEvent, error) {
	return NewSerializer().Unmarshal(data)
}
