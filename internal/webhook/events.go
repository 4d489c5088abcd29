// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook delivers content lifecycle events to configured HTTP
// endpoints.
package webhook

import (
	"time"

	"github.com/google/uuid"
)

// Content event types
const (
	EventContentCreated          = "content.created"
	EventContentUpdated          = "content.updated"
	EventContentStateChanged     = "content.state_changed"
	EventContentRestored         = "content.restored"
	EventContentConflictDetected = "content.conflict_detected"
	EventContentConflictResolved = "content.conflict_resolved"
)

// Event represents a webhook event to be dispatched.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent creates a new webhook event with a random id.
func NewEvent(eventType string, data any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ContentEventData is the payload of every content event.
type ContentEventData struct {
	ID        int64  `json:"id"`
	TenantID  int64  `json:"tenant_id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	State     string `json:"state"`
	Revision  int64  `json:"revision"`
	ActorID   int64  `json:"actor_id"`
	FromState string `json:"from_state,omitempty"`
	VersionID int64  `json:"version_id,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
}
