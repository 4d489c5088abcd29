// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// TransitionRecord is one append-only entry of the workflow audit trail.
type TransitionRecord struct {
	ID        int64     `json:"id"`
	ContentID int64     `json:"content_id"`
	TenantID  int64     `json:"tenant_id"`
	FromState State     `json:"from_state"`
	ToState   State     `json:"to_state"`
	ActorID   int64     `json:"actor_id"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
