// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the content workflow data types shared by the
// storage, workflow, versioning and service layers.
package model

import "time"

// State is a named content workflow state.
type State string

// Content states
const (
	StateDraft         State = "draft"
	StatePendingReview State = "pending_review"
	StateApproved      State = "approved"
	StatePublished     State = "published"
	StateArchived      State = "archived"
)

// States lists every known state in workflow order.
var States = []State{
	StateDraft,
	StatePendingReview,
	StateApproved,
	StatePublished,
	StateArchived,
}

// ParseState converts a state name into a State.
func ParseState(s string) (State, error) {
	for _, st := range States {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrInvalidState
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	_, err := ParseState(string(s))
	return err == nil
}

func (s State) String() string {
	return string(s)
}

// ContentItem is a tenant-scoped piece of content. Items are never deleted;
// they move to StateArchived instead.
type ContentItem struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Body      string    `json:"body"`
	State     State     `json:"state"`
	Revision  int64     `json:"revision"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsArchived returns true if the item reached the terminal state.
func (c *ContentItem) IsArchived() bool {
	return c.State == StateArchived
}

// IsPublished returns true if the item is published.
func (c *ContentItem) IsPublished() bool {
	return c.State == StatePublished
}
