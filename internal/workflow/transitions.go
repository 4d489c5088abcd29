// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package workflow validates and applies content state transitions.
package workflow

import (
	"fmt"
	"slices"

	"github.com/olegiv/ocms-content/internal/model"
)

// TransitionTable maps a state to the states reachable from it. A table is
// fixed once handed to New; there is no runtime registration.
type TransitionTable map[model.State][]model.State

// DefaultTransitions returns the standard editorial workflow:
//
//	draft -> pending_review -> approved -> published
//
// with pending_review -> draft for rejections and archived reachable from
// every non-terminal state.
func DefaultTransitions() TransitionTable {
	return TransitionTable{
		model.StateDraft:         {model.StatePendingReview, model.StateArchived},
		model.StatePendingReview: {model.StateApproved, model.StateDraft, model.StateArchived},
		model.StateApproved:      {model.StatePublished, model.StateArchived},
		model.StatePublished:     {model.StateArchived},
	}
}

// Allows reports whether from -> to is a legal transition.
func (t TransitionTable) Allows(from, to model.State) bool {
	return slices.Contains(t[from], to)
}

// From returns a copy of the states reachable from the given state.
func (t TransitionTable) From(from model.State) []model.State {
	return slices.Clone(t[from])
}

// IsTerminal reports whether no transition leaves the state.
func (t TransitionTable) IsTerminal(s model.State) bool {
	return len(t[s]) == 0
}

// Validate checks that the table only names known states and has no
// self-loops.
func (t TransitionTable) Validate() error {
	for from, targets := range t {
		if !from.Valid() {
			return fmt.Errorf("%w: %q", model.ErrInvalidState, from)
		}
		for _, to := range targets {
			if !to.Valid() {
				return fmt.Errorf("%w: %q", model.ErrInvalidState, to)
			}
			if to == from {
				return fmt.Errorf("%w: self transition on %q", model.ErrInvalidTransition, from)
			}
		}
	}
	return nil
}

func (t TransitionTable) clone() TransitionTable {
	c := make(TransitionTable, len(t))
	for from, targets := range t {
		c[from] = slices.Clone(targets)
	}
	return c
}
