// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import (
	"testing"

	"github.com/olegiv/ocms-content/internal/model"
)

func TestDefaultTransitions(t *testing.T) {
	table := DefaultTransitions()

	tests := []struct {
		from, to model.State
		want     bool
	}{
		{model.StateDraft, model.StatePendingReview, true},
		{model.StateDraft, model.StateApproved, false},
		{model.StateDraft, model.StatePublished, false},
		{model.StatePendingReview, model.StateApproved, true},
		{model.StatePendingReview, model.StateDraft, true},
		{model.StateApproved, model.StatePublished, true},
		{model.StateApproved, model.StatePendingReview, false},
		{model.StatePublished, model.StateArchived, true},
		{model.StatePublished, model.StateDraft, false},
		{model.StateArchived, model.StateDraft, false},
		{model.StateDraft, model.StateDraft, false},
	}

	for _, tt := range tests {
		if got := table.Allows(tt.from, tt.to); got != tt.want {
			t.Errorf("Allows(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	if err := table.Validate(); err != nil {
		t.Errorf("default table invalid: %v", err)
	}
	if !table.IsTerminal(model.StateArchived) {
		t.Error("archived should be terminal")
	}
	if table.IsTerminal(model.StatePublished) {
		t.Error("published should not be terminal")
	}
}
