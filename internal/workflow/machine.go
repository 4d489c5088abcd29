// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-content/internal/history"
	"github.com/olegiv/ocms-content/internal/model"
	"github.com/olegiv/ocms-content/internal/store"
)

// StateMachine owns the state field of content items.
type StateMachine struct {
	db      *sql.DB
	queries *store.Queries
	table   TransitionTable
	history *history.Logger
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a state machine over a private copy of table.
func New(db *sql.DB, table TransitionTable, hist *history.Logger, logger *slog.Logger) (*StateMachine, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StateMachine{
		db:      db,
		queries: store.New(db),
		table:   table.clone(),
		history: hist,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// AllowedTransitions lists the states reachable from the given state.
func (m *StateMachine) AllowedTransitions(from model.State) []model.State {
	return m.table.From(from)
}

// CanTransition reports whether from -> to is legal.
func (m *StateMachine) CanTransition(from, to model.State) bool {
	return m.table.Allows(from, to)
}

// Result is the outcome of a successful ChangeState.
type Result struct {
	Item   *model.ContentItem
	Record *model.TransitionRecord
}

// ChangeState moves an item to target and records the transition.
//
// The state update is a compare-and-swap on the state read at the start and
// is applied before the history row is written; both share one
// transaction. A lost swap returns ErrConcurrentUpdate and writes nothing.
func (m *StateMachine) ChangeState(ctx context.Context, tenantID, contentID int64, target model.State, actorID int64, notes string) (*Result, error) {
	if tenantID <= 0 {
		return nil, model.ErrTenantContextRequired
	}
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", model.ErrInvalidTransition, model.ErrInvalidState, target)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.PersistenceError("begin transition", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := m.queries.WithTx(tx)

	row, err := q.GetContentItem(ctx, store.GetContentItemParams{ID: contentID, TenantID: tenantID})
	if err != nil {
		return nil, model.PersistenceError("load content", err)
	}

	from := model.State(row.State)
	if !m.table.Allows(from, target) {
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, from, target)
	}

	now := m.now()
	n, err := q.UpdateContentState(ctx, store.UpdateContentStateParams{
		ToState:   string(target),
		UpdatedAt: now,
		ID:        contentID,
		TenantID:  tenantID,
		FromState: string(from),
	})
	if err != nil {
		m.logger.Error("failed to update content state", "op", "workflow.change_state", "content_id", contentID, "error", err)
		return nil, model.PersistenceError("update state", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("content %d left %s: %w", contentID, from, model.ErrConcurrentUpdate)
	}

	record, err := m.history.WithTx(tx).LogTransition(ctx, contentID, from, target, actorID, tenantID, notes)
	if err != nil {
		m.logger.Error("failed to log transition", "op", "workflow.change_state", "content_id", contentID, "error", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		m.logger.Error("failed to commit transition", "op", "workflow.change_state", "content_id", contentID, "error", err)
		return nil, model.PersistenceError("commit transition", err)
	}

	m.logger.Info("content state changed",
		"content_id", contentID,
		"tenant_id", tenantID,
		"from", from,
		"to", target,
		"actor_id", actorID)

	item := itemFromRow(row)
	item.State = target
	item.UpdatedAt = now

	return &Result{Item: item, Record: record}, nil
}

func itemFromRow(r store.ContentItem) *model.ContentItem {
	return &model.ContentItem{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Title:     r.Title,
		Slug:      r.Slug,
		Body:      r.Body,
		State:     model.State(r.State),
		Revision:  r.Revision,
		AuthorID:  r.AuthorID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
