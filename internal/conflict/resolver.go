// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package conflict detects divergent edits against the current version of
// a content item and resolves flagged conflicts.
package conflict

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/ocms-content/internal/model"
	"github.com/olegiv/ocms-content/internal/store"
	"github.com/olegiv/ocms-content/internal/versioning"
)

// MergeSeparator is placed between the current and the incoming body by the
// merge strategy.
const MergeSeparator = "\n\n--- MERGED CONTENT ---\n\n"

// Config holds detection limits.
type Config struct {
	// Threshold is the number of changed diff lines an edit may have
	// before it is treated as a conflict.
	Threshold int
	// PreviewLines caps the diff entries returned with a check result.
	PreviewLines int
}

// DefaultConfig returns a threshold of 50 lines and a 10 line preview.
func DefaultConfig() Config {
	return Config{Threshold: 50, PreviewLines: 10}
}

// Resolver checks edits against current versions and applies resolution
// strategies.
type Resolver struct {
	db       *sql.DB
	queries  *store.Queries
	versions *versioning.Store
	cfg      Config
	logger   *slog.Logger
}

// NewResolver creates a resolver. Zero config values fall back to defaults.
func NewResolver(db *sql.DB, versions *versioning.Store, cfg Config, logger *slog.Logger) *Resolver {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.PreviewLines <= 0 {
		cfg.PreviewLines = def.PreviewLines
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		db:       db,
		queries:  store.New(db),
		versions: versions,
		cfg:      cfg,
		logger:   logger,
	}
}

// DetectConflicts compares newBody with the current version of the item.
// An item without versions never conflicts. Otherwise a conflict is
// reported when the current version already carries a conflict status or
// the number of changed lines exceeds the threshold.
func (r *Resolver) DetectConflicts(ctx context.Context, contentID int64, newBody string) (*model.ConflictCheckResult, error) {
	current, err := r.versions.Current(ctx, contentID)
	if errors.Is(err, model.ErrNotFound) {
		return &model.ConflictCheckResult{Preview: []model.DiffLine{}}, nil
	}
	if err != nil {
		return nil, err
	}

	lines := Diff(current.Body, newBody)
	changed := ChangedLines(lines)

	preview := lines
	if len(preview) > r.cfg.PreviewLines {
		preview = preview[:r.cfg.PreviewLines]
	}

	return &model.ConflictCheckResult{
		Conflict:       current.ConflictStatus != model.ConflictNone || changed > r.cfg.Threshold,
		ChangedLines:   changed,
		Preview:        preview,
		CurrentVersion: current.ID,
	}, nil
}

// MarkDetected flags a version as having an unresolved conflict.
func (r *Resolver) MarkDetected(ctx context.Context, versionID int64) error {
	if err := r.versions.SetConflictStatus(ctx, versionID, model.ConflictDetected, nil); err != nil {
		return err
	}
	r.logger.Info("conflict detected", "version_id", versionID)
	return nil
}

// Resolution is the outcome of ResolveConflict.
type Resolution struct {
	Strategy model.Strategy
	// Resolved is the version whose conflict was closed.
	Resolved *model.ContentVersion
	// Version is the new current version carrying the resolved body.
	Version *model.ContentVersion
	Item    *model.ContentItem
}

// ResolveConflict closes the conflict on versionID with the given strategy:
//
//   - keep_current keeps the body of the item's current version
//   - use_incoming takes customBody verbatim
//   - merge appends customBody to the current body after MergeSeparator
//
// Every strategy appends a new current version with the resulting body and
// writes it to the item. The version is then marked resolved by actorID.
// All writes share one transaction; on any failure nothing changes.
func (r *Resolver) ResolveConflict(ctx context.Context, tenantID, versionID, actorID int64, strategy model.Strategy, customBody string) (*Resolution, error) {
	if tenantID <= 0 {
		return nil, model.ErrTenantContextRequired
	}
	if _, err := model.ParseStrategy(string(strategy)); err != nil {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidStrategy, strategy)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.PersistenceError("begin resolve", err)
	}
	defer func() { _ = tx.Rollback() }()

	versions := r.versions.WithTx(tx)
	q := r.queries.WithTx(tx)

	target, err := versions.GetForTenant(ctx, tenantID, versionID)
	if err != nil {
		return nil, err
	}

	item, err := q.GetContentItem(ctx, store.GetContentItemParams{ID: target.ContentID, TenantID: tenantID})
	if err != nil {
		return nil, model.PersistenceError("load content", err)
	}

	current, err := versions.Current(ctx, target.ContentID)
	if err != nil {
		return nil, err
	}

	var body, notes string
	switch strategy {
	case model.StrategyKeepCurrent:
		body = current.Body
		notes = fmt.Sprintf("Conflict on version %d resolved: kept current", target.Number)
	case model.StrategyUseIncoming:
		body = customBody
		notes = fmt.Sprintf("Conflict on version %d resolved: used incoming", target.Number)
	case model.StrategyMerge:
		body = current.Body + MergeSeparator + customBody
		notes = fmt.Sprintf("Conflict on version %d resolved: merged", target.Number)
	}

	v, err := versions.Create(ctx, versioning.CreateParams{
		ContentID:   target.ContentID,
		Body:        body,
		ChangeNotes: notes,
		CreatedBy:   actorID,
	})
	if err != nil {
		r.logger.Error("failed to create resolved version", "op", "conflict.resolve", "content_id", target.ContentID, "error", err)
		return nil, err
	}

	n, err := q.UpdateContentBody(ctx, store.UpdateContentBodyParams{
		Title:            item.Title,
		Body:             body,
		UpdatedAt:        v.CreatedAt,
		ID:               item.ID,
		TenantID:         tenantID,
		ExpectedRevision: item.Revision,
	})
	if err != nil {
		r.logger.Error("failed to update content body", "op", "conflict.resolve", "content_id", target.ContentID, "error", err)
		return nil, model.PersistenceError("update content body", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("content %d revision %d: %w", item.ID, item.Revision, model.ErrConcurrentUpdate)
	}

	if err := versions.SetConflictStatus(ctx, target.ID, model.ConflictResolved, &actorID); err != nil {
		r.logger.Error("failed to mark conflict resolved", "op", "conflict.resolve", "content_id", target.ContentID, "error", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("failed to commit resolution", "op", "conflict.resolve", "content_id", target.ContentID, "error", err)
		return nil, model.PersistenceError("commit resolve", err)
	}

	r.logger.Info("conflict resolved",
		"content_id", target.ContentID,
		"version_id", target.ID,
		"new_version_id", v.ID,
		"strategy", strategy,
		"actor_id", actorID)

	resolvedAt := v.CreatedAt
	target.ConflictStatus = model.ConflictResolved
	target.ResolvedBy = &actorID
	target.ResolvedAt = &resolvedAt
	target.IsCurrent = false

	return &Resolution{
		Strategy: strategy,
		Resolved: target,
		Version:  v,
		Item: &model.ContentItem{
			ID:        item.ID,
			TenantID:  item.TenantID,
			Title:     item.Title,
			Slug:      item.Slug,
			Body:      body,
			State:     model.State(item.State),
			Revision:  item.Revision + 1,
			AuthorID:  item.AuthorID,
			CreatedAt: item.CreatedAt,
			UpdatedAt: v.CreatedAt,
		},
	}, nil
}
