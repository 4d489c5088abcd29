// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/olegiv/ocms-content/internal/cache"
	"github.com/olegiv/ocms-content/internal/conflict"
	"github.com/olegiv/ocms-content/internal/history"
	"github.com/olegiv/ocms-content/internal/model"
	"github.com/olegiv/ocms-content/internal/store"
	"github.com/olegiv/ocms-content/internal/util"
	"github.com/olegiv/ocms-content/internal/versioning"
	"github.com/olegiv/ocms-content/internal/webhook"
	"github.com/olegiv/ocms-content/internal/workflow"
)

// Listing bounds for List.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Options configures a ContentService. Zero values select defaults; a nil
// Cache disables caching and nil Webhooks disables notifications.
type Options struct {
	Transitions workflow.TransitionTable
	Versioning  versioning.Config
	Conflict    conflict.Config
	Cache       cache.Cacher
	CacheTTL    time.Duration
	Webhooks    webhook.Sender
	// Sanitize runs incoming bodies through the bluemonday UGC policy.
	Sanitize bool
	Logger   *slog.Logger
}

// ContentService is the entry point for callers working with content. It
// owns no storage itself; every operation delegates to the workflow,
// versioning, conflict and history components.
type ContentService struct {
	db        *sql.DB
	queries   *store.Queries
	machine   *workflow.StateMachine
	versions  *versioning.Store
	resolver  *conflict.Resolver
	history   *history.Logger
	events    *EventService
	cache     *cache.ContentCache
	webhooks  webhook.Sender
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewContentService wires the content components over db.
func NewContentService(db *sql.DB, opts Options) (*ContentService, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	table := opts.Transitions
	if table == nil {
		table = workflow.DefaultTransitions()
	}

	hist := history.NewLogger(db, logger)
	machine, err := workflow.New(db, table, hist, logger)
	if err != nil {
		return nil, fmt.Errorf("transition table: %w", err)
	}

	versions := versioning.New(db, opts.Versioning, logger)

	s := &ContentService{
		db:       db,
		queries:  store.New(db),
		machine:  machine,
		versions: versions,
		resolver: conflict.NewResolver(db, versions, opts.Conflict, logger),
		history:  hist,
		events:   NewEventService(db, logger),
		webhooks: opts.Webhooks,
		logger:   logger,
	}
	if opts.Cache != nil {
		ttl := opts.CacheTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		s.cache = cache.NewContentCache(opts.Cache, ttl, logger)
	}
	if opts.Sanitize {
		s.sanitizer = bluemonday.UGCPolicy()
	}
	return s, nil
}

// VersionStore exposes the version store for maintenance jobs.
func (s *ContentService) VersionStore() *versioning.Store {
	return s.versions
}

// CreateInput describes a new content item.
type CreateInput struct {
	Title       string
	Body        string
	AuthorID    int64
	ChangeNotes string
}

// Create inserts a draft item with its first version and returns the
// stored item.
func (s *ContentService) Create(ctx context.Context, tenantID int64, in CreateInput) (*model.ContentItem, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrInvalidInput)
	}
	if in.AuthorID <= 0 {
		return nil, fmt.Errorf("%w: author is required", model.ErrInvalidInput)
	}
	body := s.sanitize(in.Body)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.PersistenceError("begin create", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := s.queries.WithTx(tx)

	slug, err := uniqueSlug(ctx, q, tenantID, title)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id, err := q.CreateContentItem(ctx, store.CreateContentItemParams{
		TenantID:  tenantID,
		Title:     title,
		Slug:      slug,
		Body:      body,
		State:     string(model.StateDraft),
		AuthorID:  in.AuthorID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		s.logger.Error("failed to create content", "op", "content.create", "tenant_id", tenantID, "error", err)
		return nil, model.PersistenceError("insert content", err)
	}

	notes := in.ChangeNotes
	if notes == "" {
		notes = "Initial version"
	}
	if _, err := s.versions.WithTx(tx).Create(ctx, versioning.CreateParams{
		ContentID:   id,
		Body:        body,
		ChangeNotes: notes,
		CreatedBy:   in.AuthorID,
	}); err != nil {
		s.logger.Error("failed to create initial version", "op", "content.create", "content_id", id, "error", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit content", "op", "content.create", "content_id", id, "error", err)
		return nil, model.PersistenceError("commit create", err)
	}

	item, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("content created", "content_id", id, "tenant_id", tenantID, "slug", slug)
	s.audit(ctx, model.EventCategoryContent, "Content created", item, in.AuthorID, nil)
	s.notify(ctx, webhook.EventContentCreated, eventData(item, in.AuthorID))
	return item, nil
}

// Get returns an item of the tenant.
func (s *ContentService) Get(ctx context.Context, tenantID, id int64) (*model.ContentItem, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if s.cache == nil {
		return s.load(ctx, tenantID, id)
	}
	return s.cache.Load(ctx, tenantID, id, func() (*model.ContentItem, error) {
		return s.load(ctx, tenantID, id)
	})
}

// ListParams filters and pages List.
type ListParams struct {
	State  model.State // empty lists every state
	Limit  int
	Offset int
}

// List returns the tenant's items, most recently updated first.
func (s *ContentService) List(ctx context.Context, tenantID int64, p ListParams) ([]model.ContentItem, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if p.State != "" && !p.State.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidState, p.State)
	}
	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}
	p.Limit = min(p.Limit, MaxListLimit)
	p.Offset = max(p.Offset, 0)

	rows, err := s.queries.ListContentItems(ctx, store.ListContentItemsParams{
		TenantID: tenantID,
		State:    string(p.State),
		Limit:    int64(p.Limit),
		Offset:   int64(p.Offset),
	})
	if err != nil {
		return nil, model.PersistenceError("list content", err)
	}

	items := make([]model.ContentItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, *itemFromRow(r))
	}
	return items, nil
}

// UpdateInput describes an edit.
type UpdateInput struct {
	Title       string // empty keeps the current title
	Body        string
	ActorID     int64
	ChangeNotes string
	// ExpectedRevision is the revision the editor started from. Zero skips
	// the check.
	ExpectedRevision int64
}

// UpdateResult is returned by Update. Check is set whenever conflict
// detection ran, including when the update was refused.
type UpdateResult struct {
	Item    *model.ContentItem
	Version *model.ContentVersion
	Check   *model.ConflictCheckResult
}

// Update stores a new body as a new current version. When the edit
// conflicts with the current version it is refused with ErrEditConflict,
// the current version is flagged and the result carries the check so the
// caller can resolve it with ResolveConflict.
func (s *ContentService) Update(ctx context.Context, tenantID, id int64, in UpdateInput) (*UpdateResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if in.ActorID <= 0 {
		return nil, fmt.Errorf("%w: actor is required", model.ErrInvalidInput)
	}

	item, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if item.IsArchived() {
		return nil, fmt.Errorf("%w: content %d is archived", model.ErrInvalidInput, id)
	}
	if in.ExpectedRevision != 0 && in.ExpectedRevision != item.Revision {
		return nil, fmt.Errorf("content %d is at revision %d, not %d: %w", id, item.Revision, in.ExpectedRevision, model.ErrConcurrentUpdate)
	}

	body := s.sanitize(in.Body)
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = item.Title
	}

	check, err := s.resolver.DetectConflicts(ctx, id, body)
	if err != nil {
		return nil, err
	}
	if check.Conflict {
		if err := s.resolver.MarkDetected(ctx, check.CurrentVersion); err != nil {
			return nil, err
		}
		s.logger.Warn("edit conflict", "content_id", id, "tenant_id", tenantID, "changed_lines", check.ChangedLines)
		s.auditLevel(ctx, model.EventLevelWarning, model.EventCategoryConflict, "Edit conflict detected", item, in.ActorID, map[string]any{
			"version_id":    check.CurrentVersion,
			"changed_lines": check.ChangedLines,
		})
		data := eventData(item, in.ActorID)
		data.VersionID = check.CurrentVersion
		s.notify(ctx, webhook.EventContentConflictDetected, data)
		return &UpdateResult{Item: item, Check: check}, fmt.Errorf("content %d: %w", id, model.ErrEditConflict)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.PersistenceError("begin update", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	n, err := s.queries.WithTx(tx).UpdateContentBody(ctx, store.UpdateContentBodyParams{
		Title:            title,
		Body:             body,
		UpdatedAt:        now,
		ID:               id,
		TenantID:         tenantID,
		ExpectedRevision: item.Revision,
	})
	if err != nil {
		s.logger.Error("failed to update content", "op", "content.update", "content_id", id, "error", err)
		return nil, model.PersistenceError("update content", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("content %d changed during update: %w", id, model.ErrConcurrentUpdate)
	}

	v, err := s.versions.WithTx(tx).Create(ctx, versioning.CreateParams{
		ContentID:   id,
		Body:        body,
		ChangeNotes: in.ChangeNotes,
		CreatedBy:   in.ActorID,
	})
	if err != nil {
		s.logger.Error("failed to create version", "op", "content.update", "content_id", id, "error", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit update", "op", "content.update", "content_id", id, "error", err)
		return nil, model.PersistenceError("commit update", err)
	}

	s.invalidate(ctx, tenantID, id)

	updated, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("content updated", "content_id", id, "tenant_id", tenantID, "version", v.Number)
	s.audit(ctx, model.EventCategoryVersion, "Content updated", updated, in.ActorID, map[string]any{"version_id": v.ID, "number": v.Number})
	data := eventData(updated, in.ActorID)
	data.VersionID = v.ID
	s.notify(ctx, webhook.EventContentUpdated, data)

	return &UpdateResult{Item: updated, Version: v, Check: check}, nil
}

// ChangeState moves an item through the workflow.
func (s *ContentService) ChangeState(ctx context.Context, tenantID, id int64, target model.State, actorID int64, notes string) (*model.ContentItem, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	res, err := s.machine.ChangeState(ctx, tenantID, id, target, actorID, notes)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, tenantID, id)
	s.audit(ctx, model.EventCategoryWorkflow, "Content state changed", res.Item, actorID, map[string]any{
		"from": res.Record.FromState,
		"to":   res.Record.ToState,
	})
	data := eventData(res.Item, actorID)
	data.FromState = string(res.Record.FromState)
	s.notify(ctx, webhook.EventContentStateChanged, data)

	return res.Item, nil
}

// AllowedTransitions lists the states the item can move to next.
func (s *ContentService) AllowedTransitions(ctx context.Context, tenantID, id int64) ([]model.State, error) {
	item, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return s.machine.AllowedTransitions(item.State), nil
}

// History returns the item's transitions, newest first.
func (s *ContentService) History(ctx context.Context, tenantID, id int64, limit int) ([]model.TransitionRecord, error) {
	if err := s.ensureItem(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.history.GetHistory(ctx, id, tenantID, limit)
}

// Versions returns version metadata of the item, newest first.
func (s *ContentService) Versions(ctx context.Context, tenantID, id int64, limit int) ([]model.ContentVersion, error) {
	if err := s.ensureItem(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.versions.ListForContent(ctx, id, limit)
}

// Version returns one version with its body.
func (s *ContentService) Version(ctx context.Context, tenantID, versionID int64) (*model.ContentVersion, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	return s.versions.GetForTenant(ctx, tenantID, versionID)
}

// RestoreVersion copies an earlier version into a new current version and
// the item body.
func (s *ContentService) RestoreVersion(ctx context.Context, tenantID, versionID, actorID int64) (*model.ContentVersion, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if actorID <= 0 {
		return nil, fmt.Errorf("%w: actor is required", model.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.PersistenceError("begin restore", err)
	}
	defer func() { _ = tx.Rollback() }()

	versions := s.versions.WithTx(tx)
	q := s.queries.WithTx(tx)

	src, err := versions.GetForTenant(ctx, tenantID, versionID)
	if err != nil {
		return nil, err
	}
	row, err := q.GetContentItem(ctx, store.GetContentItemParams{ID: src.ContentID, TenantID: tenantID})
	if err != nil {
		return nil, model.PersistenceError("load content", err)
	}
	if model.State(row.State) == model.StateArchived {
		return nil, fmt.Errorf("%w: content %d is archived", model.ErrInvalidInput, row.ID)
	}

	from := src.ID
	v, err := versions.Create(ctx, versioning.CreateParams{
		ContentID:    src.ContentID,
		Body:         src.Body,
		ChangeNotes:  "Restored from version " + strconv.FormatInt(src.Number, 10),
		CreatedBy:    actorID,
		RestoredFrom: &from,
	})
	if err != nil {
		s.logger.Error("failed to create restored version", "op", "content.restore", "content_id", src.ContentID, "error", err)
		return nil, err
	}

	n, err := q.UpdateContentBody(ctx, store.UpdateContentBodyParams{
		Title:            row.Title,
		Body:             src.Body,
		UpdatedAt:        v.CreatedAt,
		ID:               row.ID,
		TenantID:         tenantID,
		ExpectedRevision: row.Revision,
	})
	if err != nil {
		s.logger.Error("failed to update content", "op", "content.restore", "content_id", row.ID, "error", err)
		return nil, model.PersistenceError("update content", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("content %d changed during restore: %w", row.ID, model.ErrConcurrentUpdate)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit restore", "op", "content.restore", "content_id", row.ID, "error", err)
		return nil, model.PersistenceError("commit restore", err)
	}

	s.invalidate(ctx, tenantID, row.ID)

	item := itemFromRow(row)
	item.Body = src.Body
	item.Revision++
	item.UpdatedAt = v.CreatedAt

	s.logger.Info("version restored", "content_id", row.ID, "from_version", src.Number, "new_version", v.Number)
	s.audit(ctx, model.EventCategoryVersion, "Version restored", item, actorID, map[string]any{
		"restored_from": src.ID,
		"version_id":    v.ID,
	})
	data := eventData(item, actorID)
	data.VersionID = v.ID
	s.notify(ctx, webhook.EventContentRestored, data)

	return v, nil
}

// AutosaveInput describes an in-progress draft.
type AutosaveInput struct {
	Body    string
	ActorID int64
}

// Autosave stores body as an autosave version. The item body, revision and
// current version are left untouched.
func (s *ContentService) Autosave(ctx context.Context, tenantID, id int64, in AutosaveInput) (*model.ContentVersion, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if in.ActorID <= 0 {
		return nil, fmt.Errorf("%w: actor is required", model.ErrInvalidInput)
	}
	item, err := s.load(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if item.IsArchived() {
		return nil, fmt.Errorf("%w: content %d is archived", model.ErrInvalidInput, id)
	}

	v, err := s.versions.Create(ctx, versioning.CreateParams{
		ContentID:   id,
		Body:        s.sanitize(in.Body),
		ChangeNotes: "Autosave",
		CreatedBy:   in.ActorID,
		Autosave:    true,
	})
	if err != nil {
		s.logger.Error("failed to autosave", "op", "content.autosave", "content_id", id, "error", err)
		return nil, err
	}
	s.logger.Debug("content autosaved", "content_id", id, "tenant_id", tenantID, "version_id", v.ID)
	return v, nil
}

// LatestAutosave returns the item's newest autosave with its body.
func (s *ContentService) LatestAutosave(ctx context.Context, tenantID, id int64) (*model.ContentVersion, error) {
	if err := s.ensureItem(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.versions.LatestAutosave(ctx, id)
}

// PromoteAutosave makes an autosave the item's current version and body.
func (s *ContentService) PromoteAutosave(ctx context.Context, tenantID, autosaveID, actorID int64) (*model.ContentVersion, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if actorID <= 0 {
		return nil, fmt.Errorf("%w: actor is required", model.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.PersistenceError("begin promote", err)
	}
	defer func() { _ = tx.Rollback() }()

	versions := s.versions.WithTx(tx)
	q := s.queries.WithTx(tx)

	// Tenant check before anything is written.
	src, err := versions.GetForTenant(ctx, tenantID, autosaveID)
	if err != nil {
		return nil, err
	}
	row, err := q.GetContentItem(ctx, store.GetContentItemParams{ID: src.ContentID, TenantID: tenantID})
	if err != nil {
		return nil, model.PersistenceError("load content", err)
	}
	if model.State(row.State) == model.StateArchived {
		return nil, fmt.Errorf("%w: content %d is archived", model.ErrInvalidInput, row.ID)
	}

	v, err := versions.PromoteAutosave(ctx, autosaveID)
	if err != nil {
		return nil, err
	}

	n, err := q.UpdateContentBody(ctx, store.UpdateContentBodyParams{
		Title:            row.Title,
		Body:             v.Body,
		UpdatedAt:        v.CreatedAt,
		ID:               row.ID,
		TenantID:         tenantID,
		ExpectedRevision: row.Revision,
	})
	if err != nil {
		s.logger.Error("failed to update content", "op", "content.promote_autosave", "content_id", row.ID, "error", err)
		return nil, model.PersistenceError("update content", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("content %d changed during promotion: %w", row.ID, model.ErrConcurrentUpdate)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit promotion", "op", "content.promote_autosave", "content_id", row.ID, "error", err)
		return nil, model.PersistenceError("commit promote", err)
	}

	s.invalidate(ctx, tenantID, row.ID)

	item := itemFromRow(row)
	item.Body = v.Body
	item.Revision++
	item.UpdatedAt = v.CreatedAt

	s.audit(ctx, model.EventCategoryVersion, "Autosave promoted", item, actorID, map[string]any{
		"autosave_id": autosaveID,
		"version_id":  v.ID,
	})
	data := eventData(item, actorID)
	data.VersionID = v.ID
	s.notify(ctx, webhook.EventContentUpdated, data)

	return v, nil
}

// StorageUsage reports stored version bytes for the tenant, or for one item
// when id is non-zero.
func (s *ContentService) StorageUsage(ctx context.Context, tenantID, id int64) (*model.StorageUsage, error) {
	if id != 0 {
		if err := s.ensureItem(ctx, tenantID, id); err != nil {
			return nil, err
		}
	} else if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	return s.versions.StorageUsage(ctx, tenantID, id)
}

// CompareVersions diffs two versions of the same item.
func (s *ContentService) CompareVersions(ctx context.Context, tenantID, fromID, toID int64) (*model.VersionComparison, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	from, err := s.versions.GetForTenant(ctx, tenantID, fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.versions.GetForTenant(ctx, tenantID, toID)
	if err != nil {
		return nil, err
	}
	if from.ContentID != to.ContentID {
		return nil, fmt.Errorf("%w: versions %d and %d belong to different content", model.ErrInvalidInput, fromID, toID)
	}

	lines := conflict.Diff(from.Body, to.Body)
	return &model.VersionComparison{
		FromVersion: from.ID,
		ToVersion:   to.ID,
		Lines:       lines,
		Stats:       conflict.Stats(lines),
	}, nil
}

// DetectConflicts checks a proposed body against the item's current version
// without changing anything.
func (s *ContentService) DetectConflicts(ctx context.Context, tenantID, id int64, newBody string) (*model.ConflictCheckResult, error) {
	if err := s.ensureItem(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return s.resolver.DetectConflicts(ctx, id, s.sanitize(newBody))
}

// ResolveConflict closes a flagged conflict on versionID.
func (s *ContentService) ResolveConflict(ctx context.Context, tenantID, versionID, actorID int64, strategy model.Strategy, customBody string) (*conflict.Resolution, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	res, err := s.resolver.ResolveConflict(ctx, tenantID, versionID, actorID, strategy, s.sanitize(customBody))
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, tenantID, res.Item.ID)
	s.audit(ctx, model.EventCategoryConflict, "Conflict resolved", res.Item, actorID, map[string]any{
		"version_id":     res.Resolved.ID,
		"new_version_id": res.Version.ID,
		"strategy":       string(strategy),
	})
	data := eventData(res.Item, actorID)
	data.VersionID = res.Version.ID
	data.Strategy = string(strategy)
	s.notify(ctx, webhook.EventContentConflictResolved, data)

	return res, nil
}

func requireTenant(tenantID int64) error {
	if tenantID <= 0 {
		return model.ErrTenantContextRequired
	}
	return nil
}

func (s *ContentService) load(ctx context.Context, tenantID, id int64) (*model.ContentItem, error) {
	row, err := s.queries.GetContentItem(ctx, store.GetContentItemParams{ID: id, TenantID: tenantID})
	if err != nil {
		return nil, model.PersistenceError("load content", err)
	}
	return itemFromRow(row), nil
}

func (s *ContentService) ensureItem(ctx context.Context, tenantID, id int64) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	_, err := s.load(ctx, tenantID, id)
	return err
}

func (s *ContentService) sanitize(body string) string {
	if s.sanitizer == nil {
		return body
	}
	return s.sanitizer.Sanitize(body)
}

func (s *ContentService) invalidate(ctx context.Context, tenantID, id int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, tenantID, id)
	}
}

func (s *ContentService) audit(ctx context.Context, category, message string, item *model.ContentItem, actorID int64, meta map[string]any) {
	s.auditLevel(ctx, model.EventLevelInfo, category, message, item, actorID, meta)
}

func (s *ContentService) auditLevel(ctx context.Context, level, category, message string, item *model.ContentItem, actorID int64, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["content_id"] = item.ID
	meta["state"] = string(item.State)
	// Audit failures are logged by EventService and never fail the operation.
	_ = s.events.LogEvent(ctx, level, category, message, item.TenantID, actorID, meta)
}

func (s *ContentService) notify(ctx context.Context, eventType string, data webhook.ContentEventData) {
	if s.webhooks == nil {
		return
	}
	if err := s.webhooks.Dispatch(ctx, webhook.NewEvent(eventType, data)); err != nil {
		s.logger.Warn("failed to dispatch webhook", "event_type", eventType, "content_id", data.ID, "error", err)
	}
}

func eventData(item *model.ContentItem, actorID int64) webhook.ContentEventData {
	return webhook.ContentEventData{
		ID:       item.ID,
		TenantID: item.TenantID,
		Title:    item.Title,
		Slug:     item.Slug,
		State:    string(item.State),
		Revision: item.Revision,
		ActorID:  actorID,
	}
}

// uniqueSlug derives a slug from title and appends -2, -3, ... until it is
// free within the tenant. Taken candidates are read in one query; the chosen
// one is confirmed since long bases are shortened to fit the suffix.
func uniqueSlug(ctx context.Context, q *store.Queries, tenantID int64, title string) (string, error) {
	base := util.TitleSlug(title)
	existing, err := q.ListSlugsWithPrefix(ctx, store.ListSlugsWithPrefixParams{TenantID: tenantID, Base: base})
	if err != nil {
		return "", model.PersistenceError("list slugs", err)
	}
	taken := make(map[string]struct{}, len(existing))
	for _, slug := range existing {
		taken[slug] = struct{}{}
	}

	for i := 1; ; i++ {
		slug := util.WithSuffix(base, i)
		if _, ok := taken[slug]; ok {
			continue
		}
		exists, err := q.SlugExists(ctx, store.SlugExistsParams{TenantID: tenantID, Slug: slug})
		if err != nil {
			return "", model.PersistenceError("check slug", err)
		}
		if !exists {
			return slug, nil
		}
		taken[slug] = struct{}{}
	}
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

// IsValidationError reports whether err is a caller error that must not be
// retried.
func IsValidationError(err error) bool {
	for _, target := range []error{
		model.ErrNotFound,
		model.ErrInvalidTransition,
		model.ErrInvalidStrategy,
		model.ErrTenantContextRequired,
		model.ErrInvalidState,
		model.ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
