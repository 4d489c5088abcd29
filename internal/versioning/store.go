// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package versioning stores immutable, optionally compressed snapshots of
// content bodies and maintains the per-item current-version pointer.
package versioning

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/olegiv/ocms-content/internal/model"
	"github.com/olegiv/ocms-content/internal/store"
)

// Listing bounds for ListForContent.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// Config holds VersionStore options.
type Config struct {
	// Encoding is the preferred body compression. Bodies that do not shrink
	// are stored raw regardless.
	Encoding model.Encoding
}

// DefaultConfig returns zstd compression.
func DefaultConfig() Config {
	return Config{Encoding: model.EncodingZstd}
}

// Store owns the content_versions and content_version_meta rows.
type Store struct {
	db      *sql.DB
	queries *store.Queries
	inTx    bool
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a version store.
func New(db *sql.DB, cfg Config, logger *slog.Logger) *Store {
	if cfg.Encoding == "" {
		cfg.Encoding = model.EncodingZstd
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:      db,
		queries: store.New(db),
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a copy of s whose statements run inside tx. The caller owns
// commit and rollback.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	c := *s
	c.queries = s.queries.WithTx(tx)
	c.inTx = true
	return &c
}

// CreateParams describes a new version.
type CreateParams struct {
	ContentID    int64
	Body         string
	ChangeNotes  string
	CreatedBy    int64
	RestoredFrom *int64
	// Autosave stores a draft snapshot that never becomes current.
	Autosave bool
}

// Create appends a version for the item and, unless it is an autosave,
// makes it the current one. The insert and the current-pointer flip share
// one transaction.
func (s *Store) Create(ctx context.Context, p CreateParams) (*model.ContentVersion, error) {
	var v *model.ContentVersion
	err := s.atomic(ctx, "version.create", func(q *store.Queries) error {
		var err error
		v, err = s.create(ctx, q, p)
		return err
	})
	return v, err
}

// atomic runs fn in a transaction, or directly when s is already bound to one.
func (s *Store) atomic(ctx context.Context, op string, fn func(q *store.Queries) error) error {
	if s.inTx {
		return fn(s.queries)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PersistenceError("begin version transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit version", "op", op, "error", err)
		return model.PersistenceError("commit version", err)
	}
	return nil
}

func (s *Store) create(ctx context.Context, q *store.Queries, p CreateParams) (*model.ContentVersion, error) {
	if len(p.Body) > MaxBodySize {
		return nil, fmt.Errorf("%w: body is %d bytes, limit is %d", model.ErrInvalidInput, len(p.Body), MaxBodySize)
	}

	number, err := q.NextVersionNumber(ctx, p.ContentID)
	if err != nil {
		return nil, model.PersistenceError("next version number", err)
	}

	data, enc := encodeBody(p.Body, s.cfg.Encoding)
	now := s.now()

	var restored sql.NullInt64
	if p.RestoredFrom != nil {
		restored = sql.NullInt64{Int64: *p.RestoredFrom, Valid: true}
	}

	id, err := q.CreateContentVersion(ctx, store.CreateContentVersionParams{
		ContentID:    p.ContentID,
		Number:       number,
		Body:         data,
		Encoding:     string(enc),
		ChangeNotes:  p.ChangeNotes,
		CreatedBy:    p.CreatedBy,
		IsAutosave:   p.Autosave,
		RestoredFrom: restored,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, model.PersistenceError("insert version", err)
	}
	if err := q.CreateVersionMeta(ctx, id, now); err != nil {
		return nil, model.PersistenceError("insert version meta", err)
	}
	if !p.Autosave {
		if err := q.ClearCurrentVersion(ctx, p.ContentID); err != nil {
			return nil, model.PersistenceError("clear current version", err)
		}
		if err := q.SetCurrentVersion(ctx, id); err != nil {
			return nil, model.PersistenceError("set current version", err)
		}
	}

	s.logger.Debug("version created",
		"content_id", p.ContentID,
		"version_id", id,
		"number", number,
		"autosave", p.Autosave,
		"encoding", enc,
		"stored_bytes", len(data))

	return &model.ContentVersion{
		ID:             id,
		ContentID:      p.ContentID,
		Number:         number,
		Body:           p.Body,
		Encoding:       enc,
		ChangeNotes:    p.ChangeNotes,
		CreatedBy:      p.CreatedBy,
		IsCurrent:      !p.Autosave,
		IsAutosave:     p.Autosave,
		RestoredFrom:   p.RestoredFrom,
		ConflictStatus: model.ConflictNone,
		CreatedAt:      now,
	}, nil
}

// Get returns a version with its body decoded.
func (s *Store) Get(ctx context.Context, versionID int64) (*model.ContentVersion, error) {
	row, err := s.queries.GetContentVersion(ctx, versionID)
	if err != nil {
		return nil, model.PersistenceError("get version", err)
	}
	return fromRow(row, true)
}

// GetForTenant is Get restricted to versions of the tenant's content.
func (s *Store) GetForTenant(ctx context.Context, tenantID, versionID int64) (*model.ContentVersion, error) {
	row, err := s.queries.GetContentVersionForTenant(ctx, store.GetContentVersionForTenantParams{
		ID:       versionID,
		TenantID: tenantID,
	})
	if err != nil {
		return nil, model.PersistenceError("get version", err)
	}
	return fromRow(row, true)
}

// Current returns the current version of an item with its body decoded, or
// ErrNotFound when the item has no versions yet.
func (s *Store) Current(ctx context.Context, contentID int64) (*model.ContentVersion, error) {
	row, err := s.queries.GetCurrentContentVersion(ctx, contentID)
	if err != nil {
		return nil, model.PersistenceError("get current version", err)
	}
	return fromRow(row, true)
}

// LatestAutosave returns the newest autosave of an item with its body
// decoded, or ErrNotFound when there is none.
func (s *Store) LatestAutosave(ctx context.Context, contentID int64) (*model.ContentVersion, error) {
	row, err := s.queries.GetLatestAutosave(ctx, contentID)
	if err != nil {
		return nil, model.PersistenceError("get latest autosave", err)
	}
	return fromRow(row, true)
}

// PromoteAutosave turns an autosave into a regular current version. The new
// version keeps the autosave's body and author; the autosave row is deleted
// in the same transaction.
func (s *Store) PromoteAutosave(ctx context.Context, autosaveID int64) (*model.ContentVersion, error) {
	var v *model.ContentVersion
	err := s.atomic(ctx, "version.promote_autosave", func(q *store.Queries) error {
		row, err := q.GetContentVersion(ctx, autosaveID)
		if err != nil {
			return model.PersistenceError("get autosave", err)
		}
		if !row.IsAutosave {
			return fmt.Errorf("%w: version %d is not an autosave", model.ErrInvalidInput, autosaveID)
		}
		src, err := fromRow(row, true)
		if err != nil {
			return err
		}

		v, err = s.create(ctx, q, CreateParams{
			ContentID:   src.ContentID,
			Body:        src.Body,
			ChangeNotes: "Promoted from autosave " + strconv.FormatInt(src.Number, 10),
			CreatedBy:   src.CreatedBy,
		})
		if err != nil {
			return err
		}

		n, err := q.DeleteAutosave(ctx, autosaveID)
		if err != nil {
			return model.PersistenceError("delete autosave", err)
		}
		if n == 0 {
			return fmt.Errorf("autosave %d removed during promotion: %w", autosaveID, model.ErrConcurrentUpdate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("autosave promoted", "content_id", v.ContentID, "autosave_id", autosaveID, "version_id", v.ID)
	return v, nil
}

// StorageUsage reports stored body bytes for the tenant's versions, or for
// one item when contentID is non-zero.
func (s *Store) StorageUsage(ctx context.Context, tenantID, contentID int64) (*model.StorageUsage, error) {
	rows, err := s.queries.VersionStorageUsage(ctx, store.VersionStorageUsageParams{
		TenantID:  tenantID,
		ContentID: contentID,
	})
	if err != nil {
		return nil, model.PersistenceError("version storage usage", err)
	}

	usage := &model.StorageUsage{ByEncoding: make(map[model.Encoding]model.EncodingUsage, len(rows))}
	for _, r := range rows {
		usage.Versions += r.Versions
		usage.StoredBytes += r.StoredBytes
		usage.ByEncoding[model.Encoding(r.Encoding)] = model.EncodingUsage{
			Versions:    r.Versions,
			StoredBytes: r.StoredBytes,
		}
	}
	return usage, nil
}

// ListForContent returns version metadata newest first, without bodies.
func (s *Store) ListForContent(ctx context.Context, contentID int64, limit int) ([]model.ContentVersion, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.queries.ListContentVersions(ctx, store.ListContentVersionsParams{
		ContentID: contentID,
		Limit:     int64(limit),
	})
	if err != nil {
		return nil, model.PersistenceError("list versions", err)
	}

	versions := make([]model.ContentVersion, 0, len(rows))
	for _, row := range rows {
		v, err := fromRow(row, false)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, nil
}

// SetConflictStatus updates the conflict metadata of a version.
func (s *Store) SetConflictStatus(ctx context.Context, versionID int64, status model.ConflictStatus, resolvedBy *int64) error {
	now := s.now()
	params := store.UpdateVersionConflictStatusParams{
		ConflictStatus: string(status),
		UpdatedAt:      now,
		VersionID:      versionID,
	}
	if status == model.ConflictResolved && resolvedBy != nil {
		params.ResolvedBy = sql.NullInt64{Int64: *resolvedBy, Valid: true}
		params.ResolvedAt = sql.NullTime{Time: now, Valid: true}
	}

	n, err := s.queries.UpdateVersionConflictStatus(ctx, params)
	if err != nil {
		return model.PersistenceError("update conflict status", err)
	}
	if n == 0 {
		return fmt.Errorf("version %d metadata: %w", versionID, model.ErrNotFound)
	}
	return nil
}

// Prune deletes historical versions of an item beyond the keep newest ones.
// The current version is never deleted.
func (s *Store) Prune(ctx context.Context, contentID int64, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	ids, err := s.queries.ListHistoricalVersionIDs(ctx, contentID)
	if err != nil {
		return 0, model.PersistenceError("list historical versions", err)
	}
	if len(ids) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, id := range ids[keep:] {
		n, err := s.queries.DeleteContentVersion(ctx, id)
		if err != nil {
			return deleted, model.PersistenceError("delete version", err)
		}
		deleted += int(n)
	}

	if deleted > 0 {
		s.logger.Info("pruned versions", "content_id", contentID, "deleted", deleted, "kept", keep)
	}
	return deleted, nil
}

// PruneAll runs Prune for every versioned item.
func (s *Store) PruneAll(ctx context.Context, keep int) (int, error) {
	ids, err := s.queries.ListVersionedContentIDs(ctx)
	if err != nil {
		return 0, model.PersistenceError("list versioned content", err)
	}

	total := 0
	for _, id := range ids {
		n, err := s.Prune(ctx, id, keep)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func fromRow(row store.ContentVersion, withBody bool) (*model.ContentVersion, error) {
	v := &model.ContentVersion{
		ID:             row.ID,
		ContentID:      row.ContentID,
		Number:         row.Number,
		Encoding:       model.Encoding(row.Encoding),
		ChangeNotes:    row.ChangeNotes,
		CreatedBy:      row.CreatedBy,
		IsCurrent:      row.IsCurrent,
		IsAutosave:     row.IsAutosave,
		ConflictStatus: model.ConflictStatus(row.ConflictStatus),
		CreatedAt:      row.CreatedAt,
	}
	if row.RestoredFrom.Valid {
		from := row.RestoredFrom.Int64
		v.RestoredFrom = &from
	}
	if row.ResolvedBy.Valid {
		by := row.ResolvedBy.Int64
		v.ResolvedBy = &by
	}
	if row.ResolvedAt.Valid {
		at := row.ResolvedAt.Time
		v.ResolvedAt = &at
	}

	if withBody {
		body, err := decodeBody(row.Body, v.Encoding)
		if err != nil {
			return nil, fmt.Errorf("version %d: %w", row.ID, err)
		}
		v.Body = body
	}
	return v, nil
}
