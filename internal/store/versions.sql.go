package store

import (
	"context"
	"database/sql"
	"time"
)

const versionColumns = `v.id, v.content_id, v.number, v.body, v.encoding, v.change_notes, v.created_by,
    v.is_current, v.is_autosave, v.restored_from, v.created_at,
    COALESCE(m.conflict_status, 'none'), m.resolved_by, m.resolved_at`

func scanContentVersion(row interface{ Scan(...any) error }) (ContentVersion, error) {
	var i ContentVersion
	err := row.Scan(
		&i.ID,
		&i.ContentID,
		&i.Number,
		&i.Body,
		&i.Encoding,
		&i.ChangeNotes,
		&i.CreatedBy,
		&i.IsCurrent,
		&i.IsAutosave,
		&i.RestoredFrom,
		&i.CreatedAt,
		&i.ConflictStatus,
		&i.ResolvedBy,
		&i.ResolvedAt,
	)
	return i, err
}

const nextVersionNumber = `SELECT COALESCE(MAX(number), 0) + 1 FROM content_versions WHERE content_id = ?`

func (q *Queries) NextVersionNumber(ctx context.Context, contentID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, nextVersionNumber, contentID).Scan(&n)
	return n, err
}

const createContentVersion = `
INSERT INTO content_versions (content_id, number, body, encoding, change_notes, created_by, is_current, is_autosave, restored_from, created_at)
VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
`

type CreateContentVersionParams struct {
	ContentID    int64
	Number       int64
	Body         []byte
	Encoding     string
	ChangeNotes  string
	CreatedBy    int64
	IsAutosave   bool
	RestoredFrom sql.NullInt64
	CreatedAt    time.Time
}

// CreateContentVersion inserts a non-current version row.
func (q *Queries) CreateContentVersion(ctx context.Context, arg CreateContentVersionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createContentVersion,
		arg.ContentID,
		arg.Number,
		arg.Body,
		arg.Encoding,
		arg.ChangeNotes,
		arg.CreatedBy,
		arg.IsAutosave,
		arg.RestoredFrom,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const createVersionMeta = `
INSERT INTO content_version_meta (version_id, conflict_status, updated_at) VALUES (?, 'none', ?)
`

func (q *Queries) CreateVersionMeta(ctx context.Context, versionID int64, now time.Time) error {
	_, err := q.db.ExecContext(ctx, createVersionMeta, versionID, now)
	return err
}

const clearCurrentVersion = `UPDATE content_versions SET is_current = 0 WHERE content_id = ? AND is_current = 1`

func (q *Queries) ClearCurrentVersion(ctx context.Context, contentID int64) error {
	_, err := q.db.ExecContext(ctx, clearCurrentVersion, contentID)
	return err
}

const setCurrentVersion = `UPDATE content_versions SET is_current = 1 WHERE id = ?`

func (q *Queries) SetCurrentVersion(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, setCurrentVersion, id)
	return err
}

const getContentVersion = `SELECT ` + versionColumns + `
FROM content_versions v
LEFT JOIN content_version_meta m ON m.version_id = v.id
WHERE v.id = ?`

func (q *Queries) GetContentVersion(ctx context.Context, id int64) (ContentVersion, error) {
	row := q.db.QueryRowContext(ctx, getContentVersion, id)
	return scanContentVersion(row)
}

const getContentVersionForTenant = `SELECT ` + versionColumns + `
FROM content_versions v
JOIN content_items c ON c.id = v.content_id
LEFT JOIN content_version_meta m ON m.version_id = v.id
WHERE v.id = ? AND c.tenant_id = ?`

type GetContentVersionForTenantParams struct {
	ID       int64
	TenantID int64
}

func (q *Queries) GetContentVersionForTenant(ctx context.Context, arg GetContentVersionForTenantParams) (ContentVersion, error) {
	row := q.db.QueryRowContext(ctx, getContentVersionForTenant, arg.ID, arg.TenantID)
	return scanContentVersion(row)
}

const getCurrentContentVersion = `SELECT ` + versionColumns + `
FROM content_versions v
LEFT JOIN content_version_meta m ON m.version_id = v.id
WHERE v.content_id = ? AND v.is_current = 1`

func (q *Queries) GetCurrentContentVersion(ctx context.Context, contentID int64) (ContentVersion, error) {
	row := q.db.QueryRowContext(ctx, getCurrentContentVersion, contentID)
	return scanContentVersion(row)
}

// Metadata only: body is selected as an empty blob to bound response size.
const listContentVersions = `SELECT v.id, v.content_id, v.number, '', v.encoding, v.change_notes, v.created_by,
    v.is_current, v.is_autosave, v.restored_from, v.created_at,
    COALESCE(m.conflict_status, 'none'), m.resolved_by, m.resolved_at
FROM content_versions v
LEFT JOIN content_version_meta m ON m.version_id = v.id
WHERE v.content_id = ?
ORDER BY v.number DESC
LIMIT ?`

type ListContentVersionsParams struct {
	ContentID int64
	Limit     int64
}

func (q *Queries) ListContentVersions(ctx context.Context, arg ListContentVersionsParams) ([]ContentVersion, error) {
	rows, err := q.db.QueryContext(ctx, listContentVersions, arg.ContentID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []ContentVersion
	for rows.Next() {
		i, err := scanContentVersion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getLatestAutosave = `SELECT ` + versionColumns + `
FROM content_versions v
LEFT JOIN content_version_meta m ON m.version_id = v.id
WHERE v.content_id = ? AND v.is_autosave = 1
ORDER BY v.number DESC
LIMIT 1`

func (q *Queries) GetLatestAutosave(ctx context.Context, contentID int64) (ContentVersion, error) {
	row := q.db.QueryRowContext(ctx, getLatestAutosave, contentID)
	return scanContentVersion(row)
}

const deleteAutosave = `DELETE FROM content_versions WHERE id = ? AND is_autosave = 1`

func (q *Queries) DeleteAutosave(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAutosave, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const versionStorageUsage = `
SELECT v.encoding, COUNT(*), COALESCE(SUM(LENGTH(v.body)), 0)
FROM content_versions v
JOIN content_items c ON c.id = v.content_id
WHERE c.tenant_id = ? AND (? = 0 OR v.content_id = ?)
GROUP BY v.encoding
ORDER BY v.encoding
`

type VersionStorageUsageParams struct {
	TenantID  int64
	ContentID int64 // zero covers every item of the tenant
}

type VersionStorageUsageRow struct {
	Encoding    string
	Versions    int64
	StoredBytes int64
}

// VersionStorageUsage sums stored body bytes per encoding.
func (q *Queries) VersionStorageUsage(ctx context.Context, arg VersionStorageUsageParams) ([]VersionStorageUsageRow, error) {
	rows, err := q.db.QueryContext(ctx, versionStorageUsage, arg.TenantID, arg.ContentID, arg.ContentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []VersionStorageUsageRow
	for rows.Next() {
		var i VersionStorageUsageRow
		if err := rows.Scan(&i.Encoding, &i.Versions, &i.StoredBytes); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateVersionConflictStatus = `
UPDATE content_version_meta SET conflict_status = ?, resolved_by = ?, resolved_at = ?, updated_at = ?
WHERE version_id = ?
`

type UpdateVersionConflictStatusParams struct {
	ConflictStatus string
	ResolvedBy     sql.NullInt64
	ResolvedAt     sql.NullTime
	UpdatedAt      time.Time
	VersionID      int64
}

func (q *Queries) UpdateVersionConflictStatus(ctx context.Context, arg UpdateVersionConflictStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateVersionConflictStatus,
		arg.ConflictStatus,
		arg.ResolvedBy,
		arg.ResolvedAt,
		arg.UpdatedAt,
		arg.VersionID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listHistoricalVersionIDs = `
SELECT id FROM content_versions WHERE content_id = ? AND is_current = 0 ORDER BY number DESC
`

// ListHistoricalVersionIDs returns non-current version ids, newest first.
func (q *Queries) ListHistoricalVersionIDs(ctx context.Context, contentID int64) ([]int64, error) {
	return q.queryIDs(ctx, listHistoricalVersionIDs, contentID)
}

const listVersionedContentIDs = `SELECT DISTINCT content_id FROM content_versions ORDER BY content_id`

func (q *Queries) ListVersionedContentIDs(ctx context.Context) ([]int64, error) {
	return q.queryIDs(ctx, listVersionedContentIDs)
}

const deleteContentVersion = `DELETE FROM content_versions WHERE id = ? AND is_current = 0`

// DeleteContentVersion removes a historical version. Current versions are never deleted.
func (q *Queries) DeleteContentVersion(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteContentVersion, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
