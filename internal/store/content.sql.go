package store

import (
	"context"
	"time"
)

const contentColumns = `id, tenant_id, title, slug, body, state, revision, author_id, created_at, updated_at`

func scanContentItem(row interface{ Scan(...any) error }) (ContentItem, error) {
	var i ContentItem
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.Title,
		&i.Slug,
		&i.Body,
		&i.State,
		&i.Revision,
		&i.AuthorID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createContentItem = `
INSERT INTO content_items (tenant_id, title, slug, body, state, revision, author_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)
`

type CreateContentItemParams struct {
	TenantID  int64
	Title     string
	Slug      string
	Body      string
	State     string
	AuthorID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (q *Queries) CreateContentItem(ctx context.Context, arg CreateContentItemParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createContentItem,
		arg.TenantID,
		arg.Title,
		arg.Slug,
		arg.Body,
		arg.State,
		arg.AuthorID,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const getContentItem = `SELECT ` + contentColumns + ` FROM content_items WHERE id = ? AND tenant_id = ?`

type GetContentItemParams struct {
	ID       int64
	TenantID int64
}

func (q *Queries) GetContentItem(ctx context.Context, arg GetContentItemParams) (ContentItem, error) {
	row := q.db.QueryRowContext(ctx, getContentItem, arg.ID, arg.TenantID)
	return scanContentItem(row)
}

const slugExists = `SELECT COUNT(*) FROM content_items WHERE tenant_id = ? AND slug = ?`

type SlugExistsParams struct {
	TenantID int64
	Slug     string
}

func (q *Queries) SlugExists(ctx context.Context, arg SlugExistsParams) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, slugExists, arg.TenantID, arg.Slug).Scan(&n)
	return n > 0, err
}

const listSlugsWithPrefix = `SELECT slug FROM content_items WHERE tenant_id = ? AND (slug = ? OR slug LIKE ?)`

type ListSlugsWithPrefixParams struct {
	TenantID int64
	Base     string // must not contain LIKE wildcards
}

// ListSlugsWithPrefix returns the tenant's slugs equal to Base or of the form Base-*.
func (q *Queries) ListSlugsWithPrefix(ctx context.Context, arg ListSlugsWithPrefixParams) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listSlugsWithPrefix, arg.TenantID, arg.Base, arg.Base+"-%")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slugs, nil
}

const listContentItems = `SELECT ` + contentColumns + ` FROM content_items
WHERE tenant_id = ?
ORDER BY updated_at DESC, id DESC
LIMIT ? OFFSET ?`

const listContentItemsByState = `SELECT ` + contentColumns + ` FROM content_items
WHERE tenant_id = ? AND state = ?
ORDER BY updated_at DESC, id DESC
LIMIT ? OFFSET ?`

type ListContentItemsParams struct {
	TenantID int64
	State    string // empty lists every state
	Limit    int64
	Offset   int64
}

func (q *Queries) ListContentItems(ctx context.Context, arg ListContentItemsParams) ([]ContentItem, error) {
	query, args := listContentItems, []any{arg.TenantID, arg.Limit, arg.Offset}
	if arg.State != "" {
		query, args = listContentItemsByState, []any{arg.TenantID, arg.State, arg.Limit, arg.Offset}
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []ContentItem
	for rows.Next() {
		i, err := scanContentItem(rows)
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

const updateContentState = `
UPDATE content_items SET state = ?, updated_at = ?
WHERE id = ? AND tenant_id = ? AND state = ?
`

type UpdateContentStateParams struct {
	ToState   string
	UpdatedAt time.Time
	ID        int64
	TenantID  int64
	FromState string
}

// UpdateContentState moves an item from FromState to ToState. It returns the
// number of rows changed, which is zero when the state moved underneath.
func (q *Queries) UpdateContentState(ctx context.Context, arg UpdateContentStateParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateContentState,
		arg.ToState,
		arg.UpdatedAt,
		arg.ID,
		arg.TenantID,
		arg.FromState,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateContentBody = `
UPDATE content_items SET title = ?, body = ?, revision = revision + 1, updated_at = ?
WHERE id = ? AND tenant_id = ? AND revision = ?
`

type UpdateContentBodyParams struct {
	Title            string
	Body             string
	UpdatedAt        time.Time
	ID               int64
	TenantID         int64
	ExpectedRevision int64
}

// UpdateContentBody replaces title and body when the stored revision still
// equals ExpectedRevision. It returns the number of rows changed.
func (q *Queries) UpdateContentBody(ctx context.Context, arg UpdateContentBodyParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateContentBody,
		arg.Title,
		arg.Body,
		arg.UpdatedAt,
		arg.ID,
		arg.TenantID,
		arg.ExpectedRevision,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
