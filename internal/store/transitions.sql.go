package store

import (
	"context"
	"time"
)

const createContentTransition = `
INSERT INTO content_transitions (content_id, tenant_id, from_state, to_state, actor_id, notes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type CreateContentTransitionParams struct {
	ContentID int64
	TenantID  int64
	FromState string
	ToState   string
	ActorID   int64
	Notes     string
	CreatedAt time.Time
}

func (q *Queries) CreateContentTransition(ctx context.Context, arg CreateContentTransitionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createContentTransition,
		arg.ContentID,
		arg.TenantID,
		arg.FromState,
		arg.ToState,
		arg.ActorID,
		arg.Notes,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const listContentTransitions = `
SELECT id, content_id, tenant_id, from_state, to_state, actor_id, notes, created_at
FROM content_transitions
WHERE content_id = ? AND tenant_id = ?
ORDER BY id DESC
LIMIT ?
`

type ListContentTransitionsParams struct {
	ContentID int64
	TenantID  int64
	Limit     int64
}

// ListContentTransitions returns transitions newest first. Insertion order
// is the only ordering guarantee, so rows are sorted by id.
func (q *Queries) ListContentTransitions(ctx context.Context, arg ListContentTransitionsParams) ([]ContentTransition, error) {
	rows, err := q.db.QueryContext(ctx, listContentTransitions, arg.ContentID, arg.TenantID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []ContentTransition
	for rows.Next() {
		var i ContentTransition
		if err := rows.Scan(
			&i.ID,
			&i.ContentID,
			&i.TenantID,
			&i.FromState,
			&i.ToState,
			&i.ActorID,
			&i.Notes,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
