// Package history keeps the append-only audit trail of workflow transitions.
package history

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-content/internal/model"
	"github.com/olegiv/ocms-content/internal/store"
)

// Listing bounds for GetHistory.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Logger owns the content_transitions rows. It does not validate state
// legality; that is the state machine's job.
type Logger struct {
	queries *store.Queries
	logger  *slog.Logger
	now     func() time.Time
}

// NewLogger creates a history logger.
func NewLogger(db *sql.DB, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		queries: store.New(db),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a copy of l that writes inside tx.
func (l *Logger) WithTx(tx *sql.Tx) *Logger {
	c := *l
	c.queries = l.queries.WithTx(tx)
	return &c
}

// LogTransition appends one record and returns it.
func (l *Logger) LogTransition(ctx context.Context, contentID int64, from, to model.State, actorID, tenantID int64, notes string) (*model.TransitionRecord, error) {
	now := l.now()
	id, err := l.queries.CreateContentTransition(ctx, store.CreateContentTransitionParams{
		ContentID: contentID,
		TenantID:  tenantID,
		FromState: string(from),
		ToState:   string(to),
		ActorID:   actorID,
		Notes:     notes,
		CreatedAt: now,
	})
	if err != nil {
		return nil, model.PersistenceError("insert transition", err)
	}

	l.logger.Debug("transition logged",
		"content_id", contentID,
		"tenant_id", tenantID,
		"from", from,
		"to", to,
		"actor_id", actorID)

	return &model.TransitionRecord{
		ID:        id,
		ContentID: contentID,
		TenantID:  tenantID,
		FromState: from,
		ToState:   to,
		ActorID:   actorID,
		Notes:     notes,
		CreatedAt: now,
	}, nil
}

// GetHistory returns up to limit records, newest first.
func (l *Logger) GetHistory(ctx context.Context, contentID, tenantID int64, limit int) ([]model.TransitionRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := l.queries.ListContentTransitions(ctx, store.ListContentTransitionsParams{
		ContentID: contentID,
		TenantID:  tenantID,
		Limit:     int64(limit),
	})
	if err != nil {
		return nil, model.PersistenceError("list transitions", err)
	}

	records := make([]model.TransitionRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, model.TransitionRecord{
			ID:        r.ID,
			ContentID: r.ContentID,
			TenantID:  r.TenantID,
			FromState: model.State(r.FromState),
			ToState:   model.State(r.ToState),
			ActorID:   r.ActorID,
			Notes:     r.Notes,
			CreatedAt: r.CreatedAt,
		})
	}
	return records, nil
}
