package store

import (
	"database/sql"
	"time"
)

type ContentItem struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	Revision  int64     `json:"revision"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContentVersion is a version row joined with its metadata row.
type ContentVersion struct {
	ID             int64         `json:"id"`
	ContentID      int64         `json:"content_id"`
	Number         int64         `json:"number"`
	Body           []byte        `json:"body"`
	Encoding       string        `json:"encoding"`
	ChangeNotes    string        `json:"change_notes"`
	CreatedBy      int64         `json:"created_by"`
	IsCurrent      bool          `json:"is_current"`
	IsAutosave     bool          `json:"is_autosave"`
	RestoredFrom   sql.NullInt64 `json:"restored_from"`
	CreatedAt      time.Time     `json:"created_at"`
	ConflictStatus string        `json:"conflict_status"`
	ResolvedBy     sql.NullInt64 `json:"resolved_by"`
	ResolvedAt     sql.NullTime  `json:"resolved_at"`
}

type ContentTransition struct {
	ID        int64     `json:"id"`
	ContentID int64     `json:"content_id"`
	TenantID  int64     `json:"tenant_id"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	ActorID   int64     `json:"actor_id"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

type Event struct {
	ID        int64         `json:"id"`
	TenantID  sql.NullInt64 `json:"tenant_id"`
	Level     string        `json:"level"`
	Category  string        `json:"category"`
	Message   string        `json:"message"`
	UserID    sql.NullInt64 `json:"user_id"`
	Metadata  string        `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}
