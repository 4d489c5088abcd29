package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/olegiv/ocms-content/internal/model"
	"github.com/olegiv/ocms-content/internal/testutil"
)

type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

type storedEvent struct {
	level, category, message, metadata string
	tenantID                           sql.NullInt64
}

func lastEvent(t *testing.T, db *sql.DB) storedEvent {
	t.Helper()
	var e storedEvent
	err := db.QueryRow(`SELECT level, category, message, metadata, tenant_id FROM events ORDER BY id DESC LIMIT 1`).
		Scan(&e.level, &e.category, &e.message, &e.metadata, &e.tenantID)
	if err != nil {
		t.Fatalf("query event: %v", err)
	}
	return e
}

func TestEventLogHandler_Levels(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
		want  string // empty means not captured
	}{
		{"error", slog.LevelError, model.EventLevelError},
		{"warn", slog.LevelWarn, model.EventLevelWarning},
		{"info", slog.LevelInfo, ""},
		{"debug", slog.LevelDebug, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.TestDB(t)
			logger := slog.New(NewEventLogHandler(discardHandler{}, db))

			logger.Log(context.Background(), tt.level, "something happened")

			n := testutil.CountRows(t, db, "events", "")
			if tt.want == "" {
				if n != 0 {
					t.Errorf("captured %d events, want none", n)
				}
				return
			}
			if n != 1 {
				t.Fatalf("captured %d events, want 1", n)
			}
			if got := lastEvent(t, db).level; got != tt.want {
				t.Errorf("level = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventLogHandler_CustomLevel(t *testing.T) {
	db := testutil.TestDB(t)
	logger := slog.New(NewEventLogHandlerWithLevel(discardHandler{}, db, slog.LevelInfo))

	logger.Info("content created")

	e := lastEvent(t, db)
	if e.level != model.EventLevelInfo || e.category != model.EventCategoryContent {
		t.Errorf("event = %+v", e)
	}
}

func TestEventLogHandler_CategoryInference(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"edit conflict", model.EventCategoryConflict},
		{"failed to create version", model.EventCategoryVersion},
		{"pruned versions", model.EventCategoryVersion},
		{"failed to update content state", model.EventCategoryWorkflow},
		{"failed to log transition", model.EventCategoryWorkflow},
		{"failed to invalidate cache", model.EventCategoryCache},
		{"failed to commit content", model.EventCategoryContent},
		{"database unreachable", model.EventCategorySystem},
	}

	for _, tt := range tests {
		if got := inferCategory(tt.msg); got != tt.want {
			t.Errorf("inferCategory(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestEventLogHandler_ExplicitCategoryAndTenant(t *testing.T) {
	db := testutil.TestDB(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, db))

	logger.Warn("anything", "category", model.EventCategoryCache, "tenant_id", int64(4), "content_id", 12)

	e := lastEvent(t, db)
	if e.category != model.EventCategoryCache {
		t.Errorf("category = %q", e.category)
	}
	if !e.tenantID.Valid || e.tenantID.Int64 != 4 {
		t.Errorf("tenant = %+v, want 4", e.tenantID)
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(e.metadata), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v (%s)", err, e.metadata)
	}
	if _, ok := meta["category"]; ok {
		t.Error("category must not be repeated in metadata")
	}
	if meta["content_id"] != float64(12) {
		t.Errorf("content_id = %v", meta["content_id"])
	}
}

func TestEventLogHandler_WithAttrsAndGroup(t *testing.T) {
	db := testutil.TestDB(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, db)).
		With("component", "scheduler").
		WithGroup("job").
		With("name", "prune")

	logger.Error("job failed", "error", "disk \"full\"\n", "took", 2*time.Second)

	var meta map[string]any
	if err := json.Unmarshal([]byte(lastEvent(t, db).metadata), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	want := map[string]any{
		"component": "scheduler",
		"job.name":  "prune",
		"job.error": "disk \"full\"\n",
		"job.took":  "2s",
	}
	for k, v := range want {
		if meta[k] != v {
			t.Errorf("meta[%q] = %v, want %v", k, meta[k], v)
		}
	}
}

func TestEventLogHandler_NoAttrs(t *testing.T) {
	db := testutil.TestDB(t)
	slog.New(NewEventLogHandler(discardHandler{}, db)).Warn("plain")

	if got := lastEvent(t, db).metadata; got != "{}" {
		t.Errorf("metadata = %q, want {}", got)
	}
}
