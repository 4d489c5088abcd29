// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"testing"
	"time"

	"github.com/olegiv/ocms-content/internal/model"
	"github.com/olegiv/ocms-content/internal/testutil"
)

func TestLogEvent(t *testing.T) {
	db := testutil.TestMemoryDB(t)
	svc := NewEventService(db, testutil.TestLoggerSilent())
	ctx := context.Background()

	err := svc.LogEvent(ctx, model.EventLevelInfo, model.EventCategoryWorkflow, "Content state changed", 3, 123, map[string]any{
		"key": "value",
	})
	if err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var (
		level, category, message, metadata string
		tenantID, userID                   int64
	)
	err = db.QueryRow("SELECT level, category, message, metadata, tenant_id, user_id FROM events").
		Scan(&level, &category, &message, &metadata, &tenantID, &userID)
	if err != nil {
		t.Fatalf("failed to query event: %v", err)
	}

	if level != model.EventLevelInfo {
		t.Errorf("level = %q, want %q", level, model.EventLevelInfo)
	}
	if category != model.EventCategoryWorkflow {
		t.Errorf("category = %q, want %q", category, model.EventCategoryWorkflow)
	}
	if message != "Content state changed" {
		t.Errorf("message = %q", message)
	}
	if metadata != `{"key":"value"}` {
		t.Errorf("metadata = %q", metadata)
	}
	if tenantID != 3 || userID != 123 {
		t.Errorf("tenant/user = %d/%d, want 3/123", tenantID, userID)
	}
}

func TestLogEvent_NullIDsAndMetadata(t *testing.T) {
	db := testutil.TestMemoryDB(t)
	svc := NewEventService(db, nil)

	if err := svc.LogError(context.Background(), model.EventCategorySystem, "boom", 0, 0, nil); err != nil {
		t.Fatalf("LogError failed: %v", err)
	}

	events, err := svc.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	e := events[0]
	if e.TenantID.Valid || e.UserID.Valid {
		t.Errorf("expected NULL tenant and user, got %+v", e)
	}
	if e.Metadata != "{}" {
		t.Errorf("metadata = %q, want {}", e.Metadata)
	}
	if e.Level != model.EventLevelError {
		t.Errorf("level = %q", e.Level)
	}
}

func TestRecent_NewestFirst(t *testing.T) {
	db := testutil.TestMemoryDB(t)
	svc := NewEventService(db, nil)
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		if err := svc.LogInfo(ctx, model.EventCategoryContent, msg, 1, 1, nil); err != nil {
			t.Fatalf("LogInfo: %v", err)
		}
	}
	if err := svc.LogWarning(ctx, model.EventCategoryConflict, "fourth", 1, 1, nil); err != nil {
		t.Fatalf("LogWarning: %v", err)
	}

	events, err := svc.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Message != "fourth" || events[1].Message != "third" {
		t.Errorf("order = %q, %q", events[0].Message, events[1].Message)
	}
}

func TestDeleteOldEvents(t *testing.T) {
	db := testutil.TestMemoryDB(t)
	svc := NewEventService(db, nil)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	if _, err := db.Exec(`INSERT INTO events (level, category, message, metadata, created_at) VALUES ('info', 'system', 'old', '{}', ?)`, old); err != nil {
		t.Fatalf("insert old event: %v", err)
	}
	if err := svc.LogInfo(ctx, model.EventCategorySystem, "new", 0, 0, nil); err != nil {
		t.Fatalf("LogInfo: %v", err)
	}

	n, err := svc.DeleteOldEvents(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOldEvents: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if got := testutil.CountRows(t, db, "events", ""); got != 1 {
		t.Errorf("remaining = %d, want 1", got)
	}
}
