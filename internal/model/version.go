// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Encoding tags the on-disk representation of a version body.
type Encoding string

// Body encodings
const (
	EncodingNone Encoding = "none"
	EncodingZstd Encoding = "zstd"
	EncodingGzip Encoding = "gzip"
)

// ConflictStatus tracks whether a competing edit was seen against a version.
type ConflictStatus string

// Conflict statuses
const (
	ConflictNone     ConflictStatus = "none"
	ConflictDetected ConflictStatus = "detected"
	ConflictResolved ConflictStatus = "resolved"
)

// ContentVersion is an immutable snapshot of a content body.
// Body is only populated by single-version reads.
type ContentVersion struct {
	ID             int64          `json:"id"`
	ContentID      int64          `json:"content_id"`
	Number         int64          `json:"number"`
	Body           string         `json:"body,omitempty"`
	Encoding       Encoding       `json:"encoding"`
	ChangeNotes    string         `json:"change_notes"`
	CreatedBy      int64          `json:"created_by"`
	IsCurrent      bool           `json:"is_current"`
	IsAutosave     bool           `json:"is_autosave"`
	RestoredFrom   *int64         `json:"restored_from,omitempty"`
	ConflictStatus ConflictStatus `json:"conflict_status"`
	ResolvedBy     *int64         `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// StorageUsage summarises stored version bodies.
type StorageUsage struct {
	Versions    int64                      `json:"versions"`
	StoredBytes int64                      `json:"stored_bytes"`
	ByEncoding  map[Encoding]EncodingUsage `json:"by_encoding"`
}

// EncodingUsage is the share of StorageUsage held in one encoding.
type EncodingUsage struct {
	Versions    int64 `json:"versions"`
	StoredBytes int64 `json:"stored_bytes"`
}

// HasOpenConflict reports whether a conflict was flagged and not yet resolved.
func (v *ContentVersion) HasOpenConflict() bool {
	return v.ConflictStatus == ConflictDetected
}
