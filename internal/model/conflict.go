// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// DiffType labels a single line of a positional diff.
type DiffType string

// Diff line types
const (
	DiffUnchanged DiffType = "unchanged"
	DiffRemoved   DiffType = "removed"
	DiffAdded     DiffType = "added"
)

// DiffLine is one entry of a line diff. Line is the zero-based position in
// the longer of the two inputs.
type DiffLine struct {
	Type    DiffType `json:"type"`
	Line    int      `json:"line"`
	Content string   `json:"content"`
}

// DiffStats summarizes a diff.
type DiffStats struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// Changed returns the number of lines that are not unchanged.
func (s DiffStats) Changed() int {
	return s.Added + s.Removed
}

// ConflictCheckResult is computed on demand and never persisted.
type ConflictCheckResult struct {
	Conflict       bool       `json:"conflict"`
	ChangedLines   int        `json:"changed_lines"`
	Preview        []DiffLine `json:"preview"`
	CurrentVersion int64      `json:"current_version_id,omitempty"`
}

// Strategy selects how a flagged conflict is resolved.
type Strategy string

// Resolution strategies
const (
	StrategyKeepCurrent Strategy = "keep_current"
	StrategyUseIncoming Strategy = "use_incoming"
	StrategyMerge       Strategy = "merge"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyKeepCurrent, StrategyUseIncoming, StrategyMerge:
		return Strategy(s), nil
	}
	return "", ErrInvalidStrategy
}

// VersionComparison is the result of comparing two versions of one item.
type VersionComparison struct {
	FromVersion int64      `json:"from_version"`
	ToVersion   int64      `json:"to_version"`
	Lines       []DiffLine `json:"lines"`
	Stats       DiffStats  `json:"stats"`
}
