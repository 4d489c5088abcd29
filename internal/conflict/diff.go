// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package conflict

import (
	"strings"

	"github.com/olegiv/ocms-content/internal/model"
)

// Diff compares two texts line by line at equal positions. It is not a
// minimal edit script: a single inserted line shifts every following line
// and each of them is reported as removed and added.
//
// Equal lines yield one unchanged entry. Differing lines yield a removed
// entry for the old line and an added entry for the new line, each only
// when that side is non-empty.
func Diff(oldText, newText string) []model.DiffLine {
	oldLines := strings.Split(oldText, "\n")
	newLines := strings.Split(newText, "\n")
	n := max(len(oldLines), len(newLines))

	out := make([]model.DiffLine, 0, n)
	for i := range n {
		var o, nw string
		if i < len(oldLines) {
			o = oldLines[i]
		}
		if i < len(newLines) {
			nw = newLines[i]
		}

		if o == nw {
			out = append(out, model.DiffLine{Type: model.DiffUnchanged, Line: i, Content: o})
			continue
		}
		if o != "" {
			out = append(out, model.DiffLine{Type: model.DiffRemoved, Line: i, Content: o})
		}
		if nw != "" {
			out = append(out, model.DiffLine{Type: model.DiffAdded, Line: i, Content: nw})
		}
	}
	return out
}

// Stats counts the entries of a diff by type.
func Stats(lines []model.DiffLine) model.DiffStats {
	var s model.DiffStats
	for _, l := range lines {
		switch l.Type {
		case model.DiffAdded:
			s.Added++
		case model.DiffRemoved:
			s.Removed++
		default:
			s.Unchanged++
		}
	}
	return s
}

// ChangedLines returns the number of entries that are not unchanged.
func ChangedLines(lines []model.DiffLine) int {
	return Stats(lines).Changed()
}
