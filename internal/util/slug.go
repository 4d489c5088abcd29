// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util derives URL slugs for content titles.
package util

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds generated slugs, including any numeric suffix.
const MaxSlugLength = 100

// FallbackSlug is used for titles that transliterate to nothing.
const FallbackSlug = "content"

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, strips accents, transliterates other scripts to
// ASCII and joins the resulting letters and digits with single hyphens. The
// result may be empty.
func Slugify(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = unidecode.Unidecode(folded)

	var b strings.Builder
	b.Grow(len(folded))
	gap := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if gap && b.Len() > 0 {
				b.WriteByte('-')
			}
			gap = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '/' || r == '.':
			gap = true
		}
	}
	return truncate(b.String(), MaxSlugLength)
}

// TitleSlug is Slugify with FallbackSlug for empty results.
func TitleSlug(title string) string {
	if slug := Slugify(title); slug != "" {
		return slug
	}
	return FallbackSlug
}

// WithSuffix returns base-n, shortening base so the result still fits
// MaxSlugLength. n < 2 returns base unchanged.
func WithSuffix(base string, n int) string {
	if n < 2 {
		return base
	}
	suffix := "-" + strconv.Itoa(n)
	return truncate(base, MaxSlugLength-len(suffix)) + suffix
}

// truncate cuts s to at most max bytes, preferring a hyphen boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	if i := strings.LastIndexByte(s, '-'); i > max/2 {
		s = s[:i]
	}
	return strings.TrimRight(s, "-")
}
