// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"errors"
	"fmt"
)

// Error is a sentinel error kind. Callers match with errors.Is.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrNotFound indicates the content or version does not exist or lies
	// outside the caller's tenant.
	ErrNotFound Error = "not found"

	// ErrInvalidTransition indicates the (from, to) pair is not allowed.
	ErrInvalidTransition Error = "invalid state transition"

	// ErrInvalidStrategy indicates an unknown conflict resolution strategy.
	ErrInvalidStrategy Error = "invalid conflict resolution strategy"

	// ErrTenantContextRequired indicates a call without a usable tenant id.
	ErrTenantContextRequired Error = "tenant context required"

	// ErrPersistence wraps failures of the underlying storage.
	ErrPersistence Error = "persistence failure"

	// ErrInvalidState indicates an unknown state name.
	ErrInvalidState Error = "invalid state"

	// ErrConcurrentUpdate indicates another writer changed the item first.
	ErrConcurrentUpdate Error = "concurrent update"

	// ErrEditConflict indicates an update was refused because it diverges
	// too far from the current version or a conflict is still open.
	ErrEditConflict Error = "edit conflict"

	// ErrCorruptVersion indicates a stored body could not be decoded.
	ErrCorruptVersion Error = "corrupt version body"

	// ErrInvalidInput indicates malformed arguments.
	ErrInvalidInput Error = "invalid input"
)

// PersistenceError wraps a storage failure of op. sql.ErrNoRows is mapped to
// ErrNotFound instead.
func PersistenceError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
