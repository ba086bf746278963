// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sentinelhq/sentinel/internal/platform/apperr"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	// 2. Unique violation mapping
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return apperr.Conflict("Resource already exists")
	}

	// 3. Unknown query errors become Internal Server Errors
	return apperr.Internal(err)
}
