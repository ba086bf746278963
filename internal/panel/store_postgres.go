// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package panel

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/dberr"
)

// PostgresStore implements the [Store] interface using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL implementation of [Store].
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
GetFlags retrieves the tenant's stored flag overrides.

Returns:
  - map[string]bool: may be empty, never nil
  - error: Query failures
*/
func (repository *PostgresStore) GetFlags(ctx context.Context, userID string) (map[string]bool, error) {
	const query = `SELECT feature, enabled FROM panels.featureflag WHERE userid = $1`

	rows, err := repository.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_flags_get_failed: %w", err)
	}
	defer rows.Close()

	flags := map[string]bool{}
	for rows.Next() {
		var feature string
		var enabled bool
		if err := rows.Scan(&feature, &enabled); err != nil {
			return nil, fmt.Errorf("postgres_flags_scan_failed: %w", err)
		}
		flags[feature] = enabled
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_flags_rows_failed: %w", err)
	}
	return flags, nil
}

/*
SaveFlags replaces the tenant's flag overrides in one transaction.

Parameters:
  - ctx: context.Context
  - userID: string
  - flags: map[string]bool (already validated against KnownFeatures)

Returns:
  - error: Transaction failures
*/
func (repository *PostgresStore) SaveFlags(ctx context.Context, userID string, flags map[string]bool) error {
	transaction, err := repository.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres_flags_begin_failed: %w", err)
	}
	defer func() { _ = transaction.Rollback(ctx) }()

	if _, err := transaction.Exec(ctx, `DELETE FROM panels.featureflag WHERE userid = $1`, userID); err != nil {
		return fmt.Errorf("postgres_flags_clear_failed: %w", err)
	}

	const insert = `INSERT INTO panels.featureflag (userid, feature, enabled) VALUES ($1, $2, $3)`
	for feature, enabled := range flags {
		if _, err := transaction.Exec(ctx, insert, userID, feature, enabled); err != nil {
			return fmt.Errorf("postgres_flags_insert_failed: %w", err)
		}
	}

	if err := transaction.Commit(ctx); err != nil {
		return fmt.Errorf("postgres_flags_commit_failed: %w", err)
	}
	return nil
}

/*
InsertRecord persists a new panel record.

Returns:
  - error: apperr.Conflict on duplicate slugs within a feature, other
    storage failures via dberr mapping
*/
func (repository *PostgresStore) InsertRecord(ctx context.Context, record *Record) error {
	const query = `
		INSERT INTO panels.record (
			id, userid, feature, name, slug, payload, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := repository.pool.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.Feature,
		record.Name,
		record.Slug,
		record.Payload,
		record.CreatedAt,
		record.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "panel_record_write")
	}
	return nil
}

/*
GetRecord retrieves one record scoped to tenant and feature.

Returns:
  - *Record: Hydrated record
  - error: apperr.NotFound or query failures
*/
func (repository *PostgresStore) GetRecord(ctx context.Context, userID, feature, recordID string) (*Record, error) {
	const query = `
		SELECT id, userid, feature, name, slug, payload, createdat, updatedat
		FROM panels.record
		WHERE userid = $1 AND feature = $2 AND id = $3`

	record := &Record{}
	err := repository.pool.QueryRow(ctx, query, userID, feature, recordID).Scan(
		&record.ID,
		&record.UserID,
		&record.Feature,
		&record.Name,
		&record.Slug,
		&record.Payload,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Panel record")
		}
		return nil, fmt.Errorf("postgres_record_get_failed: %w", err)
	}
	return record, nil
}

/*
ListRecords retrieves a feature's records newest-first with the total count.

Parameters:
  - ctx: context.Context
  - userID, feature: scoping keys
  - limit, offset: pagination (already clamped)

Returns:
  - []Record: newest-first page
  - int: total matching records
  - error: Query or scan failures
*/
func (repository *PostgresStore) ListRecords(ctx context.Context, userID, feature string, limit, offset int) ([]Record, int, error) {
	const countQuery = `SELECT COUNT(*) FROM panels.record WHERE userid = $1 AND feature = $2`

	var total int
	if err := repository.pool.QueryRow(ctx, countQuery, userID, feature).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_record_count_failed: %w", err)
	}

	const query = `
		SELECT id, userid, feature, name, slug, payload, createdat, updatedat
		FROM panels.record
		WHERE userid = $1 AND feature = $2
		ORDER BY createdat DESC, id DESC
		LIMIT $3 OFFSET $4`

	rows, err := repository.pool.Query(ctx, query, userID, feature, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_record_list_failed: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var record Record
		err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.Feature,
			&record.Name,
			&record.Slug,
			&record.Payload,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_record_scan_failed: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_record_rows_failed: %w", err)
	}
	return records, total, nil
}

/*
UpdateRecord persists changes to name, slug, and payload.

Returns:
  - error: apperr.NotFound when the row vanished, update failures
*/
func (repository *PostgresStore) UpdateRecord(ctx context.Context, record *Record) error {
	const query = `
		UPDATE panels.record
		SET name = $4, slug = $5, payload = $6, updatedat = $7
		WHERE userid = $1 AND feature = $2 AND id = $3`

	tag, err := repository.pool.Exec(ctx, query,
		record.UserID,
		record.Feature,
		record.ID,
		record.Name,
		record.Slug,
		record.Payload,
		record.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "panel_record_write")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Panel record")
	}
	return nil
}

/*
DeleteRecord removes one record scoped to tenant and feature.

Returns:
  - error: apperr.NotFound when nothing was deleted, delete failures
*/
func (repository *PostgresStore) DeleteRecord(ctx context.Context, userID, feature, recordID string) error {
	const query = `DELETE FROM panels.record WHERE userid = $1 AND feature = $2 AND id = $3`

	tag, err := repository.pool.Exec(ctx, query, userID, feature, recordID)
	if err != nil {
		return fmt.Errorf("postgres_record_delete_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Panel record")
	}
	return nil
}
