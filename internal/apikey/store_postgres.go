// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package apikey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelhq/sentinel/internal/platform/apperr"
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
Insert persists a new key row.

Returns:
  - error: Insert failures
*/
func (repository *PostgresStore) Insert(ctx context.Context, key *Key) error {
	const query = `
		INSERT INTO users.apikey (id, userid, name, tokenhash, createdat)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := repository.pool.Exec(ctx, query,
		key.ID, key.UserID, key.Name, key.TokenHash, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres_apikey_insert_failed: %w", err)
	}
	return nil
}

/*
Get retrieves one key by ID.

Returns:
  - *Key: Hydrated key, revoked or not
  - error: apperr.NotFound or query failures
*/
func (repository *PostgresStore) Get(ctx context.Context, keyID string) (*Key, error) {
	const query = `
		SELECT id, userid, name, tokenhash, createdat, lastusedat, revokedat
		FROM users.apikey
		WHERE id = $1`

	key := &Key{}
	err := repository.pool.QueryRow(ctx, query, keyID).Scan(
		&key.ID, &key.UserID, &key.Name, &key.TokenHash,
		&key.CreatedAt, &key.LastUsedAt, &key.RevokedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("API key")
		}
		return nil, fmt.Errorf("postgres_apikey_get_failed: %w", err)
	}
	return key, nil
}

/*
ListByUser retrieves the tenant's keys newest-first.
*/
func (repository *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Key, error) {
	const query = `
		SELECT id, userid, name, tokenhash, createdat, lastusedat, revokedat
		FROM users.apikey
		WHERE userid = $1
		ORDER BY createdat DESC, id DESC`

	rows, err := repository.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_apikey_list_failed: %w", err)
	}
	defer rows.Close()

	keys := []Key{}
	for rows.Next() {
		var key Key
		err := rows.Scan(&key.ID, &key.UserID, &key.Name, &key.TokenHash,
			&key.CreatedAt, &key.LastUsedAt, &key.RevokedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres_apikey_scan_failed: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_apikey_rows_failed: %w", err)
	}
	return keys, nil
}

/*
Revoke marks a tenant's key revoked.

Returns:
  - error: apperr.NotFound when the tenant owns no such key
*/
func (repository *PostgresStore) Revoke(ctx context.Context, userID, keyID string, at time.Time) error {
	const query = `
		UPDATE users.apikey
		SET revokedat = $3
		WHERE userid = $1 AND id = $2 AND revokedat IS NULL`

	tag, err := repository.pool.Exec(ctx, query, userID, keyID, at)
	if err != nil {
		return fmt.Errorf("postgres_apikey_revoke_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either unknown or already revoked; verify which for the caller.
		if _, err := repository.Get(ctx, keyID); err != nil {
			return apperr.NotFound("API key")
		}
	}
	return nil
}

/*
TouchLastUsed updates the last-used timestamp.
*/
func (repository *PostgresStore) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	const query = `UPDATE users.apikey SET lastusedat = $2 WHERE id = $1`
	if _, err := repository.pool.Exec(ctx, query, keyID, at); err != nil {
		return fmt.Errorf("postgres_apikey_touch_failed: %w", err)
	}
	return nil
}
