// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
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
Get retrieves a tenant's settings row.

Returns:
  - *Settings: nil (without error) when the tenant has never saved settings
  - error: Query failures
*/
func (repository *PostgresStore) Get(ctx context.Context, userID string) (*Settings, error) {
	const query = `
		SELECT userid, erlcserverkey, webhookurl, updatedat
		FROM tenants.setting
		WHERE userid = $1`

	settings := &Settings{}
	err := repository.pool.QueryRow(ctx, query, userID).Scan(
		&settings.UserID,
		&settings.ERLCServerKey,
		&settings.WebhookURL,
		&settings.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_tenant_get_failed: %w", err)
	}
	return settings, nil
}

/*
Save upserts a tenant's settings row.

Parameters:
  - ctx: context.Context
  - settings: *Settings

Returns:
  - error: Upsert failures
*/
func (repository *PostgresStore) Save(ctx context.Context, settings *Settings) error {
	const query = `
		INSERT INTO tenants.setting (userid, erlcserverkey, webhookurl, updatedat)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (userid) DO UPDATE SET
			erlcserverkey = EXCLUDED.erlcserverkey,
			webhookurl = EXCLUDED.webhookurl,
			updatedat = EXCLUDED.updatedat`

	_, err := repository.pool.Exec(ctx, query,
		settings.UserID,
		settings.ERLCServerKey,
		settings.WebhookURL,
		settings.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_tenant_save_failed: %w", err)
	}
	return nil
}
