// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelhq/sentinel/internal/platform/apperr"
)

// PostgresStore implements the [Store] interface using pgx.
//
// Execution rows are write-once: the repository exposes inserts and reads
// only, mirroring the append-only audit log.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL implementation of [Store].
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
GetPolicy retrieves the tenant's safety policy.

Returns:
  - *Policy: nil (without error) when the tenant never saved one
  - error: Query failures
*/
func (repository *PostgresStore) GetPolicy(ctx context.Context, userID string) (*Policy, error) {
	const query = `
		SELECT userid, allowlist, requiresapproval, cooldownseconds, updatedat
		FROM commands.policy
		WHERE userid = $1`

	policy := &Policy{}
	err := repository.pool.QueryRow(ctx, query, userID).Scan(
		&policy.UserID,
		&policy.Allowlist,
		&policy.RequiresApproval,
		&policy.CooldownSeconds,
		&policy.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_policy_get_failed: %w", err)
	}
	return policy, nil
}

/*
SavePolicy upserts the tenant's safety policy.

Parameters:
  - ctx: context.Context
  - policy: *Policy (allowlist already normalized by the service)

Returns:
  - error: Upsert failures
*/
func (repository *PostgresStore) SavePolicy(ctx context.Context, policy *Policy) error {
	const query = `
		INSERT INTO commands.policy (userid, allowlist, requiresapproval, cooldownseconds, updatedat)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (userid) DO UPDATE SET
			allowlist = EXCLUDED.allowlist,
			requiresapproval = EXCLUDED.requiresapproval,
			cooldownseconds = EXCLUDED.cooldownseconds,
			updatedat = EXCLUDED.updatedat`

	_, err := repository.pool.Exec(ctx, query,
		policy.UserID,
		policy.Allowlist,
		policy.RequiresApproval,
		policy.CooldownSeconds,
		policy.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_policy_save_failed: %w", err)
	}
	return nil
}

/*
InsertExecution appends one write-once attempt record.

Parameters:
  - ctx: context.Context
  - execution: *Execution

Returns:
  - error: Insert failures
*/
func (repository *PostgresStore) InsertExecution(ctx context.Context, execution *Execution) error {
	const query = `
		INSERT INTO commands.execution (
			id, userid, command, target, result, blockreason, message, source, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := repository.pool.Exec(ctx, query,
		execution.ID,
		execution.UserID,
		execution.Command,
		execution.Target,
		string(execution.Result),
		execution.BlockReason,
		execution.Message,
		execution.Source,
		execution.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_execution_insert_failed: %w", err)
	}
	return nil
}

/*
LatestExecution retrieves the tenant's most recent attempt of any outcome.

Description: Drives the cooldown gate; Blocked attempts count the same as
Executed ones.

Returns:
  - *Execution: nil (without error) when the tenant never attempted a command
  - error: Query failures
*/
func (repository *PostgresStore) LatestExecution(ctx context.Context, userID string) (*Execution, error) {
	const query = `
		SELECT id, userid, command, target, result, blockreason, message, source, createdat
		FROM commands.execution
		WHERE userid = $1
		ORDER BY createdat DESC, id DESC
		LIMIT 1`

	execution, err := repository.scanOne(repository.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_execution_latest_failed: %w", err)
	}
	return execution, nil
}

/*
GetExecution retrieves one attempt scoped to the tenant.

Returns:
  - *Execution: Hydrated attempt record
  - error: apperr.NotFound or query failures
*/
func (repository *PostgresStore) GetExecution(ctx context.Context, userID, executionID string) (*Execution, error) {
	const query = `
		SELECT id, userid, command, target, result, blockreason, message, source, createdat
		FROM commands.execution
		WHERE userid = $1 AND id = $2`

	execution, err := repository.scanOne(repository.pool.QueryRow(ctx, query, userID, executionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Execution")
		}
		return nil, fmt.Errorf("postgres_execution_get_failed: %w", err)
	}
	return execution, nil
}

/*
ListExecutions retrieves the tenant's attempts newest-first.

Parameters:
  - ctx: context.Context
  - userID: string
  - limit: int (already clamped by the service)

Returns:
  - []Execution: newest-first
  - error: Query or scan failures
*/
func (repository *PostgresStore) ListExecutions(ctx context.Context, userID string, limit int) ([]Execution, error) {
	const query = `
		SELECT id, userid, command, target, result, blockreason, message, source, createdat
		FROM commands.execution
		WHERE userid = $1
		ORDER BY createdat DESC, id DESC
		LIMIT $2`

	rows, err := repository.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres_execution_list_failed: %w", err)
	}
	defer rows.Close()

	executions := []Execution{}
	for rows.Next() {
		execution, err := repository.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres_execution_scan_failed: %w", err)
		}
		executions = append(executions, *execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_execution_rows_failed: %w", err)
	}
	return executions, nil
}

// scanOne hydrates a single execution from any pgx row source.
func (repository *PostgresStore) scanOne(row pgx.Row) (*Execution, error) {
	execution := &Execution{}
	var result string
	err := row.Scan(
		&execution.ID,
		&execution.UserID,
		&execution.Command,
		&execution.Target,
		&result,
		&execution.BlockReason,
		&execution.Message,
		&execution.Source,
		&execution.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	execution.Result = Result(result)
	return execution, nil
}
