// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package audit

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the [Store] interface using pgx.
//
// The audit.event table is append-only: this repository exposes no update
// or delete path, and none exists in the schema either.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL implementation of [Store].
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
Insert appends one event into the audit.event table.

Parameters:
  - ctx: context.Context
  - event: *Event (write-once entity)

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (repository *PostgresStore) Insert(ctx context.Context, event *Event) error {
	const query = `
		INSERT INTO audit.event (
			id, userid, module, action, actor, subject, before, after, metadata, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := repository.pool.Exec(ctx, query,
		event.ID,
		event.UserID,
		event.Module,
		event.Action,
		event.Actor,
		event.Subject,
		event.Before,
		event.After,
		event.Metadata,
		event.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_audit_insert_failed: %w", err)
	}
	return nil
}

/*
List retrieves events newest-first, applying exact-match filters.

Description: Filters are combined with AND; absent filters are omitted from
the WHERE clause entirely rather than matched against empty strings.

Parameters:
  - ctx: context.Context
  - filter: ListFilter (UserID always present, Limit already clamped)

Returns:
  - []Event: newest-first
  - error: Query or scan failures
*/
func (repository *PostgresStore) List(ctx context.Context, filter ListFilter) ([]Event, error) {
	var builder strings.Builder
	builder.WriteString(`
		SELECT id, userid, module, action, actor, subject, before, after, metadata, createdat
		FROM audit.event
		WHERE userid = $1`)

	args := []any{filter.UserID}
	appendFilter := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		builder.WriteString(" AND " + column + " = $" + strconv.Itoa(len(args)))
	}
	appendFilter("module", filter.Module)
	appendFilter("action", filter.Action)
	appendFilter("actor", filter.Actor)

	args = append(args, filter.Limit)
	builder.WriteString(" ORDER BY createdat DESC, id DESC LIMIT $" + strconv.Itoa(len(args)))

	rows, err := repository.pool.Query(ctx, builder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres_audit_list_failed: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var event Event
		err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.Module,
			&event.Action,
			&event.Actor,
			&event.Subject,
			&event.Before,
			&event.After,
			&event.Metadata,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres_audit_scan_failed: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_audit_rows_failed: %w", err)
	}
	return events, nil
}
