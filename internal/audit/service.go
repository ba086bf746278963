// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sentinelhq/sentinel/pkg/uuid"
)

// Service implements audit log recording, querying, and export.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a [Service].
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

/*
Record appends one event to the tenant's activity log.

Description: Normalizes input (trims strings, defaults the actor to
"System") and persists an immutable entry. Recording failures propagate to
the caller, who decides whether the surrounding operation is best-effort.

Parameters:
  - ctx: context.Context
  - input: RecordInput

Returns:
  - *Event: the persisted entry
  - error: validation or storage failures
*/
func (service *Service) Record(ctx context.Context, input RecordInput) (*Event, error) {
	event := &Event{
		ID:        uuid.New(),
		UserID:    strings.TrimSpace(input.UserID),
		Module:    strings.TrimSpace(input.Module),
		Action:    strings.TrimSpace(input.Action),
		Actor:     strings.TrimSpace(input.Actor),
		Subject:   strings.TrimSpace(input.Subject),
		Before:    input.Before,
		After:     input.After,
		Metadata:  input.Metadata,
		CreatedAt: service.now().UTC(),
	}

	if event.UserID == "" || event.Module == "" || event.Action == "" {
		return nil, fmt.Errorf("audit_record_missing_fields: user=%q module=%q action=%q",
			event.UserID, event.Module, event.Action)
	}
	if event.Actor == "" {
		event.Actor = DefaultActor
	}

	if err := service.store.Insert(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

/*
List returns the tenant's events newest-first.

Description: Applies exact-match filters and clamps the limit to
[MaxListLimit]; a non-positive limit falls back to [DefaultListLimit].

Parameters:
  - ctx: context.Context
  - filter: ListFilter (UserID required)

Returns:
  - []Event: newest-first
  - error: storage failures
*/
func (service *Service) List(ctx context.Context, filter ListFilter) ([]Event, error) {
	if filter.UserID == "" {
		return nil, fmt.Errorf("audit_list_missing_user")
	}

	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}

	events, err := service.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

// csvHeader is the fixed export column order.
var csvHeader = []string{
	"id", "created_at", "module", "action", "actor", "subject",
	"before", "after", "metadata",
}

/*
ExportCSV streams matching events as RFC-4180 CSV.

Description: One row per event in listing order (newest first). State and
metadata cells are JSON-encoded; empty state is an empty cell, not "null".
Quoting and escaping are handled by encoding/csv.

Parameters:
  - ctx: context.Context
  - filter: ListFilter
  - writer: io.Writer receiving the CSV bytes

Returns:
  - error: query, encoding, or write failures
*/
func (service *Service) ExportCSV(ctx context.Context, filter ListFilter, writer io.Writer) error {
	events, err := service.List(ctx, filter)
	if err != nil {
		return err
	}

	encoder := csv.NewWriter(writer)
	if err := encoder.Write(csvHeader); err != nil {
		return fmt.Errorf("audit_csv_header: %w", err)
	}

	for i := range events {
		event := &events[i]
		row := []string{
			event.ID,
			event.CreatedAt.Format(time.RFC3339),
			event.Module,
			event.Action,
			event.Actor,
			event.Subject,
			jsonCell(event.Before),
			jsonCell(event.After),
			jsonCell(event.Metadata),
		}
		if err := encoder.Write(row); err != nil {
			return fmt.Errorf("audit_csv_row: %w", err)
		}
	}

	encoder.Flush()
	return encoder.Error()
}

// jsonCell JSON-encodes a state map for a CSV cell, leaving absent state empty.
func jsonCell(state map[string]any) string {
	if len(state) == 0 {
		return ""
	}
	encoded, err := json.Marshal(state)
	if err != nil {
		return ""
	}
	return string(encoded)
}
