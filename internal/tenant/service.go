// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package tenant

import (
	"context"
	"strings"
	"time"

	"github.com/sentinelhq/sentinel/internal/audit"
)

// Recorder is the slice of the audit service the settings flow needs.
type Recorder interface {
	Record(ctx context.Context, input audit.RecordInput) (*audit.Event, error)
}

// Service implements tenant settings reads and writes.
type Service struct {
	store    Store
	recorder Recorder
	now      func() time.Time
}

// NewService constructs a [Service].
func NewService(store Store, recorder Recorder) *Service {
	return &Service{store: store, recorder: recorder, now: time.Now}
}

/*
Get returns the tenant's settings.

Description: A tenant that has never saved settings gets a zero-valued
Settings rather than a not-found error; the dashboard treats this as the
"not connected" state.

Parameters:
  - ctx: context.Context
  - userID: string (Discord user ID)

Returns:
  - *Settings: never nil
  - error: storage failures
*/
func (service *Service) Get(ctx context.Context, userID string) (*Settings, error) {
	settings, err := service.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = &Settings{UserID: userID}
	}
	return settings, nil
}

// UpdateInput carries the mutable settings fields. Nil pointers leave the
// stored value unchanged; empty strings clear it.
type UpdateInput struct {
	ERLCServerKey *string
	WebhookURL    *string
}

/*
Update applies a partial settings change and records it in the audit log.

Description: The audit entry captures which fields changed but never the
secret values themselves.

Parameters:
  - ctx: context.Context
  - userID: string
  - input: UpdateInput

Returns:
  - *Settings: the stored state after the change
  - error: storage failures
*/
func (service *Service) Update(ctx context.Context, userID string, input UpdateInput) (*Settings, error) {
	settings, err := service.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	changed := map[string]any{}
	if input.ERLCServerKey != nil {
		settings.ERLCServerKey = strings.TrimSpace(*input.ERLCServerKey)
		changed["erlc_server_key"] = settings.HasERLCKey()
	}
	if input.WebhookURL != nil {
		settings.WebhookURL = strings.TrimSpace(*input.WebhookURL)
		changed["webhook_url"] = settings.WebhookURL != ""
	}

	settings.UpdatedAt = service.now().UTC()
	if err := service.store.Save(ctx, settings); err != nil {
		return nil, err
	}

	// Best-effort: a failed audit write must not fail the settings change.
	_, _ = service.recorder.Record(ctx, audit.RecordInput{
		UserID:   userID,
		Module:   "integrations",
		Action:   "settings.updated",
		Metadata: changed,
	})

	return settings, nil
}
