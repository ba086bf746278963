// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package panel

import (
	"context"
	"strings"
	"time"

	"github.com/sentinelhq/sentinel/internal/audit"
	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/pkg/slug"
	"github.com/sentinelhq/sentinel/pkg/uuid"
)

// Recorder is the slice of the audit service the panel flow needs.
type Recorder interface {
	Record(ctx context.Context, input audit.RecordInput) (*audit.Event, error)
}

// Service implements feature flags and generic panel record CRUD.
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
Features returns the tenant's full flag map.

Description: Every known feature appears in the result; features without a
stored override default to enabled.

Returns:
  - map[string]bool: complete flag map
  - error: storage failures
*/
func (service *Service) Features(ctx context.Context, userID string) (map[string]bool, error) {
	overrides, err := service.store.GetFlags(ctx, userID)
	if err != nil {
		return nil, err
	}

	flags := make(map[string]bool, len(KnownFeatures))
	for _, feature := range KnownFeatures {
		enabled, overridden := overrides[feature]
		flags[feature] = !overridden || enabled
	}
	return flags, nil
}

/*
SetFeatures replaces the tenant's flag map.

Description: Unknown keys are rejected rather than silently stored, so a
frontend typo cannot create an orphaned flag.

Returns:
  - map[string]bool: complete flag map after the change
  - error: validation or storage failures
*/
func (service *Service) SetFeatures(ctx context.Context, userID string, flags map[string]bool) (map[string]bool, error) {
	for feature := range flags {
		if !IsKnownFeature(feature) {
			return nil, apperr.ValidationError("Unknown feature",
				apperr.FieldError{Field: feature, Message: "is not a known feature"})
		}
	}

	if err := service.store.SaveFlags(ctx, userID, flags); err != nil {
		return nil, err
	}

	_, _ = service.recorder.Record(ctx, audit.RecordInput{
		UserID: userID,
		Module: "features",
		Action: "flags.updated",
		After:  toStateMap(flags),
	})

	return service.Features(ctx, userID)
}

// RecordInput carries the mutable record fields.
type RecordInput struct {
	Name    string
	Payload map[string]any
}

/*
CreateRecord files a new record under an enabled feature.

Returns:
  - *Record: with a generated ID and a slug derived from the name
  - error: apperr.NotFound for disabled/unknown features, storage failures
*/
func (service *Service) CreateRecord(ctx context.Context, userID, feature string, input RecordInput) (*Record, error) {
	if err := service.requireEnabled(ctx, userID, feature); err != nil {
		return nil, err
	}

	now := service.now().UTC()
	record := &Record{
		ID:        uuid.New(),
		UserID:    userID,
		Feature:   feature,
		Name:      strings.TrimSpace(input.Name),
		Slug:      slug.From(input.Name),
		Payload:   input.Payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if record.Payload == nil {
		record.Payload = map[string]any{}
	}

	if err := service.store.InsertRecord(ctx, record); err != nil {
		return nil, err
	}

	_, _ = service.recorder.Record(ctx, audit.RecordInput{
		UserID:  userID,
		Module:  feature,
		Action:  "record.created",
		Subject: record.Name,
		After:   map[string]any{"id": record.ID, "slug": record.Slug},
	})

	return record, nil
}

// GetRecord returns one record under an enabled feature.
func (service *Service) GetRecord(ctx context.Context, userID, feature, recordID string) (*Record, error) {
	if err := service.requireEnabled(ctx, userID, feature); err != nil {
		return nil, err
	}
	return service.store.GetRecord(ctx, userID, feature, recordID)
}

// ListRecords returns a feature's records newest-first with the total count.
func (service *Service) ListRecords(ctx context.Context, userID, feature string, limit, offset int) ([]Record, int, error) {
	if err := service.requireEnabled(ctx, userID, feature); err != nil {
		return nil, 0, err
	}

	records, total, err := service.store.ListRecords(ctx, userID, feature, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, total, nil
}

/*
UpdateRecord applies a partial change to name and payload.

Description: A renamed record gets a fresh slug. Payload keys are replaced
wholesale, not merged; the audit entry captures both states.
*/
func (service *Service) UpdateRecord(ctx context.Context, userID, feature, recordID string, input RecordInput) (*Record, error) {
	record, err := service.GetRecord(ctx, userID, feature, recordID)
	if err != nil {
		return nil, err
	}

	before := map[string]any{"name": record.Name, "payload": record.Payload}
	if name := strings.TrimSpace(input.Name); name != "" && name != record.Name {
		record.Name = name
		record.Slug = slug.From(name)
	}
	if input.Payload != nil {
		record.Payload = input.Payload
	}
	record.UpdatedAt = service.now().UTC()

	if err := service.store.UpdateRecord(ctx, record); err != nil {
		return nil, err
	}

	_, _ = service.recorder.Record(ctx, audit.RecordInput{
		UserID:  userID,
		Module:  feature,
		Action:  "record.updated",
		Subject: record.Name,
		Before:  before,
		After:   map[string]any{"name": record.Name, "payload": record.Payload},
	})

	return record, nil
}

// DeleteRecord removes one record under an enabled feature.
func (service *Service) DeleteRecord(ctx context.Context, userID, feature, recordID string) error {
	record, err := service.GetRecord(ctx, userID, feature, recordID)
	if err != nil {
		return err
	}

	if err := service.store.DeleteRecord(ctx, userID, feature, recordID); err != nil {
		return err
	}

	_, _ = service.recorder.Record(ctx, audit.RecordInput{
		UserID:  userID,
		Module:  feature,
		Action:  "record.deleted",
		Subject: record.Name,
		Before:  map[string]any{"id": record.ID, "payload": record.Payload},
	})
	return nil
}

// requireEnabled maps disabled and unknown features to the same 404.
func (service *Service) requireEnabled(ctx context.Context, userID, feature string) error {
	if !IsKnownFeature(feature) {
		return apperr.NotFound("Feature")
	}

	flags, err := service.Features(ctx, userID)
	if err != nil {
		return err
	}
	if !flags[feature] {
		return apperr.NotFound("Feature")
	}
	return nil
}

func toStateMap(flags map[string]bool) map[string]any {
	state := make(map[string]any, len(flags))
	for feature, enabled := range flags {
		state[feature] = enabled
	}
	return state
}
