// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package panel

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/internal/audit"
	"github.com/sentinelhq/sentinel/internal/platform/apperr"
)

const testUser = "100200300400500600"

// # Fakes

type fakeStore struct {
	flags   map[string]map[string]bool
	records map[string]Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		flags:   map[string]map[string]bool{},
		records: map[string]Record{},
	}
}

func (store *fakeStore) GetFlags(_ context.Context, userID string) (map[string]bool, error) {
	flags := map[string]bool{}
	for feature, enabled := range store.flags[userID] {
		flags[feature] = enabled
	}
	return flags, nil
}

func (store *fakeStore) SaveFlags(_ context.Context, userID string, flags map[string]bool) error {
	store.flags[userID] = flags
	return nil
}

func (store *fakeStore) InsertRecord(_ context.Context, record *Record) error {
	store.records[record.ID] = *record
	return nil
}

func (store *fakeStore) GetRecord(_ context.Context, userID, feature, recordID string) (*Record, error) {
	record, ok := store.records[recordID]
	if !ok || record.UserID != userID || record.Feature != feature {
		return nil, apperr.NotFound("Panel record")
	}
	return &record, nil
}

func (store *fakeStore) ListRecords(_ context.Context, userID, feature string, limit, offset int) ([]Record, int, error) {
	matched := []Record{}
	for _, record := range store.records {
		if record.UserID == userID && record.Feature == feature {
			matched = append(matched, record)
		}
	}
	return matched, len(matched), nil
}

func (store *fakeStore) UpdateRecord(_ context.Context, record *Record) error {
	if _, ok := store.records[record.ID]; !ok {
		return apperr.NotFound("Panel record")
	}
	store.records[record.ID] = *record
	return nil
}

func (store *fakeStore) DeleteRecord(_ context.Context, _, _, recordID string) error {
	if _, ok := store.records[recordID]; !ok {
		return apperr.NotFound("Panel record")
	}
	delete(store.records, recordID)
	return nil
}

type fakeRecorder struct{ records []audit.RecordInput }

func (recorder *fakeRecorder) Record(_ context.Context, input audit.RecordInput) (*audit.Event, error) {
	recorder.records = append(recorder.records, input)
	return &audit.Event{}, nil
}

// # Tests

/*
TestFeatures_DefaultsAndOverrides verifies unset features default to
enabled and overrides take effect.
*/
func TestFeatures_DefaultsAndOverrides(t *testing.T) {
	service := NewService(newFakeStore(), &fakeRecorder{})

	flags, err := service.Features(context.Background(), testUser)
	require.NoError(t, err)
	assert.Len(t, flags, len(KnownFeatures))
	for feature, enabled := range flags {
		assert.True(t, enabled, feature)
	}

	updated, err := service.SetFeatures(context.Background(), testUser, map[string]bool{
		"moderation": false,
	})
	require.NoError(t, err)
	assert.False(t, updated["moderation"])
	assert.True(t, updated["infractions"]) // untouched features stay enabled
}

/*
TestSetFeatures_RejectsUnknownKeys verifies typo'd flag keys are 400s.
*/
func TestSetFeatures_RejectsUnknownKeys(t *testing.T) {
	service := NewService(newFakeStore(), &fakeRecorder{})

	_, err := service.SetFeatures(context.Background(), testUser, map[string]bool{"moderaton": true})
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusBadRequest, appError.HTTPStatus)
}

/*
TestRecordLifecycle covers create (slug derivation), update (slug refresh),
and delete, with an audit event per mutation.
*/
func TestRecordLifecycle(t *testing.T) {
	recorder := &fakeRecorder{}
	service := NewService(newFakeStore(), recorder)
	ctx := context.Background()

	record, err := service.CreateRecord(ctx, testUser, "moderation", RecordInput{
		Name:    "Répeat Offender — Case 12",
		Payload: map[string]any{"severity": "high"},
	})
	require.NoError(t, err)
	assert.Equal(t, "repeat-offender-case-12", record.Slug)
	assert.Equal(t, "moderation", record.Feature)

	updated, err := service.UpdateRecord(ctx, testUser, "moderation", record.ID, RecordInput{
		Name: "Closed Case 12",
	})
	require.NoError(t, err)
	assert.Equal(t, "closed-case-12", updated.Slug)
	assert.Equal(t, map[string]any{"severity": "high"}, updated.Payload) // nil payload left unchanged

	require.NoError(t, service.DeleteRecord(ctx, testUser, "moderation", record.ID))

	_, err = service.GetRecord(ctx, testUser, "moderation", record.ID)
	assert.NotNil(t, apperr.As(err))

	actions := make([]string, 0, len(recorder.records))
	for _, entry := range recorder.records {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{"record.created", "record.updated", "record.deleted"}, actions)
}

/*
TestDisabledFeatureIs404 verifies disabled and unknown features are
indistinguishable: both 404 on every operation.
*/
func TestDisabledFeatureIs404(t *testing.T) {
	service := NewService(newFakeStore(), &fakeRecorder{})
	ctx := context.Background()

	_, err := service.SetFeatures(ctx, testUser, map[string]bool{"moderation": false})
	require.NoError(t, err)

	for _, feature := range []string{"moderation", "no-such-feature"} {
		_, err := service.CreateRecord(ctx, testUser, feature, RecordInput{Name: "x"})
		appError := apperr.As(err)
		require.NotNil(t, appError, feature)
		assert.Equal(t, http.StatusNotFound, appError.HTTPStatus, feature)

		_, _, err = service.ListRecords(ctx, testUser, feature, 20, 0)
		assert.NotNil(t, apperr.As(err), feature)
	}
}
