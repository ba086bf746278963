// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/internal/audit"
)

type fakeStore struct {
	settings map[string]*Settings
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{settings: map[string]*Settings{}}
}

func (f *fakeStore) Get(_ context.Context, userID string) (*Settings, error) {
	settings, ok := f.settings[userID]
	if !ok {
		return nil, nil
	}
	copied := *settings
	return &copied, nil
}

func (f *fakeStore) Save(_ context.Context, settings *Settings) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	copied := *settings
	f.settings[settings.UserID] = &copied
	return nil
}

type fakeRecorder struct {
	events []audit.RecordInput
	err    error
}

func (f *fakeRecorder) Record(_ context.Context, input audit.RecordInput) (*audit.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.events = append(f.events, input)
	return &audit.Event{}, nil
}

func strptr(s string) *string { return &s }

func TestGet_UnknownTenantIsZeroValued(t *testing.T) {
	service := NewService(newFakeStore(), &fakeRecorder{})

	settings, err := service.Get(context.Background(), "100200300400500600")
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, "100200300400500600", settings.UserID)
	assert.False(t, settings.HasERLCKey())
}

func TestUpdate_PartialSemantics(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	service := NewService(store, &fakeRecorder{})

	_, err := service.Update(ctx, "100200300400500600", UpdateInput{
		ERLCServerKey: strptr("  erlc-key-123  "),
		WebhookURL:    strptr("https://discord.com/api/webhooks/1/abc"),
	})
	require.NoError(t, err)

	t.Run("nil_leaves_field_unchanged", func(t *testing.T) {
		settings, err := service.Update(ctx, "100200300400500600", UpdateInput{
			WebhookURL: strptr("https://discord.com/api/webhooks/2/def"),
		})
		require.NoError(t, err)
		assert.Equal(t, "erlc-key-123", settings.ERLCServerKey)
		assert.Equal(t, "https://discord.com/api/webhooks/2/def", settings.WebhookURL)
	})

	t.Run("empty_string_clears", func(t *testing.T) {
		settings, err := service.Update(ctx, "100200300400500600", UpdateInput{
			ERLCServerKey: strptr(""),
		})
		require.NoError(t, err)
		assert.False(t, settings.HasERLCKey())
	})
}

/*
TestUpdate_AuditNeverLeaksSecrets pins the audit contract: metadata records
which fields changed as booleans, never the stored values.
*/
func TestUpdate_AuditNeverLeaksSecrets(t *testing.T) {
	recorder := &fakeRecorder{}
	service := NewService(newFakeStore(), recorder)

	_, err := service.Update(context.Background(), "100200300400500600", UpdateInput{
		ERLCServerKey: strptr("super-secret-key"),
	})
	require.NoError(t, err)

	require.Len(t, recorder.events, 1)
	event := recorder.events[0]
	assert.Equal(t, "integrations", event.Module)
	assert.Equal(t, "settings.updated", event.Action)
	assert.Equal(t, map[string]any{"erlc_server_key": true}, event.Metadata)

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "super-secret-key")
}

func TestUpdate_AuditFailureIsSwallowed(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("audit store down")}
	service := NewService(newFakeStore(), recorder)

	settings, err := service.Update(context.Background(), "100200300400500600", UpdateInput{
		ERLCServerKey: strptr("k"),
	})
	require.NoError(t, err)
	assert.True(t, settings.HasERLCKey())
}

/*
TestSettingsJSON_KeyNeverSerialized guards the json:"-" tag on the server
key: API responses expose only the configured flag.
*/
func TestSettingsJSON_KeyNeverSerialized(t *testing.T) {
	raw, err := json.Marshal(&Settings{
		UserID:        "1",
		ERLCServerKey: "super-secret-key",
		WebhookURL:    "https://discord.com/api/webhooks/1/abc",
	})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "super-secret-key")
}
