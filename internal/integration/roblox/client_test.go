// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package roblox_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/internal/integration/roblox"
	"github.com/sentinelhq/sentinel/internal/platform/apperr"
)

// echoServer resolves every requested username to a deterministic identity
// and records the size of each batch it receives.
func echoServer(t *testing.T, batchSizes *[]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/usernames/users", request.URL.Path)

		var payload struct {
			Usernames []string `json:"usernames"`
		}
		require.NoError(t, json.NewDecoder(request.Body).Decode(&payload))
		*batchSizes = append(*batchSizes, len(payload.Usernames))

		data := make([]map[string]any, 0, len(payload.Usernames))
		for i, username := range payload.Usernames {
			data = append(data, map[string]any{
				"id":                i + 1,
				"name":              username,
				"displayName":       username + " DN",
				"requestedUsername": username,
			})
		}
		_ = json.NewEncoder(writer).Encode(map[string]any{"data": data})
	}))
}

/*
TestVerifyBatch_ChunksSequentially verifies 250 usernames are issued as
three sequential batches of 100, 100, and 50.
*/
func TestVerifyBatch_ChunksSequentially(t *testing.T) {
	var batchSizes []int
	server := echoServer(t, &batchSizes)
	defer server.Close()

	usernames := make([]string, 250)
	for i := range usernames {
		usernames[i] = fmt.Sprintf("player%03d", i)
	}

	client := roblox.New(roblox.WithBaseURL(server.URL))
	resolved, err := client.VerifyBatch(context.Background(), usernames)
	require.NoError(t, err)

	assert.Equal(t, []int{100, 100, 50}, batchSizes)
	assert.Len(t, resolved, 250)
	assert.Equal(t, "player042", resolved["player042"].Username)
}

/*
TestVerifyBatch_DeduplicatesInput verifies repeats and blanks never reach
the upstream.
*/
func TestVerifyBatch_DeduplicatesInput(t *testing.T) {
	var batchSizes []int
	server := echoServer(t, &batchSizes)
	defer server.Close()

	client := roblox.New(roblox.WithBaseURL(server.URL))
	resolved, err := client.VerifyBatch(context.Background(), []string{"CoolCop", "coolcop", " ", "Other"})
	require.NoError(t, err)

	assert.Equal(t, []int{2}, batchSizes)
	assert.Len(t, resolved, 2)
}

/*
TestResolveUsername covers the single-name convenience path, including the
nil result for unknown accounts.
*/
func TestResolveUsername(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(writer).Encode(map[string]any{
			"data": []map[string]any{{
				"id": 12345, "name": "CoolCop", "displayName": "Cool Cop",
				"requestedUsername": "coolcop",
			}},
		})
	}))
	defer server.Close()

	client := roblox.New(roblox.WithBaseURL(server.URL))

	identity, err := client.ResolveUsername(context.Background(), "CoolCop")
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, int64(12345), identity.ID)
	assert.Equal(t, "Cool Cop", identity.DisplayName)

	missing, err := client.ResolveUsername(context.Background(), "NoSuchUser")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

/*
TestVerifyBatch_UpstreamError verifies non-2xx maps to the upstream error
taxonomy.
*/
func TestVerifyBatch_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := roblox.New(roblox.WithBaseURL(server.URL))
	_, err := client.VerifyBatch(context.Background(), []string{"CoolCop"})

	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusBadGateway, appError.HTTPStatus)
}
