// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package roblox resolves Roblox usernames to verified identities.

Batch lookups are chunked into fixed groups of 100 usernames and issued
sequentially, matching the upstream API limit.
*/
package roblox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
)

// DefaultBaseURL is the production Roblox users API endpoint.
const DefaultBaseURL = "https://users.roblox.com/v1"

// batchSize is the upstream maximum usernames per lookup request.
const batchSize = 100

const serviceName = "Roblox"

// Identity is a verified Roblox account.
type Identity struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Client calls the Roblox users API with a bounded per-request timeout.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option customizes a [Client].
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// New constructs a Client.
func New(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: constants.UpstreamTimeout},
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// ResolveUsername resolves a single username to its identity. It returns
// nil (and no error) when the username does not exist.
func (c *Client) ResolveUsername(ctx context.Context, username string) (*Identity, error) {
	resolved, err := c.VerifyBatch(ctx, []string{username})
	if err != nil {
		return nil, err
	}

	identity, ok := resolved[strings.ToLower(username)]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

// VerifyBatch resolves usernames to identities, keyed by lowercased
// requested username. Usernames that do not resolve are absent from the
// result. Input is deduplicated, chunked into groups of 100, and the
// chunks are issued sequentially.
func (c *Client) VerifyBatch(ctx context.Context, usernames []string) (map[string]Identity, error) {
	unique := dedupe(usernames)
	resolved := make(map[string]Identity, len(unique))

	for start := 0; start < len(unique); start += batchSize {
		end := start + batchSize
		if end > len(unique) {
			end = len(unique)
		}

		chunk, err := c.lookup(ctx, unique[start:end])
		if err != nil {
			return nil, err
		}
		for key, identity := range chunk {
			resolved[key] = identity
		}
	}
	return resolved, nil
}

// lookup issues one POST /usernames/users call for at most 100 usernames.
func (c *Client) lookup(ctx context.Context, usernames []string) (map[string]Identity, error) {
	body, err := json.Marshal(map[string]any{
		"usernames":          usernames,
		"excludeBannedUsers": true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode lookup: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/usernames/users", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build lookup request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, apperr.Upstream(serviceName, http.StatusGatewayTimeout, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, apperr.Upstream(serviceName, response.StatusCode, nil)
	}

	var payload struct {
		Data []struct {
			ID                int64  `json:"id"`
			Name              string `json:"name"`
			DisplayName       string `json:"displayName"`
			RequestedUsername string `json:"requestedUsername"`
		} `json:"data"`
	}
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}

	resolved := make(map[string]Identity, len(payload.Data))
	for _, entry := range payload.Data {
		key := strings.ToLower(entry.RequestedUsername)
		if key == "" {
			key = strings.ToLower(entry.Name)
		}
		resolved[key] = Identity{
			ID:          entry.ID,
			Username:    entry.Name,
			DisplayName: entry.DisplayName,
		}
	}
	return resolved, nil
}

// dedupe preserves first-seen order while dropping repeats and blanks.
func dedupe(usernames []string) []string {
	seen := make(map[string]struct{}, len(usernames))
	unique := make([]string, 0, len(usernames))
	for _, username := range usernames {
		trimmed := strings.TrimSpace(username)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, trimmed)
	}
	return unique
}
