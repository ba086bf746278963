// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package erlc is the HTTP adapter for the ER:LC game-server API.

It exposes the four read surfaces the dashboard consumes (server status,
online players, join queue, command logs), a concurrent snapshot fan-out
over all four, and the privileged command relay.

# Authentication

Every call carries a per-tenant server key in the Server-Key header. When a
tenant has not configured one, the optional global fallback key from the
environment is used instead.

# Tolerant Parsing

ER:LC response shapes drift between deployments: the same field appears
under different key names and players arrive either as a bare array or
wrapped in an envelope. Rather than probing ad hoc at every call site, each
field has ONE explicit ordered candidate-key list in parse.go; the first
present candidate wins. See [decodePlayers].
*/
package erlc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
)

// DefaultBaseURL is the production ER:LC API endpoint.
const DefaultBaseURL = "https://api.policeroleplay.community/v1"

const serviceName = "ER:LC"

// ServerStatus is the tenant's game-server summary.
type ServerStatus struct {
	Name           string `json:"name"`
	OwnerID        int64  `json:"owner_id"`
	CurrentPlayers int    `json:"current_players"`
	MaxPlayers     int    `json:"max_players"`
}

// Player is one member of the live online roster.
type Player struct {
	Username   string `json:"username"`
	RobloxID   int64  `json:"roblox_id"`
	Permission string `json:"permission"`
	Callsign   string `json:"callsign,omitempty"`
}

// CommandLogEntry is one in-game command log line.
type CommandLogEntry struct {
	Player    string `json:"player"`
	Command   string `json:"command"`
	Timestamp int64  `json:"timestamp"`
}

// Snapshot aggregates the four dashboard read surfaces.
//
// Sections that failed to fetch are left zero-valued rather than failing
// the whole snapshot: panels degrade to an empty state. Connected reports
// whether the server status fetch itself succeeded.
type Snapshot struct {
	Connected   bool              `json:"connected"`
	Server      *ServerStatus     `json:"server,omitempty"`
	Players     []Player          `json:"players"`
	Queue       []int64           `json:"queue"`
	CommandLogs []CommandLogEntry `json:"command_logs"`
}

// Client calls the ER:LC API with a bounded per-request timeout.
type Client struct {
	httpClient *http.Client
	baseURL    string
	globalKey  string
}

// Option customizes a [Client].
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// New constructs a Client. globalKey may be empty; it is only used when a
// call site passes no per-tenant server key.
func New(globalKey string, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{Timeout: constants.UpstreamTimeout},
		baseURL:    DefaultBaseURL,
		globalKey:  globalKey,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// ServerInfo fetches the tenant's server status.
func (c *Client) ServerInfo(ctx context.Context, serverKey string) (*ServerStatus, error) {
	raw, err := c.get(ctx, serverKey, "/server")
	if err != nil {
		return nil, err
	}
	return decodeServerStatus(raw)
}

// OnlinePlayers fetches the live online roster.
func (c *Client) OnlinePlayers(ctx context.Context, serverKey string) ([]Player, error) {
	raw, err := c.get(ctx, serverKey, "/server/players")
	if err != nil {
		return nil, err
	}
	return decodePlayers(raw)
}

// JoinQueue fetches the Roblox IDs currently waiting to join.
func (c *Client) JoinQueue(ctx context.Context, serverKey string) ([]int64, error) {
	raw, err := c.get(ctx, serverKey, "/server/queue")
	if err != nil {
		return nil, err
	}

	var queue []int64
	if err := json.Unmarshal(raw, &queue); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return queue, nil
}

// CommandLogs fetches the recent in-game command log.
func (c *Client) CommandLogs(ctx context.Context, serverKey string) ([]CommandLogEntry, error) {
	raw, err := c.get(ctx, serverKey, "/server/commandlogs")
	if err != nil {
		return nil, err
	}
	return decodeCommandLogs(raw)
}

// FetchSnapshot fans out to all four read surfaces concurrently and merges
// whatever succeeded. It never returns an error: a fully unreachable
// upstream yields Connected=false with empty sections.
func (c *Client) FetchSnapshot(ctx context.Context, serverKey string) *Snapshot {
	snapshot := &Snapshot{
		Players:     []Player{},
		Queue:       []int64{},
		CommandLogs: []CommandLogEntry{},
	}

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		if server, err := c.ServerInfo(ctx, serverKey); err == nil {
			snapshot.Server = server
			snapshot.Connected = true
		}
	}()
	go func() {
		defer wg.Done()
		if players, err := c.OnlinePlayers(ctx, serverKey); err == nil {
			snapshot.Players = players
		}
	}()
	go func() {
		defer wg.Done()
		if queue, err := c.JoinQueue(ctx, serverKey); err == nil {
			snapshot.Queue = queue
		}
	}()
	go func() {
		defer wg.Done()
		if logs, err := c.CommandLogs(ctx, serverKey); err == nil {
			snapshot.CommandLogs = logs
		}
	}()

	wg.Wait()
	return snapshot
}

// RelayCommand sends a privileged command to the game server.
//
// Callers are expected to have already passed the command safety policy;
// this method performs no policy checks of its own.
func (c *Client) RelayCommand(ctx context.Context, serverKey, command string) error {
	body, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/server/command", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build command request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Server-Key", c.serverKey(serverKey))

	response, err := c.httpClient.Do(request)
	if err != nil {
		// Timeouts and transport failures count as upstream failures.
		return apperr.Upstream(serviceName, http.StatusGatewayTimeout, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return apperr.Upstream(serviceName, response.StatusCode, nil)
	}
	return nil
}

// get performs an authenticated GET and returns the raw body.
func (c *Client) get(ctx context.Context, serverKey, path string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Server-Key", c.serverKey(serverKey))

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, apperr.Upstream(serviceName, http.StatusGatewayTimeout, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, apperr.Upstream(serviceName, response.StatusCode, nil)
	}

	raw, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}

func (c *Client) serverKey(perTenant string) string {
	if perTenant != "" {
		return perTenant
	}
	return c.globalKey
}
