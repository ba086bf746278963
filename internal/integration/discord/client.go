// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package discord is the HTTP adapter for Discord: OAuth2 code exchange,
identity lookup, and best-effort webhook alert delivery.
*/
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
)

// DefaultBaseURL is the production Discord API endpoint.
const DefaultBaseURL = "https://discord.com/api/v10"

// DefaultAuthorizeURL is the user-facing OAuth2 consent page.
const DefaultAuthorizeURL = "https://discord.com/oauth2/authorize"

const serviceName = "Discord"

// Token is an OAuth2 access grant.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// Identity is the authenticated Discord account, normalized for session use.
type Identity struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Client calls the Discord API with a bounded per-request timeout.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	authorizeURL string
	clientID     string
	clientSecret string
	redirectURL  string
}

// Option customizes a [Client].
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// New constructs a Client from the OAuth application credentials.
func New(clientID, clientSecret, redirectURL string, opts ...Option) *Client {
	client := &Client{
		httpClient:   &http.Client{Timeout: constants.UpstreamTimeout},
		baseURL:      DefaultBaseURL,
		authorizeURL: DefaultAuthorizeURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// AuthorizeURL builds the consent-page URL carrying the CSRF state nonce.
func (c *Client) AuthorizeURL(state string) string {
	query := url.Values{}
	query.Set("client_id", c.clientID)
	query.Set("redirect_uri", c.redirectURL)
	query.Set("response_type", "code")
	query.Set("scope", "identify")
	query.Set("state", state)
	query.Set("prompt", "consent")
	return c.authorizeURL + "?" + query.Encode()
}

// ExchangeCode trades an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURL)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, apperr.Upstream(serviceName, http.StatusGatewayTimeout, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, apperr.Upstream(serviceName, response.StatusCode, nil)
	}

	var token Token
	if err := json.NewDecoder(response.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, apperr.Upstream(serviceName, response.StatusCode, fmt.Errorf("empty access token"))
	}
	return &token, nil
}

// FetchIdentity resolves the access token's account.
//
// The display name falls back to the username when the account has no
// global name set; the avatar URL is empty for default avatars.
func (c *Client) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/@me", nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}
	request.Header.Set(constants.HeaderAuthorization, "Bearer "+accessToken)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, apperr.Upstream(serviceName, http.StatusGatewayTimeout, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, apperr.Upstream(serviceName, response.StatusCode, nil)
	}

	var payload struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
		Avatar     string `json:"avatar"`
	}
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	if payload.ID == "" {
		return nil, apperr.Upstream(serviceName, response.StatusCode, fmt.Errorf("identity missing id"))
	}

	identity := &Identity{
		ID:          payload.ID,
		Username:    payload.Username,
		DisplayName: payload.GlobalName,
	}
	if identity.DisplayName == "" {
		identity.DisplayName = payload.Username
	}
	if payload.Avatar != "" {
		identity.AvatarURL = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", payload.ID, payload.Avatar)
	}
	return identity, nil
}

// WebhookAlert is one embed-style message posted to a Discord webhook.
type WebhookAlert struct {
	Title       string
	Description string
	Color       int
}

// SendWebhookAlert posts an alert to a tenant-configured webhook URL.
//
// Delivery is best-effort: callers log the returned error and continue,
// never failing the primary operation over an undeliverable alert.
func (c *Client) SendWebhookAlert(ctx context.Context, webhookURL string, alert WebhookAlert) error {
	body, err := json.Marshal(map[string]any{
		"embeds": []map[string]any{{
			"title":       alert.Title,
			"description": alert.Description,
			"color":       alert.Color,
		}},
	})
	if err != nil {
		return fmt.Errorf("encode webhook alert: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return apperr.Upstream(serviceName, http.StatusGatewayTimeout, err)
	}
	defer func() { _ = response.Body.Close() }()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 1<<16))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return apperr.Upstream(serviceName, response.StatusCode, nil)
	}
	return nil
}
