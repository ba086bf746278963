// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package tenant

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sentinelhq/sentinel/internal/integration/erlc"
	requestutil "github.com/sentinelhq/sentinel/internal/platform/request"
	"github.com/sentinelhq/sentinel/internal/platform/respond"
	"github.com/sentinelhq/sentinel/internal/platform/validate"
)

// Snapshotter is the slice of the ER:LC adapter the handler needs.
type Snapshotter interface {
	FetchSnapshot(ctx context.Context, serverKey string) *erlc.Snapshot
}

// Handler implements the integration settings and status endpoints.
type Handler struct {
	tenantService *Service
	snapshotter   Snapshotter
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service, snapshotter Snapshotter) *Handler {
	return &Handler{tenantService: service, snapshotter: snapshotter}
}

// Routes returns a [chi.Router] for the integrations surface.
//
// # Endpoints
//   - GET /settings       : Current settings (secrets masked to booleans).
//   - PUT /settings       : Partial settings update.
//   - GET /erlc/snapshot  : Live game-server snapshot, degrading per section.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/settings", handler.getSettings)
	router.Put("/settings", handler.updateSettings)
	router.Get("/erlc/snapshot", handler.snapshot)
	return router
}

// settingsView is the client-facing settings shape. The ER:LC key is
// write-only; reads expose only whether one is configured.
type settingsView struct {
	ERLCKeyConfigured bool   `json:"erlc_key_configured"`
	WebhookURL        string `json:"webhook_url"`
}

type updateSettingsRequest struct {
	ERLCServerKey *string `json:"erlc_server_key"`
	WebhookURL    *string `json:"webhook_url"`
}

/*
getSettings returns the tenant's integration settings.

GET /api/integrations/settings

Response:
  - 200: settingsView
  - 401: Unauthorized
*/
func (handler *Handler) getSettings(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	settings, err := handler.tenantService.Get(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, settingsView{
		ERLCKeyConfigured: settings.HasERLCKey(),
		WebhookURL:        settings.WebhookURL,
	})
}

/*
updateSettings applies a partial settings change.

PUT /api/integrations/settings

Request:
  - Body: updateSettingsRequest (absent fields are left unchanged)

Response:
  - 200: settingsView after the change
  - 400: ErrInvalidJSON or validation failure
  - 401: Unauthorized
*/
func (handler *Handler) updateSettings(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateSettingsRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	if input.WebhookURL != nil && *input.WebhookURL != "" {
		validator.Custom("webhook_url", !isDiscordWebhook(*input.WebhookURL),
			"must be a Discord webhook URL")
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	settings, err := handler.tenantService.Update(request.Context(), userID, UpdateInput{
		ERLCServerKey: input.ERLCServerKey,
		WebhookURL:    input.WebhookURL,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, settingsView{
		ERLCKeyConfigured: settings.HasERLCKey(),
		WebhookURL:        settings.WebhookURL,
	})
}

/*
snapshot returns the live game-server snapshot.

GET /api/integrations/erlc/snapshot

Description: Never fails on upstream trouble; disconnected or partially
failed sections come back empty so panels degrade instead of erroring.

Response:
  - 200: erlc.Snapshot
  - 401: Unauthorized
*/
func (handler *Handler) snapshot(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	settings, err := handler.tenantService.Get(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, handler.snapshotter.FetchSnapshot(request.Context(), settings.ERLCServerKey))
}

// isDiscordWebhook loosely checks the webhook URL shape without calling out.
func isDiscordWebhook(url string) bool {
	return len(url) < 512 &&
		(strings.HasPrefix(url, "https://discord.com/api/webhooks/") ||
			strings.HasPrefix(url, "https://discordapp.com/api/webhooks/"))
}
