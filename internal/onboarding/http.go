// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package onboarding

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sentinelhq/sentinel/internal/platform/constants"
	requestutil "github.com/sentinelhq/sentinel/internal/platform/request"
	"github.com/sentinelhq/sentinel/internal/platform/respond"
)

// Handler implements the onboarding status endpoint.
type Handler struct {
	onboardingService *Service
	cookieDomain      string
	secure            bool
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service, cookieDomain string, secure bool) *Handler {
	return &Handler{onboardingService: service, cookieDomain: cookieDomain, secure: secure}
}

// Routes returns a [chi.Router] for the onboarding surface.
//
// # Endpoints
//   - GET /status : Current state; refreshes the onboarding cookie.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/status", handler.status)
	return router
}

type statusResponse struct {
	Status Status `json:"status"`
	State  State  `json:"state"`
}

/*
status returns the tenant's onboarding state.

GET /api/onboarding/status

Description: Recomputes the status from stored state and re-materializes
it into the onboarding cookie the edge router gates on. The frontend calls
this after each setup step, so the cookie converges on the truth without
the router ever touching the database.

Response:
  - 200: statusResponse
  - 401: Unauthorized
*/
func (handler *Handler) status(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	state, status, err := handler.onboardingService.Resolve(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	cookieValue := "0"
	if status == StatusComplete {
		cookieValue = "1"
	}
	http.SetCookie(writer, &http.Cookie{
		Name:   constants.OnboardingCookieName,
		Value:  cookieValue,
		Path:   "/",
		Domain: handler.cookieDomain,
		MaxAge: int(constants.OnboardingCookieTTL.Seconds()),
		Secure: handler.secure,
		// Client-readable hint, not a credential.
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})

	respond.OK(writer, statusResponse{Status: status, State: state})
}
