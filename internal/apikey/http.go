// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package apikey

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/sentinelhq/sentinel/internal/platform/request"
	"github.com/sentinelhq/sentinel/internal/platform/respond"
	"github.com/sentinelhq/sentinel/internal/platform/validate"
)

// Handler implements the API key management endpoints.
type Handler struct {
	keyService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{keyService: service}
}

// Routes returns a [chi.Router] for key management.
//
// # Endpoints
//   - POST   /      : Mint a key; the token appears in this response only.
//   - GET    /      : List the tenant's keys (metadata only).
//   - DELETE /{id}  : Revoke a key.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/", handler.create)
	router.Get("/", handler.list)
	router.Delete("/{id}", handler.revoke)
	return router
}

type createRequest struct {
	Name string `json:"name"`
}

/*
create mints a new API key.

POST /api/apikeys

Response:
  - 201: CreatedKey (the only time the token is visible)
  - 400: validation failure
  - 401: Unauthorized
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input createRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required("name", input.Name).MaxLen("name", input.Name, 100)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	created, err := handler.keyService.Create(request.Context(), userID, input.Name)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, created)
}

/*
list returns the tenant's keys.

GET /api/apikeys
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	keys, err := handler.keyService.List(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, keys)
}

/*
revoke disables a key.

DELETE /api/apikeys/{id}

Response:
  - 204: revoked
  - 404: unknown key
*/
func (handler *Handler) revoke(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.keyService.Revoke(request.Context(), userID, requestutil.Param(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
