// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package panel

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/sentinelhq/sentinel/internal/platform/request"
	"github.com/sentinelhq/sentinel/internal/platform/respond"
	"github.com/sentinelhq/sentinel/internal/platform/validate"
	"github.com/sentinelhq/sentinel/pkg/pagination"
)

// Handler implements the feature-flag and panel CRUD endpoints. One handler
// serves every feature; the {feature} URL parameter selects the module.
type Handler struct {
	panelService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{panelService: service}
}

// FeatureRoutes returns a [chi.Router] for the flag map.
//
// # Endpoints
//   - GET /  : Full flag map (unknown keys never appear).
//   - PUT /  : Replace the flag map.
func (handler *Handler) FeatureRoutes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.getFeatures)
	router.Put("/", handler.setFeatures)
	return router
}

// PanelRoutes returns a [chi.Router] for the generic record CRUD.
//
// # Endpoints
//   - GET    /{feature}       : Paginated records, newest first.
//   - POST   /{feature}       : Create a record.
//   - GET    /{feature}/{id}  : One record.
//   - PATCH  /{feature}/{id}  : Partial update.
//   - DELETE /{feature}/{id}  : Delete.
func (handler *Handler) PanelRoutes() chi.Router {
	router := chi.NewRouter()
	router.Route("/{feature}", func(r chi.Router) {
		r.Get("/", handler.list)
		r.Post("/", handler.create)
		r.Get("/{id}", handler.get)
		r.Patch("/{id}", handler.update)
		r.Delete("/{id}", handler.remove)
	})
	return router
}

type recordRequest struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
}

/*
getFeatures returns the tenant's complete flag map.

GET /api/features
*/
func (handler *Handler) getFeatures(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	flags, err := handler.panelService.Features(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, flags)
}

/*
setFeatures replaces the tenant's flag map.

PUT /api/features

Response:
  - 200: the complete flag map after the change
  - 400: unknown feature key
*/
func (handler *Handler) setFeatures(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var flags map[string]bool
	if err := requestutil.DecodeJSON(request, &flags); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	updated, err := handler.panelService.SetFeatures(request.Context(), userID, flags)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, updated)
}

/*
list returns a feature's records.

GET /api/panels/{feature}?page=&limit=

Response:
  - 200: paginated []Record newest-first
  - 404: disabled or unknown feature
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	records, total, err := handler.panelService.ListRecords(request.Context(), userID,
		requestutil.Param(request, "feature"), params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, records, pagination.NewMeta(params.Page, params.Limit, total))
}

/*
create files a new record under a feature.

POST /api/panels/{feature}

Response:
  - 201: Record
  - 400: validation failure
  - 404: disabled or unknown feature
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input recordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required("name", input.Name).MaxLen("name", input.Name, 200)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	record, err := handler.panelService.CreateRecord(request.Context(), userID,
		requestutil.Param(request, "feature"), RecordInput{Name: input.Name, Payload: input.Payload})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, record)
}

/*
get returns one record.

GET /api/panels/{feature}/{id}
*/
func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	record, err := handler.panelService.GetRecord(request.Context(), userID,
		requestutil.Param(request, "feature"), requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, record)
}

/*
update applies a partial change to a record.

PATCH /api/panels/{feature}/{id}
*/
func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input recordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	record, err := handler.panelService.UpdateRecord(request.Context(), userID,
		requestutil.Param(request, "feature"), requestutil.Param(request, "id"),
		RecordInput{Name: input.Name, Payload: input.Payload})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, record)
}

/*
remove deletes a record.

DELETE /api/panels/{feature}/{id}
*/
func (handler *Handler) remove(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.panelService.DeleteRecord(request.Context(), userID,
		requestutil.Param(request, "feature"), requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}
