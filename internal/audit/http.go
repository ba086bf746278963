// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package audit

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/sentinelhq/sentinel/internal/platform/request"
	"github.com/sentinelhq/sentinel/internal/platform/respond"
	"github.com/sentinelhq/sentinel/pkg/query"
)

// Handler implements the activity log HTTP endpoints.
type Handler struct {
	auditService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{auditService: service}
}

// Routes returns a [chi.Router] for the activity log.
//
// # Endpoints
//   - GET /            : Filtered listing, newest first.
//   - GET /export.csv  : Same filters, streamed as CSV.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.list)
	router.Get("/export.csv", handler.exportCSV)
	return router
}

/*
list returns the tenant's activity log.

GET /api/audit?module=&action=&actor=&limit=

Response:
  - 200: []Event newest-first
  - 401: Unauthorized
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	events, err := handler.auditService.List(request.Context(), filterFromQuery(request, userID))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, events)
}

/*
exportCSV streams the tenant's activity log as a CSV attachment.

GET /api/audit/export.csv?module=&action=&actor=&limit=

Response:
  - 200: text/csv attachment
  - 401: Unauthorized
*/
func (handler *Handler) exportCSV(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	filename := "audit-" + time.Now().UTC().Format("2006-01-02") + ".csv"
	writer.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	// Errors after the first write cannot change the status code; the
	// truncated output is the failure signal at that point.
	if err := handler.auditService.ExportCSV(request.Context(), filterFromQuery(request, userID), writer); err != nil {
		respond.Error(writer, request, err)
	}
}

// filterFromQuery builds a ListFilter from the query string.
func filterFromQuery(request *http.Request, userID string) ListFilter {
	values := request.URL.Query()
	return ListFilter{
		UserID: userID,
		Module: values.Get("module"),
		Action: values.Get("action"),
		Actor:  values.Get("actor"),
		Limit:  query.Int(values.Get("limit"), DefaultListLimit),
	}
}
