// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package command

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/sentinelhq/sentinel/internal/platform/request"
	"github.com/sentinelhq/sentinel/internal/platform/respond"
	"github.com/sentinelhq/sentinel/internal/platform/validate"
	"github.com/sentinelhq/sentinel/pkg/query"
)

// maxCooldownSeconds bounds the configurable cooldown window at one hour.
const maxCooldownSeconds = 3600

// Handler implements the command safety HTTP endpoints.
type Handler struct {
	commandService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{commandService: service}
}

// Routes returns a [chi.Router] for the commands surface.
//
// # Endpoints
//   - POST /              : Run one command attempt through the safety gates.
//   - GET  /              : Attempt history, newest first.
//   - GET  /policy        : Current safety policy.
//   - PUT  /policy        : Replace the safety policy.
//   - POST /{id}/approve  : Relay a queued attempt.
//   - POST /{id}/deny     : Reject a queued attempt.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/", handler.execute)
	router.Get("/", handler.history)
	router.Get("/policy", handler.getPolicy)
	router.Put("/policy", handler.savePolicy)
	router.Post("/{id}/approve", handler.approve)
	router.Post("/{id}/deny", handler.deny)
	return router
}

// # Request Payloads

type executeRequest struct {
	Command string `json:"command"`
	Target  string `json:"target"`
}

type policyRequest struct {
	Allowlist        []string `json:"allowlist"`
	RequiresApproval bool     `json:"requires_approval"`
	CooldownSeconds  int      `json:"cooldown_seconds"`
}

/*
execute runs one command attempt.

POST /api/commands

Request:
  - Body: executeRequest (Command required; empty Target means server-wide)

Response:
  - 200: Execution (Executed or Queued)
  - 400: POLICY_BLOCKED:<reason> with the Blocked record attached, or validation failure
  - 401: Unauthorized
  - 502: Upstream relay failure
*/
func (handler *Handler) execute(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input executeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required("command", input.Command).
		MaxLen("command", input.Command, 200).
		MaxLen("target", input.Target, 64)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	execution, err := handler.commandService.Execute(request.Context(), userID, ExecuteInput{
		Command: input.Command,
		Target:  input.Target,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, execution)
}

/*
history returns the tenant's command attempts.

GET /api/commands?limit=

Response:
  - 200: []Execution newest-first
  - 401: Unauthorized
*/
func (handler *Handler) history(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	executions, err := handler.commandService.History(request.Context(), userID,
		query.Int(request.URL.Query().Get("limit"), 50))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, executions)
}

/*
getPolicy returns the tenant's safety policy.

GET /api/commands/policy

Response:
  - 200: Policy (deny-all default for tenants that never saved one)
  - 401: Unauthorized
*/
func (handler *Handler) getPolicy(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	policy, err := handler.commandService.GetPolicy(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, policy)
}

/*
savePolicy replaces the tenant's safety policy.

PUT /api/commands/policy

Request:
  - Body: policyRequest

Response:
  - 200: Policy as stored (normalized allowlist)
  - 400: Validation failure
  - 401: Unauthorized
*/
func (handler *Handler) savePolicy(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input policyRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Range("cooldown_seconds", input.CooldownSeconds, 0, maxCooldownSeconds).
		Custom("allowlist", len(input.Allowlist) > 100, "must not exceed 100 entries")
	for _, entry := range input.Allowlist {
		validator.MaxLen("allowlist", entry, 64)
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	policy, err := handler.commandService.SavePolicy(request.Context(), userID, PolicyInput{
		Allowlist:        input.Allowlist,
		RequiresApproval: input.RequiresApproval,
		CooldownSeconds:  input.CooldownSeconds,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, policy)
}

/*
approve relays a queued attempt.

POST /api/commands/{id}/approve

Response:
  - 200: Execution (the new approval attempt)
  - 401: Unauthorized
  - 404: Unknown execution
  - 409: Execution is not queued
  - 502: Upstream relay failure
*/
func (handler *Handler) approve(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	execution, err := handler.commandService.Approve(request.Context(), userID, requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, execution)
}

/*
deny rejects a queued attempt.

POST /api/commands/{id}/deny

Response:
  - 200: Execution (the denial record)
  - 401: Unauthorized
  - 404: Unknown execution
  - 409: Execution is not queued
*/
func (handler *Handler) deny(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	execution, err := handler.commandService.Deny(request.Context(), userID, requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, execution)
}
