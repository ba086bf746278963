// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sentinelhq/sentinel/internal/platform/apperr"
	"github.com/sentinelhq/sentinel/internal/platform/ctxutil"
	"github.com/sentinelhq/sentinel/internal/platform/sec"
	"github.com/sentinelhq/sentinel/internal/platform/validate"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Session extracts the verified session from the request context.

Returns nil if the request is not authenticated.
*/
func Session(request *http.Request) *sec.Session {
	return ctxutil.GetSession(request.Context())
}

/*
RequiredSession ensures the request is authenticated and returns the session.

Returns:
  - *sec.Session: The verified session
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredSession(request *http.Request) (*sec.Session, error) {
	session := ctxutil.GetSession(request.Context())
	if session == nil {
		return nil, apperr.Unauthorized("Unauthorized")
	}
	return session, nil
}

/*
RequiredUserID returns the Discord user ID of the current tenant.

Returns:
  - string: Discord user ID (the unit of data isolation)
  - error: apperr.Unauthorized if not authenticated
*/
func RequiredUserID(request *http.Request) (string, error) {
	session, err := RequiredSession(request)
	if err != nil {
		return "", err
	}
	return session.User.ID, nil
}
