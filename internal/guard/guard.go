// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

/*
Package guard implements the CSRF and trusted-origin defenses for mutating requests.

Three independent layers protect every state-changing endpoint; any one
failing blocks the request:

  - Origin/Referer validation defeats cross-site form submission.
  - The double-submit CSRF token defeats cross-site fetch from a page that
    cannot read cookies of the target origin.
  - The static trusted-client marker header filters naive replay tools.

The origin check is also reused standalone to gate the OAuth-initiation
endpoint against non-browser, non-first-party POSTs.
*/
package guard

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/sentinelhq/sentinel/internal/platform/constants"
)

// Distinct failure reasons. Callers surface these verbatim so operators can
// tell which layer rejected a request.
var (
	// ErrMissingOriginHeaders is returned when neither Origin nor Referer is present.
	ErrMissingOriginHeaders = errors.New("missing Origin and Referer headers")

	// ErrInvalidOrigin is returned when the Origin header names a foreign origin
	// and the Referer does not rescue the request.
	ErrInvalidOrigin = errors.New("invalid origin")

	// ErrInvalidReferer is returned when only a Referer is present and it names
	// a foreign origin.
	ErrInvalidReferer = errors.New("invalid referer")

	// ErrUnparseableReferer is returned when the Referer header cannot be parsed.
	ErrUnparseableReferer = errors.New("unparseable referer")

	// ErrMissingClientHeader is returned when the static trusted-client marker
	// is absent or carries an unexpected value.
	ErrMissingClientHeader = errors.New("missing trusted client header")

	// ErrMissingCSRFToken is returned when the CSRF cookie or header is absent.
	ErrMissingCSRFToken = errors.New("missing CSRF token")

	// ErrCSRFMismatch is returned when cookie and header values differ.
	ErrCSRFMismatch = errors.New("CSRF token mismatch")
)

// Options selects which optional layers [ValidateMutationRequest] enforces.
// The origin check always runs for mutating methods.
type Options struct {
	// RequireCSRF enforces the double-submit cookie/header pair.
	RequireCSRF bool

	// RequireClientHeader enforces the static trusted-client marker.
	RequireClientHeader bool
}

// ExpectedOrigin computes the origin mutating requests must come from.
//
// The configured application origin wins; when it is empty the request's
// own scheme and host are used, so single-host deployments need no config.
func ExpectedOrigin(request *http.Request, configuredOrigin string) string {
	if configuredOrigin != "" {
		return strings.TrimSuffix(configuredOrigin, "/")
	}

	scheme := "https"
	if request.TLS == nil {
		if forwarded := request.Header.Get("X-Forwarded-Proto"); forwarded != "" {
			scheme = forwarded
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + request.Host
}

// ValidateTrustedOrigin checks that the request originates from the expected
// first-party origin.
//
// # Decision Order
//
//  1. Neither Origin nor Referer present → [ErrMissingOriginHeaders].
//  2. Origin present and equal to expected → accepted.
//  3. Origin present but foreign → the Referer may rescue the request if its
//     origin matches; otherwise [ErrInvalidOrigin].
//  4. Only Referer present → parsed and compared; [ErrUnparseableReferer] or
//     [ErrInvalidReferer] on failure.
func ValidateTrustedOrigin(request *http.Request, configuredOrigin string) error {
	expected := ExpectedOrigin(request, configuredOrigin)
	origin := request.Header.Get(constants.HeaderOrigin)
	referer := request.Header.Get(constants.HeaderReferer)

	if origin == "" && referer == "" {
		return ErrMissingOriginHeaders
	}

	if origin != "" {
		if strings.TrimSuffix(origin, "/") == expected {
			return nil
		}
		if refererOrigin, err := parseRefererOrigin(referer); err == nil && refererOrigin == expected {
			return nil
		}
		return ErrInvalidOrigin
	}

	refererOrigin, err := parseRefererOrigin(referer)
	if err != nil {
		return ErrUnparseableReferer
	}
	if refererOrigin != expected {
		return ErrInvalidReferer
	}
	return nil
}

// ValidateMutationRequest runs the full layered check for a state-changing request.
//
// Safe methods (GET, HEAD, OPTIONS) are never challenged. For mutating
// methods the first failing layer wins and its reason is returned.
func ValidateMutationRequest(request *http.Request, configuredOrigin string, opts Options) error {
	switch request.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return nil
	}

	if err := ValidateTrustedOrigin(request, configuredOrigin); err != nil {
		return err
	}

	if opts.RequireClientHeader {
		if request.Header.Get(constants.HeaderTrustedClient) != constants.HeaderTrustedClientValue {
			return ErrMissingClientHeader
		}
	}

	if opts.RequireCSRF {
		cookie, err := request.Cookie(constants.CSRFCookieName)
		header := request.Header.Get(constants.HeaderCSRF)

		if err != nil || cookie.Value == "" || header == "" {
			return ErrMissingCSRFToken
		}

		// Byte-for-byte equality. Both values being merely non-empty is NOT
		// sufficient: the double-submit defense rests on the attacker being
		// unable to read the cookie to forge a matching header.
		if cookie.Value != header {
			return ErrCSRFMismatch
		}
	}

	return nil
}

// parseRefererOrigin extracts "scheme://host" from a Referer URL.
func parseRefererOrigin(referer string) (string, error) {
	if referer == "" {
		return "", ErrUnparseableReferer
	}
	parsed, err := url.Parse(referer)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", ErrUnparseableReferer
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}
