// Copyright (c) 2026 Sentinel. All rights reserved.
// Author: ops@sentinelhq.dev

package guard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelhq/sentinel/internal/guard"
	"github.com/sentinelhq/sentinel/internal/platform/constants"
)

const appOrigin = "https://app.sentinelhq.dev"

func newMutation(t *testing.T) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodPost, "https://app.sentinelhq.dev/api/commands", nil)
}

/*
TestValidateTrustedOrigin covers the allow/deny matrix of the Origin and
Referer headers, including the distinct failure reasons.
*/
func TestValidateTrustedOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		referer string
		wantErr error
	}{
		{"matching_origin", appOrigin, "", nil},
		{"matching_origin_trailing_slash", appOrigin + "/", "", nil},
		{"foreign_origin_no_referer", "https://evil.example", "", guard.ErrInvalidOrigin},
		{"foreign_origin_foreign_referer", "https://evil.example", "https://evil.example/page", guard.ErrInvalidOrigin},
		{"foreign_origin_rescued_by_referer", "null", appOrigin + "/commands", nil},
		{"referer_only_match", "", appOrigin + "/app/commands?tab=1", nil},
		{"referer_only_foreign", "", "https://evil.example/", guard.ErrInvalidReferer},
		{"referer_only_garbage", "", "::::not-a-url", guard.ErrUnparseableReferer},
		{"missing_both", "", "", guard.ErrMissingOriginHeaders},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := newMutation(t)
			if tt.origin != "" {
				request.Header.Set(constants.HeaderOrigin, tt.origin)
			}
			if tt.referer != "" {
				request.Header.Set(constants.HeaderReferer, tt.referer)
			}

			err := guard.ValidateTrustedOrigin(request, appOrigin)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

/*
TestExpectedOrigin_FallsBackToRequest verifies the request's own origin is
used when no application origin is configured.
*/
func TestExpectedOrigin_FallsBackToRequest(t *testing.T) {
	request := httptest.NewRequest(http.MethodPost, "http://localhost:8080/api/x", nil)
	assert.Equal(t, "http://localhost:8080", guard.ExpectedOrigin(request, ""))
	assert.Equal(t, appOrigin, guard.ExpectedOrigin(request, appOrigin))
}

/*
TestValidateMutationRequest_SafeMethods ensures GET/HEAD/OPTIONS are never
challenged, even with every layer enabled and no headers present.
*/
func TestValidateMutationRequest_SafeMethods(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		request := httptest.NewRequest(method, appOrigin+"/api/audit", nil)
		err := guard.ValidateMutationRequest(request, appOrigin, guard.Options{
			RequireCSRF:         true,
			RequireClientHeader: true,
		})
		assert.NoError(t, err, method)
	}
}

/*
TestValidateMutationRequest_CSRF exercises the double-submit symmetry:
only a byte-exact cookie/header pair is accepted.
*/
func TestValidateMutationRequest_CSRF(t *testing.T) {
	const token = "3f7c9a1db2e84f06"

	tests := []struct {
		name    string
		cookie  string
		header  string
		wantErr error
	}{
		{"exact_match", token, token, nil},
		{"single_char_difference", token, "3f7c9a1db2e84f07", guard.ErrCSRFMismatch},
		{"case_difference", token, "3F7C9A1DB2E84F06", guard.ErrCSRFMismatch},
		{"missing_header", token, "", guard.ErrMissingCSRFToken},
		{"missing_cookie", "", token, guard.ErrMissingCSRFToken},
		{"both_missing", "", "", guard.ErrMissingCSRFToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := newMutation(t)
			request.Header.Set(constants.HeaderOrigin, appOrigin)
			if tt.cookie != "" {
				request.AddCookie(&http.Cookie{Name: constants.CSRFCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				request.Header.Set(constants.HeaderCSRF, tt.header)
			}

			err := guard.ValidateMutationRequest(request, appOrigin, guard.Options{RequireCSRF: true})
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

/*
TestValidateMutationRequest_ClientHeader checks the static trusted-client
marker layer.
*/
func TestValidateMutationRequest_ClientHeader(t *testing.T) {
	request := newMutation(t)
	request.Header.Set(constants.HeaderOrigin, appOrigin)

	err := guard.ValidateMutationRequest(request, appOrigin, guard.Options{RequireClientHeader: true})
	require.ErrorIs(t, err, guard.ErrMissingClientHeader)

	request.Header.Set(constants.HeaderTrustedClient, "wrong-value")
	err = guard.ValidateMutationRequest(request, appOrigin, guard.Options{RequireClientHeader: true})
	require.ErrorIs(t, err, guard.ErrMissingClientHeader)

	request.Header.Set(constants.HeaderTrustedClient, constants.HeaderTrustedClientValue)
	assert.NoError(t, guard.ValidateMutationRequest(request, appOrigin, guard.Options{RequireClientHeader: true}))
}

/*
TestValidateMutationRequest_OriginFirst verifies layer ordering: the origin
failure is reported even when CSRF would also fail.
*/
func TestValidateMutationRequest_OriginFirst(t *testing.T) {
	request := newMutation(t)
	request.Header.Set(constants.HeaderOrigin, "https://evil.example")

	err := guard.ValidateMutationRequest(request, appOrigin, guard.Options{RequireCSRF: true})
	assert.ErrorIs(t, err, guard.ErrInvalidOrigin)
}
