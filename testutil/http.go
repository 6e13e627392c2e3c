/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/stretchr/testify/require"
)

const contentTypeAppJSON = "application/json"

type errorRespData struct {
	Domain string `json:"domain"`
	Code   string `json:"code"`
}

type wrappedErrorRespData struct {
	Error errorRespData `json:"error"`
}

// RequireErrorInRecorder asserts that passing httptest.ResponseRecorder contains error.
func RequireErrorInRecorder(t require.TestingT, resp *httptest.ResponseRecorder, wantHTTPCode int, wantErrDomain, wantErrCode string) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	requireErrorInResponse(t, resp.Code, resp.Header(), resp.Body, wantHTTPCode, wantErrDomain, wantErrCode)
}

// RequireErrorInResponse asserts that passing http.Response contains the error.
func RequireErrorInResponse(t require.TestingT, resp *http.Response, wantHTTPCode int, wantErrDomain, wantErrCode string) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	requireErrorInResponse(t, resp.StatusCode, resp.Header, resp.Body, wantHTTPCode, wantErrDomain, wantErrCode)
}

func requireErrorInResponse(
	t require.TestingT, code int, header http.Header, body io.Reader, wantHTTPCode int, wantErrDomain, wantErrCode string,
) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	require.Equal(t, wantHTTPCode, code)
	require.Equal(t, contentTypeAppJSON, header.Get("Content-Type"))
	var wrappedErrResp wrappedErrorRespData
	require.NoError(t, json.NewDecoder(body).Decode(&wrappedErrResp))
	require.Equal(t, wantErrDomain, wrappedErrResp.Error.Domain)
	require.Equal(t, wantErrCode, wrappedErrResp.Error.Code)
}
