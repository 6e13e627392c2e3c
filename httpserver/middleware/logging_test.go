/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-shedkit/log"
)

func TestLogging(t *testing.T) {
	t.Run("logger is put into the request context", func(t *testing.T) {
		var ctxLogger log.FieldLogger
		next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctxLogger = GetLoggerFromContext(r.Context())
			rw.WriteHeader(http.StatusOK)
		})
		handler := RequestID()(Logging(log.NewDisabledLogger())(next))

		respRec := httptest.NewRecorder()
		handler.ServeHTTP(respRec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, respRec.Code)
		require.NotNil(t, ctxLogger)
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(http.StatusOK)
		})
		handler := RequestID()(Logging(nil)(next))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "req-1")
		respRec := httptest.NewRecorder()
		require.NotPanics(t, func() {
			handler.ServeHTTP(respRec, req)
		})
		require.Equal(t, http.StatusOK, respRec.Code)
	})
}
