/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"time"

	"github.com/acronis/go-shedkit/log"
)

// Logging is a middleware that puts the passed logger (enriched with the request id, if present)
// into the request's context and logs the request completion with its duration.
// A nil logger is replaced with a disabled one.
func Logging(logger log.FieldLogger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			reqLogger := logger
			if requestID := GetRequestIDFromContext(r.Context()); requestID != "" {
				reqLogger = reqLogger.With(log.String("request_id", requestID))
			}

			startTime := time.Now()
			next.ServeHTTP(rw, r.WithContext(NewContextWithLogger(r.Context(), reqLogger)))

			reqLogger.Info("request handled",
				log.String("method", r.Method),
				log.String("uri", r.URL.RequestURI()),
				log.DurationIn(time.Since(startTime), time.Millisecond),
			)
		})
	}
}
