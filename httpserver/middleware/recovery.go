/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/acronis/go-shedkit/log"
	"github.com/acronis/go-shedkit/restapi"
)

// RecoveryDefaultStackSize defines the default size of stack part which will be logged.
const RecoveryDefaultStackSize = 8192

// RecoveryOpts represents an options for Recovery middleware.
type RecoveryOpts struct {
	StackSize int
}

type recoveryHandler struct {
	next        http.Handler
	errorDomain string
	opts        RecoveryOpts
}

// Recovery is a middleware that recovers from panics, logs the panic value and a stacktrace,
// returns 500 HTTP status code and error in body in right format.
func Recovery(errDomain string) func(next http.Handler) http.Handler {
	return RecoveryWithOpts(errDomain, RecoveryOpts{StackSize: RecoveryDefaultStackSize})
}

// RecoveryWithOpts is a more configurable version of Recovery middleware.
func RecoveryWithOpts(errDomain string, opts RecoveryOpts) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &recoveryHandler{next: next, errorDomain: errDomain, opts: opts}
	}
}

func (h *recoveryHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			logger := GetLoggerFromContext(r.Context())

			if p == http.ErrAbortHandler {
				// ErrAbortHandler is a sentinel panic for aborting a handler,
				// it's a common practice to continue its propagation.
				if logger != nil {
					logger.Warn("request has been aborted", log.Error(http.ErrAbortHandler))
				}
				panic(p)
			}

			if logger != nil {
				var logFields []log.Field
				if h.opts.StackSize != 0 {
					stack := make([]byte, h.opts.StackSize)
					stack = stack[:runtime.Stack(stack, false)]
					logFields = append(logFields, log.Bytes("stack", stack))
				}
				logger.Error(fmt.Sprintf("Panic: %+v", p), logFields...)
			}

			restapi.RespondError(rw, http.StatusInternalServerError, restapi.NewInternalError(h.errorDomain), logger)
		}
	}()

	h.next.ServeHTTP(rw, r)
}
