/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/vasayxtx/go-glob"

	"github.com/acronis/go-shedkit/log"
	"github.com/acronis/go-shedkit/pipeline"
	"github.com/acronis/go-shedkit/restapi"
)

// AdmissionRejectedErrCode is the error code that is used in a response body
// if the request is rejected because the admission gate is saturated.
const AdmissionRejectedErrCode = "tooManyInFlightRequests"

// AdmissionTimedOutErrCode is the error code that is used in a response body
// if the request did not finish within its budget.
const AdmissionTimedOutErrCode = "requestTimedOut"

// Log fields for Admission middleware.
const (
	admissionLogFieldRetryAfter = "admission_retry_after"
	userAgentLogFieldKey        = "user_agent"
)

// AdmissionParams contains data that relates to the admission procedure
// and could be used for rejecting or handling an occurred error.
type AdmissionParams struct {
	ResponseStatusCode int
	RetryAfter         time.Duration
	ErrDomain          string
}

// AdmissionOnRejectFunc is a function that is called for rejecting HTTP request when the admission gate is saturated.
type AdmissionOnRejectFunc func(rw http.ResponseWriter, r *http.Request,
	params AdmissionParams, next http.Handler, logger log.FieldLogger)

// AdmissionGetBudgetFunc is a function that is called to get a time budget for the request.
// A non-positive result means "use the pipeline's default budget".
type AdmissionGetBudgetFunc func(r *http.Request) time.Duration

// AdmissionOpts represents an options for the middleware that does request admission.
type AdmissionOpts struct {
	// GetBudget overrides the per-request budget. May be nil.
	GetBudget AdmissionGetBudgetFunc

	// ResponseStatusCode is the status code for rejected requests. 503 by default.
	ResponseStatusCode int

	// BypassEndpoints is a list of glob patterns of URL paths (e.g. "/healthz", "/internal/*")
	// that must never be shed or deadline-bounded.
	BypassEndpoints []string

	// DryRun makes the middleware serve requests that would be rejected,
	// only logging and counting the rejection. Useful for tuning the capacity.
	DryRun bool

	OnReject AdmissionOnRejectFunc
}

type admissionHandler struct {
	pipeline       *pipeline.Pipeline
	next           http.Handler
	errDomain      string
	respStatusCode int
	getBudget      AdmissionGetBudgetFunc
	bypass         []func(string) bool
	dryRun         bool
	onReject       AdmissionOnRejectFunc
}

// Admission is a middleware that runs HTTP requests through the admission pipeline:
// requests exceeding the concurrency capacity are rejected with 503 and a Retry-After hint,
// admitted requests are bounded by the pipeline's time budget and answered with 504 on its expiry.
func Admission(p *pipeline.Pipeline, errDomain string) func(next http.Handler) http.Handler {
	return AdmissionWithOpts(p, errDomain, AdmissionOpts{})
}

// AdmissionWithOpts is a configurable version of a middleware that does request admission.
func AdmissionWithOpts(p *pipeline.Pipeline, errDomain string, opts AdmissionOpts) func(next http.Handler) http.Handler {
	respStatusCode := opts.ResponseStatusCode
	if respStatusCode == 0 {
		respStatusCode = http.StatusServiceUnavailable
	}

	onReject := opts.OnReject
	if onReject == nil {
		onReject = DefaultAdmissionOnReject
	}

	bypass := make([]func(string) bool, 0, len(opts.BypassEndpoints))
	for _, pattern := range opts.BypassEndpoints {
		bypass = append(bypass, glob.Compile(pattern))
	}

	return func(next http.Handler) http.Handler {
		return &admissionHandler{
			pipeline:       p,
			next:           next,
			errDomain:      errDomain,
			respStatusCode: respStatusCode,
			getBudget:      opts.GetBudget,
			bypass:         bypass,
			dryRun:         opts.DryRun,
			onReject:       onReject,
		}
	}
}

func (h *admissionHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	for i := range h.bypass {
		if h.bypass[i](r.URL.Path) {
			h.next.ServeHTTP(rw, r)
			return
		}
	}

	budget := h.pipeline.DefaultBudget()
	if h.getBudget != nil {
		if b := h.getBudget(r); b > 0 {
			budget = b
		}
	}

	logger := GetLoggerFromContext(r.Context())

	// The downstream response is buffered so that nothing reaches the client
	// before the outcome is known: a request that runs out of its budget gets
	// a clean 504, not a half-written body racing with the abandoned handler.
	buf := newBufferedResponseWriter()
	outcome, err := pipeline.HandleWithBudget(r.Context(), h.pipeline, budget, func(ctx context.Context) (struct{}, error) {
		h.next.ServeHTTP(buf, r.WithContext(ctx))
		return struct{}{}, nil
	})
	if err != nil {
		if logger != nil {
			logger.Error("admission failed", log.Error(err))
		}
		restapi.RespondInternalError(rw, h.errDomain, logger)
		return
	}

	switch outcome.Kind {
	case pipeline.OutcomeSuccess:
		buf.copyTo(rw)

	case pipeline.OutcomeTimedOut:
		apiErr := restapi.NewError(h.errDomain, AdmissionTimedOutErrCode, "Request did not finish within its time budget.")
		restapi.RespondError(rw, http.StatusGatewayTimeout, apiErr, logger)

	case pipeline.OutcomeRejected:
		if h.dryRun {
			if logger != nil {
				logger.Warn("admission gate is saturated, serving will be continued because of dry run mode",
					log.String(userAgentLogFieldKey, r.UserAgent()))
			}
			h.next.ServeHTTP(rw, r)
			return
		}
		params := AdmissionParams{
			ResponseStatusCode: h.respStatusCode,
			RetryAfter:         outcome.RetryAfter,
			ErrDomain:          h.errDomain,
		}
		h.onReject(rw, r, params, h.next, logger)

	default:
		// OutcomeHandlerError is unreachable: the wrapped handler never returns an error.
		restapi.RespondInternalError(rw, h.errDomain, logger)
	}
}

// DefaultAdmissionOnReject sends a 503 response with a Retry-After HTTP header
// so well-behaved clients back off before retrying.
func DefaultAdmissionOnReject(
	rw http.ResponseWriter, r *http.Request, params AdmissionParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger = logger.With(
			log.Duration(admissionLogFieldRetryAfter, params.RetryAfter),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	if params.RetryAfter > 0 {
		rw.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(params.RetryAfter.Seconds()))))
	}
	apiErr := restapi.NewError(params.ErrDomain, AdmissionRejectedErrCode, "Too many in-flight requests.")
	restapi.RespondError(rw, params.ResponseStatusCode, apiErr, logger)
}

// BudgetFromHeader returns an AdmissionGetBudgetFunc that reads the budget from the given
// request header (in time.ParseDuration format, e.g. "500ms"). A missing or malformed value
// means "use the default budget"; maxBudget, if positive, caps the result so that a client
// cannot ask for an arbitrarily long deadline.
func BudgetFromHeader(headerName string, maxBudget time.Duration) AdmissionGetBudgetFunc {
	return func(r *http.Request) time.Duration {
		headerVal := r.Header.Get(headerName)
		if headerVal == "" {
			return 0
		}
		budget, err := time.ParseDuration(headerVal)
		if err != nil || budget <= 0 {
			return 0
		}
		if maxBudget > 0 && budget > maxBudget {
			return maxBudget
		}
		return budget
	}
}

// bufferedResponseWriter is an http.ResponseWriter that accumulates the response in memory.
// Streaming interfaces (http.Flusher, http.Hijacker) are not supported under admission,
// which is acceptable for the request/response APIs this middleware is meant for.
type bufferedResponseWriter struct {
	header      http.Header
	statusCode  int
	body        bytes.Buffer
	wroteHeader bool
}

func newBufferedResponseWriter() *bufferedResponseWriter {
	return &bufferedResponseWriter{header: make(http.Header)}
}

func (w *bufferedResponseWriter) Header() http.Header {
	return w.header
}

func (w *bufferedResponseWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.statusCode = statusCode
	w.wroteHeader = true
}

func (w *bufferedResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

func (w *bufferedResponseWriter) copyTo(rw http.ResponseWriter) {
	for key, values := range w.header {
		for _, value := range values {
			rw.Header().Add(key, value)
		}
	}
	if w.wroteHeader {
		rw.WriteHeader(w.statusCode)
	}
	if w.body.Len() > 0 {
		_, _ = rw.Write(w.body.Bytes())
	}
}
