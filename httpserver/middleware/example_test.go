/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-shedkit/log"
	"github.com/acronis/go-shedkit/pipeline"
)

func Example() {
	const errDomain = "MyService"

	logger, closeFn := log.NewLogger(&log.Config{Output: log.OutputStdout, Format: log.FormatJSON})
	defer closeFn()

	metricsCollector := pipeline.NewMetricsCollector("my_service")
	metricsCollector.MustRegister()
	defer metricsCollector.Unregister()

	admissionPipeline := pipeline.MustNewWithOpts(pipeline.NewDefaultConfig(), pipeline.Opts{
		LoggerProvider:   GetLoggerFromContext,
		MetricsCollector: metricsCollector,
	})

	router := chi.NewRouter()
	router.Use(
		RequestID(),
		Logging(logger),
		Recovery(errDomain),
		AdmissionWithOpts(admissionPipeline, errDomain, AdmissionOpts{
			BypassEndpoints: []string{"/metrics", "/healthz"},
			GetBudget:       BudgetFromHeader("X-Request-Timeout", time.Minute),
		}),
	)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	router.Get("/users", func(rw http.ResponseWriter, req *http.Request) {
		// Returns list of users.
	})
}
