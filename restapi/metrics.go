/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import "github.com/prometheus/client_golang/prometheus"

var metricsErrorResponses *prometheus.CounterVec

const (
	metricsSubsystem = "restapi"

	metricsLabelErrorDomain = "domain"
	metricsLabelErrorCode   = "code"
)

// MustInitAndRegisterMetrics initializes and registers restapi global metrics.
// Panics on registration error. The domain/code labels let dashboards separate
// shed requests (tooManyInFlightRequests) from expired budgets (requestTimedOut).
func MustInitAndRegisterMetrics(namespace string) {
	metricsErrorResponses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: metricsSubsystem,
		Name:      "error_responses_total",
		Help:      "Number of error envelopes written in HTTP responses, partitioned by error domain and code.",
	}, []string{metricsLabelErrorDomain, metricsLabelErrorCode})
	prometheus.MustRegister(metricsErrorResponses)
}

// UnregisterMetrics unregisters restapi global metrics.
func UnregisterMetrics() {
	if metricsErrorResponses != nil {
		prometheus.Unregister(metricsErrorResponses)
	}
}
