/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package pipeline

import "github.com/prometheus/client_golang/prometheus"

const metricsLabelOutcome = "outcome"

// MetricsCollector represents collector of metrics for admission pipeline runs.
type MetricsCollector struct {
	InFlight prometheus.Gauge
	Outcomes *prometheus.CounterVec
}

// NewMetricsCollector creates a new instance of MetricsCollector.
func NewMetricsCollector(namespace string) *MetricsCollector {
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "admission_in_flight_requests",
		Help:      "Number of currently admitted (in-flight) requests.",
	})

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admission_outcomes_total",
		Help:      "Number of finished pipeline runs per outcome class.",
	}, []string{metricsLabelOutcome})

	return &MetricsCollector{
		InFlight: inFlight,
		Outcomes: outcomes,
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (mc *MetricsCollector) MustRegister() {
	prometheus.MustRegister(
		mc.InFlight,
		mc.Outcomes,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (mc *MetricsCollector) Unregister() {
	prometheus.Unregister(mc.InFlight)
	prometheus.Unregister(mc.Outcomes)
}

func (mc *MetricsCollector) observeOutcome(kind OutcomeKind) {
	if mc == nil {
		return
	}
	mc.Outcomes.With(prometheus.Labels{metricsLabelOutcome: kind.String()}).Inc()
}

func (mc *MetricsCollector) incInFlight() {
	if mc == nil {
		return
	}
	mc.InFlight.Inc()
}

func (mc *MetricsCollector) decInFlight() {
	if mc == nil {
		return
	}
	mc.InFlight.Dec()
}
