// Package metrics holds Prometheus instruments used across itemstore.  All
// collectors are registered with the global registry, so importing this
// package is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OptionsValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "options_validation_failures_total",
			Help: "Repository option sets rejected before provisioning, by kind.",
		}, []string{"kind"})

	ContainersKnown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "containers_known",
			Help: "Number of databases and containers remembered as provisioned.",
		})

	ContainersProvisionedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "containers_provisioned_total",
			Help: "Cumulative number of databases and containers created or confirmed.",
		})

	ContainerProvisionErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "container_provision_errors_total",
			Help: "Cumulative number of failed provisioning statements.",
		})
)

func init() {
	prometheus.MustRegister(
		OptionsValidationFailuresTotal,
		ContainersKnown,
		ContainersProvisionedTotal,
		ContainerProvisionErrorsTotal,
	)
}
