// Package metrics holds the Prometheus collectors for dotbot operations.
//
// Collectors live on a private registry so tests and embedders never
// collide with the process-wide default one. The registry is only
// exposed over HTTP when the server is started with a metrics address.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors recorded at the tool boundary.
type Metrics struct {
	registry *prometheus.Registry

	operationTotal    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	findingsTotal     *prometheus.CounterVec
	healthRunsTotal   *prometheus.CounterVec
	projectsGauge     prometheus.Gauge
}

// New creates a Metrics with every collector registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dotbot_operation_total",
				Help: "Number of operations served, by operation and envelope status.",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dotbot_operation_duration_seconds",
				Help:    "Time taken to serve an operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dotbot_findings_total",
				Help: "Errors and warnings reported, by code and severity.",
			},
			[]string{"code", "severity"},
		),
		healthRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dotbot_health_runs_total",
				Help: "Health checks run, by level and overall status.",
			},
			[]string{"level", "status"},
		),
		projectsGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dotbot_discovered_projects",
				Help: "Number of projects found by the last discovery scan.",
			},
		),
	}
	m.registry.MustRegister(
		m.operationTotal,
		m.operationDuration,
		m.findingsTotal,
		m.healthRunsTotal,
		m.projectsGauge,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOperation records one served operation. Nil receivers are no-ops
// so callers can run without metrics.
func (m *Metrics) ObserveOperation(operation, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.operationTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(took.Seconds())
}

// ObserveFinding counts one reported issue.
func (m *Metrics) ObserveFinding(code, severity string) {
	if m == nil {
		return
	}
	m.findingsTotal.WithLabelValues(code, severity).Inc()
}

// ObserveHealthRun counts one completed health check.
func (m *Metrics) ObserveHealthRun(level, status string) {
	if m == nil {
		return
	}
	m.healthRunsTotal.WithLabelValues(level, status).Inc()
}

// SetProjects records the size of the last discovery result.
func (m *Metrics) SetProjects(n int) {
	if m == nil {
		return
	}
	m.projectsGauge.Set(float64(n))
}
