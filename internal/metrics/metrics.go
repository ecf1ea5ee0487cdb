// Package metrics exposes the balancer's ambient observability surface.
// It is purely additive: nothing in the line protocol or scheduling
// logic depends on it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the balancer's prometheus collectors.
type Metrics struct {
	ProbeSuccessTotal  prometheus.Counter
	ProbeFailureTotal  prometheus.Counter
	AssignStaticTotal  prometheus.Counter
	AssignDynamicTotal prometheus.Counter
	AssignDeniedTotal  prometheus.Counter
	RegistrySize       prometheus.Gauge
	LiveClientsTotal   prometheus.Gauge

	handler http.Handler
}

// New creates and registers the balancer's collectors against a fresh
// registry, so repeated calls (e.g. in tests) never collide with the
// global default registry.
func New() *Metrics {
	m := &Metrics{
		ProbeSuccessTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "balancer_probe_success_total",
			Help: "Total number of successful backend RTT probes.",
		}),
		ProbeFailureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "balancer_probe_failure_total",
			Help: "Total number of failed backend RTT probes.",
		}),
		AssignStaticTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "balancer_assignments_static_total",
			Help: "Total number of clients assigned via static (weighted round-robin) mode.",
		}),
		AssignDynamicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "balancer_assignments_dynamic_total",
			Help: "Total number of clients assigned via dynamic (min-RTT) mode.",
		}),
		AssignDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "balancer_assignments_denied_total",
			Help: "Total number of client handshakes that received NO_SERVER_AVAILABLE.",
		}),
		RegistrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "balancer_registry_size",
			Help: "Current number of registered backends.",
		}),
		LiveClientsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "balancer_live_clients_total",
			Help: "Sum of reported live clients across all backends.",
		}),
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		m.ProbeSuccessTotal, m.ProbeFailureTotal,
		m.AssignStaticTotal, m.AssignDynamicTotal, m.AssignDeniedTotal,
		m.RegistrySize, m.LiveClientsTotal,
	)
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m
}

// Handler serves the registered collectors in the Prometheus exposition
// format.
func (m *Metrics) Handler() http.Handler { return m.handler }
