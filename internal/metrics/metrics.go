// Package metrics exposes tipd counters for Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tipd/internal/eventbus"
)

type Metrics struct {
	reg *prometheus.Registry

	Events        *prometheus.CounterVec
	Decisions     *prometheus.CounterVec
	StorageFaults *prometheus.CounterVec
}

// New builds the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipd_events_total",
			Help: "Events seen on the bus, by type",
		}, []string{"type"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipd_decisions_total",
			Help: "Decision engine outcomes, by message type (\"none\" when nothing matched)",
		}, []string{"type", "trigger"}),
		StorageFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipd_storage_faults_total",
			Help: "Storage failures absorbed by the adapter, by operation",
		}, []string{"op"}),
	}
	m.reg.MustRegister(m.Events, m.Decisions, m.StorageFaults)
	return m
}

// Registry is exposed for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveDecision counts one engine outcome.
func (m *Metrics) ObserveDecision(typ, trigger string) {
	if typ == "" {
		typ = "none"
	}
	m.Decisions.WithLabelValues(typ, trigger).Inc()
}

// StorageFault matches storage.WithFaultHook.
func (m *Metrics) StorageFault(op string) { m.StorageFaults.WithLabelValues(op).Inc() }

// Pump counts bus events until ctx is done.
func (m *Metrics) Pump(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			m.Events.WithLabelValues(e.Type).Inc()
		}
	}
}
