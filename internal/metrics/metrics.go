// Package metrics exposes Prometheus instruments for the control loop,
// served on the monitoring endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/floodgate/internal/logic"
)

var allStates = []logic.State{
	logic.StateNormal,
	logic.StateFloodAlert,
	logic.StateFloodActive,
	logic.StateEmergencyOpen,
}

// Metrics holds the instruments updated once per control cycle. All
// methods are called from the loop only; no locking beyond what the
// prometheus client does internally.
type Metrics struct {
	reg *prometheus.Registry

	cycles      prometheus.Counter
	transitions *prometheus.CounterVec
	state       *prometheus.GaugeVec

	waterLevel prometheus.Gauge
	clearance  prometheus.Gauge
	turbulence prometheus.Gauge
	human      prometheus.Gauge
	gateClosed prometheus.Gauge
}

// New creates the instruments on a private registry so tests can run in
// parallel without collisions.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: "floodgate",
			Name:      "cycles_total",
			Help:      "Control cycles completed.",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodgate",
			Name:      "transitions_total",
			Help:      "State transitions by type.",
		}, []string{"transition"}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "floodgate",
			Name:      "state",
			Help:      "Current state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
		waterLevel: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodgate",
			Name:      "water_level_cm",
			Help:      "Distance down to the water surface.",
		}),
		clearance: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodgate",
			Name:      "clearance_cm",
			Help:      "Overhead clearance above the deck.",
		}),
		turbulence: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodgate",
			Name:      "turbulence_dps",
			Help:      "Angular-rate magnitude of the flow vane.",
		}),
		human: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodgate",
			Name:      "human_present",
			Help:      "Fused human-present fact (0/1).",
		}),
		gateClosed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodgate",
			Name:      "gate_closed",
			Help:      "Commanded gate position (1 closed, 0 open).",
		}),
	}
}

// ObserveCycle records one completed control cycle.
func (m *Metrics) ObserveCycle(sample logic.Sample, human bool, d logic.Decision) {
	m.cycles.Inc()
	m.waterLevel.Set(sample.WaterLevel)
	m.clearance.Set(sample.Clearance)
	m.turbulence.Set(sample.Turbulence)
	m.human.Set(flag(human))
	m.gateClosed.Set(flag(d.Gate == logic.GateClosed))
	for _, s := range allStates {
		m.state.WithLabelValues(string(s)).Set(flag(s == d.State))
	}
}

// ObserveTransition counts a state transition.
func (m *Metrics) ObserveTransition(tr logic.Transition) {
	m.transitions.WithLabelValues(string(tr)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
