// Package telemetry exposes Prometheus metrics for the sentinel:
//
//	sentinel_feed_events_total{type}     – feed events consumed (trade|bbo)
//	sentinel_evaluations_total           – evaluator ticks
//	sentinel_decisions_total{allowed}    – final decisions by outcome
//	sentinel_order_actions_total{action} – order lifecycle transitions
//	sentinel_health_score                – latest composite health score
//	sentinel_permission_state{state}     – active permission state (0/1 per label)
//	sentinel_regime{regime}              – active regime (0/1 per label)
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quantdesk/sentinel-backend/pkg/types"
)

var permissionStates = []types.PermissionState{
	types.PermissionAllow, types.PermissionBlocked,
	types.PermissionCooldown, types.PermissionProbation,
}

var regimes = []types.Regime{
	types.RegimeNormal, types.RegimeFast, types.RegimeUnstable, types.RegimeUnknown,
}

// Metrics holds all sentinel Prometheus series.
type Metrics struct {
	registry *prometheus.Registry

	FeedEvents      *prometheus.CounterVec
	Evaluations     prometheus.Counter
	Decisions       *prometheus.CounterVec
	OrderActions    *prometheus.CounterVec
	HealthScore     prometheus.Gauge
	PermissionState *prometheus.GaugeVec
	Regime          *prometheus.GaugeVec
}

// New registers all series on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FeedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_feed_events_total",
			Help: "Feed events consumed",
		}, []string{"type"}),
		Evaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_evaluations_total",
			Help: "Evaluator ticks",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_decisions_total",
			Help: "Final decisions by outcome",
		}, []string{"allowed"}),
		OrderActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_order_actions_total",
			Help: "Order lifecycle transitions",
		}, []string{"action"}),
		HealthScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_health_score",
			Help: "Latest composite health score",
		}),
		PermissionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_permission_state",
			Help: "Active permission state (1 for the current state)",
		}, []string{"state"}),
		Regime: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_regime",
			Help: "Active regime (1 for the current regime)",
		}, []string{"regime"}),
	}
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetPermissionState flips the labeled state series.
func (m *Metrics) SetPermissionState(active types.PermissionState) {
	for _, s := range permissionStates {
		v := 0.0
		if s == active {
			v = 1
		}
		m.PermissionState.WithLabelValues(string(s)).Set(v)
	}
}

// SetRegime flips the labeled regime series.
func (m *Metrics) SetRegime(active types.Regime) {
	for _, r := range regimes {
		v := 0.0
		if r == active {
			v = 1
		}
		m.Regime.WithLabelValues(string(r)).Set(v)
	}
}
