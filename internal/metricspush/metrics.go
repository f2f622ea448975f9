package metricspush

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	usageEvents         *prometheus.CounterVec
	entitlementChecks   *prometheus.CounterVec
	limitBreaches       *prometheus.CounterVec
	activeSubscriptions *prometheus.GaugeVec
	memorySys           prometheus.Gauge
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		usageEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_usage_events_total",
			Help: "Usage events recorded, by event type.",
		}, []string{"event_type"}),
		entitlementChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_entitlement_checks_total",
			Help: "Entitlement checks performed, by plan and outcome.",
		}, []string{"plan", "entitled"}),
		limitBreaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_limit_breaches_total",
			Help: "Limit evaluations where usage exceeded the plan cap.",
		}, []string{"plan", "metric"}),
		activeSubscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "atlas_active_subscriptions",
			Help: "Subscriptions currently in an active or trial status, by plan.",
		}, []string{"plan"}),
		memorySys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "atlas_process_memory_sys_bytes",
			Help: "Memory obtained from the OS by the process.",
		}),
	}

	registry.MustRegister(
		m.usageEvents,
		m.entitlementChecks,
		m.limitBreaches,
		m.activeSubscriptions,
		m.memorySys,
	)
	return m
}
