package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	activeTimers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sla_active_timers",
		Help: "Number of SLA timers held by the engine",
	})
	breachesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sla_breaches_total",
		Help: "SLA timers that transitioned to breached",
	}, []string{"metric"})
	escalationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sla_escalations_fired_total",
		Help: "Escalation levels fired",
	})
	tickErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sla_tick_errors_total",
		Help: "Per-timer errors during scheduler ticks",
	})
)

func init() {
	prometheus.MustRegister(activeTimers, breachesTotal, escalationsTotal, tickErrors)
}
