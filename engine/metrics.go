package engine

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsSet holds the engine's Prometheus collectors. They live in a
// private registry so embedding applications only expose engine metrics when
// they mount MetricsHandler explicitly.
type metricsSet struct {
	registry *prometheus.Registry

	evaluationsTotal   *prometheus.CounterVec
	syncsTotal         *prometheus.CounterVec
	eventsFlushedTotal prometheus.Counter
	eventsDroppedTotal prometheus.Counter
	bufferedEvents     prometheus.Gauge
	rulesetVersion     prometheus.Gauge
}

func newMetrics() *metricsSet {
	reg := prometheus.NewRegistry()

	m := &metricsSet{
		registry: reg,

		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statbridge_evaluations_total",
			Help: "Total number of evaluations by kind.",
		}, []string{"kind"}),

		syncsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statbridge_ruleset_syncs_total",
			Help: "Total number of background ruleset sync attempts.",
		}, []string{"result"}),

		eventsFlushedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statbridge_events_flushed_total",
			Help: "Total number of events delivered to the service.",
		}),

		eventsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statbridge_events_dropped_total",
			Help: "Total number of events dropped (full buffer or failed flush).",
		}),

		bufferedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "statbridge_buffered_events",
			Help: "Number of events currently buffered.",
		}),

		rulesetVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "statbridge_ruleset_version",
			Help: "Version of the ruleset currently served.",
		}),
	}

	reg.MustRegister(
		m.evaluationsTotal,
		m.syncsTotal,
		m.eventsFlushedTotal,
		m.eventsDroppedTotal,
		m.bufferedEvents,
		m.rulesetVersion,
	)

	return m
}

// MetricsHandler returns an [http.Handler] serving the engine's Prometheus
// metrics.
func (e *Engine) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(e.metrics.registry, promhttp.HandlerOpts{})
}
