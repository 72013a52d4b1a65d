// Package metrics holds the prometheus collectors the hub exports on /metrics.
// Every method is safe to call on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feeder_hub"

// Drop reasons for ingested log messages.
const (
	ReasonMalformed     = "malformed"
	ReasonMissingFields = "missing_fields"
)

// Fetch outcomes.
const (
	FetchStarted  = "started"
	FetchSuccess  = "success"
	FetchTimedOut = "timed_out"
	FetchLate     = "late_reply"
)

type Metrics struct {
	registry *prometheus.Registry

	busState       *prometheus.GaugeVec
	busTransitions *prometheus.CounterVec
	published      *prometheus.CounterVec
	logsIngested   prometheus.Counter
	logsDropped    *prometheus.CounterVec
	flushFailures  prometheus.Counter
	fetches        *prometheus.CounterVec
	busStates      []string
}

// New creates a Metrics with its own registry. states lists every bus state
// name so the state gauge can be zeroed on transitions.
func New(states ...string) *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		busStates: states,
		busState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "state",
			Help:      "1 for the current bus connection state, 0 otherwise.",
		}, []string{"state"}),
		busTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "state_transitions_total",
			Help:      "Bus connection state transitions by target state.",
		}, []string{"state"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "publishes_total",
			Help:      "Publish attempts by result (sent, dropped, failed).",
		}, []string{"result"}),
		logsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logs",
			Name:      "ingested_total",
			Help:      "Device log lines appended to the log cache.",
		}),
		logsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logs",
			Name:      "dropped_total",
			Help:      "Inbound log messages dropped at parse time.",
		}, []string{"reason"}),
		flushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logs",
			Name:      "flush_failures_total",
			Help:      "Failed writes of the log store to durable storage.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "schedule_fetches_total",
			Help:      "Schedule fetch lifecycle events by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.busState,
		m.busTransitions,
		m.published,
		m.logsIngested,
		m.logsDropped,
		m.flushFailures,
		m.fetches,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) BusState(state string) {
	if m == nil {
		return
	}
	for _, s := range m.busStates {
		m.busState.WithLabelValues(s).Set(0)
	}
	m.busState.WithLabelValues(state).Set(1)
	m.busTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) Published(result string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(result).Inc()
}

func (m *Metrics) LogIngested() {
	if m == nil {
		return
	}
	m.logsIngested.Inc()
}

func (m *Metrics) LogDropped(reason string) {
	if m == nil {
		return
	}
	m.logsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) FlushFailed() {
	if m == nil {
		return
	}
	m.flushFailures.Inc()
}

func (m *Metrics) Fetch(outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
}
