// Package metrics exposes relay counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ConnectionsOpen   prometheus.Gauge
	UsersOnline       prometheus.Gauge
	RoomsOccupied     prometheus.Gauge
	EventsTotal       *prometheus.CounterVec
	EventErrors       *prometheus.CounterVec
	SignalsRelayed    *prometheus.CounterVec
	SignalsDropped    prometheus.Counter
	SlowConnections   prometheus.Counter
	ReconcileFailures prometheus.Counter
}

// New registers the relay metrics on reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionsOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_connections_open",
			Help: "Authenticated transport connections currently open",
		}),
		UsersOnline: f.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_users_online",
			Help: "Users with at least one open connection",
		}),
		RoomsOccupied: f.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_rooms_occupied",
			Help: "Rooms with at least one present user",
		}),
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_events_total",
			Help: "Inbound events processed, by type",
		}, []string{"event"}),
		EventErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_event_errors_total",
			Help: "Inbound events that ended in an error, by error kind",
		}, []string{"kind"}),
		SignalsRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_signals_relayed_total",
			Help: "Negotiation payloads delivered, by signal kind",
		}, []string{"kind"}),
		SignalsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "huddle_signals_dropped_total",
			Help: "Negotiation payloads dropped because the target was offline",
		}),
		SlowConnections: f.NewCounter(prometheus.CounterOpts{
			Name: "huddle_slow_connections_total",
			Help: "Frames refused by a full connection send buffer",
		}),
		ReconcileFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "huddle_reconcile_failures_total",
			Help: "Per-room cleanup failures during disconnect reconciliation",
		}),
	}
}

func (m *Metrics) Event(name string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(name).Inc()
}

func (m *Metrics) EventError(kind string) {
	if m == nil {
		return
	}
	m.EventErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) Signal(kind string, delivered bool) {
	if m == nil {
		return
	}
	if !delivered {
		m.SignalsDropped.Inc()
		return
	}
	m.SignalsRelayed.WithLabelValues(kind).Inc()
}

func (m *Metrics) Slow(n int) {
	if m == nil || n == 0 {
		return
	}
	m.SlowConnections.Add(float64(n))
}

func (m *Metrics) ReconcileFailed(n int) {
	if m == nil || n == 0 {
		return
	}
	m.ReconcileFailures.Add(float64(n))
}

// Occupancy refreshes the gauges from the registry and tracker counts.
func (m *Metrics) Occupancy(users, conns, rooms int) {
	if m == nil {
		return
	}
	m.UsersOnline.Set(float64(users))
	m.ConnectionsOpen.Set(float64(conns))
	m.RoomsOccupied.Set(float64(rooms))
}
