package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/relaychat/internal/chat"
)

// Metrics holds the relay's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	connections prometheus.Gauge
	sessions    prometheus.Gauge
	history     prometheus.Gauge
	rateWindows prometheus.Gauge

	events    *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	dropped   prometheus.Counter
	throttled prometheus.Counter
	recovered prometheus.Counter
}

// NewMetrics registers the relay collectors, plus the Go runtime and process
// collectors, on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaychat",
			Name:      "connections",
			Help:      "Open WebSocket connections, joined or not.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaychat",
			Name:      "sessions",
			Help:      "Connections that have joined under a username.",
		}),
		history: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaychat",
			Name:      "history_messages",
			Help:      "Public messages currently retained.",
		}),
		rateWindows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relaychat",
			Name:      "rate_windows",
			Help:      "Tracked per-connection rate limit windows.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaychat",
			Name:      "inbound_events_total",
			Help:      "Decoded inbound events by type.",
		}, []string{"type"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relaychat",
			Name:      "rejected_events_total",
			Help:      "Error events sent to clients by code.",
		}, []string{"code"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relaychat",
			Name:      "dropped_deliveries_total",
			Help:      "Frames not queued because the client buffer was full.",
		}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relaychat",
			Name:      "handshakes_throttled_total",
			Help:      "WebSocket upgrades refused with 429.",
		}),
		recovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relaychat",
			Name:      "recovered_panics_total",
			Help:      "Panics recovered while applying an event.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections, m.sessions, m.history, m.rateWindows,
		m.events, m.rejected, m.dropped, m.throttled, m.recovered,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(s chat.Stats) {
	m.connections.Set(float64(s.Connections))
	m.sessions.Set(float64(s.Sessions))
	m.history.Set(float64(s.History))
	m.rateWindows.Set(float64(s.RateWindows))
}

func (m *Metrics) countDelivery(d chat.Delivery) {
	if p, ok := d.Event.Payload.(chat.ErrorPayload); ok {
		m.rejected.WithLabelValues(p.Code).Inc()
	}
}
