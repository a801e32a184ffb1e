package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of the realtime core. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Connections  prometheus.Gauge
	Registry     *prometheus.CounterVec
	Broadcasts   prometheus.Counter
	Pushes       *prometheus.CounterVec
	StoreErrors  *prometheus.CounterVec
	MessagesSent prometheus.Counter
	gatherer     prometheus.Gatherer
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Active websocket connections",
		}),
		Registry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presence_registry_events_total",
			Help: "Connection registry transitions by kind",
		}, []string{"kind"}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "presence_broadcasts_total",
			Help: "Presence snapshots fanned out to every live connection",
		}),
		Pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_pushes_total",
			Help: "Events pushed to live connections by type and outcome",
		}, []string{"type", "outcome"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Conversation store failures by operation",
		}, []string{"op"}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Messages durably stored",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.Connections, m.Registry, m.Broadcasts, m.Pushes, m.StoreErrors, m.MessagesSent)
	return m
}

// Handler returns an http.Handler for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) RegistryEvent(kind string) {
	if m != nil {
		m.Registry.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Broadcast() {
	if m != nil {
		m.Broadcasts.Inc()
	}
}

func (m *Metrics) Push(eventType string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.Pushes.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) StoreError(op string) {
	if m != nil {
		m.StoreErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) MessageSent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}
