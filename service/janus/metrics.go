package janus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	state     prometheus.Gauge
	epoch     prometheus.Gauge
	pending   prometheus.Gauge
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	reconnect prometheus.Counter
	events    *prometheus.CounterVec
	malformed prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg (prometheus.DefaultRegisterer when nil).
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "janusbridge"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "engine_state",
			Help: "Connection state: 0 disconnected, 1 connecting, 2 bootstrapping, 3 connected, 4 stopped.",
		}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "engine_epoch",
			Help: "Current connection epoch.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pending_transactions",
			Help: "Transactions waiting for a reply.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_total",
			Help: "Gateway requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "request_seconds",
			Help:    "Gateway request round trip.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		reconnect: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconnects_total",
			Help: "Connection attempts after the first.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total",
			Help: "Unsolicited gateway events by result.",
		}, []string{"result"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "malformed_frames_total",
			Help: "Inbound frames dropped because they could not be decoded.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.state, m.epoch, m.pending, m.requests, m.latency, m.reconnect, m.events, m.malformed,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}

func (m *Metrics) setEpoch(e uint64) {
	if m != nil {
		m.epoch.Set(float64(e))
	}
}

func (m *Metrics) setPending(n int) {
	if m != nil {
		m.pending.Set(float64(n))
	}
}

func (m *Metrics) observeRequest(kind CommandKind, outcome string, took time.Duration) {
	if m != nil {
		m.requests.WithLabelValues(string(kind), outcome).Inc()
		m.latency.WithLabelValues(string(kind)).Observe(took.Seconds())
	}
}

func (m *Metrics) incReconnect() {
	if m != nil {
		m.reconnect.Inc()
	}
}

func (m *Metrics) incEvent(result string) {
	if m != nil {
		m.events.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) incMalformed() {
	if m != nil {
		m.malformed.Inc()
	}
}
