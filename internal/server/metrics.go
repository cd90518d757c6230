package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// streamMetrics tracks replication stream lifecycle counts. Every started
// stream increments started and active exactly once, and on any exit path
// decrements active and increments stopped exactly once.
type streamMetrics struct {
	active  prometheus.Gauge
	started prometheus.Counter
	stopped prometheus.Counter
}

func newStreamMetrics(reg prometheus.Registerer) *streamMetrics {
	m := &streamMetrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kconfig_streams_active",
			Help: "Number of currently connected replication streams.",
		}),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kconfig_streams_started_total",
			Help: "Total number of replication streams opened.",
		}),
		stopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kconfig_streams_stopped_total",
			Help: "Total number of replication streams closed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.active, m.started, m.stopped)
	}
	return m
}

func (m *streamMetrics) streamStarted() {
	m.started.Inc()
	m.active.Inc()
}

func (m *streamMetrics) streamStopped() {
	m.stopped.Inc()
	m.active.Dec()
}
