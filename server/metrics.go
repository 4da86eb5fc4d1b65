package server

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ChannelMetrics counts what happened in one channel. Written by the loop,
// read by the admin console.
type ChannelMetrics struct {
	Rounds      int64
	Ticks       int64
	Snapshots   int64
	GameOvers   int64
	TotalTickNs int64
}

// Counter updates, safe for concurrent use.
func (m *ChannelMetrics) IncRounds()    { atomic.AddInt64(&m.Rounds, 1) }
func (m *ChannelMetrics) IncGameOvers() { atomic.AddInt64(&m.GameOvers, 1) }
func (m *ChannelMetrics) AddSnapshots(n int) {
	atomic.AddInt64(&m.Snapshots, int64(n))
}
func (m *ChannelMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.Ticks, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot returns a read-only copy for JSON output.
func (m *ChannelMetrics) Snapshot() map[string]any {
	ticks := atomic.LoadInt64(&m.Ticks)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if ticks > 0 {
		avgMs = float64(total) / float64(ticks) / 1e6
	}
	return map[string]any{
		"rounds":      atomic.LoadInt64(&m.Rounds),
		"ticks":       ticks,
		"snapshots":   atomic.LoadInt64(&m.Snapshots),
		"game_overs":  atomic.LoadInt64(&m.GameOvers),
		"avg_tick_ms": avgMs,
	}
}

// Drop reasons used with Metrics.Dropped.
const (
	dropMalformed   = "malformed"
	dropQueueFull   = "queue_full"
	dropPeerClosed  = "peer_closed"
	dropUnknownPeer = "unknown_peer"
	dropRejected    = "rejected"
)

// Metrics are the process-wide Prometheus collectors of the server.
type Metrics struct {
	Ticks        prometheus.Counter
	Behind       prometheus.Counter
	TickDuration prometheus.Histogram
	Packets      *prometheus.CounterVec
	Dropped      *prometheus.CounterVec
	Rounds       prometheus.Counter
	Players      prometheus.Gauge
	Channels     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tetriq_ticks_total",
			Help: "Server loop iterations",
		}),
		Behind: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tetriq_tick_behind_total",
			Help: "Iterations that started after their deadline",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tetriq_tick_duration_seconds",
			Help:    "Time spent in one loop iteration",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		Packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tetriq_packets_total",
			Help: "Packets by kind and direction",
		}, []string{"kind", "direction"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tetriq_packets_dropped_total",
			Help: "Packets dropped, by reason",
		}, []string{"reason"}),
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tetriq_rounds_total",
			Help: "Rounds started across all channels",
		}),
		Players: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tetriq_players",
			Help: "Connected players",
		}),
		Channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tetriq_channels",
			Help: "Open channels",
		}),
	}
	reg.MustRegister(m.Ticks, m.Behind, m.TickDuration, m.Packets, m.Dropped, m.Rounds, m.Players, m.Channels)
	return m
}

func (m *Metrics) observeTick(d time.Duration) {
	m.Ticks.Inc()
	m.TickDuration.Observe(d.Seconds())
}
