// Package prometheus provides the Prometheus-backed implementation of the
// metrics interfaces.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mcastelli/amqp10/pkg/metrics"
)

// engineMetrics is the Prometheus implementation of metrics.Engine.
type engineMetrics struct {
	connectionsOpened prometheus.Counter
	connectionsClosed prometheus.Counter
	sessionsActive    prometheus.Gauge
	framesSent        *prometheus.CounterVec
	framesReceived    *prometheus.CounterVec
	framesDropped     *prometheus.CounterVec
	frameSentBytes    prometheus.Histogram
	frameRecvBytes    prometheus.Histogram
}

// NewEngineMetrics creates a new Prometheus-backed metrics.Engine.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// the engine treats as disabled with zero overhead.
func NewEngineMetrics() metrics.Engine {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	frameSizeBuckets := []float64{
		16,    // keepalive / bare performatives
		64,    // flow, disposition
		256,   // begin, attach
		1024,  // small transfers
		4096,  // typical transfers
		16384,
		65536, // max-frame-size default
	}

	return &engineMetrics{
		connectionsOpened: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "amqp10_connections_opened_total",
				Help: "Total number of connections successfully opened",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "amqp10_connections_closed_total",
				Help: "Total number of connections closed",
			},
		),
		sessionsActive: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "amqp10_sessions_active",
				Help: "Number of sessions currently holding a channel",
			},
		),
		framesSent: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "amqp10_frames_sent_total",
				Help: "Total frames sent by performative",
			},
			[]string{"performative"},
		),
		framesReceived: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "amqp10_frames_received_total",
				Help: "Total frames received by performative",
			},
			[]string{"performative"},
		),
		framesDropped: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "amqp10_frames_dropped_total",
				Help: "Total inbound frames dropped as protocol anomalies, by reason",
			},
			[]string{"reason"},
		),
		frameSentBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "amqp10_frame_sent_bytes",
				Help:    "Distribution of sent frame sizes",
				Buckets: frameSizeBuckets,
			},
		),
		frameRecvBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "amqp10_frame_received_bytes",
				Help:    "Distribution of received frame sizes",
				Buckets: frameSizeBuckets,
			},
		),
	}
}

func (m *engineMetrics) ConnectionOpened() {
	m.connectionsOpened.Inc()
}

func (m *engineMetrics) ConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *engineMetrics) SessionBegun() {
	m.sessionsActive.Inc()
}

func (m *engineMetrics) SessionEnded() {
	m.sessionsActive.Dec()
}

func (m *engineMetrics) FrameSent(performative string, bytes int) {
	m.framesSent.WithLabelValues(performative).Inc()
	m.frameSentBytes.Observe(float64(bytes))
}

func (m *engineMetrics) FrameReceived(performative string, bytes int) {
	m.framesReceived.WithLabelValues(performative).Inc()
	m.frameRecvBytes.Observe(float64(bytes))
}

func (m *engineMetrics) FrameDropped(reason string) {
	m.framesDropped.WithLabelValues(reason).Inc()
}
