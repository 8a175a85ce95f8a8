package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus collectors for the relay and the voice client.
type Metrics struct {
	registry *prometheus.Registry

	// Relay sessions
	ActiveSessions   prometheus.Gauge
	SessionsOpened   prometheus.Counter
	SessionsClosed   *prometheus.CounterVec
	UpstreamDialTime prometheus.Histogram
	MessagesRelayed  *prometheus.CounterVec
	MessagesQueued   prometheus.Counter
	MessagesDropped  *prometheus.CounterVec
	RejectedPaths    prometheus.Counter

	// Playback engine
	Callbacks        prometheus.Counter
	ClippedSamples   prometheus.Counter
	ResidentTracks   prometheus.Gauge
	Interrupts       *prometheus.CounterVec
	InterruptWait    prometheus.Histogram
	CallbackFailures prometheus.Counter

	// Capture
	FramesCaptured prometheus.Counter
	FramesDropped  prometheus.Counter
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicerelay_active_sessions",
			Help: "Current number of relay sessions",
		}),
		SessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_sessions_opened_total",
			Help: "Total number of accepted relay sessions",
		}),
		SessionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicerelay_sessions_closed_total",
			Help: "Total number of closed relay sessions by reason",
		}, []string{"reason"}),
		UpstreamDialTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicerelay_upstream_dial_seconds",
			Help:    "Time spent establishing upstream connections",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}),
		MessagesRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicerelay_messages_relayed_total",
			Help: "Total number of relayed messages by direction",
		}, []string{"direction"}),
		MessagesQueued: f.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_messages_queued_total",
			Help: "Total number of inbound messages queued before upstream connect",
		}),
		MessagesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicerelay_messages_dropped_total",
			Help: "Total number of dropped messages by reason",
		}, []string{"reason"}),
		RejectedPaths: f.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_rejected_connections_total",
			Help: "Total number of connections rejected by the path guard",
		}),

		Callbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_playback_callbacks_total",
			Help: "Total number of output device callbacks",
		}),
		ClippedSamples: f.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_playback_clipped_samples_total",
			Help: "Total number of mixed samples saturated to the int16 range",
		}),
		ResidentTracks: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicerelay_playback_resident_tracks",
			Help: "Tracks currently held by the mixer",
		}),
		Interrupts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicerelay_interrupts_total",
			Help: "Total number of interrupt requests by outcome",
		}, []string{"outcome"}),
		InterruptWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicerelay_interrupt_wait_seconds",
			Help:    "Time from interrupt request to resolution",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		}),
		CallbackFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_playback_callback_failures_total",
			Help: "Total number of output callbacks that failed and played silence",
		}),

		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_capture_frames_total",
			Help: "Total number of captured PCM frames",
		}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "voicerelay_capture_frames_dropped_total",
			Help: "Total number of captured frames dropped on backpressure",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the private registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
