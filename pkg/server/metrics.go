package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. Each Server owns
// its own registry so multiple servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive  prometheus.Gauge
	SessionsTotal   prometheus.Counter
	SessionsResumed prometheus.Counter
	SessionsExpired prometheus.Counter

	RendersTotal    prometheus.Counter
	EventsTotal     prometheus.Counter
	EventErrors     prometheus.Counter
	PatchesSent     prometheus.Counter
	PatchBytesSent  prometheus.Counter
	FramesReceived  prometheus.Counter
	ResyncsSent     prometheus.Counter
	HandlerPanics   prometheus.Counter
	EventQueueDrops prometheus.Counter
}

// NewMetrics creates the collector set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "raven_sessions_active",
			Help: "Number of live sessions currently held in memory.",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "raven_sessions_created_total",
			Help: "Total sessions created.",
		}),
		SessionsResumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "raven_sessions_resumed_total",
			Help: "Sessions resumed after a disconnect.",
		}),
		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "raven_sessions_expired_total",
			Help: "Sessions evicted after the resume window elapsed.",
		}),
		RendersTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "raven_renders_total",
			Help: "Component tree renders, cold and live.",
		}),
		EventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "raven_events_total",
			Help: "Client events dispatched into handlers.",
		}),
		EventErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "raven_event_errors_total",
			Help: "Events rejected before dispatch (bad token, decode error).",
		}),
		PatchesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "raven_patches_sent_total",
			Help: "Individual patches pushed to clients.",
		}),
		PatchBytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "raven_patch_bytes_sent_total",
			Help: "Encoded patch frame bytes pushed to clients.",
		}),
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "raven_frames_received_total",
			Help: "Binary frames received over WebSocket.",
		}),
		ResyncsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "raven_resyncs_sent_total",
			Help: "Full-markup resyncs sent to clients.",
		}),
		HandlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Name: "raven_handler_panics_total",
			Help: "Event handlers that panicked and were recovered.",
		}),
		EventQueueDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "raven_event_queue_drops_total",
			Help: "Events dropped because a session queue was full.",
		}),
	}
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
