package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActivePlaylists is the number of playlists with live state.
	ActivePlaylists = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playsync_active_playlists",
		Help: "Playlists currently held in the registry.",
	})

	// Subscribers is the number of subscriptions across all playlists.
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playsync_subscribers",
		Help: "Subscriber handles across all playlists.",
	})

	// Connections is the number of open event connections.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playsync_ws_connections",
		Help: "Open websocket connections.",
	})

	// Broadcasts counts status messages by kind (broadcast, unicast, teardown).
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playsync_status_messages_total",
		Help: "Status messages fanned out.",
	}, []string{"kind"})

	// SendFailures counts per-subscriber transport failures.
	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playsync_send_failures_total",
		Help: "Status sends that failed for a single subscriber.",
	})

	// Commands counts inbound commands by type and outcome.
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playsync_commands_total",
		Help: "Inbound event commands.",
	}, []string{"type", "result"})

	// Advances counts auto-advance outcomes (next, teardown, error).
	Advances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playsync_advances_total",
		Help: "Auto-advance decisions taken by the tick.",
	}, []string{"result"})

	// TickStalls counts playlists observed stuck past the stall threshold.
	TickStalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playsync_tick_stalls_total",
		Help: "Playlists whose actor was busy longer than the stall threshold.",
	})

	// TickDuration observes the time to dispatch one sweep.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "playsync_tick_dispatch_seconds",
		Help:    "Time spent dispatching one tick sweep.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
	})

	// PendingDeletions is the size of the deferred deletion set.
	PendingDeletions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playsync_pending_deletions",
		Help: "Media ids waiting for deferred deletion.",
	})

	// HTTPRequests counts management requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playsync_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes management request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playsync_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
