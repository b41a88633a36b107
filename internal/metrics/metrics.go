// Package metrics exposes Prometheus collectors for the matchmaking client.
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/duel-legacy/matchmaker/internal/session"
)

type Config struct {
	// Namespace is the metrics namespace (default: "matchmaker").
	Namespace string

	// Registry is where collectors are registered.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

type Metrics struct {
	reconnectAttempts  prometheus.Counter
	reconnectExhausted prometheus.Counter
	framesReceived     *prometheus.CounterVec
	framesDropped      *prometheus.CounterVec
	framesSent         *prometheus.CounterVec
	queueJoins         prometheus.Counter
	searchTimeouts     prometheus.Counter
	matchesFound       prometheus.Counter
	connectionState    prometheus.Gauge
}

func New(opts ...Option) *Metrics {
	cfg := Config{
		Namespace: "matchmaker",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		reconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "conn",
			Name:      "reconnect_attempts_total",
			Help:      "Automatic reconnect attempts scheduled after abnormal closure",
		}),
		reconnectExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "conn",
			Name:      "reconnect_exhausted_total",
			Help:      "Times the reconnect budget ran out",
		}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "protocol",
			Name:      "frames_received_total",
			Help:      "Decoded inbound frames by type",
		}, []string{"type"}),
		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "protocol",
			Name:      "frames_dropped_total",
			Help:      "Inbound frames dropped by reason",
		}, []string{"reason"}),
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "protocol",
			Name:      "frames_sent_total",
			Help:      "Outbound frames by type",
		}, []string{"type"}),
		queueJoins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "queue",
			Name:      "joins_total",
			Help:      "Queue joins acknowledged by the server",
		}),
		searchTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "queue",
			Name:      "search_timeouts_total",
			Help:      "Searches abandoned by the search timeout",
		}),
		matchesFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "queue",
			Name:      "matches_found_total",
			Help:      "Matches produced by the server",
		}),
		connectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "conn",
			Name:      "state",
			Help:      "Connection state (0 disconnected, 1 connecting, 2 connected)",
		}),
	}
}

func (m *Metrics) ReconnectScheduled() {
	if m != nil {
		m.reconnectAttempts.Inc()
	}
}

func (m *Metrics) ReconnectExhausted() {
	if m != nil {
		m.reconnectExhausted.Inc()
	}
}

func (m *Metrics) FrameReceived(frameType string) {
	if m != nil {
		m.framesReceived.WithLabelValues(frameType).Inc()
	}
}

// FrameDropped records a rejected inbound frame. reason is "malformed",
// "unknown_type" or "stale".
func (m *Metrics) FrameDropped(reason string) {
	if m != nil {
		m.framesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) FrameSent(frameType string) {
	if m != nil {
		m.framesSent.WithLabelValues(frameType).Inc()
	}
}

func (m *Metrics) QueueJoined() {
	if m != nil {
		m.queueJoins.Inc()
	}
}

func (m *Metrics) SearchTimedOut() {
	if m != nil {
		m.searchTimeouts.Inc()
	}
}

func (m *Metrics) MatchFound() {
	if m != nil {
		m.matchesFound.Inc()
	}
}

func (m *Metrics) SetConnection(status session.ConnectionStatus) {
	if m != nil {
		m.connectionState.Set(float64(status))
	}
}
