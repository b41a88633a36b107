package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/duel-legacy/matchmaker/internal/session"
)

func TestCounters(t *testing.T) {
	m := New(WithRegistry(prometheus.NewRegistry()))

	m.ReconnectScheduled()
	m.ReconnectScheduled()
	m.ReconnectExhausted()
	m.FrameReceived("queue_joined")
	m.FrameDropped("malformed")
	m.FrameDropped("malformed")
	m.FrameSent("join_queue")
	m.QueueJoined()
	m.SearchTimedOut()
	m.MatchFound()
	m.SetConnection(session.Connected)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"reconnect attempts", m.reconnectAttempts, 2},
		{"reconnect exhausted", m.reconnectExhausted, 1},
		{"frames received", m.framesReceived.WithLabelValues("queue_joined"), 1},
		{"frames dropped", m.framesDropped.WithLabelValues("malformed"), 2},
		{"frames sent", m.framesSent.WithLabelValues("join_queue"), 1},
		{"queue joins", m.queueJoins, 1},
		{"search timeouts", m.searchTimeouts, 1},
		{"matches", m.matchesFound, 1},
		{"connection state", m.connectionState, 2},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg), WithNamespace("duel"))
	m.QueueJoined()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "duel_queue_joins_total" {
			found = true
		}
	}
	if !found {
		t.Error("duel_queue_joins_total not registered")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ReconnectScheduled()
	m.ReconnectExhausted()
	m.FrameReceived("error")
	m.FrameDropped("stale")
	m.FrameSent("ping")
	m.QueueJoined()
	m.SearchTimedOut()
	m.MatchFound()
	m.SetConnection(session.Disconnected)
}
