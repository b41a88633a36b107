package status

import (
	"strings"
	"testing"
	"time"

	"github.com/duel-legacy/matchmaker/internal/session"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{5 * time.Second, "0:05"},
		{90 * time.Second, "1:30"},
		{-time.Second, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.in); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestViewQueued(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pos := 3
	m := New()
	m.Width = 100
	m.Now = start.Add(12 * time.Second)
	m.State = session.State{
		Connection:      session.Connected,
		Queue:           session.Queued,
		QueuePosition:   &pos,
		SearchStartedAt: &start,
	}

	v := m.View()
	for _, want := range []string{"Connected", "Searching #3", "0:12"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}

func TestViewShowsErrorAndMatch(t *testing.T) {
	m := New()
	m.Width = 120
	m.State = session.State{
		Connection: session.Disconnected,
		LastError:  "Connection lost",
		Match:      &session.MatchInfo{Opponent: "bob"},
	}

	v := m.View()
	for _, want := range []string{"Disconnected", "Connection lost", "Match vs bob"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}
