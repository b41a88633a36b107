package debug

import (
	"strings"
	"testing"
	"time"

	"github.com/duel-legacy/matchmaker/internal/session"
)

var at = time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)

func TestMaxEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Add(at, KindUser, "msg")
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("len(Entries) = %d, want %d", len(m.Entries), maxEntries)
	}
}

func TestScroll(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.Add(at, KindUser, "msg")
	}
	m.ScrollUp(3)
	if m.Offset != 3 {
		t.Errorf("Offset = %d, want 3", m.Offset)
	}
	m.ScrollUp(100)
	if m.Offset != 4 {
		t.Errorf("Offset = %d, want capped at 4", m.Offset)
	}
	m.ScrollDown(10)
	if m.Offset != 0 {
		t.Errorf("Offset = %d, want 0", m.Offset)
	}

	m.ScrollUp(2)
	m.Add(at, KindUser, "new")
	if m.Offset != 0 {
		t.Error("Add did not scroll to the bottom")
	}
}

func TestRecord(t *testing.T) {
	pos := 4
	start := at
	queued := session.State{
		Connection:      session.Connected,
		Queue:           session.Queued,
		QueuePosition:   &pos,
		SearchStartedAt: &start,
	}

	tests := []struct {
		name       string
		prev, next session.State
		want       []string
	}{
		{
			name: "connect",
			prev: session.State{},
			next: session.State{Connection: session.Connecting},
			want: []string{"disconnected -> connecting"},
		},
		{
			name: "queued",
			prev: session.State{Connection: session.Connected},
			next: queued,
			want: []string{"queued at #4"},
		},
		{
			name: "timed out",
			prev: queued,
			next: session.State{Connection: session.Connected, SearchTimedOut: true},
			want: []string{"left queue", "search timed out"},
		},
		{
			name: "matched",
			prev: queued,
			next: session.State{
				Connection: session.Connected,
				Match:      &session.MatchInfo{Opponent: "bob", ServerAddress: "10.0.0.2", ServerPort: 7911},
			},
			want: []string{"vs bob at 10.0.0.2:7911"},
		},
		{
			name: "error",
			prev: session.State{},
			next: session.State{LastError: "Not connected to matchmaking service"},
			want: []string{"Not connected to matchmaking service"},
		},
		{
			name: "no change",
			prev: queued,
			next: queued,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.Record(at, tt.prev, tt.next)
			if len(m.Entries) != len(tt.want) {
				t.Fatalf("entries = %+v, want %q", m.Entries, tt.want)
			}
			for i, w := range tt.want {
				if m.Entries[i].Message != w {
					t.Errorf("entry %d = %q, want %q", i, m.Entries[i].Message, w)
				}
			}
		})
	}
}

func TestView(t *testing.T) {
	m := New()
	if v := m.View(80, 20); !strings.Contains(v, "Nothing has happened") {
		t.Errorf("empty view:\n%s", v)
	}

	m.Add(at, KindConn, "connected")
	m.Add(at, KindError, "boom")
	v := m.View(80, 20)
	for _, want := range []string{"connected", "boom", "09:30:00.000"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
