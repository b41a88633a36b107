package app

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/duel-legacy/matchmaker/internal/session"
)

type fakeController struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeController) RequestConnect(token string) { f.record("connect:" + token) }
func (f *fakeController) RequestDisconnect()          { f.record("disconnect") }
func (f *fakeController) RequestJoinQueue()           { f.record("join") }
func (f *fakeController) RequestLeaveQueue()          { f.record("leave") }
func (f *fakeController) AckSearchTimeout()           { f.record("ack") }
func (f *fakeController) ConsumeMatch(m session.MatchInfo) {
	f.record("consume:" + m.Opponent)
}
func (f *fakeController) Snapshot() session.State     { return session.State{} }

func (f *fakeController) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// run executes cmd and any batched commands it yields, except ones that
// block on the state subscription or the ticker.
func run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				run(c)
			}
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestModel() (Model, *fakeController) {
	ctl := &fakeController{}
	m := New(ctl, make(chan session.State), "alice")
	m.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	m.width, m.height = 100, 30
	return m, ctl
}

func update(m Model, msg tea.Msg) Model {
	next, cmd := m.Update(msg)
	run(cmd)
	return next.(Model)
}

func press(m Model, k string) Model {
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	}
	return update(m, msg)
}

func hasCall(calls []string, want string) bool {
	for _, c := range calls {
		if c == want {
			return true
		}
	}
	return false
}

var twoOnline = []session.RosterEntry{
	{Username: "alice", Status: session.PresenceIdle},
	{Username: "bob", Status: session.PresenceIdle},
}

func TestInitConnects(t *testing.T) {
	m, ctl := newTestModel()
	run(m.Init())
	if !hasCall(ctl.called(), "connect:alice") {
		t.Errorf("calls = %v", ctl.called())
	}
}

func TestDisconnectedView(t *testing.T) {
	m, _ := newTestModel()
	m = update(m, stateMsg(session.State{LastError: "Connection lost: reconnect attempts exhausted"}))

	v := m.View()
	if !strings.Contains(v, "DISCONNECTED") {
		t.Error("view missing DISCONNECTED")
	}
	if !strings.Contains(v, "reconnect attempts exhausted") {
		t.Error("view missing last error")
	}
}

func TestJoinNeedsTwoPlayers(t *testing.T) {
	m, ctl := newTestModel()
	m = update(m, stateMsg(session.State{
		Connection: session.Connected,
		Roster:     twoOnline[:1],
	}))

	m = press(m, "enter")
	if hasCall(ctl.called(), "join") {
		t.Fatal("join sent with one player online")
	}
	if !strings.Contains(m.View(), "Waiting for another player") {
		t.Error("no waiting notice")
	}

	m = update(m, stateMsg(session.State{Connection: session.Connected, Roster: twoOnline}))
	press(m, "enter")
	if !hasCall(ctl.called(), "join") {
		t.Errorf("calls = %v, want join", ctl.called())
	}
}

func TestLeaveKey(t *testing.T) {
	m, ctl := newTestModel()
	press(m, "l")
	if !hasCall(ctl.called(), "leave") {
		t.Errorf("calls = %v, want leave", ctl.called())
	}
}

func TestSearchTimeoutAcknowledged(t *testing.T) {
	m, ctl := newTestModel()
	m = update(m, stateMsg(session.State{Connection: session.Connected, Roster: twoOnline, SearchTimedOut: true}))

	if !hasCall(ctl.called(), "ack") {
		t.Errorf("calls = %v, want ack", ctl.called())
	}
	if !strings.Contains(m.View(), "No opponent found") {
		t.Error("timeout notice not shown")
	}
}

func TestMatchHandoff(t *testing.T) {
	m, ctl := newTestModel()
	match := &session.MatchInfo{RoomPassword: "pw", ServerAddress: "10.0.0.2", ServerPort: 7911, Opponent: "bob"}
	m = update(m, stateMsg(session.State{Connection: session.Connected, Match: match}))

	if !hasCall(ctl.called(), "consume:bob") {
		t.Errorf("calls = %v, want consume:bob", ctl.called())
	}
	if m.overlay != OverlayMatch {
		t.Fatalf("overlay = %v, want match", m.overlay)
	}
	v := m.View()
	for _, want := range []string{"MATCH FOUND", "bob", "10.0.0.2:7911", "pw"} {
		if !strings.Contains(v, want) {
			t.Errorf("match view missing %q", want)
		}
	}

	// The consumed match stays on screen until dismissed.
	m = update(m, stateMsg(session.State{Connection: session.Connected}))
	if m.overlay != OverlayMatch {
		t.Error("overlay closed when match was consumed")
	}
	m = press(m, "esc")
	if m.overlay != OverlayNone {
		t.Error("esc did not close the overlay")
	}
}

func TestDebugOverlayRecordsTransitions(t *testing.T) {
	m, _ := newTestModel()
	m = update(m, stateMsg(session.State{Connection: session.Connecting}))
	m = update(m, stateMsg(session.State{Connection: session.Connected}))
	m = press(m, "d")

	if m.overlay != OverlayDebug {
		t.Fatalf("overlay = %v, want debug", m.overlay)
	}
	v := m.View()
	if !strings.Contains(v, "connecting -> connected") {
		t.Errorf("debug view missing transition:\n%s", v)
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("no command from quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
