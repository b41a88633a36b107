// Package app is the Bubble Tea front end for the matchmaking session.
package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/duel-legacy/matchmaker/internal/session"
	"github.com/duel-legacy/matchmaker/internal/theme"
	"github.com/duel-legacy/matchmaker/internal/views/debug"
	"github.com/duel-legacy/matchmaker/internal/views/status"
)

// Controller is the part of the session controller the UI drives.
type Controller interface {
	RequestConnect(token string)
	RequestDisconnect()
	RequestJoinQueue()
	RequestLeaveQueue()
	AckSearchTimeout()
	ConsumeMatch(m session.MatchInfo)
	Snapshot() session.State
}

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayMatch
)

type (
	stateMsg   session.State
	tickMsg    time.Time
	closedMsg  struct{}
	requestMsg struct{}
)

const tickInterval = time.Second

// Model is the root Bubble Tea model.
type Model struct {
	ctl     Controller
	updates <-chan session.State
	token   string
	now     func() time.Time

	keys   KeyMap
	help   help.Model
	width  int
	height int

	state   session.State
	overlay Overlay
	handoff *session.MatchInfo
	notice  string

	statusBar status.Model
	log       debug.Model
}

// New creates the root model. updates is a subscription to ctl's state.
func New(ctl Controller, updates <-chan session.State, token string) Model {
	m := Model{
		ctl:       ctl,
		updates:   updates,
		token:     token,
		now:       time.Now,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		statusBar: status.New(),
		log:       debug.New(),
	}
	if ctl != nil {
		m.state = ctl.Snapshot()
		m.statusBar.State = m.state
	}
	return m
}

// Init connects and starts listening for state changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.request(func() { m.ctl.RequestConnect(m.token) }), m.waitForState(), tick())
}

func (m Model) waitForState() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return stateMsg(s)
	}
}

func (m Model) request(f func()) tea.Cmd {
	return func() tea.Msg {
		f()
		return requestMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.statusBar.Now = time.Time(msg)
		return m, tick()

	case stateMsg:
		return m.applyState(session.State(msg))

	case closedMsg:
		m.notice = "Session closed"
		return m, nil
	}

	return m, nil
}

func (m Model) applyState(next session.State) (tea.Model, tea.Cmd) {
	now := m.now()
	m.log.Record(now, m.state, next)
	m.state = next
	m.statusBar.State = next
	m.statusBar.Now = now

	cmds := []tea.Cmd{m.waitForState()}
	if next.SearchTimedOut {
		m.notice = fmt.Sprintf("No opponent found. Press %s to search again.", m.keys.Join.Help().Key)
		cmds = append(cmds, m.request(m.ctl.AckSearchTimeout))
	}
	if next.Match != nil {
		match := *next.Match
		m.handoff = &match
		m.overlay = OverlayMatch
		m.notice = ""
		cmds = append(cmds, m.request(func() { m.ctl.ConsumeMatch(match) }))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.log.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.log.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Join):
		if m.state.Connection == session.Connected && !m.state.CanRankQueue() {
			m.notice = "Waiting for another player to come online"
			return m, nil
		}
		m.notice = ""
		m.handoff = nil
		m.log.Add(m.now(), debug.KindUser, "join queue")
		return m, m.request(m.ctl.RequestJoinQueue)

	case key.Matches(msg, m.keys.Leave):
		m.notice = ""
		m.log.Add(m.now(), debug.KindUser, "leave queue")
		return m, m.request(m.ctl.RequestLeaveQueue)

	case key.Matches(msg, m.keys.Connect):
		m.log.Add(m.now(), debug.KindUser, "connect")
		token := m.token
		return m, m.request(func() { m.ctl.RequestConnect(token) })

	case key.Matches(msg, m.keys.Disconnect):
		m.log.Add(m.now(), debug.KindUser, "disconnect")
		return m, m.request(m.ctl.RequestDisconnect)

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil
	}

	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayDebug:
		return m.log.View(m.width, m.height)
	case OverlayMatch:
		return m.renderMatch()
	}

	sections := []string{m.statusBar.View()}
	if m.state.Connection == session.Disconnected {
		sections = append(sections, m.renderDisconnected())
	} else {
		sections = append(sections, m.renderRoster())
	}
	if m.notice != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("  "+m.notice))
	}
	sections = append(sections, "  "+m.help.ShortHelpView(m.keys.ShortHelp()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderDisconnected() string {
	lines := []string{theme.StyleHeader.Render("  DISCONNECTED")}
	if m.state.LastError != "" {
		lines = append(lines, theme.StyleError.Render("  "+m.state.LastError))
	}
	lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("  Press %s to connect.", m.keys.Connect.Help().Key)))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderRoster() string {
	lines := []string{theme.StyleHeader.Render("=== ONLINE ===")}
	for _, e := range m.state.Roster {
		dot := lipgloss.NewStyle().Foreground(theme.PresenceColor(string(e.Status))).Render("●")
		lines = append(lines, fmt.Sprintf("  %s %s  %s", dot, e.Username, theme.StyleDimmed.Render(string(e.Status))))
	}
	if len(m.state.Roster) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  Nobody online"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderMatch() string {
	if m.handoff == nil {
		return ""
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.StyleHeader.Render(" MATCH FOUND "),
		"",
		"Opponent: "+lipgloss.NewStyle().Foreground(theme.ColorMatched).Render(m.handoff.Opponent),
		"Server:   "+m.handoff.Addr(),
		"Room:     "+m.handoff.RoomPassword,
		"",
		theme.StyleDimmed.Render("esc:close"),
	)
	return theme.StyleBorder.Padding(1, 2).Render(content)
}
