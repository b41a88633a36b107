// Package debug provides a scrollable overlay of session transitions.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/duel-legacy/matchmaker/internal/session"
	"github.com/duel-legacy/matchmaker/internal/theme"
)

const maxEntries = 200

// Entry kinds.
const (
	KindConn  = "conn"
	KindQueue = "queue"
	KindMatch = "match"
	KindError = "err"
	KindUser  = "user"
)

type Entry struct {
	Time    time.Time
	Kind    string
	Message string
}

// Model holds the transition log.
type Model struct {
	Entries []Entry
	Offset  int // from the bottom
}

func New() Model {
	return Model{}
}

// Add appends an entry, caps the buffer and scrolls to the bottom.
func (m *Model) Add(at time.Time, kind, message string) {
	m.Entries = append(m.Entries, Entry{Time: at, Kind: kind, Message: message})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// Record logs what changed between two snapshots.
func (m *Model) Record(at time.Time, prev, next session.State) {
	if prev.Connection != next.Connection {
		m.Add(at, KindConn, fmt.Sprintf("%s -> %s", prev.Connection, next.Connection))
	}
	switch {
	case next.Queue == session.Queued && prev.Queue != session.Queued:
		m.Add(at, KindQueue, fmt.Sprintf("queued at #%d", deref(next.QueuePosition)))
	case next.Queue == session.Queued && deref(prev.QueuePosition) != deref(next.QueuePosition):
		m.Add(at, KindQueue, fmt.Sprintf("position #%d", deref(next.QueuePosition)))
	case next.Queue != session.Queued && prev.Queue == session.Queued && next.Match == nil:
		m.Add(at, KindQueue, "left queue")
	}
	if next.SearchTimedOut && !prev.SearchTimedOut {
		m.Add(at, KindQueue, "search timed out")
	}
	if next.Match != nil && prev.Match == nil {
		m.Add(at, KindMatch, fmt.Sprintf("vs %s at %s", next.Match.Opponent, next.Match.Addr()))
	}
	if next.LastError != "" && next.LastError != prev.LastError {
		m.Add(at, KindError, next.LastError)
	}
	if len(prev.Roster) != len(next.Roster) {
		m.Add(at, KindConn, fmt.Sprintf("%d online", len(next.Roster)))
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visible := max(height-6, 3)

	title := theme.StyleHeader.Render(" SESSION LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing has happened yet.")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-visible, 0)

	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(5).Render(e.Kind)
		msg := e.Message
		if limit := innerW - 22; limit > 3 && len(msg) > limit {
			msg = msg[:limit-3] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", ts, kind, msg))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help)
	return panelStyle(innerW).Render(content)
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindConn:
		return theme.ColorConnected
	case KindQueue:
		return theme.ColorSearching
	case KindMatch:
		return theme.ColorMatched
	case KindError:
		return theme.ColorDanger
	default:
		return theme.ColorDimmed
	}
}
