package mockserver

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/duel-legacy/matchmaker/internal/protocol"
	"github.com/duel-legacy/matchmaker/internal/session"
)

const sendBuffer = 64

type player struct {
	id     string
	name   string
	conn   *websocket.Conn
	send   chan []byte
	status session.Presence
	closed bool
}

func newPlayer(conn *websocket.Conn, name string) *player {
	p := &player{
		id:     uuid.NewString(),
		name:   name,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		status: session.PresenceIdle,
	}
	go p.writePump()
	return p
}

func (p *player) writePump() {
	defer p.conn.Close()
	for msg := range p.send {
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Hub tracks connected players and the FIFO queue. Once MatchAfter players
// are waiting the two at the head are paired.
type Hub struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	players map[*player]struct{}
	queue   []*player
}

func newHub(cfg Config, logger *slog.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		players: make(map[*player]struct{}),
	}
}

func (h *Hub) add(conn *websocket.Conn, name string) *player {
	p := newPlayer(conn, name)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.players[p] = struct{}{}
	h.logger.Info("player connected", "player", p.name, "player_id", p.id, "online", len(h.players))
	h.broadcastRosterLocked()
	return p
}

func (h *Hub) remove(p *player) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.players[p]; !ok {
		return
	}
	delete(h.players, p)
	h.dequeueLocked(p)
	if !p.closed {
		p.closed = true
		close(p.send)
	}
	h.logger.Info("player disconnected", "player", p.name, "player_id", p.id, "online", len(h.players))
	h.broadcastRosterLocked()
}

func (h *Hub) handle(p *player, cmd protocol.Command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch cmd.Type {
	case protocol.MsgPing:
		h.sendLocked(p, protocol.Heartbeat{})
	case protocol.MsgJoinQueue:
		h.joinLocked(p)
	case protocol.MsgLeaveQueue:
		if h.dequeueLocked(p) {
			h.logger.Info("player left queue", "player", p.name)
		}
		h.sendLocked(p, protocol.QueueLeft{})
	}
}

func (h *Hub) joinLocked(p *player) {
	if i := slices.Index(h.queue, p); i >= 0 {
		h.sendLocked(p, protocol.QueueJoined{Position: i + 1})
		return
	}
	// Queueing again means the last duel is over.
	if p.status == session.PresenceInMatch {
		p.status = session.PresenceIdle
		h.broadcastRosterLocked()
	}
	h.queue = append(h.queue, p)
	h.logger.Info("player joined queue", "player", p.name, "position", len(h.queue))
	h.sendLocked(p, protocol.QueueJoined{Position: len(h.queue)})

	if len(h.queue) >= h.cfg.MatchAfter {
		h.pairLocked()
	}
}

func (h *Hub) pairLocked() {
	a, b := h.queue[0], h.queue[1]
	h.queue = slices.Delete(h.queue, 0, 2)

	match := session.MatchInfo{
		RoomPassword:  roomPassword(),
		ServerAddress: h.cfg.DuelHost,
		ServerPort:    h.cfg.DuelPort,
	}
	for _, pair := range [][2]*player{{a, b}, {b, a}} {
		m := match
		m.Opponent = pair[1].name
		pair[0].status = session.PresenceInMatch
		h.sendLocked(pair[0], protocol.MatchFound{Match: m})
	}
	h.logger.Info("match made", "a", a.name, "b", b.name, "addr", match.Addr())

	h.sendPositionsLocked()
	h.broadcastRosterLocked()
}

// dequeueLocked removes p from the queue and tells the players behind it
// their new positions.
func (h *Hub) dequeueLocked(p *player) bool {
	i := slices.Index(h.queue, p)
	if i < 0 {
		return false
	}
	h.queue = slices.Delete(h.queue, i, i+1)
	h.sendPositionsLocked()
	return true
}

func (h *Hub) sendPositionsLocked() {
	for i, q := range h.queue {
		h.sendLocked(q, protocol.QueueJoined{Position: i + 1})
	}
}

func (h *Hub) broadcastRosterLocked() {
	users := make([]session.RosterEntry, 0, len(h.players))
	for p := range h.players {
		users = append(users, session.RosterEntry{Username: p.name, Status: p.status})
	}
	slices.SortFunc(users, func(a, b session.RosterEntry) int {
		return strings.Compare(a.Username, b.Username)
	})
	for p := range h.players {
		h.sendLocked(p, protocol.RosterUpdated{Users: users})
	}
}

func (h *Hub) sendLocked(p *player, ev protocol.Event) {
	if p.closed {
		return
	}
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		h.logger.Error("encode event", "type", ev.Type(), "error", err)
		return
	}
	select {
	case p.send <- data:
	default:
		// Too slow. Closing the socket ends its read loop, which removes it.
		h.logger.Warn("player too slow, disconnecting", "player", p.name)
		p.conn.Close()
	}
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Online int
	Queued int
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Online: len(h.players), Queued: len(h.queue)}
}

func roomPassword() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uuid.NewString()[:8]
	}
	return hex.EncodeToString(b[:])
}
