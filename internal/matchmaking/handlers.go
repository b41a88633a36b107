package matchmaking

import (
	"errors"
	"strings"

	"github.com/duel-legacy/matchmaker/internal/conn"
	"github.com/duel-legacy/matchmaker/internal/protocol"
	"github.com/duel-legacy/matchmaker/internal/session"
)

func (c *Controller) handleConnect(token string) {
	if token == "" {
		c.reject("connect", ErrMissingToken)
		return
	}
	c.transport.Connect(token)
}

func (c *Controller) handleDisconnect() {
	c.transport.Disconnect()
	c.resetSearch()
	c.connID = ""
	c.state = session.State{}
}

func (c *Controller) handleJoin() {
	switch {
	case c.state.Connection != session.Connected:
		c.reject("join", ErrNotConnected)
		return
	case c.state.Queue == session.Queued:
		c.reject("join", ErrAlreadyQueued)
		return
	case c.joinPending:
		c.reject("join", ErrJoinPending)
		return
	}

	if err := c.transport.Send(protocol.JoinQueue); err != nil {
		c.reject("join", err)
		return
	}
	c.joinPending = true
	c.leavePending = false
	c.resyncPending = false
	c.state.SearchTimedOut = false
	c.state.LastError = ""
	c.armSearch()
	c.logger.Info("join requested")
}

// handleLeave is optimistic: local state drops to NotQueued at once and
// the server's queue_left only confirms it.
func (c *Controller) handleLeave() {
	c.disarmSearch()
	c.joinPending = false
	c.clearQueue()

	if c.state.Connection != session.Connected {
		return
	}
	if c.leavePending {
		c.logger.Debug("leave already outstanding")
		return
	}
	if err := c.transport.Send(protocol.LeaveQueue); err != nil {
		c.logger.Warn("send leave failed", "error", err)
		return
	}
	c.leavePending = true
	c.logger.Info("leave requested")
}

func (c *Controller) handleSearchExpired(id uint64) {
	if !c.searchArmed || id != c.searchID {
		c.logger.Debug("ignoring stale search expiry", "search_id", id)
		return
	}
	c.searchArmed = false
	c.joinPending = false
	c.clearQueue()
	c.state.SearchTimedOut = true
	c.metrics.SearchTimedOut()
	c.logger.Info("search timed out", "after", c.timeout.Duration())

	if c.state.Connection != session.Connected || c.leavePending {
		return
	}
	if err := c.transport.Send(protocol.LeaveQueue); err != nil {
		c.logger.Warn("send leave after timeout failed", "error", err)
		return
	}
	c.leavePending = true
}

func (c *Controller) handleTransport(ev conn.Event) {
	switch ev := ev.(type) {
	case conn.Connecting:
		c.state.Connection = session.Connecting
	case conn.Opened:
		c.connID = ev.ConnID
		c.state.Connection = session.Connected
		c.state.LastError = ""
		if ev.Reconnect && c.resync {
			c.resyncQueue()
		}
	case conn.Closed:
		c.connID = ""
		c.resetSearch()
		c.state.Connection = session.Disconnected
		if ev.Exhausted {
			c.state.LastError = msgReconnectExhausted
		}
	case conn.MessageReceived:
		if ev.ConnID == "" || ev.ConnID != c.connID {
			c.metrics.FrameDropped("stale")
			c.logger.Debug("dropping frame from closed connection", "conn_id", ev.ConnID)
			return
		}
		c.handleFrame(ev.Data)
	case conn.TransportError:
		c.logger.Warn("transport error", "conn_id", ev.ConnID, "error", ev.Err)
	}
}

// resyncQueue tells the server to drop any membership from before the
// connection was lost. The client always comes back NotQueued.
func (c *Controller) resyncQueue() {
	if err := c.transport.Send(protocol.LeaveQueue); err != nil {
		c.logger.Warn("resync leave failed", "error", err)
		return
	}
	c.leavePending = true
	c.resyncPending = true
	c.logger.Info("resynced queue membership after reconnect")
}

func (c *Controller) handleFrame(data []byte) {
	ev, err := protocol.Decode(data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, protocol.ErrUnknownType) {
			reason = "unknown_type"
		}
		c.metrics.FrameDropped(reason)
		c.logger.Warn("dropping frame", "reason", reason, "error", err)
		return
	}

	switch ev := ev.(type) {
	case protocol.Heartbeat:
		c.metrics.FrameReceived("pong")
		return
	case protocol.QueueJoined:
		c.onQueueJoined(ev.Position)
	case protocol.QueueLeft:
		c.onQueueLeft()
	case protocol.MatchFound:
		c.onMatchFound(ev.Match)
	case protocol.RosterUpdated:
		c.state.Roster = ev.Users
	case protocol.ErrorReceived:
		c.onServerError(ev.Message)
	}
	c.metrics.FrameReceived(string(ev.Type()))
}

func (c *Controller) onQueueJoined(pos int) {
	if c.leavePending {
		c.logger.Debug("ignoring queue_joined while leave outstanding", "position", pos)
		return
	}
	if !c.joinPending && c.state.Queue != session.Queued {
		c.logger.Info("server reports queue membership without a pending join", "position", pos)
	}
	c.joinPending = false

	if c.state.Queue != session.Queued {
		c.metrics.QueueJoined()
	}
	c.state.Queue = session.Queued
	c.state.QueuePosition = &pos
	if c.state.SearchStartedAt == nil {
		now := c.clock.Now()
		c.state.SearchStartedAt = &now
	}
	c.state.LastError = ""
	if !c.searchArmed {
		c.armSearch()
	}
}

func (c *Controller) onQueueLeft() {
	if c.joinPending {
		// Reply to a leave that a newer join has since superseded.
		c.logger.Debug("ignoring queue_left while join pending")
		return
	}
	c.leavePending = false
	c.resyncPending = false
	c.disarmSearch()
	c.clearQueue()
}

// onServerError surfaces a server error. An outstanding leave is taken as
// answered, since a server may refuse a leave it has no record of. A
// refusal of the reconnect resync leave is not shown.
func (c *Controller) onServerError(msg string) {
	resync := c.resyncPending
	c.leavePending = false
	c.resyncPending = false
	if resync {
		c.logger.Info("server refused resync leave", "message", msg)
		return
	}
	c.logger.Warn("server error", "message", msg)
	c.state.LastError = msg
}

func (c *Controller) onMatchFound(m session.MatchInfo) {
	c.disarmSearch()
	c.joinPending = false
	c.state.Queue = session.MatchPending
	c.state.Match = &m
	c.metrics.MatchFound()
	c.logger.Info("match found", "opponent", m.Opponent, "addr", m.Addr())
	c.clearQueue()
}

func (c *Controller) armSearch() {
	c.searchID++
	id := c.searchID
	c.searchArmed = true
	c.timeout.Arm(func() { c.enqueue(searchExpired{id: id}) })
}

func (c *Controller) disarmSearch() {
	c.timeout.Disarm()
	c.searchArmed = false
}

func (c *Controller) clearQueue() {
	c.state.Queue = session.NotQueued
	c.state.QueuePosition = nil
	c.state.SearchStartedAt = nil
}

func (c *Controller) resetSearch() {
	c.disarmSearch()
	c.joinPending = false
	c.leavePending = false
	c.resyncPending = false
	c.clearQueue()
}

func (c *Controller) reject(op string, err error) {
	c.state.LastError = userMessage(err)
	c.logger.Info("request rejected", "op", op, "reason", err)
}

func userMessage(err error) string {
	s := err.Error()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
