// Package conn owns the WebSocket connection to the matchmaking service and
// its reconnection policy: after an abnormal closure, and while an auth
// token is held, it redials after a fixed delay up to a bounded number of
// attempts.
package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/duel-legacy/matchmaker/internal/clock"
	"github.com/duel-legacy/matchmaker/internal/metrics"
	"github.com/duel-legacy/matchmaker/internal/protocol"
	"github.com/duel-legacy/matchmaker/internal/session"
)

// CloseNormal is the close code of an intentional client close. It is the
// only code that does not trigger a reconnect.
const CloseNormal = websocket.CloseNormalClosure

const (
	DefaultReconnectDelay       = 2 * time.Second
	DefaultMaxReconnectAttempts = 5
	defaultWriteTimeout         = 10 * time.Second
	defaultHandshakeTimeout     = 10 * time.Second
	closeWriteTimeout           = time.Second

	// NoReconnect as MaxReconnectAttempts disables reconnecting.
	NoReconnect = -1
)

var (
	ErrNotConnected       = errors.New("not connected to matchmaking service")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

type Config struct {
	URL                  string
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	// PingInterval is the heartbeat period. Zero disables the heartbeat
	// and the read deadline that goes with it.
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
}

type Option func(*Manager)

func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// Manager holds at most one connection at a time.
type Manager struct {
	cfg     Config
	dialer  *websocket.Dialer
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	// emitMu serialises state transitions with the delivery of the event
	// describing them, so no event of an older connection can be
	// delivered after a newer one. Lock order: emitMu, then mu.
	emitMu  sync.Mutex
	mu      sync.Mutex
	writeMu sync.Mutex // serialises frame writes

	handler   func(Event)
	status    session.ConnectionStatus
	conn      *websocket.Conn
	connID    string
	cancel    context.CancelFunc
	gen       uint64
	token     string
	attempts  int
	reconnect clock.Timer
}

// NewManager creates a disconnected manager. Zero config values fall back
// to the defaults. A negative MaxReconnectAttempts disables reconnecting.
func NewManager(cfg Config, opts ...Option) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	switch {
	case cfg.MaxReconnectAttempts == 0:
		cfg.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	case cfg.MaxReconnectAttempts < 0:
		cfg.MaxReconnectAttempts = 0
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	m := &Manager{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		clock:  clock.Real(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "conn")
	return m
}

// SetHandler installs the event sink. The handler is called with internal
// locks held: it must not block and must not call back into the Manager.
func (m *Manager) SetHandler(h func(Event)) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Status returns the transport status.
func (m *Manager) Status() session.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Attempts returns the reconnect attempts made since the last open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect opens a connection authenticated with token. It is a no-op while
// a connection is open or being dialed. A pending reconnect is replaced by
// an immediate dial with a fresh attempt budget.
func (m *Manager) Connect(token string) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if m.status != session.Disconnected {
		status := m.status
		m.mu.Unlock()
		m.logger.Info("connect ignored", "status", status)
		return
	}
	m.token = token
	m.attempts = 0
	m.stopReconnectLocked()
	gen, ctx := m.beginDialLocked()
	h := m.handler
	m.mu.Unlock()

	m.logger.Info("connecting", "url", m.cfg.URL)
	if h != nil {
		h(Connecting{})
	}
	go m.dial(ctx, gen, token, false)
}

// Disconnect closes the connection with the normal-closure code, cancels
// any pending reconnect and forgets the token.
func (m *Manager) Disconnect() {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	active := m.status != session.Disconnected || m.reconnect != nil
	m.gen++
	m.stopReconnectLocked()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	conn, connID := m.conn, m.connID
	m.conn, m.connID = nil, ""
	m.status = session.Disconnected
	m.token = ""
	m.attempts = 0
	h := m.handler
	m.mu.Unlock()

	m.metrics.SetConnection(session.Disconnected)
	if conn != nil {
		// The generation is already bumped, so nothing from this conn is
		// delivered any more. The close handshake runs off the event path.
		go m.closeNormal(conn, connID)
	}
	if !active {
		return
	}
	m.logger.Info("disconnected", "conn_id", connID)
	if h != nil {
		h(Closed{ConnID: connID, Code: CloseNormal})
	}
}

func (m *Manager) closeNormal(conn *websocket.Conn, connID string) {
	deadline := time.Now().Add(min(m.cfg.WriteTimeout, closeWriteTimeout))
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(CloseNormal, ""), deadline); err != nil {
		m.logger.Debug("close frame not sent", "conn_id", connID, "error", err)
	}
	conn.Close()
}

// Send encodes and writes cmd. It returns ErrNotConnected, without
// touching the network, unless the connection is open.
func (m *Manager) Send(cmd protocol.Command) error {
	m.mu.Lock()
	conn, connID, status := m.conn, m.connID, m.status
	m.mu.Unlock()

	if status != session.Connected || conn == nil {
		m.logger.Warn("send while not connected", "type", cmd.Type, "status", status)
		return fmt.Errorf("send %s: %w", cmd, ErrNotConnected)
	}
	data, err := cmd.Encode()
	if err != nil {
		return fmt.Errorf("send %s: %w", cmd, err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.logger.Warn("send failed", "type", cmd.Type, "conn_id", connID, "error", err)
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	m.metrics.FrameSent(string(cmd.Type))
	m.logger.Debug("frame sent", "type", cmd.Type, "conn_id", connID)
	return nil
}

func (m *Manager) beginDialLocked() (uint64, context.Context) {
	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.status = session.Connecting
	m.metrics.SetConnection(session.Connecting)
	return m.gen, ctx
}

func (m *Manager) stopReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

func (m *Manager) endpoint(token string) (string, error) {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (m *Manager) dial(ctx context.Context, gen uint64, token string, reconnect bool) {
	var conn *websocket.Conn
	endpoint, err := m.endpoint(token)
	if err == nil {
		var resp *http.Response
		conn, resp, err = m.dialer.DialContext(ctx, endpoint, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
	}
	if err != nil {
		m.logger.Warn("dial failed", "error", err, "reconnect", reconnect)
		m.emitIf(gen, TransportError{Err: err})
		m.closed(gen, nil, err)
		return
	}

	connID := uuid.NewString()

	m.emitMu.Lock()
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.emitMu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.connID = connID
	m.status = session.Connected
	m.attempts = 0
	h := m.handler
	m.mu.Unlock()

	m.metrics.SetConnection(session.Connected)
	m.logger.Info("connected", "conn_id", connID, "reconnect", reconnect)
	if h != nil {
		h(Opened{ConnID: connID, Reconnect: reconnect})
	}
	m.emitMu.Unlock()

	go m.readPump(gen, conn, connID)
	if m.cfg.PingInterval > 0 {
		go m.pingLoop(ctx, gen)
	}
}

func (m *Manager) readTimeout() time.Duration {
	if m.cfg.PingInterval <= 0 {
		return 0
	}
	return 2*m.cfg.PingInterval + m.cfg.WriteTimeout
}

func (m *Manager) readPump(gen uint64, conn *websocket.Conn, connID string) {
	timeout := m.readTimeout()
	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(timeout))
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.closed(gen, conn, err)
			return
		}
		if timeout > 0 {
			conn.SetReadDeadline(time.Now().Add(timeout))
		}
		if !m.emitIf(gen, MessageReceived{ConnID: connID, Data: data}) {
			return
		}
	}
}

func (m *Manager) pingLoop(ctx context.Context, gen uint64) {
	ticker := m.clock.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			m.mu.Lock()
			current := m.gen == gen
			m.mu.Unlock()
			if !current {
				return
			}
			if err := m.ping(); err != nil {
				m.logger.Debug("heartbeat not sent", "error", err)
				continue
			}
			if err := m.Send(protocol.Ping); err != nil {
				m.logger.Debug("heartbeat not sent", "error", err)
			}
		}
	}
}

// ping writes a control ping. The peer's pong extends the read deadline,
// so an idle but healthy connection stays open.
func (m *Manager) ping() error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.cfg.WriteTimeout))
}

// closed tears down generation gen after its connection (or dial) ended
// and applies the reconnection policy.
func (m *Manager) closed(gen uint64, conn *websocket.Conn, cause error) {
	code := closeCode(cause)

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	ev := Closed{ConnID: m.connID, Code: code, Err: cause}
	m.conn, m.connID = nil, ""
	m.status = session.Disconnected

	if code != CloseNormal && m.token != "" {
		if m.attempts < m.cfg.MaxReconnectAttempts {
			m.attempts++
			ev.Attempt = m.attempts
			m.gen++
			next := m.gen
			m.reconnect = m.clock.AfterFunc(m.cfg.ReconnectDelay, func() { m.redial(next) })
		} else {
			ev.Exhausted = true
			ev.Err = errors.Join(ErrReconnectExhausted, cause)
		}
	}
	h := m.handler
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	m.metrics.SetConnection(session.Disconnected)
	switch {
	case ev.Attempt > 0:
		m.metrics.ReconnectScheduled()
		m.logger.Info("connection closed, reconnecting",
			"code", code, "attempt", ev.Attempt, "delay", m.cfg.ReconnectDelay, "error", cause)
	case ev.Exhausted:
		m.metrics.ReconnectExhausted()
		m.logger.Error("connection closed, reconnect attempts exhausted",
			"code", code, "max_attempts", m.cfg.MaxReconnectAttempts, "error", cause)
	default:
		m.logger.Info("connection closed", "code", code)
	}
	if h != nil {
		h(ev)
	}
}

func (m *Manager) redial(gen uint64) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if m.gen != gen || m.status != session.Disconnected {
		m.mu.Unlock()
		return
	}
	m.reconnect = nil
	token := m.token
	next, ctx := m.beginDialLocked()
	h := m.handler
	m.mu.Unlock()

	if h != nil {
		h(Connecting{Reconnect: true})
	}
	go m.dial(ctx, next, token, true)
}

// emitIf delivers ev only if gen is still the current generation.
func (m *Manager) emitIf(gen uint64, ev Event) bool {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	current := m.gen == gen
	h := m.handler
	m.mu.Unlock()

	if current && h != nil {
		h(ev)
	}
	return current
}

func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
