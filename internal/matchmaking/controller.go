// Package matchmaking implements the session controller: a single dispatch
// loop that serialises user intents, transport events and search timeouts
// into transitions of the session record.
package matchmaking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/duel-legacy/matchmaker/internal/clock"
	"github.com/duel-legacy/matchmaker/internal/conn"
	"github.com/duel-legacy/matchmaker/internal/metrics"
	"github.com/duel-legacy/matchmaker/internal/protocol"
	"github.com/duel-legacy/matchmaker/internal/session"
)

// Transport is the connection the controller drives. *conn.Manager
// implements it.
type Transport interface {
	Connect(token string)
	Disconnect()
	Send(cmd protocol.Command) error
	SetHandler(h func(conn.Event))
}

var (
	ErrNotConnected  = conn.ErrNotConnected
	ErrAlreadyQueued = errors.New("already in queue")
	ErrJoinPending   = errors.New("queue join already pending")
	ErrMissingToken  = errors.New("missing auth token")
)

const msgReconnectExhausted = "Connection lost: reconnect attempts exhausted"

type Option func(*Controller)

func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

func WithSearchTimeout(d time.Duration) Option {
	return func(ctl *Controller) { ctl.searchTimeout = d }
}

// WithResyncOnReconnect makes the controller send a best-effort
// leave_queue after every automatic reconnect, so the server drops any
// membership the client no longer knows about.
func WithResyncOnReconnect(on bool) Option {
	return func(ctl *Controller) { ctl.resync = on }
}

type (
	intent        int
	connectIntent struct{ token string }
	searchExpired struct{ id uint64 }
	consumeMatch  struct{ match session.MatchInfo }
)

const (
	intentJoin intent = iota
	intentLeave
	intentDisconnect
	intentAckTimeout
)

// Controller is the only writer of the session record. All methods are
// safe for concurrent use and none of them block on the network.
type Controller struct {
	transport     Transport
	clock         clock.Clock
	logger        *slog.Logger
	metrics       *metrics.Metrics
	searchTimeout time.Duration
	resync        bool
	timeout       *TimeoutClock

	mu      sync.Mutex
	mailbox *queue.Queue
	wake    chan struct{}

	// Owned by the dispatch loop. resyncPending marks the outstanding leave
	// as the one sent after a reconnect.
	state         session.State
	connID        string
	joinPending   bool
	leavePending  bool
	resyncPending bool
	searchArmed   bool
	searchID      uint64

	current atomic.Pointer[session.State]
	subMu   sync.Mutex
	subs    map[chan session.State]struct{}
}

// New creates a controller bound to t and installs itself as t's event
// handler. Call Run to start processing.
func New(t Transport, opts ...Option) *Controller {
	c := &Controller{
		transport:     t,
		clock:         clock.Real(),
		searchTimeout: DefaultSearchTimeout,
		mailbox:       queue.New(),
		wake:          make(chan struct{}, 1),
		subs:          make(map[chan session.State]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "matchmaking")
	c.timeout = NewTimeoutClock(c.clock, c.searchTimeout)

	initial := session.State{}
	c.current.Store(&initial)
	t.SetHandler(func(e conn.Event) { c.enqueue(e) })
	return c
}

// RequestConnect connects with the given auth token.
func (c *Controller) RequestConnect(token string) { c.enqueue(connectIntent{token: token}) }

// RequestDisconnect closes the connection and returns the session to its
// initial state.
func (c *Controller) RequestDisconnect() { c.enqueue(intentDisconnect) }

// RequestJoinQueue asks to join the competitive queue.
func (c *Controller) RequestJoinQueue() { c.enqueue(intentJoin) }

// RequestLeaveQueue leaves the queue, or abandons a pending join.
func (c *Controller) RequestLeaveQueue() { c.enqueue(intentLeave) }

// AckSearchTimeout resets the SearchTimedOut pulse.
func (c *Controller) AckSearchTimeout() { c.enqueue(intentAckTimeout) }

// ConsumeMatch clears Match once the duel handoff has used m. A newer
// match found in the meantime is kept.
func (c *Controller) ConsumeMatch(m session.MatchInfo) { c.enqueue(consumeMatch{match: m}) }

// Snapshot returns a copy of the state as of the last processed event.
func (c *Controller) Snapshot() session.State {
	return c.current.Load().Clone()
}

// Subscribe returns a channel that receives the state after every
// processed event. Only the latest state is kept for a slow reader. The
// returned func unsubscribes and closes the channel.
func (c *Controller) Subscribe() (<-chan session.State, func()) {
	ch := make(chan session.State, 1)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, ch)
			close(ch)
			c.subMu.Unlock()
		})
	}
}

// Run processes events until ctx is done, then disarms the search timer
// and disconnects.
func (c *Controller) Run(ctx context.Context) error {
	defer func() {
		c.timeout.Disarm()
		c.transport.Disconnect()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}
		c.drain()
	}
}

func (c *Controller) drain() {
	for {
		it, ok := c.dequeue()
		if !ok {
			return
		}
		c.dispatch(it)
		c.publish()
	}
}

func (c *Controller) enqueue(it any) {
	c.mu.Lock()
	c.mailbox.Add(it)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) dequeue() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mailbox.Length() == 0 {
		return nil, false
	}
	return c.mailbox.Remove(), true
}

func (c *Controller) publish() {
	if err := c.state.Validate(); err != nil {
		c.logger.Error("session state inconsistent", "error", err)
	}
	s := c.state.Clone()
	c.current.Store(&s)

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.Clone()
	}
}

func (c *Controller) dispatch(it any) {
	switch it := it.(type) {
	case connectIntent:
		c.handleConnect(it.token)
	case intent:
		switch it {
		case intentJoin:
			c.handleJoin()
		case intentLeave:
			c.handleLeave()
		case intentDisconnect:
			c.handleDisconnect()
		case intentAckTimeout:
			c.state.SearchTimedOut = false
		}
	case consumeMatch:
		if c.state.Match != nil && *c.state.Match == it.match {
			c.state.Match = nil
		}
	case searchExpired:
		c.handleSearchExpired(it.id)
	case conn.Event:
		c.handleTransport(it)
	default:
		c.logger.Error("unknown mailbox item", "item", it)
	}
}
