package matchmaking

import (
	"sync"
	"time"

	"github.com/duel-legacy/matchmaker/internal/clock"
)

// DefaultSearchTimeout bounds a single queue attempt.
const DefaultSearchTimeout = 30 * time.Second

// TimeoutClock is a single-shot timer bound to one queue search. At most
// one timer is outstanding; arming replaces the previous one.
type TimeoutClock struct {
	clock    clock.Clock
	duration time.Duration

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

func NewTimeoutClock(c clock.Clock, d time.Duration) *TimeoutClock {
	if d <= 0 {
		d = DefaultSearchTimeout
	}
	return &TimeoutClock{clock: c, duration: d}
}

// Arm cancels any outstanding timer and starts a new one. onExpire runs at
// most once, and never after a later Arm or Disarm has returned.
func (t *TimeoutClock) Arm(onExpire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.duration, func() {
		t.mu.Lock()
		if t.gen != gen {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.gen++
		t.mu.Unlock()
		onExpire()
	})
}

// Disarm cancels the outstanding timer, if any.
func (t *TimeoutClock) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.gen++
}

// Armed reports whether a timer is outstanding.
func (t *TimeoutClock) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *TimeoutClock) Duration() time.Duration { return t.duration }

func (t *TimeoutClock) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
