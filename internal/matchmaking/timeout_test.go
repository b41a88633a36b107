package matchmaking

import (
	"testing"
	"time"

	"github.com/duel-legacy/matchmaker/internal/clock"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestTimeoutFiresOnce(t *testing.T) {
	clk := clock.Fake(epoch)
	tc := NewTimeoutClock(clk, 30*time.Second)

	fired := 0
	tc.Arm(func() { fired++ })
	if !tc.Armed() {
		t.Fatal("Armed() = false after Arm")
	}

	clk.Advance(29 * time.Second)
	if fired != 0 {
		t.Fatalf("fired early at 29s")
	}
	clk.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("fired = %d at 30s, want 1", fired)
	}
	if tc.Armed() {
		t.Error("Armed() = true after firing")
	}

	clk.Advance(time.Minute)
	if fired != 1 {
		t.Errorf("fired = %d after another minute, want 1", fired)
	}
}

func TestTimeoutRearmReplaces(t *testing.T) {
	clk := clock.Fake(epoch)
	tc := NewTimeoutClock(clk, 30*time.Second)

	var first, second int
	tc.Arm(func() { first++ })
	clk.Advance(20 * time.Second)
	tc.Arm(func() { second++ })

	clk.Advance(15 * time.Second)
	if first != 0 || second != 0 {
		t.Fatalf("first=%d second=%d at 35s, want 0/0", first, second)
	}
	clk.Advance(15 * time.Second)
	if first != 0 || second != 1 {
		t.Errorf("first=%d second=%d at 50s, want 0/1", first, second)
	}
}

func TestTimeoutDisarm(t *testing.T) {
	clk := clock.Fake(epoch)
	tc := NewTimeoutClock(clk, 30*time.Second)

	fired := false
	tc.Arm(func() { fired = true })
	tc.Disarm()
	tc.Disarm()

	clk.Advance(time.Minute)
	if fired {
		t.Error("fired after Disarm")
	}
	if clk.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", clk.Pending())
	}
}

func TestTimeoutDefaultDuration(t *testing.T) {
	tc := NewTimeoutClock(clock.Fake(epoch), 0)
	if got := tc.Duration(); got != DefaultSearchTimeout {
		t.Errorf("Duration() = %v, want %v", got, DefaultSearchTimeout)
	}
}
