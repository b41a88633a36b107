package mockserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/duel-legacy/matchmaker/internal/conn"
	"github.com/duel-legacy/matchmaker/internal/matchmaking"
	"github.com/duel-legacy/matchmaker/internal/mockserver"
	"github.com/duel-legacy/matchmaker/internal/session"
)

func startController(t *testing.T, url, token string) (*matchmaking.Controller, <-chan session.State) {
	t.Helper()
	m := conn.NewManager(conn.Config{
		URL:                  url,
		ReconnectDelay:       50 * time.Millisecond,
		MaxReconnectAttempts: 5,
	})
	ctl := matchmaking.New(m)
	updates, unsubscribe := ctl.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		unsubscribe()
	})

	ctl.RequestConnect(token)
	return ctl, updates
}

func waitFor(t *testing.T, updates <-chan session.State, what string, ok func(session.State) bool) session.State {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-updates:
			if ok(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func TestControllerAgainstMockServer(t *testing.T) {
	srv := mockserver.NewServer(mockserver.Config{MatchAfter: 2, DuelHost: "127.0.0.1", DuelPort: 7911}, nil)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	alice, aliceUpdates := startController(t, url, "alice")
	bob, bobUpdates := startController(t, url, "bob")

	waitFor(t, aliceUpdates, "roster of two", func(s session.State) bool {
		return s.Connection == session.Connected && s.CanRankQueue()
	})
	waitFor(t, bobUpdates, "bob connected", func(s session.State) bool {
		return s.Connection == session.Connected
	})

	alice.RequestJoinQueue()
	s := waitFor(t, aliceUpdates, "alice queued", func(s session.State) bool {
		return s.Queue == session.Queued
	})
	if *s.QueuePosition != 1 {
		t.Errorf("alice position = %d, want 1", *s.QueuePosition)
	}

	bob.RequestJoinQueue()
	for name, updates := range map[string]<-chan session.State{"alice": aliceUpdates, "bob": bobUpdates} {
		s := waitFor(t, updates, name+" matched", func(s session.State) bool { return s.Match != nil })
		if s.Queue != session.NotQueued || s.SearchStartedAt != nil {
			t.Errorf("%s still queued after match: %+v", name, s)
		}
		if s.Match.Addr() != "127.0.0.1:7911" {
			t.Errorf("%s match addr = %q", name, s.Match.Addr())
		}
	}

	alice.ConsumeMatch(*alice.Snapshot().Match)
	waitFor(t, aliceUpdates, "match consumed", func(s session.State) bool { return s.Match == nil })
}
