// Package session holds the externally observable matchmaking session
// record. It has no behavior of its own: the matchmaking controller is its
// only writer and hands out copies to observers.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

type ConnectionStatus int

const (
	Disconnected ConnectionStatus = iota
	Connecting
	Connected
)

var connectionNames = map[ConnectionStatus]string{
	Disconnected: "disconnected",
	Connecting:   "connecting",
	Connected:    "connected",
}

func (c ConnectionStatus) String() string {
	if s, ok := connectionNames[c]; ok {
		return s
	}
	return "unknown"
}

func (c ConnectionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

type QueueStatus int

const (
	NotQueued QueueStatus = iota
	Queued
	MatchPending
)

var queueNames = map[QueueStatus]string{
	NotQueued:    "not_queued",
	Queued:       "queued",
	MatchPending: "match_pending",
}

func (q QueueStatus) String() string {
	if s, ok := queueNames[q]; ok {
		return s
	}
	return "unknown"
}

func (q QueueStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.String())
}

// Presence is a roster member's status as reported by the server.
type Presence string

const (
	PresenceIdle    Presence = "idle"
	PresenceInMatch Presence = "in_match"
)

// RosterEntry is one online user.
type RosterEntry struct {
	Username string   `json:"username"`
	Status   Presence `json:"status"`
}

// MatchInfo describes the duel room a freshly produced match points to.
type MatchInfo struct {
	RoomPassword  string `json:"roomPassword"`
	ServerAddress string `json:"serverAddress"`
	ServerPort    int    `json:"serverPort"`
	Opponent      string `json:"opponent"`
}

// Addr returns the duel server address in host:port form.
func (m MatchInfo) Addr() string {
	return net.JoinHostPort(m.ServerAddress, strconv.Itoa(m.ServerPort))
}

// State is the session record. Optional fields are nil when absent.
type State struct {
	Connection      ConnectionStatus `json:"connection"`
	Queue           QueueStatus      `json:"queue"`
	QueuePosition   *int             `json:"queuePosition,omitempty"`
	Roster          []RosterEntry    `json:"onlineRoster"`
	Match           *MatchInfo       `json:"match,omitempty"`
	LastError       string           `json:"lastError,omitempty"`
	SearchStartedAt *time.Time       `json:"searchStartedAt,omitempty"`
	SearchTimedOut  bool             `json:"searchTimedOut"`
}

// Clone returns a deep copy that shares no memory with s.
func (s State) Clone() State {
	out := s
	if s.QueuePosition != nil {
		pos := *s.QueuePosition
		out.QueuePosition = &pos
	}
	if s.Roster != nil {
		out.Roster = make([]RosterEntry, len(s.Roster))
		copy(out.Roster, s.Roster)
	}
	if s.Match != nil {
		m := *s.Match
		out.Match = &m
	}
	if s.SearchStartedAt != nil {
		t := *s.SearchStartedAt
		out.SearchStartedAt = &t
	}
	return out
}

// SearchElapsed reports how long the current search has been running.
// It is zero when no search is active.
func (s State) SearchElapsed(now time.Time) time.Duration {
	if s.SearchStartedAt == nil {
		return 0
	}
	d := now.Sub(*s.SearchStartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// CanRankQueue reports whether at least two distinct identities are online.
func (s State) CanRankQueue() bool {
	seen := make(map[string]struct{}, len(s.Roster))
	for _, e := range s.Roster {
		seen[e.Username] = struct{}{}
		if len(seen) >= 2 {
			return true
		}
	}
	return false
}

// AvailablePlayers counts roster entries that are not currently in a match.
func (s State) AvailablePlayers() int {
	n := 0
	for _, e := range s.Roster {
		if e.Status != PresenceInMatch {
			n++
		}
	}
	return n
}

var ErrInvariant = errors.New("session invariant violated")

// Validate checks the cross-field invariants of the record.
func (s State) Validate() error {
	queued := s.Queue == Queued
	if (s.QueuePosition != nil) != queued {
		return fmt.Errorf("%w: queuePosition set=%t with queue=%s", ErrInvariant, s.QueuePosition != nil, s.Queue)
	}
	if (s.SearchStartedAt != nil) != queued {
		return fmt.Errorf("%w: searchStartedAt set=%t with queue=%s", ErrInvariant, s.SearchStartedAt != nil, s.Queue)
	}
	if s.Connection == Disconnected && s.Queue != NotQueued {
		return fmt.Errorf("%w: queue=%s while disconnected", ErrInvariant, s.Queue)
	}
	if s.QueuePosition != nil && *s.QueuePosition < 0 {
		return fmt.Errorf("%w: negative queuePosition %d", ErrInvariant, *s.QueuePosition)
	}
	return nil
}
