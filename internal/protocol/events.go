package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/duel-legacy/matchmaker/internal/session"
)

// Event is a decoded server frame.
type Event interface {
	Type() MessageType
}

// QueueJoined acknowledges a queue join with the caller's position.
type QueueJoined struct{ Position int }

// QueueLeft acknowledges a queue leave.
type QueueLeft struct{}

// MatchFound carries the duel room the server paired us into.
type MatchFound struct{ Match session.MatchInfo }

// RosterUpdated replaces the online roster wholesale.
type RosterUpdated struct{ Users []session.RosterEntry }

// ErrorReceived is a server-reported error message.
type ErrorReceived struct{ Message string }

// Heartbeat is the server's reply to a ping.
type Heartbeat struct{}

func (QueueJoined) Type() MessageType   { return MsgQueueJoined }
func (QueueLeft) Type() MessageType     { return MsgQueueLeft }
func (MatchFound) Type() MessageType    { return MsgMatchFound }
func (RosterUpdated) Type() MessageType { return MsgUsersUpdate }
func (ErrorReceived) Type() MessageType { return MsgError }
func (Heartbeat) Type() MessageType     { return MsgError }

// Decode parses one inbound frame into a typed event. Malformed JSON, a
// missing required field, or an unknown type yields a *DecodeError; the
// frame must then be dropped by the caller.
func Decode(data []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformedFrame, err)}
	}
	if f.Type == "" {
		return nil, malformed("", "missing type")
	}
	payload := f.Payload
	if len(payload) == 0 || string(payload) == "null" {
		payload = emptyPayload
	}

	switch f.Type {
	case MsgQueueJoined:
		var p queueJoinedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, malformed(f.Type, "%v", err)
		}
		if p.Position == nil {
			return nil, malformed(f.Type, "missing position")
		}
		if *p.Position < 0 {
			return nil, malformed(f.Type, "negative position %d", *p.Position)
		}
		return QueueJoined{Position: *p.Position}, nil

	case MsgQueueLeft:
		var p map[string]json.RawMessage
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, malformed(f.Type, "%v", err)
		}
		return QueueLeft{}, nil

	case MsgMatchFound:
		var p matchFoundPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, malformed(f.Type, "%v", err)
		}
		if p.RoomPassword == "" || p.ServerAddress == "" {
			return nil, malformed(f.Type, "missing room password or server address")
		}
		if p.ServerPort <= 0 || p.ServerPort > 65535 {
			return nil, malformed(f.Type, "invalid server port %d", p.ServerPort)
		}
		return MatchFound{Match: session.MatchInfo{
			RoomPassword:  p.RoomPassword,
			ServerAddress: p.ServerAddress,
			ServerPort:    p.ServerPort,
			Opponent:      p.Opponent,
		}}, nil

	case MsgUsersUpdate:
		var p usersUpdatePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, malformed(f.Type, "%v", err)
		}
		users := make([]session.RosterEntry, 0, len(p.Users))
		for i, u := range p.Users {
			if u.User.Username == "" {
				return nil, malformed(f.Type, "user %d has no username", i)
			}
			users = append(users, session.RosterEntry{Username: u.User.Username, Status: u.Status})
		}
		return RosterUpdated{Users: users}, nil

	case MsgError:
		var p errorPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, malformed(f.Type, "%v", err)
		}
		if p.Message == nil {
			return nil, malformed(f.Type, "missing message")
		}
		if *p.Message == PongMessage {
			return Heartbeat{}, nil
		}
		return ErrorReceived{Message: *p.Message}, nil
	}

	return nil, &DecodeError{Type: f.Type, Err: ErrUnknownType}
}

// EncodeEvent renders a server frame. It is the inverse of Decode.
func EncodeEvent(ev Event) ([]byte, error) {
	var payload any
	switch e := ev.(type) {
	case QueueJoined:
		pos := e.Position
		payload = queueJoinedPayload{Position: &pos}
	case QueueLeft:
		payload = struct{}{}
	case MatchFound:
		payload = matchFoundPayload{
			RoomPassword:  e.Match.RoomPassword,
			ServerAddress: e.Match.ServerAddress,
			ServerPort:    e.Match.ServerPort,
			Opponent:      e.Match.Opponent,
		}
	case RosterUpdated:
		users := make([]wireUser, len(e.Users))
		for i, u := range e.Users {
			users[i].User.Username = u.Username
			users[i].Status = u.Status
		}
		payload = usersUpdatePayload{Users: users}
	case ErrorReceived:
		msg := e.Message
		payload = errorPayload{Message: &msg}
	case Heartbeat:
		msg := PongMessage
		payload = errorPayload{Message: &msg}
	default:
		return nil, fmt.Errorf("encode event: %w: %T", ErrUnknownType, ev)
	}
	return encode(ev.Type(), payload)
}

func encode(t MessageType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %q payload: %w", t, err)
	}
	return json.Marshal(Frame{Type: t, Payload: raw})
}
