// Package protocol translates between typed matchmaking commands/events and
// the wire format: one JSON object per frame, shaped {"type", "payload"}.
// Both directions are provided so the development server speaks the same
// codec as the client.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/duel-legacy/matchmaker/internal/session"
)

// MessageType identifies the kind of frame.
type MessageType string

// Client to server.
const (
	MsgJoinQueue  MessageType = "join_queue"
	MsgLeaveQueue MessageType = "leave_queue"
	MsgPing       MessageType = "ping"
)

// Server to client.
const (
	MsgQueueJoined MessageType = "queue_joined"
	MsgQueueLeft   MessageType = "queue_left"
	MsgMatchFound  MessageType = "match_found"
	MsgUsersUpdate MessageType = "users_update"
	MsgError       MessageType = "error"
)

// PongMessage is the payload message of the server's heartbeat reply. It
// arrives as an error frame and must never surface as a session error.
const PongMessage = "pong"

// Frame is the envelope for all messages.
type Frame struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownType    = errors.New("unknown frame type")
)

// DecodeError reports why a frame was rejected. It wraps ErrMalformedFrame
// or ErrUnknownType.
type DecodeError struct {
	Type MessageType
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("decode frame: %v", e.Err)
	}
	return fmt.Sprintf("decode %q frame: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func malformed(t MessageType, format string, args ...any) error {
	return &DecodeError{Type: t, Err: fmt.Errorf("%w: "+format, append([]any{ErrMalformedFrame}, args...)...)}
}

// --- wire payloads ---

type queueJoinedPayload struct {
	Position *int `json:"position"`
}

type matchFoundPayload struct {
	RoomPassword  string `json:"roomPassword"`
	ServerAddress string `json:"serverAddress"`
	ServerPort    int    `json:"serverPort"`
	Opponent      string `json:"opponent"`
}

type wireUser struct {
	User struct {
		Username string `json:"username"`
	} `json:"user"`
	Status session.Presence `json:"status"`
}

type usersUpdatePayload struct {
	Users []wireUser `json:"users"`
}

type errorPayload struct {
	Message *string `json:"message"`
}

var emptyPayload = json.RawMessage("{}")
