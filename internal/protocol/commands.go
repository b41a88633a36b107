package protocol

import (
	"encoding/json"
	"fmt"
)

// Command is an outgoing client request. Every command carries an empty
// payload object.
type Command struct {
	Type MessageType
}

var (
	JoinQueue  = Command{Type: MsgJoinQueue}
	LeaveQueue = Command{Type: MsgLeaveQueue}
	Ping       = Command{Type: MsgPing}
)

// Encode renders the command as a single frame.
func (c Command) Encode() ([]byte, error) {
	return json.Marshal(Frame{Type: c.Type, Payload: emptyPayload})
}

func (c Command) String() string { return string(c.Type) }

// DecodeCommand parses a client frame on the server side.
func DecodeCommand(data []byte) (Command, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Command{}, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformedFrame, err)}
	}
	switch f.Type {
	case MsgJoinQueue, MsgLeaveQueue, MsgPing:
		return Command{Type: f.Type}, nil
	case "":
		return Command{}, malformed("", "missing type")
	}
	return Command{}, &DecodeError{Type: f.Type, Err: ErrUnknownType}
}
