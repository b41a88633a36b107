package conn

// Event is raised by the Manager to its handler. Events from one connection
// are delivered in order, and Closed is always the last one for that
// connection.
type Event interface {
	event()
}

// Connecting is raised when a dial starts.
type Connecting struct {
	Reconnect bool
}

// Opened is raised once the handshake succeeds.
type Opened struct {
	ConnID string
	// Reconnect is true when the open came from an automatic reconnect
	// rather than a Connect call.
	Reconnect bool
}

// Closed is raised when a connection (or a dial) ends.
type Closed struct {
	ConnID string
	Code   int
	Err    error
	// Attempt is the reconnect attempt scheduled in response, or 0.
	Attempt int
	// Exhausted is set when the reconnect budget ran out. The manager
	// stays disconnected until the next Connect.
	Exhausted bool
}

// MessageReceived carries one raw text frame.
type MessageReceived struct {
	ConnID string
	Data   []byte
}

// TransportError reports a dial or I/O failure. A Closed event follows.
type TransportError struct {
	ConnID string
	Err    error
}

func (Connecting) event()      {}
func (Opened) event()          {}
func (Closed) event()          {}
func (MessageReceived) event() {}
func (TransportError) event()  {}
