package websocket

// ConnState is the explicit connection state of the feed link.
type ConnState int32

const (
	// StateDisconnected means no connection exists and no dial is in flight.
	StateDisconnected ConnState = iota
	// StateConnecting means a dial attempt is in flight.
	StateConnecting
	// StateConnected means the connection is established and subscribed.
	StateConnected
)

// String implements fmt.Stringer.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnEvent is an input to the connection state machine.
type ConnEvent int32

const (
	// EventDial is emitted when a connection attempt starts.
	EventDial ConnEvent = iota
	// EventDialOK is emitted when a dial succeeds.
	EventDialOK
	// EventDialFail is emitted when a dial fails.
	EventDialFail
	// EventReadError is emitted when the read loop observes an error or close.
	EventReadError
	// EventShutdown is emitted at process shutdown.
	EventShutdown
)

// Transition is the pure transition function of the connection state machine.
// Invalid (state, event) pairs leave the state unchanged, so a stray event
// can never invent a connection that does not exist.
func Transition(state ConnState, event ConnEvent) ConnState {
	switch state {
	case StateDisconnected:
		if event == EventDial {
			return StateConnecting
		}
	case StateConnecting:
		switch event {
		case EventDialOK:
			return StateConnected
		case EventDialFail, EventShutdown:
			return StateDisconnected
		}
	case StateConnected:
		switch event {
		case EventReadError, EventShutdown:
			return StateDisconnected
		}
	}
	return state
}
