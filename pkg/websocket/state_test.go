package websocket

import "testing"

func TestTransition(t *testing.T) {
	tests := []struct {
		name  string
		state ConnState
		event ConnEvent
		want  ConnState
	}{
		{"disconnected_dial", StateDisconnected, EventDial, StateConnecting},
		{"connecting_dial_ok", StateConnecting, EventDialOK, StateConnected},
		{"connecting_dial_fail", StateConnecting, EventDialFail, StateDisconnected},
		{"connecting_shutdown", StateConnecting, EventShutdown, StateDisconnected},
		{"connected_read_error", StateConnected, EventReadError, StateDisconnected},
		{"connected_shutdown", StateConnected, EventShutdown, StateDisconnected},

		// Invalid pairs leave the state unchanged.
		{"disconnected_dial_ok", StateDisconnected, EventDialOK, StateDisconnected},
		{"disconnected_read_error", StateDisconnected, EventReadError, StateDisconnected},
		{"disconnected_shutdown", StateDisconnected, EventShutdown, StateDisconnected},
		{"connecting_dial", StateConnecting, EventDial, StateConnecting},
		{"connecting_read_error", StateConnecting, EventReadError, StateConnecting},
		{"connected_dial", StateConnected, EventDial, StateConnected},
		{"connected_dial_ok", StateConnected, EventDialOK, StateConnected},
		{"connected_dial_fail", StateConnected, EventDialFail, StateConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transition(tt.state, tt.event); got != tt.want {
				t.Errorf("Transition(%v, %v) = %v, want %v", tt.state, tt.event, got, tt.want)
			}
		})
	}
}

func TestConnState_String(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{ConnState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
