package coach

import "fmt"

// State is the lifecycle state of a Session.
type State int

const (
	// StateIdle means no session has been started yet.
	StateIdle State = iota
	// StatePreparing means media devices are being acquired.
	StatePreparing
	// StateConnecting means the transport handshake is in flight.
	StateConnecting
	// StateActive means all pipelines are streaming.
	StateActive
	// StateEnded means the session terminated normally.
	StateEnded
	// StateError means the session terminated with a fatal error.
	StateError
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StatePreparing:  "preparing",
	StateConnecting: "connecting",
	StateActive:     "active",
	StateEnded:      "ended",
	StateError:      "error",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	name, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("coach: unknown state %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("coach: unknown state %q", text)
}

// Terminal reports whether the state permits a new Start.
func (s State) Terminal() bool {
	return s == StateIdle || s == StateEnded || s == StateError
}
