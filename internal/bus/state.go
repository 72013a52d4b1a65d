package bus

import "fmt"

// State is the connection state of the bus handle.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateReconnecting
	StateOffline
	StateError
)

var stateNames = map[State]string{
	StateConnecting:   "CONNECTING",
	StateConnected:    "CONNECTED",
	StateDisconnected: "DISCONNECTED",
	StateReconnecting: "RECONNECTING",
	StateOffline:      "OFFLINE",
	StateError:        "ERROR",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StateNames lists every state name in declaration order.
func StateNames() []string {
	out := make([]string, 0, len(stateNames))
	for s := StateConnecting; s <= StateError; s++ {
		out = append(out, s.String())
	}
	return out
}

// MarshalText makes State render as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of the connection. Err is set only in
// StateError.
type Status struct {
	State State `json:"state"`
	Err   error `json:"-"`
}

// ErrorText is Err as a string, empty when there is none.
func (s Status) ErrorText() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
