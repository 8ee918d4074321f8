package conn

// State is the lifecycle state of a Connection.
type State int32

const (
	// Disconnected is the initial state; connect is only honored here.
	Disconnected State = iota
	// Connecting is held for the duration of one dial attempt.
	Connecting
	// Connected allows writes, reads and keep-alives.
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}
