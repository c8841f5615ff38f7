package ftpsession

// State is the lifecycle position of a Session. Each in-flight state names
// the step that is running or was the last to complete.
type State int

const (
	// Disconnected is the initial state; no control connection exists.
	Disconnected State = iota
	// Connecting covers the dial and the connected but unauthenticated period.
	Connecting
	// Authenticating covers login and the authenticated period before CWD.
	Authenticating
	// SelectingDirectory covers the CWD to the configured remote directory.
	SelectingDirectory
	// Ready means the session can open a store.
	Ready
	// Closed is reached after Disconnect; Connect may start over from here.
	Closed
	// Error is entered when any in-flight step fails.
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case SelectingDirectory:
		return "selecting_directory"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Idle reports whether Connect may be called from s.
func (s State) Idle() bool {
	return s == Disconnected || s == Closed
}
