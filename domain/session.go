package domain

type SessionState int32

const (
	Connecting SessionState = iota
	Authenticating
	Joined
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Joined:
		return "joined"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// CanTransition follows connecting -> authenticating -> joined -> closed.
// Any state may close.
func (s SessionState) CanTransition(to SessionState) bool {
	if to == Closed {
		return s != Closed
	}
	return to == s+1
}
