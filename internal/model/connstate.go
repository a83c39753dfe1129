package model

// ConnState tracks the protocol client's connection lifecycle.
// Exactly one instance exists per physical connection; every reconnect
// attempt starts over from Disconnected.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	HandshakeSent
	NamespaceJoining
	Authenticating
	Authenticated
	Closing
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case HandshakeSent:
		return "handshake_sent"
	case NamespaceJoining:
		return "namespace_joining"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}
