package domain

type SessionState int32

const (
	SessionConnecting SessionState = iota
	SessionQueueing
	SessionRelaying
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionQueueing:
		return "queueing"
	case SessionRelaying:
		return "relaying"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}
