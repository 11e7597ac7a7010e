package realtime

import "fmt"

// ConnStatus is the lifecycle phase of a transport connection.
type ConnStatus int

const (
	Disconnected ConnStatus = iota
	Connecting
	Connected
	ConnError
)

func (s ConnStatus) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ConnError:
		return "error"
	default:
		return fmt.Sprintf("ConnStatus(%d)", int(s))
	}
}

// ConnectionState is the observable state of a Transport. Reason is only
// set when Status is ConnError.
type ConnectionState struct {
	Status ConnStatus
	Reason string
}

func StateDisconnected() ConnectionState { return ConnectionState{Status: Disconnected} }
func StateConnecting() ConnectionState   { return ConnectionState{Status: Connecting} }
func StateConnected() ConnectionState    { return ConnectionState{Status: Connected} }

func StateError(reason string) ConnectionState {
	return ConnectionState{Status: ConnError, Reason: reason}
}

func (s ConnectionState) String() string {
	if s.Status == ConnError && s.Reason != "" {
		return "error: " + s.Reason
	}
	return s.Status.String()
}

// ChannelStatus is the join state of one channel on a transport.
type ChannelStatus int

const (
	ChannelIdle ChannelStatus = iota
	ChannelJoining
	ChannelJoined
	ChannelClosed
	ChannelErrored
)

func (s ChannelStatus) String() string {
	switch s {
	case ChannelIdle:
		return "idle"
	case ChannelJoining:
		return "joining"
	case ChannelJoined:
		return "joined"
	case ChannelClosed:
		return "closed"
	case ChannelErrored:
		return "errored"
	default:
		return fmt.Sprintf("ChannelStatus(%d)", int(s))
	}
}
