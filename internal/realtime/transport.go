package realtime

import "context"

// Transport is a connection to a change-event server.
//
// Connect must move State to Connecting (or straight to Connected) before it
// returns, so a poller never observes the outcome of a previous attempt.
type Transport interface {
	Connect(ctx context.Context) error
	State() ConnectionState
	Channel(name string, filter ChangeFilter) (Channel, error)
}

// Channel is a single filtered subscription on a Transport. Events is
// closed once the channel is unsubscribed or the transport goes away.
type Channel interface {
	Subscribe(ctx context.Context) error
	Status() ChannelStatus
	Events() <-chan RawChangeEvent
	Unsubscribe(ctx context.Context) error
}
