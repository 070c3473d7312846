package bus

import "context"

type EventKind int

const (
	EventConnected EventKind = iota
	EventMessage
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one notification from a Transport. Topic and Payload are set for
// EventMessage, Err for EventError.
type Event struct {
	Kind    EventKind
	Topic   string
	Payload []byte
	Err     error
}

// Transport is the wire session below the Command Channel.
//
// Connect starts or resumes the session without blocking on the broker; it is
// a no-op while the transport is connected or already reconnecting itself.
// Subscribe must be idempotent: repeating it after a reconnect never causes a
// message to be delivered twice. Events is closed only after Close.
type Transport interface {
	Connect(ctx context.Context) error
	Events() <-chan Event
	Subscribe(ctx context.Context, filter string) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}
