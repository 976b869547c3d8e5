package ports

import "context"

// EventPublisher hands domain events to whoever presents them. The notify
// board is the only implementation; publishing must never block a mutation
// for long.
type EventPublisher interface {
	// Publish delivers event. Returns domain.ErrUnavailable when the
	// destination cannot accept it.
	Publish(ctx context.Context, event Event) error
}

// Event is something that happened to the quote list.
type Event interface {
	EventType() string
	Payload() any
}

// Notification is an Event with text meant for the user.
type Notification interface {
	Event
	Message() string
}
