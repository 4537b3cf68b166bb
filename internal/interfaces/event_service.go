package interfaces

import "context"

// EventType identifies an event on the internal bus
type EventType string

// Events published by the chat, review and title services. The WebSocket
// handler subscribes to all three and relays them to connected clients.
const (
	// EventSessionStatus fires on every session status transition
	EventSessionStatus EventType = "session_status"

	// EventReviewCompleted fires once a review task has flushed its records
	EventReviewCompleted EventType = "review_completed"

	// EventTitleUpdated fires when a session title is generated or replaced
	EventTitleUpdated EventType = "title_updated"
)

// Event is one bus message. Payload is a map for WebSocket relay, which
// flattens it into the frame next to the type field.
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler consumes one event. Errors from async delivery are
// logged, not returned to the publisher.
type EventHandler func(ctx context.Context, event Event) error

// EventService is the in-process pub/sub bus between services and the
// WebSocket relay
type EventService interface {
	// Subscribe registers a handler for an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Unsubscribe removes a handler registered with Subscribe
	Unsubscribe(eventType EventType, handler EventHandler) error

	// Publish delivers the event to subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync delivers the event and waits for every handler,
	// returning the first handler error
	PublishSync(ctx context.Context, event Event) error

	// Close stops delivery and drops all subscriptions
	Close() error
}
