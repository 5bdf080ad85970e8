package interfaces

import "context"

// EventType represents different event types in the tracker
type EventType string

const (
	// EventJobState carries a models.StateChange on every reconciler
	// transition.
	EventJobState EventType = "job_state"

	// EventDocumentsSaved carries a models.SavedDelta whenever the
	// cumulative saved counter increases.
	EventDocumentsSaved EventType = "documents_saved"

	// EventConnectionError carries a string describing a poll transport
	// failure; an empty string clears the banner.
	EventConnectionError EventType = "connection_error"

	// EventCommandError carries a string describing a rejected control
	// command; an empty string clears the banner.
	EventCommandError EventType = "command_error"
)

// Event represents a tracker event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the tracker's pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes an event and waits for all handlers to
	// complete. State-ordering-sensitive producers (the reconciler) use
	// this so observers see transitions in the order they were applied.
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
