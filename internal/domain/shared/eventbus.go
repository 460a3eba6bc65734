package shared

import "context"

// EventPublisher hands domain events to whatever transport is configured
// (in-process bus, Kafka, or both).
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventHandler reacts to published events. EventTypes lists the types it
// wants; an empty list subscribes it to everything.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventBus is an in-process publisher with subscriptions and a lifecycle.
// Subscribe without explicit types falls back to handler.EventTypes().
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
