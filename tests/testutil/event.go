package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/shared"
)

// RecordingEventHandler records the domain events it receives.
type RecordingEventHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
}

// NewRecordingEventHandler creates a handler for the event types. No types
// means every event.
func NewRecordingEventHandler(eventTypes ...string) *RecordingEventHandler {
	return &RecordingEventHandler{eventTypes: eventTypes}
}

// EventTypes returns the event types this handler subscribes to.
func (h *RecordingEventHandler) EventTypes() []string {
	return h.eventTypes
}

// Handle records the event and returns the configured error.
func (h *RecordingEventHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

// Handled returns a copy of the recorded events.
func (h *RecordingEventHandler) Handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]shared.DomainEvent, len(h.handled))
	copy(result, h.handled)
	return result
}

// HandledTypes returns the recorded event types in arrival order.
func (h *RecordingEventHandler) HandledTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]string, 0, len(h.handled))
	for _, e := range h.handled {
		types = append(types, e.EventType())
	}
	return types
}

// HandledCount returns the number of recorded events.
func (h *RecordingEventHandler) HandledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

// SetError sets the error to return from Handle.
func (h *RecordingEventHandler) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// Publish satisfies shared.EventPublisher so the recorder can stand in for a bus.
func (h *RecordingEventHandler) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, e := range events {
		if err := h.Handle(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// TestEvent is a minimal domain event.
type TestEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

// NewTestEvent creates a test event owned by the merchant.
func NewTestEvent(eventType string, merchantID uuid.UUID) *TestEvent {
	return &TestEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New(), merchantID),
		Data:            "test-data",
	}
}

// WaitForEventCount waits until the handler has recorded at least n events.
func WaitForEventCount(t *testing.T, h *RecordingEventHandler, n int, timeout time.Duration) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if h.HandledCount() >= n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

var (
	_ shared.EventHandler   = (*RecordingEventHandler)(nil)
	_ shared.EventPublisher = (*RecordingEventHandler)(nil)
)
