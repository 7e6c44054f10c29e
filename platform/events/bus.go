// Package events provides event bus infrastructure.
// This is part of the platform layer and contains no business logic.
package events

import (
	"context"
	"sync"

	"resto_crm_backend/platform/logger"
)

// InMemoryBus is a simple in-process event bus. Handlers for the same event
// name run in registration order.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously. Handler errors
// are logged, not propagated.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	for _, handler := range b.handlersFor(event.EventName()) {
		go func(h Handler) {
			if err := h.Handle(ctx, event); err != nil && b.log != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}(handler)
	}
}

// PublishSync dispatches the event to all handlers and returns the first error.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	for _, handler := range b.handlersFor(event.EventName()) {
		if err := handler.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (b *InMemoryBus) handlersFor(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	registered := b.handlers[eventName]
	out := make([]Handler, len(registered))
	copy(out, registered)
	return out
}
