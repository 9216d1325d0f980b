package events

import (
	"context"
	"sync"

	"conviaq_backend/platform/logger"
)

// InMemoryBus is a process-local Bus implementation. Handlers registered for
// an event name are invoked in registration order; async publishes run each
// handler on its own goroutine, detached from the request context.
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

// Publish dispatches the event asynchronously. Handler errors are logged,
// never propagated: a failing subscriber must not affect the publisher.
func (b *InMemoryBus) Publish(_ context.Context, event Event) {
	for _, handler := range b.handlersFor(event.EventName()) {
		h := handler
		go func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event handler panicked", "event", event.EventName(), "panic", r)
				}
			}()
			if err := h.Handle(context.Background(), event); err != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}()
	}
}

// PublishSync dispatches the event and waits for every handler, returning
// the first error encountered.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	var firstErr error
	for _, handler := range b.handlersFor(event.EventName()) {
		if err := handler.Handle(ctx, event); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			b.log.Error("event handler failed", "event", event.EventName(), "error", err)
		}
	}
	return firstErr
}

func (b *InMemoryBus) handlersFor(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	registered := b.handlers[eventName]
	out := make([]Handler, len(registered))
	copy(out, registered)
	return out
}
