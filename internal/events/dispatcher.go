package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles a dispatched event.
type EventHandler func(context.Context, Event) error

// HandlerID identifies a registration so it can be removed later.
type HandlerID uint64

type registration struct {
	id      HandlerID
	handler EventHandler
}

// Registry maps event tags to ordered handler lists plus the Wildcard tag.
// Its contents survive reconnection and are only dropped by Clear.
type Registry struct {
	mu        sync.RWMutex
	nextID    HandlerID
	listeners map[EventType][]registration
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		listeners: make(map[EventType][]registration),
		logger:    logger,
	}
}

// Register appends handler to the list for eventType.
func (r *Registry) Register(eventType EventType, handler EventHandler) HandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.listeners[eventType] = append(r.listeners[eventType], registration{id: r.nextID, handler: handler})
	return r.nextID
}

// Unregister removes a registration. Unknown ids are ignored.
func (r *Registry) Unregister(eventType EventType, id HandlerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	regs := r.listeners[eventType]
	for i, reg := range regs {
		if reg.id != id {
			continue
		}
		r.listeners[eventType] = append(regs[:i:i], regs[i+1:]...)
		if len(r.listeners[eventType]) == 0 {
			delete(r.listeners, eventType)
		}
		return
	}
}

// Clear drops every registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = make(map[EventType][]registration)
}

// Len returns the number of handlers registered for eventType.
func (r *Registry) Len(eventType EventType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[eventType])
}

// Dispatch invokes the handlers registered for the event's tag, then the
// wildcard handlers, in registration order. A failing or panicking handler
// does not stop the ones after it.
func (r *Registry) Dispatch(ctx context.Context, event Event) {
	r.mu.RLock()
	handlers := append([]registration{}, r.listeners[event.Type()]...)
	handlers = append(handlers, r.listeners[Wildcard]...)
	r.mu.RUnlock()

	for _, reg := range handlers {
		if err := r.invoke(ctx, reg.handler, event); err != nil {
			r.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type())),
				zap.Uint64("handler_id", uint64(reg.id)),
				zap.Error(err))
		}
	}
}

func (r *Registry) invoke(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler(ctx, event)
}
