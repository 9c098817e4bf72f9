// Package eventbus provides a synchronous publish/subscribe bus keyed by event
// type name, plus decorators that record or count what flows through it.
//
// A bus is always an explicit value handed to the components that need it;
// the package keeps no global state.
package eventbus

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// ErrNilEvent is returned when Publish receives a nil event.
var ErrNilEvent = errors.New("eventbus: nil event")

// Event is anything that can be dispatched. EventType is the exact name
// handlers subscribe to.
type Event interface {
	EventType() string
}

// Handler consumes events of the types it was registered for.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Publisher is the narrow view entities and factories hold.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Registrar is the subscription side of a bus.
type Registrar interface {
	Register(eventType string, handler Handler)
	Unregister(eventType string, handler Handler)
	Handles(eventType string) bool
}

// Bus dispatches events to handlers in registration order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

var (
	_ Publisher = (*Bus)(nil)
	_ Registrar = (*Bus)(nil)
)

// New returns an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Register appends handler to the subscribers of eventType.
func (b *Bus) Register(eventType string, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
}

// Unregister removes the first subscription of handler for eventType.
// Unknown handlers are ignored.
func (b *Bus) Unregister(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.handlers[eventType]
	for i, h := range current {
		if !sameHandler(h, handler) {
			continue
		}
		next := make([]Handler, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, eventType)
		} else {
			b.handlers[eventType] = next
		}
		return
	}
}

// Handles reports whether at least one handler is subscribed to eventType.
func (b *Bus) Handles(eventType string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType]) > 0
}

// Publish invokes every handler subscribed to the event's type and stops at
// the first error. Events nobody subscribed to are dropped.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return ErrNilEvent
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.EventType()]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// sameHandler compares function handlers by code pointer and everything else
// by interface identity. Non-comparable handler values never match.
func sameHandler(a, b Handler) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func {
		return va.Pointer() == vb.Pointer()
	}
	if !va.Type().Comparable() {
		return false
	}
	return a == b
}
