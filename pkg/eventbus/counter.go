package eventbus

import (
	"context"
	"sync"
)

// Counter is a Bus that tallies publications per event type.
type Counter struct {
	*Bus

	mu     sync.Mutex
	counts map[string]int
}

// NewCounter wraps bus. A nil bus gets a fresh one.
func NewCounter(bus *Bus) *Counter {
	if bus == nil {
		bus = New()
	}
	return &Counter{Bus: bus, counts: make(map[string]int)}
}

// Publish counts the event and forwards it. Failed deliveries still count.
func (c *Counter) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return ErrNilEvent
	}
	c.mu.Lock()
	c.counts[event.EventType()]++
	c.mu.Unlock()
	return c.Bus.Publish(ctx, event)
}

// Count returns how often eventType was published.
func (c *Counter) Count(eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[eventType]
}

// Counts returns a copy of all tallies.
func (c *Counter) Counts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Clear resets all tallies.
func (c *Counter) Clear() {
	c.mu.Lock()
	c.counts = make(map[string]int)
	c.mu.Unlock()
}
