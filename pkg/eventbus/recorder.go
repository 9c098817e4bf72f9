package eventbus

import (
	"context"
	"sync"
)

// Recorder is a Bus that additionally keeps every event it delivered without
// error, in publication order.
type Recorder struct {
	*Bus

	mu     sync.Mutex
	events []Event
}

// NewRecorder wraps bus. A nil bus gets a fresh one.
func NewRecorder(bus *Bus) *Recorder {
	if bus == nil {
		bus = New()
	}
	return &Recorder{Bus: bus}
}

// Publish forwards to the wrapped bus and records the event once every
// handler accepted it.
func (r *Recorder) Publish(ctx context.Context, event Event) error {
	if err := r.Bus.Publish(ctx, event); err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Clear forgets everything recorded so far.
func (r *Recorder) Clear() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
