package eventbus

import (
	"context"
	"errors"
	"testing"
)

type pinged struct{ n int }

func (pinged) EventType() string { return "pinged" }

type ponged struct{}

func (ponged) EventType() string { return "ponged" }

type countingHandler struct {
	seen []int
}

func (h *countingHandler) Handle(_ context.Context, e Event) error {
	h.seen = append(h.seen, e.(pinged).n)
	return nil
}

func TestPublishDispatchesInRegistrationOrder(t *testing.T) {
	bus := New()
	var order []string
	bus.Register("pinged", HandlerFunc(func(context.Context, Event) error {
		order = append(order, "first")
		return nil
	}))
	bus.Register("pinged", HandlerFunc(func(context.Context, Event) error {
		order = append(order, "second")
		return nil
	}))

	if err := bus.Publish(context.Background(), pinged{n: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected dispatch order: %v", order)
	}
}

func TestPublishUnknownTypeIsNoop(t *testing.T) {
	bus := New()
	if err := bus.Publish(context.Background(), ponged{}); err != nil {
		t.Fatalf("expected no error for unhandled type, got %v", err)
	}
	if bus.Handles("ponged") {
		t.Fatalf("bare bus should not handle ponged")
	}
}

func TestPublishStopsAtFirstError(t *testing.T) {
	bus := New()
	boom := errors.New("boom")
	called := false
	bus.Register("pinged", HandlerFunc(func(context.Context, Event) error { return boom }))
	bus.Register("pinged", HandlerFunc(func(context.Context, Event) error {
		called = true
		return nil
	}))

	if err := bus.Publish(context.Background(), pinged{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if called {
		t.Fatalf("second handler must not run after an error")
	}
}

func TestPublishNilEvent(t *testing.T) {
	if err := New().Publish(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Fatalf("expected ErrNilEvent, got %v", err)
	}
}

func TestUnregisterRemovesOnlyThatHandler(t *testing.T) {
	bus := New()
	a, b := &countingHandler{}, &countingHandler{}
	bus.Register("pinged", a)
	bus.Register("pinged", b)

	bus.Unregister("pinged", a)
	if err := bus.Publish(context.Background(), pinged{n: 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(a.seen) != 0 {
		t.Fatalf("unregistered handler still called: %v", a.seen)
	}
	if len(b.seen) != 1 || b.seen[0] != 7 {
		t.Fatalf("remaining handler not called: %v", b.seen)
	}

	bus.Unregister("pinged", a)
	bus.Unregister("ponged", b)
	bus.Unregister("pinged", b)
	if bus.Handles("pinged") {
		t.Fatalf("expected no subscribers left")
	}
}

func TestUnregisterFuncHandler(t *testing.T) {
	bus := New()
	calls := 0
	fn := HandlerFunc(func(context.Context, Event) error {
		calls++
		return nil
	})
	bus.Register("pinged", fn)
	bus.Unregister("pinged", fn)
	if err := bus.Publish(context.Background(), pinged{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if calls != 0 {
		t.Fatalf("func handler was not unregistered")
	}
}

func TestRecorderKeepsDeliveredEvents(t *testing.T) {
	rec := NewRecorder(nil)
	fail := errors.New("rejected")
	rec.Register("ponged", HandlerFunc(func(context.Context, Event) error { return fail }))
	ctx := context.Background()

	if err := rec.Publish(ctx, pinged{n: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := rec.Publish(ctx, ponged{}); !errors.Is(err, fail) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if err := rec.Publish(ctx, pinged{n: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	events := rec.Events()
	if len(events) != 2 || rec.Len() != 2 {
		t.Fatalf("expected 2 recorded events, got %d", len(events))
	}
	if events[0].(pinged).n != 1 || events[1].(pinged).n != 2 {
		t.Fatalf("recorded events out of order: %#v", events)
	}

	events[0] = ponged{}
	if _, ok := rec.Events()[0].(pinged); !ok {
		t.Fatalf("Events must return a copy")
	}

	rec.Clear()
	if rec.Len() != 0 {
		t.Fatalf("expected empty recorder after Clear")
	}
}

func TestCounterTalliesPerType(t *testing.T) {
	counter := NewCounter(nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := counter.Publish(ctx, pinged{n: i}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if err := counter.Publish(ctx, ponged{}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if got := counter.Count("pinged"); got != 3 {
		t.Fatalf("expected 3 pinged, got %d", got)
	}
	counts := counter.Counts()
	if counts["ponged"] != 1 || len(counts) != 2 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	counter.Clear()
	if counter.Count("pinged") != 0 {
		t.Fatalf("expected reset counts")
	}
}
