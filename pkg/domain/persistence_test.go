package domain

import (
	"context"
	"errors"
	"testing"

	"gridrank/pkg/eventbus"
)

// traceHandler records the name of every handler method invoked.
type traceHandler struct {
	calls []string
	fail  string
}

func (h *traceHandler) note(name string) error {
	h.calls = append(h.calls, name)
	if name == h.fail {
		return errors.New("failed " + name)
	}
	return nil
}

func (h *traceHandler) HandleSeasonCreated(context.Context, SeasonCreated) error {
	return h.note(EventSeasonCreated)
}
func (h *traceHandler) HandleTeamCreated(context.Context, TeamCreated) error {
	return h.note(EventTeamCreated)
}
func (h *traceHandler) HandleAffiliationCreated(context.Context, AffiliationCreated) error {
	return h.note(EventAffiliationCreated)
}
func (h *traceHandler) HandleGameCreated(context.Context, GameCreated) error {
	return h.note(EventGameCreated)
}
func (h *traceHandler) HandleGameRescheduled(context.Context, GameRescheduled) error {
	return h.note(EventGameRescheduled)
}
func (h *traceHandler) HandleGameCanceled(context.Context, GameCanceled) error {
	return h.note(EventGameCanceled)
}
func (h *traceHandler) HandleGameCompleted(context.Context, GameCompleted) error {
	return h.note(EventGameCompleted)
}
func (h *traceHandler) HandleGameNotesUpdated(context.Context, GameNotesUpdated) error {
	return h.note(EventGameNotesUpdated)
}
func (h *traceHandler) HandleTeamRankingCreated(context.Context, TeamRankingCreated) error {
	return h.note(EventTeamRankingCreated)
}
func (h *traceHandler) HandleGameRankingCreated(context.Context, GameRankingCreated) error {
	return h.note(EventGameRankingCreated)
}
func (h *traceHandler) HandleTeamRecordCreated(context.Context, TeamRecordCreated) error {
	return h.note(EventTeamRecordCreated)
}

func TestRegisterEventHandlerCoversEveryEventType(t *testing.T) {
	bus := eventbus.New()
	h := &traceHandler{}
	reg := RegisterEventHandler(bus, h)

	for _, eventType := range EventTypes {
		if !bus.Handles(eventType) {
			t.Fatalf("no subscription for %s", eventType)
		}
	}

	events := []eventbus.Event{
		SeasonCreated{}, TeamCreated{}, AffiliationCreated{}, GameCreated{}, GameRescheduled{},
		GameCanceled{}, GameCompleted{}, GameNotesUpdated{}, TeamRankingCreated{},
		GameRankingCreated{}, TeamRecordCreated{},
	}
	for _, e := range events {
		if err := bus.Publish(context.Background(), e); err != nil {
			t.Fatalf("publish %s: %v", e.EventType(), err)
		}
	}
	if len(h.calls) != len(EventTypes) {
		t.Fatalf("expected %d calls, got %v", len(EventTypes), h.calls)
	}
	for i, name := range EventTypes {
		if h.calls[i] != name {
			t.Fatalf("call %d: expected %s got %s", i, name, h.calls[i])
		}
	}

	reg.Unregister()
	for _, eventType := range EventTypes {
		if bus.Handles(eventType) {
			t.Fatalf("subscription for %s survived Unregister", eventType)
		}
	}
	reg.Unregister()
}

func TestRegistrationsAreIndependent(t *testing.T) {
	bus := eventbus.New()
	first, second := &traceHandler{}, &traceHandler{}
	regFirst := RegisterEventHandler(bus, first)
	RegisterEventHandler(bus, second)

	regFirst.Unregister()
	if err := bus.Publish(context.Background(), TeamCreated{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(first.calls) != 0 || len(second.calls) != 1 {
		t.Fatalf("unregister removed the wrong handler: first=%v second=%v", first.calls, second.calls)
	}
}

func TestRegisteredHandlerErrorPropagates(t *testing.T) {
	bus := eventbus.New()
	RegisterEventHandler(bus, &traceHandler{fail: EventGameCreated})
	if err := bus.Publish(context.Background(), GameCreated{}); err == nil {
		t.Fatalf("expected handler error")
	}
}

func TestNaturalKeys(t *testing.T) {
	if GameKey("s", 1, "a", "b") != GameKey("s", 1, "b", "a") {
		t.Fatalf("game key must ignore home/away order")
	}
	if GameKey("s", 1, "a", "b") == GameKey("s", 2, "a", "b") {
		t.Fatalf("game key must include the week")
	}
	if RankingKey("ap", "s", nil) == RankingKey("ap", "s", Week(0)) {
		t.Fatalf("season-wide ranking must not collide with week 0")
	}
	if RecordKey("s", Week(3)) != (TeamRecord{SeasonID: "s", Week: Week(3)}).Key() {
		t.Fatalf("record key mismatch")
	}
	if !SameWeek(nil, nil) || SameWeek(nil, Week(1)) || !SameWeek(Week(2), Week(2)) {
		t.Fatalf("SameWeek mismatch")
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	var err error = &DuplicateKeyError{Entity: EntityTeam, Key: "A"}
	if !errors.Is(err, ErrDuplicateKey) || errors.Is(err, ErrOutOfSync) {
		t.Fatalf("duplicate key sentinel mismatch")
	}
	err = &OutOfSyncError{Entity: EntityGame, ID: "g", Event: EventGameCompleted}
	if !errors.Is(err, ErrOutOfSync) {
		t.Fatalf("out of sync sentinel mismatch")
	}
	if (&GameStatusError{GameID: "g", Status: StatusCompleted}).Error() == "" {
		t.Fatalf("empty error text")
	}
}
