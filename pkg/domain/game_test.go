package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"gridrank/pkg/eventbus"
)

func newScheduledGame(t *testing.T, bus eventbus.Publisher) *Game {
	t.Helper()
	game, err := NewFactories(bus).Game.Create(context.Background(), GameSpec{
		SeasonID:   "season-1",
		Week:       1,
		Date:       time.Date(2020, 9, 5, 0, 0, 0, 0, time.UTC),
		HomeTeamID: "team-a",
		AwayTeamID: "team-b",
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return game
}

func TestCompleteDerivesWinnerAndLeavesReceiverUnchanged(t *testing.T) {
	rec := eventbus.NewRecorder(nil)
	game := newScheduledGame(t, rec)

	done, err := game.Complete(context.Background(), 28, 14)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted || done.Score == nil || done.Score.Home != 28 || done.Score.Away != 14 {
		t.Fatalf("unexpected completed state: %+v", done.GameState)
	}
	if done.WinningTeamID != "team-a" || done.LosingTeamID != "team-b" {
		t.Fatalf("expected team-a to win, got winner=%q loser=%q", done.WinningTeamID, done.LosingTeamID)
	}
	if game.Status != StatusScheduled || game.Score != nil {
		t.Fatalf("receiver mutated: %+v", game.GameState)
	}

	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("expected created and completed events, got %d", len(events))
	}
	completed, ok := events[1].(GameCompleted)
	if !ok || completed.Game.Score.Home != 28 || completed.Game.ID != game.ID {
		t.Fatalf("unexpected completed event: %#v", events[1])
	}
}

func TestCompleteAwayWinAndTie(t *testing.T) {
	bus := eventbus.New()
	ctx := context.Background()

	away, err := newScheduledGame(t, bus).Complete(ctx, 3, 10)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if away.WinningTeamID != "team-b" || away.LosingTeamID != "team-a" {
		t.Fatalf("expected away win, got %+v", away.GameState)
	}

	tie, err := newScheduledGame(t, bus).Complete(ctx, 7, 7)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if tie.WinningTeamID != "" || tie.LosingTeamID != "" {
		t.Fatalf("tie must not have a winner: %+v", tie.GameState)
	}

	if _, err := newScheduledGame(t, bus).Complete(ctx, -1, 3); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for negative score, got %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.New()

	completed, err := newScheduledGame(t, bus).Complete(ctx, 1, 0)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	canceled, err := newScheduledGame(t, bus).Cancel(ctx)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	cases := []struct {
		name string
		run  func() error
		from GameStatus
	}{
		{"complete twice", func() error { _, err := completed.Complete(ctx, 2, 0); return err }, StatusCompleted},
		{"cancel completed", func() error { _, err := completed.Cancel(ctx); return err }, StatusCompleted},
		{"reschedule completed", func() error { _, err := completed.Reschedule(ctx, 2, time.Now()); return err }, StatusCompleted},
		{"complete canceled", func() error { _, err := canceled.Complete(ctx, 2, 0); return err }, StatusCanceled},
		{"cancel canceled", func() error { _, err := canceled.Cancel(ctx); return err }, StatusCanceled},
		{"reschedule canceled", func() error { _, err := canceled.Reschedule(ctx, 2, time.Now()); return err }, StatusCanceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			var statusErr *GameStatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected GameStatusError, got %v", err)
			}
			if statusErr.Status != tc.from {
				t.Fatalf("expected status %s in error, got %s", tc.from, statusErr.Status)
			}
		})
	}

	if !CanTransition(StatusScheduled, StatusScheduled) {
		t.Fatalf("reschedule must be allowed")
	}
	if CanTransition(StatusCompleted, StatusScheduled) {
		t.Fatalf("completed games cannot be rescheduled")
	}
}

func TestGameStatusesAndEventsAreDistinct(t *testing.T) {
	statuses := map[GameStatus]string{
		StatusScheduled: "SCHEDULED",
		StatusCompleted: "COMPLETED",
		StatusCanceled:  "CANCELED",
	}
	for status, want := range statuses {
		if string(status) != want {
			t.Fatalf("status %q: want %q", status, want)
		}
	}
	events := map[string]eventbus.Event{
		EventGameCompleted: GameCompleted{},
		EventGameCanceled:  GameCanceled{},
	}
	for want, e := range events {
		if e.EventType() != want {
			t.Fatalf("event %T: want type %q got %q", e, want, e.EventType())
		}
	}
}

func TestRescheduleAndNotes(t *testing.T) {
	ctx := context.Background()
	game := newScheduledGame(t, eventbus.New())
	when := time.Date(2020, 9, 12, 0, 0, 0, 0, time.UTC)

	moved, err := game.Reschedule(ctx, 2, when)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.Week != 2 || !moved.Date.Equal(when) || moved.Status != StatusScheduled {
		t.Fatalf("unexpected rescheduled state: %+v", moved.GameState)
	}
	if game.Week != 1 {
		t.Fatalf("receiver mutated")
	}

	done, err := moved.Complete(ctx, 21, 20)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	noted, err := done.UpdateNotes(ctx, "overtime")
	if err != nil {
		t.Fatalf("notes on completed game: %v", err)
	}
	if noted.Notes != "overtime" || noted.Status != StatusCompleted {
		t.Fatalf("unexpected noted state: %+v", noted.GameState)
	}
}

func TestMutationFailsWhenPublishFails(t *testing.T) {
	bus := eventbus.New()
	game := newScheduledGame(t, bus)
	boom := errors.New("rejected")
	bus.Register(EventGameCanceled, eventbus.HandlerFunc(func(context.Context, eventbus.Event) error { return boom }))

	next, err := game.Cancel(context.Background())
	if !errors.Is(err, boom) || next != nil {
		t.Fatalf("expected publish error and no game, got %v, %v", next, err)
	}
}

func TestApplyGameEvent(t *testing.T) {
	bus := eventbus.New()
	game := newScheduledGame(t, bus)
	done, err := game.Complete(context.Background(), 28, 14)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	current := game.State()
	current.Notes = "kept"
	next, err := ApplyGameEvent(current, GameCompleted{Game: done.State()})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.Status != StatusCompleted || next.WinningTeamID != "team-a" || next.Notes != "kept" {
		t.Fatalf("unexpected folded state: %+v", next)
	}
	if current.Score != nil {
		t.Fatalf("input state mutated")
	}

	other := done.State()
	other.ID = "someone-else"
	if _, err := ApplyGameEvent(current, GameCanceled{Game: other}); !errors.Is(err, ErrOutOfSync) {
		t.Fatalf("expected out of sync for foreign event, got %v", err)
	}

	var unknown *UnknownEventTypeError
	if _, err := ApplyGameEvent(current, SeasonCreated{}); !errors.As(err, &unknown) || unknown.Type != EventSeasonCreated {
		t.Fatalf("expected unknown event type, got %v", err)
	}
}
