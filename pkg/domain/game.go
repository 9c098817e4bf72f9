package domain

import (
	"context"
	"time"

	"gridrank/pkg/eventbus"
)

var transitions = map[GameStatus][]GameStatus{
	StatusScheduled: {StatusScheduled, StatusCompleted, StatusCanceled},
}

// CanTransition reports whether a game may move from one status to another.
// Rescheduling is the SCHEDULED to SCHEDULED transition.
func CanTransition(from, to GameStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Game is an immutable game bound to the bus its mutations publish on.
// Every mutation returns a new Game and leaves the receiver untouched.
type Game struct {
	GameState
	bus eventbus.Publisher
}

// NewGame binds state to bus. Repositories use it to rehydrate stored games.
func NewGame(state GameState, bus eventbus.Publisher) *Game {
	return &Game{GameState: state.Clone(), bus: bus}
}

// State returns a copy of the game's value.
func (g *Game) State() GameState { return g.GameState.Clone() }

// Reschedule moves a scheduled game to another week and date.
func (g *Game) Reschedule(ctx context.Context, week int, date time.Time) (*Game, error) {
	if err := g.require("reschedule", StatusScheduled); err != nil {
		return nil, err
	}
	if week < 0 {
		return nil, invalidf("week %d is negative", week)
	}
	next := g.State()
	next.Week = week
	next.Date = date
	return g.emit(ctx, next, GameRescheduled{Game: next})
}

// Cancel cancels a scheduled game.
func (g *Game) Cancel(ctx context.Context) (*Game, error) {
	if err := g.require("cancel", StatusCanceled); err != nil {
		return nil, err
	}
	next := g.State()
	next.Status = StatusCanceled
	return g.emit(ctx, next, GameCanceled{Game: next})
}

// Complete records the final score of a scheduled game. Equal scores leave
// the winner and loser empty.
func (g *Game) Complete(ctx context.Context, homeScore, awayScore int) (*Game, error) {
	if err := g.require("complete", StatusCompleted); err != nil {
		return nil, err
	}
	if homeScore < 0 || awayScore < 0 {
		return nil, invalidf("negative score %d-%d", homeScore, awayScore)
	}
	next := g.State()
	next.Status = StatusCompleted
	next.Score = &Score{Home: homeScore, Away: awayScore}
	next.WinningTeamID, next.LosingTeamID = "", ""
	switch {
	case homeScore > awayScore:
		next.WinningTeamID, next.LosingTeamID = next.HomeTeamID, next.AwayTeamID
	case awayScore > homeScore:
		next.WinningTeamID, next.LosingTeamID = next.AwayTeamID, next.HomeTeamID
	}
	return g.emit(ctx, next, GameCompleted{Game: next})
}

// UpdateNotes replaces the game's notes. Allowed in every status.
func (g *Game) UpdateNotes(ctx context.Context, notes string) (*Game, error) {
	next := g.State()
	next.Notes = notes
	return g.emit(ctx, next, GameNotesUpdated{Game: next})
}

func (g *Game) require(action string, to GameStatus) error {
	if !CanTransition(g.Status, to) {
		return &GameStatusError{GameID: g.ID, Status: g.Status, Action: action}
	}
	return nil
}

func (g *Game) emit(ctx context.Context, next GameState, event eventbus.Event) (*Game, error) {
	if g.bus == nil {
		return nil, invalidf("game %q is not bound to a bus", g.ID)
	}
	if err := g.bus.Publish(ctx, event); err != nil {
		return nil, err
	}
	return NewGame(next, g.bus), nil
}

// ApplyGameEvent folds a game event into the current state of the same game.
// GameCreated yields the carried state; every other event copies only the
// fields it owns.
func ApplyGameEvent(current GameState, event eventbus.Event) (GameState, error) {
	next := current.Clone()
	switch e := event.(type) {
	case GameCreated:
		return e.Game.Clone(), nil
	case GameRescheduled:
		if e.Game.ID != current.ID {
			return current, &OutOfSyncError{Entity: EntityGame, ID: e.Game.ID, Event: e.EventType()}
		}
		next.Week = e.Game.Week
		next.Date = e.Game.Date
		next.Status = e.Game.Status
	case GameCanceled:
		if e.Game.ID != current.ID {
			return current, &OutOfSyncError{Entity: EntityGame, ID: e.Game.ID, Event: e.EventType()}
		}
		next.Status = e.Game.Status
	case GameCompleted:
		if e.Game.ID != current.ID {
			return current, &OutOfSyncError{Entity: EntityGame, ID: e.Game.ID, Event: e.EventType()}
		}
		done := e.Game.Clone()
		next.Status = done.Status
		next.Score = done.Score
		next.WinningTeamID = done.WinningTeamID
		next.LosingTeamID = done.LosingTeamID
	case GameNotesUpdated:
		if e.Game.ID != current.ID {
			return current, &OutOfSyncError{Entity: EntityGame, ID: e.Game.ID, Event: e.EventType()}
		}
		next.Notes = e.Game.Notes
	default:
		if event == nil {
			return current, &UnknownEventTypeError{}
		}
		return current, &UnknownEventTypeError{Type: event.EventType()}
	}
	return next, nil
}
