package domain

import (
	"context"
	"fmt"

	"gridrank/pkg/eventbus"
)

// SeasonRepository looks up seasons. Lookups return nil, nil on a miss.
type SeasonRepository interface {
	Get(ctx context.Context, id string) (*Season, error)
	Find(ctx context.Context, year int) (*Season, error)
	All(ctx context.Context) ([]*Season, error)
}

// TeamRepository looks up teams.
type TeamRepository interface {
	Get(ctx context.Context, id string) (*Team, error)
	Find(ctx context.Context, name string) (*Team, error)
	All(ctx context.Context) ([]*Team, error)
}

// AffiliationRepository looks up affiliations.
type AffiliationRepository interface {
	Get(ctx context.Context, id string) (*Affiliation, error)
	Find(ctx context.Context, seasonID, teamID string) (*Affiliation, error)
	ForSeason(ctx context.Context, seasonID string) ([]*Affiliation, error)
}

// GameRepository looks up games. Find ignores which team is home.
// Returned games are bound to the bus the repository was created with.
type GameRepository interface {
	Get(ctx context.Context, id string) (*Game, error)
	Find(ctx context.Context, seasonID string, week int, teamA, teamB string) (*Game, error)
	ForSeason(ctx context.Context, seasonID string) ([]*Game, error)
}

// TeamRankingRepository looks up team rankings.
type TeamRankingRepository interface {
	Get(ctx context.Context, id string) (*TeamRanking, error)
	Find(ctx context.Context, name, seasonID string, week *int) (*TeamRanking, error)
	ForSeason(ctx context.Context, seasonID string) ([]*TeamRanking, error)
}

// GameRankingRepository looks up game rankings.
type GameRankingRepository interface {
	Get(ctx context.Context, id string) (*GameRanking, error)
	Find(ctx context.Context, name, seasonID string, week *int) (*GameRanking, error)
	ForSeason(ctx context.Context, seasonID string) ([]*GameRanking, error)
}

// TeamRecordRepository looks up team records.
type TeamRecordRepository interface {
	Get(ctx context.Context, id string) (*TeamRecord, error)
	Find(ctx context.Context, seasonID string, week *int) (*TeamRecord, error)
	ForSeason(ctx context.Context, seasonID string) ([]*TeamRecord, error)
}

// Repositories groups one repository per entity kind.
type Repositories struct {
	Season      SeasonRepository
	Team        TeamRepository
	Affiliation AffiliationRepository
	Game        GameRepository
	TeamRanking TeamRankingRepository
	GameRanking GameRankingRepository
	TeamRecord  TeamRecordRepository
}

// EventHandler applies events to a store. Created events insert and fail
// with *DuplicateKeyError on an existing key; game updates fail with
// *OutOfSyncError when the game is missing; ranking and record events
// replace any row with the same natural key.
type EventHandler interface {
	HandleSeasonCreated(ctx context.Context, e SeasonCreated) error
	HandleTeamCreated(ctx context.Context, e TeamCreated) error
	HandleAffiliationCreated(ctx context.Context, e AffiliationCreated) error
	HandleGameCreated(ctx context.Context, e GameCreated) error
	HandleGameRescheduled(ctx context.Context, e GameRescheduled) error
	HandleGameCanceled(ctx context.Context, e GameCanceled) error
	HandleGameCompleted(ctx context.Context, e GameCompleted) error
	HandleGameNotesUpdated(ctx context.Context, e GameNotesUpdated) error
	HandleTeamRankingCreated(ctx context.Context, e TeamRankingCreated) error
	HandleGameRankingCreated(ctx context.Context, e GameRankingCreated) error
	HandleTeamRecordCreated(ctx context.Context, e TeamRecordCreated) error
}

// TransactionalEventHandler is an EventHandler scoped to one native backend
// transaction. Commit and Rollback finish it; calling either again is a no-op.
type TransactionalEventHandler interface {
	EventHandler
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DataSource is the contract every storage backend implements.
type DataSource interface {
	// Repositories returns lookups over committed state. Games are bound to bus.
	Repositories(bus eventbus.Publisher) Repositories
	// Begin opens a native transaction and returns a handler writing into it.
	Begin(ctx context.Context) (TransactionalEventHandler, error)
	// Drop deletes all data.
	Drop(ctx context.Context) error
	// Close releases connections.
	Close() error
}

// Registration tracks the subscriptions made by RegisterEventHandler.
type Registration struct {
	bus     eventbus.Registrar
	entries []registration
}

type registration struct {
	eventType string
	handler   eventbus.Handler
}

// Unregister removes exactly the subscriptions this registration made.
func (r *Registration) Unregister() {
	if r == nil {
		return
	}
	for _, e := range r.entries {
		r.bus.Unregister(e.eventType, e.handler)
	}
	r.entries = nil
}

// RegisterEventHandler subscribes each method of h to its event type on bus.
func RegisterEventHandler(bus eventbus.Registrar, h EventHandler) *Registration {
	reg := &Registration{bus: bus}
	add := func(eventType string, handler eventbus.Handler) {
		bus.Register(eventType, handler)
		reg.entries = append(reg.entries, registration{eventType: eventType, handler: handler})
	}
	add(EventSeasonCreated, typed(h.HandleSeasonCreated))
	add(EventTeamCreated, typed(h.HandleTeamCreated))
	add(EventAffiliationCreated, typed(h.HandleAffiliationCreated))
	add(EventGameCreated, typed(h.HandleGameCreated))
	add(EventGameRescheduled, typed(h.HandleGameRescheduled))
	add(EventGameCanceled, typed(h.HandleGameCanceled))
	add(EventGameCompleted, typed(h.HandleGameCompleted))
	add(EventGameNotesUpdated, typed(h.HandleGameNotesUpdated))
	add(EventTeamRankingCreated, typed(h.HandleTeamRankingCreated))
	add(EventGameRankingCreated, typed(h.HandleGameRankingCreated))
	add(EventTeamRecordCreated, typed(h.HandleTeamRecordCreated))
	return reg
}

// typedHandler is a pointer so each subscription has its own identity on the bus.
type typedHandler[E eventbus.Event] struct {
	fn func(context.Context, E) error
}

func typed[E eventbus.Event](fn func(context.Context, E) error) *typedHandler[E] {
	return &typedHandler[E]{fn: fn}
}

func (t *typedHandler[E]) Handle(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(E)
	if !ok {
		return fmt.Errorf("event %s delivered as %T", event.EventType(), event)
	}
	return t.fn(ctx, e)
}
