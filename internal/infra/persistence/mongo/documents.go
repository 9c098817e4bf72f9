package mongo

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gridrank/pkg/domain"
)

const (
	fieldKey         = "natural_key"
	fieldSeason      = "season_id"
	eventsCollection = "events"
)

// document wraps an entity with the fields the store queries on.
type document[T any] struct {
	ID       string `bson:"_id"`
	Key      string `bson:"natural_key"`
	SeasonID string `bson:"season_id,omitempty"`
	Body     T      `bson:"body"`
}

// kind maps one entity type to its collection.
type kind[T any] struct {
	collection string
	entity     domain.EntityType
	id         func(T) string
	key        func(T) string
	// season is nil for kinds that are not season scoped.
	season func(T) string
}

func (k kind[T]) document(row T) document[T] {
	d := document[T]{ID: k.id(row), Key: k.key(row), Body: row}
	if k.season != nil {
		d.SeasonID = k.season(row)
	}
	return d
}

var (
	seasonKind = kind[domain.Season]{
		collection: "seasons",
		entity:     domain.EntitySeason,
		id:         func(s domain.Season) string { return s.ID },
		key:        func(s domain.Season) string { return domain.SeasonKey(s.Year) },
	}
	teamKind = kind[domain.Team]{
		collection: "teams",
		entity:     domain.EntityTeam,
		id:         func(t domain.Team) string { return t.ID },
		key:        func(t domain.Team) string { return domain.TeamKey(t.Name) },
	}
	affiliationKind = kind[domain.Affiliation]{
		collection: "affiliations",
		entity:     domain.EntityAffiliation,
		id:         func(a domain.Affiliation) string { return a.ID },
		key:        func(a domain.Affiliation) string { return domain.AffiliationKey(a.SeasonID, a.TeamID) },
		season:     func(a domain.Affiliation) string { return a.SeasonID },
	}
	gameKind = kind[domain.GameState]{
		collection: "games",
		entity:     domain.EntityGame,
		id:         func(g domain.GameState) string { return g.ID },
		key:        func(g domain.GameState) string { return g.Key() },
		season:     func(g domain.GameState) string { return g.SeasonID },
	}
	teamRankingKind = kind[domain.TeamRanking]{
		collection: "team_rankings",
		entity:     domain.EntityTeamRanking,
		id:         func(r domain.TeamRanking) string { return r.ID },
		key:        func(r domain.TeamRanking) string { return r.Key() },
		season:     func(r domain.TeamRanking) string { return r.SeasonID },
	}
	gameRankingKind = kind[domain.GameRanking]{
		collection: "game_rankings",
		entity:     domain.EntityGameRanking,
		id:         func(r domain.GameRanking) string { return r.ID },
		key:        func(r domain.GameRanking) string { return r.Key() },
		season:     func(r domain.GameRanking) string { return r.SeasonID },
	}
	teamRecordKind = kind[domain.TeamRecord]{
		collection: "team_records",
		entity:     domain.EntityTeamRecord,
		id:         func(r domain.TeamRecord) string { return r.ID },
		key:        func(r domain.TeamRecord) string { return r.Key() },
		season:     func(r domain.TeamRecord) string { return r.SeasonID },
	}
)

type collectionSpec struct {
	name         string
	seasonScoped bool
}

var collectionSpecs = []collectionSpec{
	{seasonKind.collection, false},
	{teamKind.collection, false},
	{affiliationKind.collection, true},
	{gameKind.collection, true},
	{teamRankingKind.collection, true},
	{gameRankingKind.collection, true},
	{teamRecordKind.collection, true},
}

func collectionNames() []string {
	names := make([]string, len(collectionSpecs))
	for i, spec := range collectionSpecs {
		names[i] = spec.name
	}
	return names
}

// journalEntry is one applied event. The payload keeps the JSON envelope
// encoding so the journal decodes with domain.UnmarshalEvent.
type journalEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Type      string             `bson:"type"`
	Payload   string             `bson:"payload"`
	AppliedAt time.Time          `bson:"applied_at"`
}

func newJournalEntry(env domain.Envelope, at time.Time) journalEntry {
	return journalEntry{Type: env.Type, Payload: string(env.Payload), AppliedAt: at}
}

func (e journalEntry) envelope() domain.Envelope {
	return domain.Envelope{Type: e.Type, Payload: json.RawMessage(e.Payload)}
}
