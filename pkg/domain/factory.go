package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"gridrank/pkg/eventbus"
)

var newID = uuid.NewString

// Factories groups one factory per entity kind, all bound to the same bus.
type Factories struct {
	Season      *SeasonFactory
	Team        *TeamFactory
	Affiliation *AffiliationFactory
	Game        *GameFactory
	TeamRanking *TeamRankingFactory
	GameRanking *GameRankingFactory
	TeamRecord  *TeamRecordFactory
}

// NewFactories binds a full factory set to bus.
func NewFactories(bus eventbus.Publisher) Factories {
	return Factories{
		Season:      &SeasonFactory{bus: bus},
		Team:        &TeamFactory{bus: bus},
		Affiliation: &AffiliationFactory{bus: bus},
		Game:        &GameFactory{bus: bus},
		TeamRanking: &TeamRankingFactory{bus: bus},
		GameRanking: &GameRankingFactory{bus: bus},
		TeamRecord:  &TeamRecordFactory{bus: bus},
	}
}

// SeasonFactory creates seasons.
type SeasonFactory struct{ bus eventbus.Publisher }

// Create publishes SeasonCreated for a new season.
func (f *SeasonFactory) Create(ctx context.Context, year int) (*Season, error) {
	if year <= 0 {
		return nil, invalidf("season year %d", year)
	}
	season := Season{ID: newID(), Year: year}
	if err := f.bus.Publish(ctx, SeasonCreated{Season: season}); err != nil {
		return nil, err
	}
	return &season, nil
}

// TeamFactory creates teams.
type TeamFactory struct{ bus eventbus.Publisher }

// Create publishes TeamCreated for a new team.
func (f *TeamFactory) Create(ctx context.Context, name string) (*Team, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalidf("team name is empty")
	}
	team := Team{ID: newID(), Name: name}
	if err := f.bus.Publish(ctx, TeamCreated{Team: team}); err != nil {
		return nil, err
	}
	return &team, nil
}

// AffiliationFactory creates affiliations.
type AffiliationFactory struct{ bus eventbus.Publisher }

// Create publishes AffiliationCreated for a new affiliation.
func (f *AffiliationFactory) Create(ctx context.Context, seasonID, teamID string, subdivision Subdivision) (*Affiliation, error) {
	if seasonID == "" || teamID == "" {
		return nil, invalidf("affiliation needs a season and a team")
	}
	switch subdivision {
	case SubdivisionFBS, SubdivisionFCS:
	default:
		return nil, invalidf("subdivision %q", subdivision)
	}
	affiliation := Affiliation{ID: newID(), SeasonID: seasonID, TeamID: teamID, Subdivision: subdivision}
	if err := f.bus.Publish(ctx, AffiliationCreated{Affiliation: affiliation}); err != nil {
		return nil, err
	}
	return &affiliation, nil
}

// GameSpec is the input of GameFactory.Create. New games are always
// scheduled.
type GameSpec struct {
	SeasonID      string
	Week          int
	Date          time.Time
	SeasonSection SeasonSection
	HomeTeamID    string
	AwayTeamID    string
	Notes         string
}

// GameFactory creates games.
type GameFactory struct{ bus eventbus.Publisher }

// Create publishes GameCreated for a new scheduled game and returns it bound
// to the factory's bus.
func (f *GameFactory) Create(ctx context.Context, spec GameSpec) (*Game, error) {
	if spec.SeasonID == "" || spec.HomeTeamID == "" || spec.AwayTeamID == "" {
		return nil, invalidf("game needs a season and two teams")
	}
	if spec.HomeTeamID == spec.AwayTeamID {
		return nil, invalidf("team %q cannot play itself", spec.HomeTeamID)
	}
	if spec.Week < 0 {
		return nil, invalidf("week %d is negative", spec.Week)
	}
	section := spec.SeasonSection
	if section == "" {
		section = SectionRegular
	}
	state := GameState{
		ID:            newID(),
		SeasonID:      spec.SeasonID,
		Week:          spec.Week,
		Date:          spec.Date,
		SeasonSection: section,
		HomeTeamID:    spec.HomeTeamID,
		AwayTeamID:    spec.AwayTeamID,
		Status:        StatusScheduled,
		Notes:         spec.Notes,
	}
	if err := f.bus.Publish(ctx, GameCreated{Game: state}); err != nil {
		return nil, err
	}
	return NewGame(state, f.bus), nil
}

// TeamRankingFactory creates team rankings.
type TeamRankingFactory struct{ bus eventbus.Publisher }

// Create publishes TeamRankingCreated.
func (f *TeamRankingFactory) Create(ctx context.Context, name, seasonID string, week *int, values []TeamRankingValue) (*TeamRanking, error) {
	if name == "" || seasonID == "" {
		return nil, invalidf("ranking needs a name and a season")
	}
	ranking := TeamRanking{ID: newID(), Name: name, SeasonID: seasonID, Week: week, Values: values}.Clone()
	if err := f.bus.Publish(ctx, TeamRankingCreated{Ranking: ranking}); err != nil {
		return nil, err
	}
	out := ranking.Clone()
	return &out, nil
}

// GameRankingFactory creates game rankings.
type GameRankingFactory struct{ bus eventbus.Publisher }

// Create publishes GameRankingCreated.
func (f *GameRankingFactory) Create(ctx context.Context, name, seasonID string, week *int, values []GameRankingValue) (*GameRanking, error) {
	if name == "" || seasonID == "" {
		return nil, invalidf("ranking needs a name and a season")
	}
	ranking := GameRanking{ID: newID(), Name: name, SeasonID: seasonID, Week: week, Values: values}.Clone()
	if err := f.bus.Publish(ctx, GameRankingCreated{Ranking: ranking}); err != nil {
		return nil, err
	}
	out := ranking.Clone()
	return &out, nil
}

// TeamRecordFactory creates team records.
type TeamRecordFactory struct{ bus eventbus.Publisher }

// Create publishes TeamRecordCreated.
func (f *TeamRecordFactory) Create(ctx context.Context, seasonID string, week *int, values []TeamRecordValue) (*TeamRecord, error) {
	if seasonID == "" {
		return nil, invalidf("record needs a season")
	}
	record := TeamRecord{ID: newID(), SeasonID: seasonID, Week: week, Values: values}.Clone()
	if err := f.bus.Publish(ctx, TeamRecordCreated{Record: record}); err != nil {
		return nil, err
	}
	out := record.Clone()
	return &out, nil
}
