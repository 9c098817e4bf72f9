package memory

import (
	"context"

	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

// viewer gives repositories read access to a Storage, locked or not.
type viewer interface {
	view(fn func(*Storage))
}

// NewRepositories returns lookups over storage. Games are bound to bus.
func NewRepositories(storage *Storage, bus eventbus.Publisher) domain.Repositories {
	return newRepositories(storage, bus)
}

func newRepositories(src viewer, bus eventbus.Publisher) domain.Repositories {
	return domain.Repositories{
		Season:      seasonRepository{src},
		Team:        teamRepository{src},
		Affiliation: affiliationRepository{src},
		Game:        gameRepository{src: src, bus: bus},
		TeamRanking: teamRankingRepository{src},
		GameRanking: gameRankingRepository{src},
		TeamRecord:  teamRecordRepository{src},
	}
}

func one[T any](src viewer, pick func(*Storage) (T, bool)) *T {
	var out *T
	src.view(func(s *Storage) {
		if row, ok := pick(s); ok {
			out = &row
		}
	})
	return out
}

func many[T any](src viewer, pick func(*Storage) []T) []*T {
	var rows []T
	src.view(func(s *Storage) { rows = pick(s) })
	out := make([]*T, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

type seasonRepository struct{ src viewer }

func (r seasonRepository) Get(_ context.Context, id string) (*domain.Season, error) {
	return one(r.src, func(s *Storage) (domain.Season, bool) { return s.seasons.get(id) }), nil
}

func (r seasonRepository) Find(_ context.Context, year int) (*domain.Season, error) {
	return one(r.src, func(s *Storage) (domain.Season, bool) { return s.seasons.find(domain.SeasonKey(year)) }), nil
}

func (r seasonRepository) All(context.Context) ([]*domain.Season, error) {
	return many(r.src, func(s *Storage) []domain.Season { return s.seasons.all() }), nil
}

type teamRepository struct{ src viewer }

func (r teamRepository) Get(_ context.Context, id string) (*domain.Team, error) {
	return one(r.src, func(s *Storage) (domain.Team, bool) { return s.teams.get(id) }), nil
}

func (r teamRepository) Find(_ context.Context, name string) (*domain.Team, error) {
	return one(r.src, func(s *Storage) (domain.Team, bool) { return s.teams.find(domain.TeamKey(name)) }), nil
}

func (r teamRepository) All(context.Context) ([]*domain.Team, error) {
	return many(r.src, func(s *Storage) []domain.Team { return s.teams.all() }), nil
}

type affiliationRepository struct{ src viewer }

func (r affiliationRepository) Get(_ context.Context, id string) (*domain.Affiliation, error) {
	return one(r.src, func(s *Storage) (domain.Affiliation, bool) { return s.affiliations.get(id) }), nil
}

func (r affiliationRepository) Find(_ context.Context, seasonID, teamID string) (*domain.Affiliation, error) {
	return one(r.src, func(s *Storage) (domain.Affiliation, bool) {
		return s.affiliations.find(domain.AffiliationKey(seasonID, teamID))
	}), nil
}

func (r affiliationRepository) ForSeason(_ context.Context, seasonID string) ([]*domain.Affiliation, error) {
	return many(r.src, func(s *Storage) []domain.Affiliation { return s.affiliations.forSeason(seasonID) }), nil
}

type gameRepository struct {
	src viewer
	bus eventbus.Publisher
}

func (r gameRepository) Get(_ context.Context, id string) (*domain.Game, error) {
	return r.bind(one(r.src, func(s *Storage) (domain.GameState, bool) { return s.games.get(id) })), nil
}

func (r gameRepository) Find(_ context.Context, seasonID string, week int, teamA, teamB string) (*domain.Game, error) {
	return r.bind(one(r.src, func(s *Storage) (domain.GameState, bool) {
		return s.games.find(domain.GameKey(seasonID, week, teamA, teamB))
	})), nil
}

func (r gameRepository) ForSeason(_ context.Context, seasonID string) ([]*domain.Game, error) {
	states := many(r.src, func(s *Storage) []domain.GameState { return s.games.forSeason(seasonID) })
	out := make([]*domain.Game, len(states))
	for i, state := range states {
		out[i] = r.bind(state)
	}
	return out, nil
}

func (r gameRepository) bind(state *domain.GameState) *domain.Game {
	if state == nil {
		return nil
	}
	return domain.NewGame(*state, r.bus)
}

type teamRankingRepository struct{ src viewer }

func (r teamRankingRepository) Get(_ context.Context, id string) (*domain.TeamRanking, error) {
	return one(r.src, func(s *Storage) (domain.TeamRanking, bool) { return s.teamRankings.get(id) }), nil
}

func (r teamRankingRepository) Find(_ context.Context, name, seasonID string, week *int) (*domain.TeamRanking, error) {
	return one(r.src, func(s *Storage) (domain.TeamRanking, bool) {
		return s.teamRankings.find(domain.RankingKey(name, seasonID, week))
	}), nil
}

func (r teamRankingRepository) ForSeason(_ context.Context, seasonID string) ([]*domain.TeamRanking, error) {
	return many(r.src, func(s *Storage) []domain.TeamRanking { return s.teamRankings.forSeason(seasonID) }), nil
}

type gameRankingRepository struct{ src viewer }

func (r gameRankingRepository) Get(_ context.Context, id string) (*domain.GameRanking, error) {
	return one(r.src, func(s *Storage) (domain.GameRanking, bool) { return s.gameRankings.get(id) }), nil
}

func (r gameRankingRepository) Find(_ context.Context, name, seasonID string, week *int) (*domain.GameRanking, error) {
	return one(r.src, func(s *Storage) (domain.GameRanking, bool) {
		return s.gameRankings.find(domain.RankingKey(name, seasonID, week))
	}), nil
}

func (r gameRankingRepository) ForSeason(_ context.Context, seasonID string) ([]*domain.GameRanking, error) {
	return many(r.src, func(s *Storage) []domain.GameRanking { return s.gameRankings.forSeason(seasonID) }), nil
}

type teamRecordRepository struct{ src viewer }

func (r teamRecordRepository) Get(_ context.Context, id string) (*domain.TeamRecord, error) {
	return one(r.src, func(s *Storage) (domain.TeamRecord, bool) { return s.teamRecords.get(id) }), nil
}

func (r teamRecordRepository) Find(_ context.Context, seasonID string, week *int) (*domain.TeamRecord, error) {
	return one(r.src, func(s *Storage) (domain.TeamRecord, bool) {
		return s.teamRecords.find(domain.RecordKey(seasonID, week))
	}), nil
}

func (r teamRecordRepository) ForSeason(_ context.Context, seasonID string) ([]*domain.TeamRecord, error) {
	return many(r.src, func(s *Storage) []domain.TeamRecord { return s.teamRecords.forSeason(seasonID) }), nil
}
