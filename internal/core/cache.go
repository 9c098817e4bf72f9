package core

import (
	"context"

	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

// kind describes how the cache handles rows of one entity type.
type kind[T any] struct {
	id func(*T) string
	// cached returns the cache row with the given ID.
	cached func(ctx context.Context, id string) (*T, error)
	// holder returns the cache row holding row's natural key.
	holder  func(ctx context.Context, row *T) (*T, error)
	created func(*T) eventbus.Event
	// replaces marks replace-on-write kinds: a cache row holding the key
	// means the backing row was superseded in this unit of work.
	replaces bool
}

// readThrough answers from the cache and falls back to the backing store.
// A backing hit is copied into the cache unless the cache already holds a
// newer version of it under another key, or a replacement for it.
func (k kind[T]) readThrough(ctx context.Context, u *UnitOfWork, fromCache, fromBacking func() (*T, error)) (*T, error) {
	if err := u.ensureOpen(); err != nil {
		return nil, err
	}
	if hit, err := fromCache(); err != nil || hit != nil {
		return hit, err
	}
	row, err := fromBacking()
	if err != nil || row == nil {
		return nil, err
	}
	if moved, err := k.cached(ctx, k.id(row)); err != nil || moved != nil {
		return nil, err
	}
	if k.replaces {
		if replacement, err := k.holder(ctx, row); err != nil || replacement != nil {
			return nil, err
		}
	}
	if err := u.echo(ctx, k.created(row)); err != nil {
		return nil, err
	}
	return fromCache()
}

// merge copies every backing row the cache does not know into the cache and
// answers from the cache.
func (k kind[T]) merge(ctx context.Context, u *UnitOfWork, fromCache, fromBacking func() ([]*T, error)) ([]*T, error) {
	if err := u.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := fromBacking()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		known, err := k.cached(ctx, k.id(row))
		if err != nil {
			return nil, err
		}
		if known == nil {
			known, err = k.holder(ctx, row)
			if err != nil {
				return nil, err
			}
		}
		if known != nil {
			continue
		}
		if err := u.echo(ctx, k.created(row)); err != nil {
			return nil, err
		}
	}
	return fromCache()
}

func seasonKind(u *UnitOfWork) kind[domain.Season] {
	return kind[domain.Season]{
		id:     func(s *domain.Season) string { return s.ID },
		cached: u.cache.Season.Get,
		holder: func(ctx context.Context, s *domain.Season) (*domain.Season, error) {
			return u.cache.Season.Find(ctx, s.Year)
		},
		created: func(s *domain.Season) eventbus.Event { return domain.SeasonCreated{Season: *s} },
	}
}

type cachedSeasons struct{ u *UnitOfWork }

func (r cachedSeasons) Get(ctx context.Context, id string) (*domain.Season, error) {
	return seasonKind(r.u).readThrough(ctx, r.u,
		func() (*domain.Season, error) { return r.u.cache.Season.Get(ctx, id) },
		func() (*domain.Season, error) { return r.u.backing.Season.Get(ctx, id) })
}

func (r cachedSeasons) Find(ctx context.Context, year int) (*domain.Season, error) {
	return seasonKind(r.u).readThrough(ctx, r.u,
		func() (*domain.Season, error) { return r.u.cache.Season.Find(ctx, year) },
		func() (*domain.Season, error) { return r.u.backing.Season.Find(ctx, year) })
}

func (r cachedSeasons) All(ctx context.Context) ([]*domain.Season, error) {
	return seasonKind(r.u).merge(ctx, r.u,
		func() ([]*domain.Season, error) { return r.u.cache.Season.All(ctx) },
		func() ([]*domain.Season, error) { return r.u.backing.Season.All(ctx) })
}

func teamKind(u *UnitOfWork) kind[domain.Team] {
	return kind[domain.Team]{
		id:     func(t *domain.Team) string { return t.ID },
		cached: u.cache.Team.Get,
		holder: func(ctx context.Context, t *domain.Team) (*domain.Team, error) {
			return u.cache.Team.Find(ctx, t.Name)
		},
		created: func(t *domain.Team) eventbus.Event { return domain.TeamCreated{Team: *t} },
	}
}

type cachedTeams struct{ u *UnitOfWork }

func (r cachedTeams) Get(ctx context.Context, id string) (*domain.Team, error) {
	return teamKind(r.u).readThrough(ctx, r.u,
		func() (*domain.Team, error) { return r.u.cache.Team.Get(ctx, id) },
		func() (*domain.Team, error) { return r.u.backing.Team.Get(ctx, id) })
}

func (r cachedTeams) Find(ctx context.Context, name string) (*domain.Team, error) {
	return teamKind(r.u).readThrough(ctx, r.u,
		func() (*domain.Team, error) { return r.u.cache.Team.Find(ctx, name) },
		func() (*domain.Team, error) { return r.u.backing.Team.Find(ctx, name) })
}

func (r cachedTeams) All(ctx context.Context) ([]*domain.Team, error) {
	return teamKind(r.u).merge(ctx, r.u,
		func() ([]*domain.Team, error) { return r.u.cache.Team.All(ctx) },
		func() ([]*domain.Team, error) { return r.u.backing.Team.All(ctx) })
}

func affiliationKind(u *UnitOfWork) kind[domain.Affiliation] {
	return kind[domain.Affiliation]{
		id:     func(a *domain.Affiliation) string { return a.ID },
		cached: u.cache.Affiliation.Get,
		holder: func(ctx context.Context, a *domain.Affiliation) (*domain.Affiliation, error) {
			return u.cache.Affiliation.Find(ctx, a.SeasonID, a.TeamID)
		},
		created: func(a *domain.Affiliation) eventbus.Event { return domain.AffiliationCreated{Affiliation: *a} },
	}
}

type cachedAffiliations struct{ u *UnitOfWork }

func (r cachedAffiliations) Get(ctx context.Context, id string) (*domain.Affiliation, error) {
	return affiliationKind(r.u).readThrough(ctx, r.u,
		func() (*domain.Affiliation, error) { return r.u.cache.Affiliation.Get(ctx, id) },
		func() (*domain.Affiliation, error) { return r.u.backing.Affiliation.Get(ctx, id) })
}

func (r cachedAffiliations) Find(ctx context.Context, seasonID, teamID string) (*domain.Affiliation, error) {
	return affiliationKind(r.u).readThrough(ctx, r.u,
		func() (*domain.Affiliation, error) { return r.u.cache.Affiliation.Find(ctx, seasonID, teamID) },
		func() (*domain.Affiliation, error) { return r.u.backing.Affiliation.Find(ctx, seasonID, teamID) })
}

func (r cachedAffiliations) ForSeason(ctx context.Context, seasonID string) ([]*domain.Affiliation, error) {
	return affiliationKind(r.u).merge(ctx, r.u,
		func() ([]*domain.Affiliation, error) { return r.u.cache.Affiliation.ForSeason(ctx, seasonID) },
		func() ([]*domain.Affiliation, error) { return r.u.backing.Affiliation.ForSeason(ctx, seasonID) })
}

func gameKind(u *UnitOfWork) kind[domain.Game] {
	return kind[domain.Game]{
		id:     func(g *domain.Game) string { return g.ID },
		cached: u.cache.Game.Get,
		holder: func(ctx context.Context, g *domain.Game) (*domain.Game, error) {
			return u.cache.Game.Find(ctx, g.SeasonID, g.Week, g.HomeTeamID, g.AwayTeamID)
		},
		created: func(g *domain.Game) eventbus.Event { return domain.GameCreated{Game: g.State()} },
	}
}

type cachedGames struct{ u *UnitOfWork }

func (r cachedGames) Get(ctx context.Context, id string) (*domain.Game, error) {
	return gameKind(r.u).readThrough(ctx, r.u,
		func() (*domain.Game, error) { return r.u.cache.Game.Get(ctx, id) },
		func() (*domain.Game, error) { return r.u.backing.Game.Get(ctx, id) })
}

func (r cachedGames) Find(ctx context.Context, seasonID string, week int, teamA, teamB string) (*domain.Game, error) {
	return gameKind(r.u).readThrough(ctx, r.u,
		func() (*domain.Game, error) { return r.u.cache.Game.Find(ctx, seasonID, week, teamA, teamB) },
		func() (*domain.Game, error) { return r.u.backing.Game.Find(ctx, seasonID, week, teamA, teamB) })
}

func (r cachedGames) ForSeason(ctx context.Context, seasonID string) ([]*domain.Game, error) {
	return gameKind(r.u).merge(ctx, r.u,
		func() ([]*domain.Game, error) { return r.u.cache.Game.ForSeason(ctx, seasonID) },
		func() ([]*domain.Game, error) { return r.u.backing.Game.ForSeason(ctx, seasonID) })
}

func teamRankingKind(u *UnitOfWork) kind[domain.TeamRanking] {
	return kind[domain.TeamRanking]{
		id:     func(r *domain.TeamRanking) string { return r.ID },
		cached: u.cache.TeamRanking.Get,
		holder: func(ctx context.Context, r *domain.TeamRanking) (*domain.TeamRanking, error) {
			return u.cache.TeamRanking.Find(ctx, r.Name, r.SeasonID, r.Week)
		},
		created:  func(r *domain.TeamRanking) eventbus.Event { return domain.TeamRankingCreated{Ranking: *r} },
		replaces: true,
	}
}

type cachedTeamRankings struct{ u *UnitOfWork }

func (r cachedTeamRankings) Get(ctx context.Context, id string) (*domain.TeamRanking, error) {
	return teamRankingKind(r.u).readThrough(ctx, r.u,
		func() (*domain.TeamRanking, error) { return r.u.cache.TeamRanking.Get(ctx, id) },
		func() (*domain.TeamRanking, error) { return r.u.backing.TeamRanking.Get(ctx, id) })
}

func (r cachedTeamRankings) Find(ctx context.Context, name, seasonID string, week *int) (*domain.TeamRanking, error) {
	return teamRankingKind(r.u).readThrough(ctx, r.u,
		func() (*domain.TeamRanking, error) { return r.u.cache.TeamRanking.Find(ctx, name, seasonID, week) },
		func() (*domain.TeamRanking, error) { return r.u.backing.TeamRanking.Find(ctx, name, seasonID, week) })
}

func (r cachedTeamRankings) ForSeason(ctx context.Context, seasonID string) ([]*domain.TeamRanking, error) {
	return teamRankingKind(r.u).merge(ctx, r.u,
		func() ([]*domain.TeamRanking, error) { return r.u.cache.TeamRanking.ForSeason(ctx, seasonID) },
		func() ([]*domain.TeamRanking, error) { return r.u.backing.TeamRanking.ForSeason(ctx, seasonID) })
}

func gameRankingKind(u *UnitOfWork) kind[domain.GameRanking] {
	return kind[domain.GameRanking]{
		id:     func(r *domain.GameRanking) string { return r.ID },
		cached: u.cache.GameRanking.Get,
		holder: func(ctx context.Context, r *domain.GameRanking) (*domain.GameRanking, error) {
			return u.cache.GameRanking.Find(ctx, r.Name, r.SeasonID, r.Week)
		},
		created:  func(r *domain.GameRanking) eventbus.Event { return domain.GameRankingCreated{Ranking: *r} },
		replaces: true,
	}
}

type cachedGameRankings struct{ u *UnitOfWork }

func (r cachedGameRankings) Get(ctx context.Context, id string) (*domain.GameRanking, error) {
	return gameRankingKind(r.u).readThrough(ctx, r.u,
		func() (*domain.GameRanking, error) { return r.u.cache.GameRanking.Get(ctx, id) },
		func() (*domain.GameRanking, error) { return r.u.backing.GameRanking.Get(ctx, id) })
}

func (r cachedGameRankings) Find(ctx context.Context, name, seasonID string, week *int) (*domain.GameRanking, error) {
	return gameRankingKind(r.u).readThrough(ctx, r.u,
		func() (*domain.GameRanking, error) { return r.u.cache.GameRanking.Find(ctx, name, seasonID, week) },
		func() (*domain.GameRanking, error) { return r.u.backing.GameRanking.Find(ctx, name, seasonID, week) })
}

func (r cachedGameRankings) ForSeason(ctx context.Context, seasonID string) ([]*domain.GameRanking, error) {
	return gameRankingKind(r.u).merge(ctx, r.u,
		func() ([]*domain.GameRanking, error) { return r.u.cache.GameRanking.ForSeason(ctx, seasonID) },
		func() ([]*domain.GameRanking, error) { return r.u.backing.GameRanking.ForSeason(ctx, seasonID) })
}

func teamRecordKind(u *UnitOfWork) kind[domain.TeamRecord] {
	return kind[domain.TeamRecord]{
		id:     func(r *domain.TeamRecord) string { return r.ID },
		cached: u.cache.TeamRecord.Get,
		holder: func(ctx context.Context, r *domain.TeamRecord) (*domain.TeamRecord, error) {
			return u.cache.TeamRecord.Find(ctx, r.SeasonID, r.Week)
		},
		created:  func(r *domain.TeamRecord) eventbus.Event { return domain.TeamRecordCreated{Record: *r} },
		replaces: true,
	}
}

type cachedTeamRecords struct{ u *UnitOfWork }

func (r cachedTeamRecords) Get(ctx context.Context, id string) (*domain.TeamRecord, error) {
	return teamRecordKind(r.u).readThrough(ctx, r.u,
		func() (*domain.TeamRecord, error) { return r.u.cache.TeamRecord.Get(ctx, id) },
		func() (*domain.TeamRecord, error) { return r.u.backing.TeamRecord.Get(ctx, id) })
}

func (r cachedTeamRecords) Find(ctx context.Context, seasonID string, week *int) (*domain.TeamRecord, error) {
	return teamRecordKind(r.u).readThrough(ctx, r.u,
		func() (*domain.TeamRecord, error) { return r.u.cache.TeamRecord.Find(ctx, seasonID, week) },
		func() (*domain.TeamRecord, error) { return r.u.backing.TeamRecord.Find(ctx, seasonID, week) })
}

func (r cachedTeamRecords) ForSeason(ctx context.Context, seasonID string) ([]*domain.TeamRecord, error) {
	return teamRecordKind(r.u).merge(ctx, r.u,
		func() ([]*domain.TeamRecord, error) { return r.u.cache.TeamRecord.ForSeason(ctx, seasonID) },
		func() ([]*domain.TeamRecord, error) { return r.u.backing.TeamRecord.ForSeason(ctx, seasonID) })
}
