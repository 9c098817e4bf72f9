package memory

import (
	"gridrank/pkg/domain"
)

// Storage holds one indexed table per entity kind. It is not safe for
// concurrent use on its own: Store guards its committed Storage with a lock,
// and a unit of work owns its cache Storage exclusively.
type Storage struct {
	seasons      *table[domain.Season]
	teams        *table[domain.Team]
	affiliations *table[domain.Affiliation]
	games        *table[domain.GameState]
	teamRankings *table[domain.TeamRanking]
	gameRankings *table[domain.GameRanking]
	teamRecords  *table[domain.TeamRecord]
}

// NewStorage returns empty storage.
func NewStorage() *Storage {
	return &Storage{
		seasons: newTable(domain.EntitySeason,
			func(s domain.Season) string { return s.ID },
			func(s domain.Season) string { return domain.SeasonKey(s.Year) },
			nil, nil),
		teams: newTable(domain.EntityTeam,
			func(t domain.Team) string { return t.ID },
			func(t domain.Team) string { return domain.TeamKey(t.Name) },
			nil, nil),
		affiliations: newTable(domain.EntityAffiliation,
			func(a domain.Affiliation) string { return a.ID },
			func(a domain.Affiliation) string { return domain.AffiliationKey(a.SeasonID, a.TeamID) },
			func(a domain.Affiliation) string { return a.SeasonID },
			nil),
		games: newTable(domain.EntityGame,
			func(g domain.GameState) string { return g.ID },
			domain.GameState.Key,
			func(g domain.GameState) string { return g.SeasonID },
			domain.GameState.Clone),
		teamRankings: newTable(domain.EntityTeamRanking,
			func(r domain.TeamRanking) string { return r.ID },
			domain.TeamRanking.Key,
			func(r domain.TeamRanking) string { return r.SeasonID },
			domain.TeamRanking.Clone),
		gameRankings: newTable(domain.EntityGameRanking,
			func(r domain.GameRanking) string { return r.ID },
			domain.GameRanking.Key,
			func(r domain.GameRanking) string { return r.SeasonID },
			domain.GameRanking.Clone),
		teamRecords: newTable(domain.EntityTeamRecord,
			func(r domain.TeamRecord) string { return r.ID },
			domain.TeamRecord.Key,
			func(r domain.TeamRecord) string { return r.SeasonID },
			domain.TeamRecord.Clone),
	}
}

// Drop empties every table.
func (s *Storage) Drop() {
	s.seasons.drop()
	s.teams.drop()
	s.affiliations.drop()
	s.games.drop()
	s.teamRankings.drop()
	s.gameRankings.drop()
	s.teamRecords.drop()
}

// Len returns the total number of rows across all tables.
func (s *Storage) Len() int {
	return s.seasons.len() + s.teams.len() + s.affiliations.len() + s.games.len() +
		s.teamRankings.len() + s.gameRankings.len() + s.teamRecords.len()
}

func (s *Storage) clone() *Storage {
	return &Storage{
		seasons:      s.seasons.clone(),
		teams:        s.teams.clone(),
		affiliations: s.affiliations.clone(),
		games:        s.games.clone(),
		teamRankings: s.teamRankings.clone(),
		gameRankings: s.gameRankings.clone(),
		teamRecords:  s.teamRecords.clone(),
	}
}

// view runs fn against the storage itself. Store overrides this with a
// locked view of its committed state.
func (s *Storage) view(fn func(*Storage)) { fn(s) }

// Snapshot is a point-in-time copy of every row, in insertion order.
type Snapshot struct {
	Seasons      []domain.Season      `json:"seasons"`
	Teams        []domain.Team        `json:"teams"`
	Affiliations []domain.Affiliation `json:"affiliations"`
	Games        []domain.GameState   `json:"games"`
	TeamRankings []domain.TeamRanking `json:"team_rankings"`
	GameRankings []domain.GameRanking `json:"game_rankings"`
	TeamRecords  []domain.TeamRecord  `json:"team_records"`
}

// Snapshot copies every row.
func (s *Storage) Snapshot() Snapshot {
	return Snapshot{
		Seasons:      s.seasons.all(),
		Teams:        s.teams.all(),
		Affiliations: s.affiliations.all(),
		Games:        s.games.all(),
		TeamRankings: s.teamRankings.all(),
		GameRankings: s.gameRankings.all(),
		TeamRecords:  s.teamRecords.all(),
	}
}
