package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

func newRepositories(c conn, bus eventbus.Publisher) domain.Repositories {
	return domain.Repositories{
		Season:      seasonRepository{c},
		Team:        teamRepository{c},
		Affiliation: affiliationRepository{c},
		Game:        gameRepository{c: c, bus: bus},
		TeamRanking: teamRankingRepository{c},
		GameRanking: gameRankingRepository{c},
		TeamRecord:  teamRecordRepository{c},
	}
}

func scanSeason(sc scanner) (domain.Season, error) {
	var s domain.Season
	err := sc.Scan(&s.ID, &s.Year)
	return s, err
}

type seasonRepository struct{ c conn }

func (r seasonRepository) Get(ctx context.Context, id string) (*domain.Season, error) {
	return queryOne(ctx, r.c, scanSeason, `SELECT id, year FROM seasons WHERE id = ?`, id)
}

func (r seasonRepository) Find(ctx context.Context, year int) (*domain.Season, error) {
	return queryOne(ctx, r.c, scanSeason, `SELECT id, year FROM seasons WHERE natural_key = ?`, domain.SeasonKey(year))
}

func (r seasonRepository) All(ctx context.Context) ([]*domain.Season, error) {
	return queryMany(ctx, r.c, scanSeason, `SELECT id, year FROM seasons ORDER BY year`)
}

func scanTeam(sc scanner) (domain.Team, error) {
	var t domain.Team
	err := sc.Scan(&t.ID, &t.Name)
	return t, err
}

type teamRepository struct{ c conn }

func (r teamRepository) Get(ctx context.Context, id string) (*domain.Team, error) {
	return queryOne(ctx, r.c, scanTeam, `SELECT id, name FROM teams WHERE id = ?`, id)
}

func (r teamRepository) Find(ctx context.Context, name string) (*domain.Team, error) {
	return queryOne(ctx, r.c, scanTeam, `SELECT id, name FROM teams WHERE natural_key = ?`, domain.TeamKey(name))
}

func (r teamRepository) All(ctx context.Context) ([]*domain.Team, error) {
	return queryMany(ctx, r.c, scanTeam, `SELECT id, name FROM teams ORDER BY name`)
}

const affiliationColumns = `id, season_id, team_id, subdivision`

func scanAffiliation(sc scanner) (domain.Affiliation, error) {
	var a domain.Affiliation
	err := sc.Scan(&a.ID, &a.SeasonID, &a.TeamID, &a.Subdivision)
	return a, err
}

type affiliationRepository struct{ c conn }

func (r affiliationRepository) Get(ctx context.Context, id string) (*domain.Affiliation, error) {
	return queryOne(ctx, r.c, scanAffiliation, `SELECT `+affiliationColumns+` FROM affiliations WHERE id = ?`, id)
}

func (r affiliationRepository) Find(ctx context.Context, seasonID, teamID string) (*domain.Affiliation, error) {
	return queryOne(ctx, r.c, scanAffiliation, `SELECT `+affiliationColumns+` FROM affiliations WHERE natural_key = ?`,
		domain.AffiliationKey(seasonID, teamID))
}

func (r affiliationRepository) ForSeason(ctx context.Context, seasonID string) ([]*domain.Affiliation, error) {
	return queryMany(ctx, r.c, scanAffiliation, `SELECT `+affiliationColumns+` FROM affiliations WHERE season_id = ? ORDER BY natural_key`, seasonID)
}

const gameColumns = `id, season_id, week, game_date, season_section, home_team_id, away_team_id,
	home_score, away_score, status, winning_team_id, losing_team_id, notes`

func scanGame(sc scanner) (domain.GameState, error) {
	var (
		g          domain.GameState
		date       string
		home, away sql.NullInt64
	)
	if err := sc.Scan(&g.ID, &g.SeasonID, &g.Week, &date, &g.SeasonSection, &g.HomeTeamID, &g.AwayTeamID,
		&home, &away, &g.Status, &g.WinningTeamID, &g.LosingTeamID, &g.Notes); err != nil {
		return g, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, date)
	if err != nil {
		return g, fmt.Errorf("game %s date %q: %w", g.ID, date, err)
	}
	g.Date = parsed
	if home.Valid && away.Valid {
		g.Score = &domain.Score{Home: int(home.Int64), Away: int(away.Int64)}
	}
	return g, nil
}

func gameArgs(g domain.GameState) []any {
	var home, away sql.NullInt64
	if g.Score != nil {
		home = sql.NullInt64{Int64: int64(g.Score.Home), Valid: true}
		away = sql.NullInt64{Int64: int64(g.Score.Away), Valid: true}
	}
	return []any{
		g.SeasonID, g.Week, g.Date.UTC().Format(time.RFC3339Nano), string(g.SeasonSection),
		g.HomeTeamID, g.AwayTeamID, home, away, string(g.Status),
		g.WinningTeamID, g.LosingTeamID, g.Notes,
	}
}

type gameRepository struct {
	c   conn
	bus eventbus.Publisher
}

func (r gameRepository) bind(state *domain.GameState, err error) (*domain.Game, error) {
	if err != nil || state == nil {
		return nil, err
	}
	return domain.NewGame(*state, r.bus), nil
}

func (r gameRepository) Get(ctx context.Context, id string) (*domain.Game, error) {
	return r.bind(queryOne(ctx, r.c, scanGame, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id))
}

func (r gameRepository) Find(ctx context.Context, seasonID string, week int, teamA, teamB string) (*domain.Game, error) {
	return r.bind(queryOne(ctx, r.c, scanGame, `SELECT `+gameColumns+` FROM games WHERE natural_key = ?`,
		domain.GameKey(seasonID, week, teamA, teamB)))
}

func (r gameRepository) ForSeason(ctx context.Context, seasonID string) ([]*domain.Game, error) {
	states, err := queryMany(ctx, r.c, scanGame, `SELECT `+gameColumns+` FROM games WHERE season_id = ? ORDER BY week, natural_key`, seasonID)
	if err != nil {
		return nil, err
	}
	games := make([]*domain.Game, len(states))
	for i, s := range states {
		games[i] = domain.NewGame(*s, r.bus)
	}
	return games, nil
}

func weekPtr(w sql.NullInt64) *int {
	if !w.Valid {
		return nil
	}
	n := int(w.Int64)
	return &n
}

func weekArg(w *int) sql.NullInt64 {
	if w == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*w), Valid: true}
}

// children loads the value rows of one parent, in position order.
func children[T any](ctx context.Context, c conn, scan func(scanner) (T, error), query, parentID string) ([]T, error) {
	rows, err := queryMany(ctx, c, scan, query, parentID)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(rows))
	for i, row := range rows {
		out[i] = *row
	}
	return out, nil
}

// withChildren fills the values of every parent returned by load.
func withChildren[T any](ctx context.Context, rows []*T, err error, fill func(context.Context, *T) error) ([]*T, error) {
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := fill(ctx, row); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

const rankingColumns = `id, name, season_id, week`

func scanTeamRanking(sc scanner) (domain.TeamRanking, error) {
	var (
		r    domain.TeamRanking
		week sql.NullInt64
	)
	err := sc.Scan(&r.ID, &r.Name, &r.SeasonID, &week)
	r.Week = weekPtr(week)
	return r, err
}

func scanTeamRankingValue(sc scanner) (domain.TeamRankingValue, error) {
	var v domain.TeamRankingValue
	err := sc.Scan(&v.TeamID, &v.Rank, &v.Value)
	return v, err
}

type teamRankingRepository struct{ c conn }

func (r teamRankingRepository) fill(ctx context.Context, ranking *domain.TeamRanking) error {
	values, err := children(ctx, r.c, scanTeamRankingValue,
		`SELECT team_id, rank_order, rating FROM team_ranking_values WHERE ranking_id = ? ORDER BY position`, ranking.ID)
	ranking.Values = values
	return err
}

func (r teamRankingRepository) one(ctx context.Context, query string, args ...any) (*domain.TeamRanking, error) {
	ranking, err := queryOne(ctx, r.c, scanTeamRanking, query, args...)
	if err != nil || ranking == nil {
		return nil, err
	}
	return ranking, r.fill(ctx, ranking)
}

func (r teamRankingRepository) Get(ctx context.Context, id string) (*domain.TeamRanking, error) {
	return r.one(ctx, `SELECT `+rankingColumns+` FROM team_rankings WHERE id = ?`, id)
}

func (r teamRankingRepository) Find(ctx context.Context, name, seasonID string, week *int) (*domain.TeamRanking, error) {
	return r.one(ctx, `SELECT `+rankingColumns+` FROM team_rankings WHERE natural_key = ?`, domain.RankingKey(name, seasonID, week))
}

func (r teamRankingRepository) ForSeason(ctx context.Context, seasonID string) ([]*domain.TeamRanking, error) {
	rows, err := queryMany(ctx, r.c, scanTeamRanking, `SELECT `+rankingColumns+` FROM team_rankings WHERE season_id = ? ORDER BY natural_key`, seasonID)
	return withChildren(ctx, rows, err, r.fill)
}

func scanGameRanking(sc scanner) (domain.GameRanking, error) {
	var (
		r    domain.GameRanking
		week sql.NullInt64
	)
	err := sc.Scan(&r.ID, &r.Name, &r.SeasonID, &week)
	r.Week = weekPtr(week)
	return r, err
}

func scanGameRankingValue(sc scanner) (domain.GameRankingValue, error) {
	var v domain.GameRankingValue
	err := sc.Scan(&v.GameID, &v.Rank, &v.Value)
	return v, err
}

type gameRankingRepository struct{ c conn }

func (r gameRankingRepository) fill(ctx context.Context, ranking *domain.GameRanking) error {
	values, err := children(ctx, r.c, scanGameRankingValue,
		`SELECT game_id, rank_order, rating FROM game_ranking_values WHERE ranking_id = ? ORDER BY position`, ranking.ID)
	ranking.Values = values
	return err
}

func (r gameRankingRepository) one(ctx context.Context, query string, args ...any) (*domain.GameRanking, error) {
	ranking, err := queryOne(ctx, r.c, scanGameRanking, query, args...)
	if err != nil || ranking == nil {
		return nil, err
	}
	return ranking, r.fill(ctx, ranking)
}

func (r gameRankingRepository) Get(ctx context.Context, id string) (*domain.GameRanking, error) {
	return r.one(ctx, `SELECT `+rankingColumns+` FROM game_rankings WHERE id = ?`, id)
}

func (r gameRankingRepository) Find(ctx context.Context, name, seasonID string, week *int) (*domain.GameRanking, error) {
	return r.one(ctx, `SELECT `+rankingColumns+` FROM game_rankings WHERE natural_key = ?`, domain.RankingKey(name, seasonID, week))
}

func (r gameRankingRepository) ForSeason(ctx context.Context, seasonID string) ([]*domain.GameRanking, error) {
	rows, err := queryMany(ctx, r.c, scanGameRanking, `SELECT `+rankingColumns+` FROM game_rankings WHERE season_id = ? ORDER BY natural_key`, seasonID)
	return withChildren(ctx, rows, err, r.fill)
}

func scanTeamRecord(sc scanner) (domain.TeamRecord, error) {
	var (
		r    domain.TeamRecord
		week sql.NullInt64
	)
	err := sc.Scan(&r.ID, &r.SeasonID, &week)
	r.Week = weekPtr(week)
	return r, err
}

func scanTeamRecordValue(sc scanner) (domain.TeamRecordValue, error) {
	var v domain.TeamRecordValue
	err := sc.Scan(&v.TeamID, &v.Wins, &v.Losses)
	return v, err
}

type teamRecordRepository struct{ c conn }

func (r teamRecordRepository) fill(ctx context.Context, record *domain.TeamRecord) error {
	values, err := children(ctx, r.c, scanTeamRecordValue,
		`SELECT team_id, wins, losses FROM team_record_values WHERE record_id = ? ORDER BY position`, record.ID)
	record.Values = values
	return err
}

func (r teamRecordRepository) one(ctx context.Context, query string, args ...any) (*domain.TeamRecord, error) {
	record, err := queryOne(ctx, r.c, scanTeamRecord, query, args...)
	if err != nil || record == nil {
		return nil, err
	}
	return record, r.fill(ctx, record)
}

func (r teamRecordRepository) Get(ctx context.Context, id string) (*domain.TeamRecord, error) {
	return r.one(ctx, `SELECT id, season_id, week FROM team_records WHERE id = ?`, id)
}

func (r teamRecordRepository) Find(ctx context.Context, seasonID string, week *int) (*domain.TeamRecord, error) {
	return r.one(ctx, `SELECT id, season_id, week FROM team_records WHERE natural_key = ?`, domain.RecordKey(seasonID, week))
}

func (r teamRecordRepository) ForSeason(ctx context.Context, seasonID string) ([]*domain.TeamRecord, error) {
	rows, err := queryMany(ctx, r.c, scanTeamRecord, `SELECT id, season_id, week FROM team_records WHERE season_id = ? ORDER BY natural_key`, seasonID)
	return withChildren(ctx, rows, err, r.fill)
}
