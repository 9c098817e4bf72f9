package relational

import (
	"context"
	"fmt"
)

// Every table carries the flattened natural key in a UNIQUE natural_key
// column so uniqueness is enforced the same way for every kind. Value tables
// hang off their parent by ID and are ordered by position.
func schema(d Dialect) []string {
	float := d.floatType()
	return []string{
		`CREATE TABLE IF NOT EXISTS seasons (
			id TEXT PRIMARY KEY,
			natural_key TEXT NOT NULL UNIQUE,
			year INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			natural_key TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS affiliations (
			id TEXT PRIMARY KEY,
			natural_key TEXT NOT NULL UNIQUE,
			season_id TEXT NOT NULL,
			team_id TEXT NOT NULL,
			subdivision TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS affiliations_season_idx ON affiliations (season_id)`,
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			natural_key TEXT NOT NULL UNIQUE,
			season_id TEXT NOT NULL,
			week INTEGER NOT NULL,
			game_date TEXT NOT NULL,
			season_section TEXT NOT NULL,
			home_team_id TEXT NOT NULL,
			away_team_id TEXT NOT NULL,
			home_score INTEGER,
			away_score INTEGER,
			status TEXT NOT NULL,
			winning_team_id TEXT NOT NULL,
			losing_team_id TEXT NOT NULL,
			notes TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS games_season_idx ON games (season_id)`,
		`CREATE TABLE IF NOT EXISTS team_rankings (
			id TEXT PRIMARY KEY,
			natural_key TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			season_id TEXT NOT NULL,
			week INTEGER
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS team_ranking_values (
			ranking_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			team_id TEXT NOT NULL,
			rank_order INTEGER NOT NULL,
			rating %s NOT NULL,
			PRIMARY KEY (ranking_id, position)
		)`, float),
		`CREATE TABLE IF NOT EXISTS game_rankings (
			id TEXT PRIMARY KEY,
			natural_key TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			season_id TEXT NOT NULL,
			week INTEGER
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS game_ranking_values (
			ranking_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			game_id TEXT NOT NULL,
			rank_order INTEGER NOT NULL,
			rating %s NOT NULL,
			PRIMARY KEY (ranking_id, position)
		)`, float),
		`CREATE TABLE IF NOT EXISTS team_records (
			id TEXT PRIMARY KEY,
			natural_key TEXT NOT NULL UNIQUE,
			season_id TEXT NOT NULL,
			week INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS team_record_values (
			record_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			team_id TEXT NOT NULL,
			wins INTEGER NOT NULL,
			losses INTEGER NOT NULL,
			PRIMARY KEY (record_id, position)
		)`,
	}
}

// dropOrder lists every table, children first.
var dropOrder = []string{
	"team_record_values", "team_records",
	"game_ranking_values", "game_rankings",
	"team_ranking_values", "team_rankings",
	"games", "affiliations", "teams", "seasons",
}

// Migrate creates missing tables and indexes. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}
