package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

var _ domain.TransactionalEventHandler = (*transaction)(nil)

// transaction applies events inside one database transaction.
type transaction struct {
	c    conn
	tx   *sql.Tx
	done bool
}

func (t *transaction) Commit(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit %s transaction: %w", t.c.d.Name, err)
	}
	return nil
}

func (t *transaction) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback %s transaction: %w", t.c.d.Name, err)
	}
	return nil
}

func (t *transaction) HandleSeasonCreated(ctx context.Context, e domain.SeasonCreated) error {
	s := e.Season
	return t.insert(ctx, domain.EntitySeason, "seasons", s.ID, domain.SeasonKey(s.Year), []string{"year"}, s.Year)
}

func (t *transaction) HandleTeamCreated(ctx context.Context, e domain.TeamCreated) error {
	tm := e.Team
	return t.insert(ctx, domain.EntityTeam, "teams", tm.ID, domain.TeamKey(tm.Name), []string{"name"}, tm.Name)
}

func (t *transaction) HandleAffiliationCreated(ctx context.Context, e domain.AffiliationCreated) error {
	a := e.Affiliation
	return t.insert(ctx, domain.EntityAffiliation, "affiliations", a.ID, domain.AffiliationKey(a.SeasonID, a.TeamID),
		[]string{"season_id", "team_id", "subdivision"}, a.SeasonID, a.TeamID, string(a.Subdivision))
}

var gameWriteColumns = []string{
	"season_id", "week", "game_date", "season_section", "home_team_id", "away_team_id",
	"home_score", "away_score", "status", "winning_team_id", "losing_team_id", "notes",
}

func (t *transaction) HandleGameCreated(ctx context.Context, e domain.GameCreated) error {
	g := e.Game
	return t.insert(ctx, domain.EntityGame, "games", g.ID, g.Key(), gameWriteColumns, gameArgs(g)...)
}

func (t *transaction) HandleGameRescheduled(ctx context.Context, e domain.GameRescheduled) error {
	return t.applyGame(ctx, e.Game.ID, e)
}

func (t *transaction) HandleGameCanceled(ctx context.Context, e domain.GameCanceled) error {
	return t.applyGame(ctx, e.Game.ID, e)
}

func (t *transaction) HandleGameCompleted(ctx context.Context, e domain.GameCompleted) error {
	return t.applyGame(ctx, e.Game.ID, e)
}

func (t *transaction) HandleGameNotesUpdated(ctx context.Context, e domain.GameNotesUpdated) error {
	return t.applyGame(ctx, e.Game.ID, e)
}

func (t *transaction) HandleTeamRankingCreated(ctx context.Context, e domain.TeamRankingCreated) error {
	r := e.Ranking
	err := t.replace(ctx, domain.EntityTeamRanking, "team_rankings", "team_ranking_values", "ranking_id",
		r.ID, r.Key(), []string{"name", "season_id", "week"}, r.Name, r.SeasonID, weekArg(r.Week))
	if err != nil {
		return err
	}
	for i, v := range r.Values {
		if _, err := t.c.exec(ctx, `INSERT INTO team_ranking_values (ranking_id, position, team_id, rank_order, rating) VALUES (?, ?, ?, ?, ?)`,
			r.ID, i, v.TeamID, v.Rank, v.Value); err != nil {
			return fmt.Errorf("insert team ranking value: %w", err)
		}
	}
	return nil
}

func (t *transaction) HandleGameRankingCreated(ctx context.Context, e domain.GameRankingCreated) error {
	r := e.Ranking
	err := t.replace(ctx, domain.EntityGameRanking, "game_rankings", "game_ranking_values", "ranking_id",
		r.ID, r.Key(), []string{"name", "season_id", "week"}, r.Name, r.SeasonID, weekArg(r.Week))
	if err != nil {
		return err
	}
	for i, v := range r.Values {
		if _, err := t.c.exec(ctx, `INSERT INTO game_ranking_values (ranking_id, position, game_id, rank_order, rating) VALUES (?, ?, ?, ?, ?)`,
			r.ID, i, v.GameID, v.Rank, v.Value); err != nil {
			return fmt.Errorf("insert game ranking value: %w", err)
		}
	}
	return nil
}

func (t *transaction) HandleTeamRecordCreated(ctx context.Context, e domain.TeamRecordCreated) error {
	r := e.Record
	err := t.replace(ctx, domain.EntityTeamRecord, "team_records", "team_record_values", "record_id",
		r.ID, r.Key(), []string{"season_id", "week"}, r.SeasonID, weekArg(r.Week))
	if err != nil {
		return err
	}
	for i, v := range r.Values {
		if _, err := t.c.exec(ctx, `INSERT INTO team_record_values (record_id, position, team_id, wins, losses) VALUES (?, ?, ?, ?, ?)`,
			r.ID, i, v.TeamID, v.Wins, v.Losses); err != nil {
			return fmt.Errorf("insert team record value: %w", err)
		}
	}
	return nil
}

// insert writes a new row after checking its ID and natural key are free.
// The unique constraint catches what the check cannot see.
func (t *transaction) insert(ctx context.Context, entity domain.EntityType, table, id, key string, columns []string, args ...any) error {
	if err := t.ensureFree(ctx, entity, table, id, key); err != nil {
		return err
	}
	cols := append([]string{"id", "natural_key"}, columns...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), marks)
	if _, err := t.c.exec(ctx, query, append([]any{id, key}, args...)...); err != nil {
		if t.c.d.isUniqueViolation(err) {
			return &domain.DuplicateKeyError{Entity: entity, Key: key}
		}
		return fmt.Errorf("insert %s: %w", entity, err)
	}
	return nil
}

func (t *transaction) ensureFree(ctx context.Context, entity domain.EntityType, table, id, key string) error {
	var holder string
	err := t.c.queryRow(ctx, "SELECT id FROM "+table+" WHERE id = ? OR natural_key = ?", id, key).Scan(&holder)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("check %s key: %w", entity, err)
	case holder == id:
		return &domain.DuplicateKeyError{Entity: entity, Key: "id=" + id}
	default:
		return &domain.DuplicateKeyError{Entity: entity, Key: key}
	}
}

// replace deletes the row holding key and its values, then inserts the new
// parent row. The caller inserts the values.
func (t *transaction) replace(ctx context.Context, entity domain.EntityType, table, valueTable, parentColumn, id, key string, columns []string, args ...any) error {
	var previous string
	err := t.c.queryRow(ctx, "SELECT id FROM "+table+" WHERE natural_key = ?", key).Scan(&previous)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("find %s: %w", entity, err)
	default:
		if _, err := t.c.exec(ctx, "DELETE FROM "+valueTable+" WHERE "+parentColumn+" = ?", previous); err != nil {
			return fmt.Errorf("delete %s values: %w", entity, err)
		}
		if _, err := t.c.exec(ctx, "DELETE FROM "+table+" WHERE id = ?", previous); err != nil {
			return fmt.Errorf("delete %s: %w", entity, err)
		}
	}
	return t.insert(ctx, entity, table, id, key, columns, args...)
}

// applyGame folds event into the stored game and rewrites the row, moving
// its natural key when the week changed.
func (t *transaction) applyGame(ctx context.Context, id string, event eventbus.Event) error {
	current, err := queryOne(ctx, t.c, scanGame, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("load game %s: %w", id, err)
	}
	if current == nil {
		return &domain.OutOfSyncError{Entity: domain.EntityGame, ID: id, Event: event.EventType()}
	}
	next, err := domain.ApplyGameEvent(*current, event)
	if err != nil {
		return err
	}
	key := next.Key()
	if key != current.Key() {
		var holder string
		err := t.c.queryRow(ctx, `SELECT id FROM games WHERE natural_key = ? AND id <> ?`, key, id).Scan(&holder)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("check game key: %w", err)
		default:
			return &domain.DuplicateKeyError{Entity: domain.EntityGame, Key: key}
		}
	}

	sets := make([]string, 0, len(gameWriteColumns)+1)
	sets = append(sets, "natural_key = ?")
	for _, col := range gameWriteColumns {
		sets = append(sets, col+" = ?")
	}
	args := append([]any{key}, gameArgs(next)...)
	args = append(args, id)
	if _, err := t.c.exec(ctx, "UPDATE games SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		if t.c.d.isUniqueViolation(err) {
			return &domain.DuplicateKeyError{Entity: domain.EntityGame, Key: key}
		}
		return fmt.Errorf("update game %s: %w", id, err)
	}
	return nil
}
