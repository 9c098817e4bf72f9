package core

import (
	"context"
	"fmt"
	"time"

	"gridrank/pkg/domain"
)

// TeamImport names a team as a data source reports it. An empty Subdivision
// skips the affiliation.
type TeamImport struct {
	Name        string
	Subdivision domain.Subdivision
}

// GameImport is one scraped game row. Status decides what happens to the
// stored game: SCHEDULED (or empty) only creates or reschedules it,
// COMPLETED requires Score, CANCELED cancels it.
type GameImport struct {
	Year    int
	Week    int
	Date    time.Time
	Section domain.SeasonSection
	Home    TeamImport
	Away    TeamImport
	Status  domain.GameStatus
	Score   *domain.Score
	Notes   string
}

// FirstOrCreateSeason returns the season for year, creating it when missing.
func (u *UnitOfWork) FirstOrCreateSeason(ctx context.Context, year int) (*domain.Season, error) {
	season, err := u.Season.Find(ctx, year)
	if err != nil || season != nil {
		return season, err
	}
	return u.Factory.Season.Create(ctx, year)
}

// FirstOrCreateTeam returns the team called name, creating it when missing.
func (u *UnitOfWork) FirstOrCreateTeam(ctx context.Context, name string) (*domain.Team, error) {
	team, err := u.Team.Find(ctx, name)
	if err != nil || team != nil {
		return team, err
	}
	return u.Factory.Team.Create(ctx, name)
}

// FirstOrCreateAffiliation returns the team's affiliation in the season. An
// existing affiliation is returned as stored even when its subdivision
// differs.
func (u *UnitOfWork) FirstOrCreateAffiliation(ctx context.Context, seasonID, teamID string, subdivision domain.Subdivision) (*domain.Affiliation, error) {
	affiliation, err := u.Affiliation.Find(ctx, seasonID, teamID)
	if err != nil || affiliation != nil {
		return affiliation, err
	}
	return u.Factory.Affiliation.Create(ctx, seasonID, teamID, subdivision)
}

// ImportGame records one imported game. Re-importing the same row is a
// no-op, so imports can be repeated after a partial failure.
func (u *UnitOfWork) ImportGame(ctx context.Context, in GameImport) (*domain.Game, error) {
	season, err := u.FirstOrCreateSeason(ctx, in.Year)
	if err != nil {
		return nil, fmt.Errorf("season %d: %w", in.Year, err)
	}
	home, err := u.importTeam(ctx, season.ID, in.Home)
	if err != nil {
		return nil, err
	}
	away, err := u.importTeam(ctx, season.ID, in.Away)
	if err != nil {
		return nil, err
	}

	game, err := u.Game.Find(ctx, season.ID, in.Week, home.ID, away.ID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		game, err = u.Factory.Game.Create(ctx, domain.GameSpec{
			SeasonID:      season.ID,
			Week:          in.Week,
			Date:          in.Date,
			SeasonSection: in.Section,
			HomeTeamID:    home.ID,
			AwayTeamID:    away.ID,
			Notes:         in.Notes,
		})
		if err != nil {
			return nil, err
		}
	}

	if game.Status == domain.StatusScheduled && !in.Date.IsZero() && !in.Date.Equal(game.Date) {
		if game, err = game.Reschedule(ctx, game.Week, in.Date); err != nil {
			return nil, err
		}
	}
	if in.Notes != "" && in.Notes != game.Notes {
		if game, err = game.UpdateNotes(ctx, in.Notes); err != nil {
			return nil, err
		}
	}

	switch in.Status {
	case "", domain.StatusScheduled:
		return game, nil
	case domain.StatusCanceled:
		if game.Status == domain.StatusCanceled {
			return game, nil
		}
		return game.Cancel(ctx)
	case domain.StatusCompleted:
		return completeImported(ctx, game, home.ID, in.Score)
	default:
		return nil, fmt.Errorf("%w: unknown game status %q", domain.ErrInvalid, in.Status)
	}
}

func (u *UnitOfWork) importTeam(ctx context.Context, seasonID string, in TeamImport) (*domain.Team, error) {
	team, err := u.FirstOrCreateTeam(ctx, in.Name)
	if err != nil {
		return nil, fmt.Errorf("team %q: %w", in.Name, err)
	}
	if in.Subdivision == "" {
		return team, nil
	}
	if _, err := u.FirstOrCreateAffiliation(ctx, seasonID, team.ID, in.Subdivision); err != nil {
		return nil, fmt.Errorf("affiliation %q: %w", in.Name, err)
	}
	return team, nil
}

// completeImported orients the imported score to the stored game, whose home
// team may be the import's away team.
func completeImported(ctx context.Context, game *domain.Game, importedHomeID string, score *domain.Score) (*domain.Game, error) {
	if score == nil {
		return nil, fmt.Errorf("%w: completed game %s has no score", domain.ErrInvalid, game.ID)
	}
	homeScore, awayScore := score.Home, score.Away
	if game.HomeTeamID != importedHomeID {
		homeScore, awayScore = awayScore, homeScore
	}
	if game.Status == domain.StatusCompleted && game.Score != nil &&
		game.Score.Home == homeScore && game.Score.Away == awayScore {
		return game, nil
	}
	return game.Complete(ctx, homeScore, awayScore)
}
