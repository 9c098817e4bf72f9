package core

import (
	"context"
	"fmt"

	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

// ErrNotFound indicates the requested entity does not exist.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Service runs command operations, each inside its own unit of work.
type Service struct {
	ds    domain.DataSource
	outer eventbus.Publisher
	opts  []Option
	o     options
}

// NewService returns a service writing to ds and republishing committed
// events on outer. The options apply to the service and to every unit of
// work it opens.
func NewService(ds domain.DataSource, outer eventbus.Publisher, opts ...Option) *Service {
	return &Service{ds: ds, outer: outer, opts: opts, o: newOptions(opts)}
}

// DataSource returns the backing data source.
func (s *Service) DataSource() domain.DataSource {
	return s.ds
}

// NewUnitOfWork opens a unit of work with the service's bus and options.
func (s *Service) NewUnitOfWork() *UnitOfWork {
	return NewUnitOfWork(s.ds, s.outer, s.opts...)
}

// Run opens a unit of work, runs fn and commits when fn succeeds. The unit
// of work is always closed.
func (s *Service) Run(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) error {
	return s.run(ctx, "service.run", fn)
}

func (s *Service) run(ctx context.Context, operation string, fn func(ctx context.Context, uow *UnitOfWork) error) (err error) {
	started := s.o.now()
	ctx, span := s.o.tracer.Start(ctx, operation)
	defer func() {
		span.End(err)
		s.o.observe(ctx, operation, started, err)
	}()

	uow := s.NewUnitOfWork()
	defer func() { _ = uow.Close() }()
	if err := fn(ctx, uow); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// ImportGame first-or-creates the season, teams and affiliations of an
// imported game, then creates or advances the game itself.
func (s *Service) ImportGame(ctx context.Context, in GameImport) (*domain.Game, error) {
	var game *domain.Game
	err := s.run(ctx, "service.import_game", func(ctx context.Context, uow *UnitOfWork) error {
		var err error
		game, err = uow.ImportGame(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

// CalculateTeamRecords derives wins and losses from the completed games of a
// season, up to and including week when week is set, and stores them as the
// season's record for that week.
func (s *Service) CalculateTeamRecords(ctx context.Context, seasonID string, week *int) (*domain.TeamRecord, error) {
	var record *domain.TeamRecord
	err := s.run(ctx, "service.calculate_team_records", func(ctx context.Context, uow *UnitOfWork) error {
		if err := requireSeason(ctx, uow, seasonID); err != nil {
			return err
		}
		games, err := uow.Game.ForSeason(ctx, seasonID)
		if err != nil {
			return err
		}
		affiliations, err := uow.Affiliation.ForSeason(ctx, seasonID)
		if err != nil {
			return err
		}
		record, err = uow.Factory.TeamRecord.Create(ctx, seasonID, week, ComputeTeamRecords(games, affiliations, week))
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// SaveTeamRanking stores an externally computed team ranking, replacing any
// ranking with the same name, season and week.
func (s *Service) SaveTeamRanking(ctx context.Context, name, seasonID string, week *int, values []domain.TeamRankingValue) (*domain.TeamRanking, error) {
	var ranking *domain.TeamRanking
	err := s.run(ctx, "service.save_team_ranking", func(ctx context.Context, uow *UnitOfWork) error {
		if err := requireSeason(ctx, uow, seasonID); err != nil {
			return err
		}
		for _, v := range values {
			team, err := uow.Team.Get(ctx, v.TeamID)
			if err != nil {
				return err
			}
			if team == nil {
				return ErrNotFound{Entity: domain.EntityTeam, ID: v.TeamID}
			}
		}
		var err error
		ranking, err = uow.Factory.TeamRanking.Create(ctx, name, seasonID, week, values)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ranking, nil
}

// SaveGameRanking stores an externally computed game ranking, replacing any
// ranking with the same name, season and week.
func (s *Service) SaveGameRanking(ctx context.Context, name, seasonID string, week *int, values []domain.GameRankingValue) (*domain.GameRanking, error) {
	var ranking *domain.GameRanking
	err := s.run(ctx, "service.save_game_ranking", func(ctx context.Context, uow *UnitOfWork) error {
		if err := requireSeason(ctx, uow, seasonID); err != nil {
			return err
		}
		for _, v := range values {
			game, err := uow.Game.Get(ctx, v.GameID)
			if err != nil {
				return err
			}
			if game == nil {
				return ErrNotFound{Entity: domain.EntityGame, ID: v.GameID}
			}
		}
		var err error
		ranking, err = uow.Factory.GameRanking.Create(ctx, name, seasonID, week, values)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ranking, nil
}

func requireSeason(ctx context.Context, uow *UnitOfWork, seasonID string) error {
	season, err := uow.Season.Get(ctx, seasonID)
	if err != nil {
		return err
	}
	if season == nil {
		return ErrNotFound{Entity: domain.EntitySeason, ID: seasonID}
	}
	return nil
}
