package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

func newRepositories(db *mongo.Database, bus eventbus.Publisher) domain.Repositories {
	return domain.Repositories{
		Season:      seasonRepository{db},
		Team:        teamRepository{db},
		Affiliation: affiliationRepository{db},
		Game:        gameRepository{db: db, bus: bus},
		TeamRanking: teamRankingRepository{db},
		GameRanking: gameRankingRepository{db},
		TeamRecord:  teamRecordRepository{db},
	}
}

func findOne[T any](ctx context.Context, db *mongo.Database, k kind[T], filter bson.D) (*T, error) {
	var d document[T]
	err := db.Collection(k.collection).FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", k.entity, err)
	}
	return &d.Body, nil
}

func findMany[T any](ctx context.Context, db *mongo.Database, k kind[T], filter bson.D) ([]*T, error) {
	cursor, err := db.Collection(k.collection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: fieldKey, Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", k.entity, err)
	}
	defer func() { _ = cursor.Close(ctx) }()
	var docs []document[T]
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", k.entity, err)
	}
	out := make([]*T, len(docs))
	for i := range docs {
		out[i] = &docs[i].Body
	}
	return out, nil
}

func byID(id string) bson.D { return bson.D{{Key: "_id", Value: id}} }
func byKey(key string) bson.D { return bson.D{{Key: fieldKey, Value: key}} }
func bySeason(id string) bson.D { return bson.D{{Key: fieldSeason, Value: id}} }

type seasonRepository struct{ db *mongo.Database }

func (r seasonRepository) Get(ctx context.Context, id string) (*domain.Season, error) {
	return findOne(ctx, r.db, seasonKind, byID(id))
}

func (r seasonRepository) Find(ctx context.Context, year int) (*domain.Season, error) {
	return findOne(ctx, r.db, seasonKind, byKey(domain.SeasonKey(year)))
}

func (r seasonRepository) All(ctx context.Context) ([]*domain.Season, error) {
	return findMany(ctx, r.db, seasonKind, bson.D{})
}

type teamRepository struct{ db *mongo.Database }

func (r teamRepository) Get(ctx context.Context, id string) (*domain.Team, error) {
	return findOne(ctx, r.db, teamKind, byID(id))
}

func (r teamRepository) Find(ctx context.Context, name string) (*domain.Team, error) {
	return findOne(ctx, r.db, teamKind, byKey(domain.TeamKey(name)))
}

func (r teamRepository) All(ctx context.Context) ([]*domain.Team, error) {
	return findMany(ctx, r.db, teamKind, bson.D{})
}

type affiliationRepository struct{ db *mongo.Database }

func (r affiliationRepository) Get(ctx context.Context, id string) (*domain.Affiliation, error) {
	return findOne(ctx, r.db, affiliationKind, byID(id))
}

func (r affiliationRepository) Find(ctx context.Context, seasonID, teamID string) (*domain.Affiliation, error) {
	return findOne(ctx, r.db, affiliationKind, byKey(domain.AffiliationKey(seasonID, teamID)))
}

func (r affiliationRepository) ForSeason(ctx context.Context, seasonID string) ([]*domain.Affiliation, error) {
	return findMany(ctx, r.db, affiliationKind, bySeason(seasonID))
}

type gameRepository struct {
	db  *mongo.Database
	bus eventbus.Publisher
}

func (r gameRepository) bind(state *domain.GameState, err error) (*domain.Game, error) {
	if err != nil || state == nil {
		return nil, err
	}
	return domain.NewGame(*state, r.bus), nil
}

func (r gameRepository) Get(ctx context.Context, id string) (*domain.Game, error) {
	return r.bind(findOne(ctx, r.db, gameKind, byID(id)))
}

func (r gameRepository) Find(ctx context.Context, seasonID string, week int, teamA, teamB string) (*domain.Game, error) {
	return r.bind(findOne(ctx, r.db, gameKind, byKey(domain.GameKey(seasonID, week, teamA, teamB))))
}

func (r gameRepository) ForSeason(ctx context.Context, seasonID string) ([]*domain.Game, error) {
	states, err := findMany(ctx, r.db, gameKind, bySeason(seasonID))
	if err != nil {
		return nil, err
	}
	games := make([]*domain.Game, len(states))
	for i, s := range states {
		games[i] = domain.NewGame(*s, r.bus)
	}
	return games, nil
}

type teamRankingRepository struct{ db *mongo.Database }

func (r teamRankingRepository) Get(ctx context.Context, id string) (*domain.TeamRanking, error) {
	return findOne(ctx, r.db, teamRankingKind, byID(id))
}

func (r teamRankingRepository) Find(ctx context.Context, name, seasonID string, week *int) (*domain.TeamRanking, error) {
	return findOne(ctx, r.db, teamRankingKind, byKey(domain.RankingKey(name, seasonID, week)))
}

func (r teamRankingRepository) ForSeason(ctx context.Context, seasonID string) ([]*domain.TeamRanking, error) {
	return findMany(ctx, r.db, teamRankingKind, bySeason(seasonID))
}

type gameRankingRepository struct{ db *mongo.Database }

func (r gameRankingRepository) Get(ctx context.Context, id string) (*domain.GameRanking, error) {
	return findOne(ctx, r.db, gameRankingKind, byID(id))
}

func (r gameRankingRepository) Find(ctx context.Context, name, seasonID string, week *int) (*domain.GameRanking, error) {
	return findOne(ctx, r.db, gameRankingKind, byKey(domain.RankingKey(name, seasonID, week)))
}

func (r gameRankingRepository) ForSeason(ctx context.Context, seasonID string) ([]*domain.GameRanking, error) {
	return findMany(ctx, r.db, gameRankingKind, bySeason(seasonID))
}

type teamRecordRepository struct{ db *mongo.Database }

func (r teamRecordRepository) Get(ctx context.Context, id string) (*domain.TeamRecord, error) {
	return findOne(ctx, r.db, teamRecordKind, byID(id))
}

func (r teamRecordRepository) Find(ctx context.Context, seasonID string, week *int) (*domain.TeamRecord, error) {
	return findOne(ctx, r.db, teamRecordKind, byKey(domain.RecordKey(seasonID, week)))
}

func (r teamRecordRepository) ForSeason(ctx context.Context, seasonID string) ([]*domain.TeamRecord, error) {
	return findMany(ctx, r.db, teamRecordKind, bySeason(seasonID))
}
