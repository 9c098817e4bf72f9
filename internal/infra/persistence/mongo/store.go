// Package mongo implements domain.DataSource on MongoDB. Every entity kind
// lives in its own collection with a unique natural_key index; a
// transaction is a driver session transaction, which needs a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

const defaultTimeout = 10 * time.Second

// Config holds the connection settings.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

var _ domain.DataSource = (*Store)(nil)

// Store is a DataSource over one MongoDB database.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// Open connects, pings and ensures the indexes exist.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database name is required")
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := &Store{client: client, db: client.Database(cfg.Database), timeout: cfg.Timeout}
	if err := s.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique natural key indexes and the per-season
// lookup indexes. Creating an existing index is a no-op.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, spec := range collectionSpecs {
		models := []mongo.IndexModel{{
			Keys:    bson.D{{Key: fieldKey, Value: 1}},
			Options: options.Index().SetUnique(true).SetName(spec.name + "_natural_key"),
		}}
		if spec.seasonScoped {
			models = append(models, mongo.IndexModel{
				Keys:    bson.D{{Key: fieldSeason, Value: 1}},
				Options: options.Index().SetName(spec.name + "_season"),
			})
		}
		if _, err := s.db.Collection(spec.name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", spec.name, err)
		}
	}
	if _, err := s.db.Collection(eventsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "applied_at", Value: 1}},
		Options: options.Index().SetName("events_applied_at"),
	}); err != nil {
		return fmt.Errorf("create %s indexes: %w", eventsCollection, err)
	}
	return nil
}

// Repositories returns lookups over committed documents.
func (s *Store) Repositories(bus eventbus.Publisher) domain.Repositories {
	return newRepositories(s.db, bus)
}

// Begin starts a session transaction.
func (s *Store) Begin(ctx context.Context) (domain.TransactionalEventHandler, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return nil, fmt.Errorf("start transaction: %w", err)
	}
	return &transaction{db: s.db, session: session}, nil
}

// Drop deletes every document, the event journal included.
func (s *Store) Drop(ctx context.Context) error {
	names := append(collectionNames(), eventsCollection)
	for _, name := range names {
		if _, err := s.db.Collection(name).DeleteMany(ctx, bson.D{}); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Journal returns the applied event envelopes in application order.
func (s *Store) Journal(ctx context.Context) ([]domain.Envelope, error) {
	cursor, err := s.db.Collection(eventsCollection).Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()
	var entries []journalEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode journal: %w", err)
	}
	out := make([]domain.Envelope, len(entries))
	for i, e := range entries {
		out[i] = e.envelope()
	}
	return out, nil
}
