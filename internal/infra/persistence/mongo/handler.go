package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

var _ domain.TransactionalEventHandler = (*transaction)(nil)

// transaction writes through one session transaction and journals every
// applied event in the same transaction.
type transaction struct {
	db      *mongo.Database
	session mongo.Session
	done    bool
}

func (t *transaction) sessionContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, t.session)
}

func (t *transaction) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.session.EndSession(ctx)
	if err := t.session.CommitTransaction(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (t *transaction) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.session.EndSession(ctx)
	if err := t.session.AbortTransaction(ctx); err != nil {
		return fmt.Errorf("abort transaction: %w", err)
	}
	return nil
}

func (t *transaction) HandleSeasonCreated(ctx context.Context, e domain.SeasonCreated) error {
	return applied(ctx, t, e, insert(ctx, t, seasonKind, e.Season))
}

func (t *transaction) HandleTeamCreated(ctx context.Context, e domain.TeamCreated) error {
	return applied(ctx, t, e, insert(ctx, t, teamKind, e.Team))
}

func (t *transaction) HandleAffiliationCreated(ctx context.Context, e domain.AffiliationCreated) error {
	return applied(ctx, t, e, insert(ctx, t, affiliationKind, e.Affiliation))
}

func (t *transaction) HandleGameCreated(ctx context.Context, e domain.GameCreated) error {
	return applied(ctx, t, e, insert(ctx, t, gameKind, e.Game))
}

func (t *transaction) HandleGameRescheduled(ctx context.Context, e domain.GameRescheduled) error {
	return applied(ctx, t, e, t.applyGame(ctx, e.Game.ID, e))
}

func (t *transaction) HandleGameCanceled(ctx context.Context, e domain.GameCanceled) error {
	return applied(ctx, t, e, t.applyGame(ctx, e.Game.ID, e))
}

func (t *transaction) HandleGameCompleted(ctx context.Context, e domain.GameCompleted) error {
	return applied(ctx, t, e, t.applyGame(ctx, e.Game.ID, e))
}

func (t *transaction) HandleGameNotesUpdated(ctx context.Context, e domain.GameNotesUpdated) error {
	return applied(ctx, t, e, t.applyGame(ctx, e.Game.ID, e))
}

func (t *transaction) HandleTeamRankingCreated(ctx context.Context, e domain.TeamRankingCreated) error {
	return applied(ctx, t, e, replace(ctx, t, teamRankingKind, e.Ranking))
}

func (t *transaction) HandleGameRankingCreated(ctx context.Context, e domain.GameRankingCreated) error {
	return applied(ctx, t, e, replace(ctx, t, gameRankingKind, e.Ranking))
}

func (t *transaction) HandleTeamRecordCreated(ctx context.Context, e domain.TeamRecordCreated) error {
	return applied(ctx, t, e, replace(ctx, t, teamRecordKind, e.Record))
}

// applied journals event once its write succeeded.
func applied(ctx context.Context, t *transaction, event eventbus.Event, err error) error {
	if err != nil {
		return err
	}
	env, err := domain.MarshalEvent(event)
	if err != nil {
		return err
	}
	if _, err := t.db.Collection(eventsCollection).InsertOne(t.sessionContext(ctx), newJournalEntry(env, time.Now().UTC())); err != nil {
		return fmt.Errorf("journal %s: %w", event.EventType(), err)
	}
	return nil
}

func insert[T any](ctx context.Context, t *transaction, k kind[T], row T) error {
	sctx := t.sessionContext(ctx)
	doc := k.document(row)
	if err := ensureFree(sctx, t.db, k, doc.ID, doc.Key); err != nil {
		return err
	}
	if _, err := t.db.Collection(k.collection).InsertOne(sctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &domain.DuplicateKeyError{Entity: k.entity, Key: doc.Key}
		}
		return fmt.Errorf("insert %s: %w", k.entity, err)
	}
	return nil
}

func ensureFree[T any](ctx context.Context, db *mongo.Database, k kind[T], id, key string) error {
	var holder struct {
		ID string `bson:"_id"`
	}
	filter := bson.D{{Key: "$or", Value: bson.A{byID(id), byKey(key)}}}
	err := db.Collection(k.collection).FindOne(ctx, filter).Decode(&holder)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil
	case err != nil:
		return fmt.Errorf("check %s key: %w", k.entity, err)
	case holder.ID == id:
		return &domain.DuplicateKeyError{Entity: k.entity, Key: "id=" + id}
	default:
		return &domain.DuplicateKeyError{Entity: k.entity, Key: key}
	}
}

// replace deletes the document holding row's natural key, then inserts row.
func replace[T any](ctx context.Context, t *transaction, k kind[T], row T) error {
	if _, err := t.db.Collection(k.collection).DeleteOne(t.sessionContext(ctx), byKey(k.key(row))); err != nil {
		return fmt.Errorf("replace %s: %w", k.entity, err)
	}
	return insert(ctx, t, k, row)
}

func (t *transaction) applyGame(ctx context.Context, id string, event eventbus.Event) error {
	sctx := t.sessionContext(ctx)
	current, err := findOne(sctx, t.db, gameKind, byID(id))
	if err != nil {
		return err
	}
	if current == nil {
		return &domain.OutOfSyncError{Entity: domain.EntityGame, ID: id, Event: event.EventType()}
	}
	next, err := domain.ApplyGameEvent(*current, event)
	if err != nil {
		return err
	}
	doc := gameKind.document(next)
	if doc.Key != current.Key() {
		var holder struct {
			ID string `bson:"_id"`
		}
		filter := bson.D{{Key: fieldKey, Value: doc.Key}, {Key: "_id", Value: bson.D{{Key: "$ne", Value: id}}}}
		err := t.db.Collection(gameKind.collection).FindOne(sctx, filter).Decode(&holder)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
		case err != nil:
			return fmt.Errorf("check game key: %w", err)
		default:
			return &domain.DuplicateKeyError{Entity: domain.EntityGame, Key: doc.Key}
		}
	}
	if _, err := t.db.Collection(gameKind.collection).ReplaceOne(sctx, byID(id), doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &domain.DuplicateKeyError{Entity: domain.EntityGame, Key: doc.Key}
		}
		return fmt.Errorf("update game %s: %w", id, err)
	}
	return nil
}
