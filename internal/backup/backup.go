// Package backup exports committed state to a blob store as a journal of
// Created events and restores it by replaying the journal into a single
// backend transaction.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gridrank/internal/blob"
	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

// FormatVersion is written into every journal. Restore rejects other versions.
const FormatVersion = 1

const contentType = "application/json"

// Journal is the stored backup document. Events are in dependency order.
type Journal struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Events    []domain.Envelope `json:"events"`
}

// Export reads every entity reachable from repos and writes it to store
// under key. Each entity becomes one Created event carrying its current
// value, so games keep their status and score. Export fails with
// blob.ErrExists when key is taken.
func Export(ctx context.Context, repos domain.Repositories, store blob.Store, key string) (blob.Info, error) {
	events, err := collect(ctx, repos)
	if err != nil {
		return blob.Info{}, err
	}
	journal := Journal{Version: FormatVersion, CreatedAt: time.Now().UTC(), Events: make([]domain.Envelope, 0, len(events))}
	counts := make(map[string]int)
	for _, e := range events {
		env, err := domain.MarshalEvent(e)
		if err != nil {
			return blob.Info{}, err
		}
		journal.Events = append(journal.Events, env)
		counts[env.Type]++
	}
	raw, err := json.Marshal(journal)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode journal: %w", err)
	}
	meta := map[string]string{
		"version": strconv.Itoa(FormatVersion),
		"events":  strconv.Itoa(len(journal.Events)),
	}
	for _, t := range domain.EventTypes {
		if n := counts[t]; n > 0 {
			meta[t] = strconv.Itoa(n)
		}
	}
	return store.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{ContentType: contentType, Metadata: meta})
}

func collect(ctx context.Context, repos domain.Repositories) ([]eventbus.Event, error) {
	seasons, err := repos.Season.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	teams, err := repos.Team.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	var events []eventbus.Event
	for _, s := range seasons {
		events = append(events, domain.SeasonCreated{Season: *s})
	}
	for _, t := range teams {
		events = append(events, domain.TeamCreated{Team: *t})
	}

	// Later kinds reference earlier ones, so each kind is emitted for all
	// seasons before the next.
	perSeason := []func(seasonID string) ([]eventbus.Event, error){
		func(id string) ([]eventbus.Event, error) {
			rows, err := repos.Affiliation.ForSeason(ctx, id)
			return each(rows, err, func(a *domain.Affiliation) eventbus.Event { return domain.AffiliationCreated{Affiliation: *a} })
		},
		func(id string) ([]eventbus.Event, error) {
			rows, err := repos.Game.ForSeason(ctx, id)
			return each(rows, err, func(g *domain.Game) eventbus.Event { return domain.GameCreated{Game: g.State()} })
		},
		func(id string) ([]eventbus.Event, error) {
			rows, err := repos.TeamRanking.ForSeason(ctx, id)
			return each(rows, err, func(r *domain.TeamRanking) eventbus.Event { return domain.TeamRankingCreated{Ranking: r.Clone()} })
		},
		func(id string) ([]eventbus.Event, error) {
			rows, err := repos.GameRanking.ForSeason(ctx, id)
			return each(rows, err, func(r *domain.GameRanking) eventbus.Event { return domain.GameRankingCreated{Ranking: r.Clone()} })
		},
		func(id string) ([]eventbus.Event, error) {
			rows, err := repos.TeamRecord.ForSeason(ctx, id)
			return each(rows, err, func(r *domain.TeamRecord) eventbus.Event { return domain.TeamRecordCreated{Record: r.Clone()} })
		},
	}
	for _, load := range perSeason {
		for _, s := range seasons {
			batch, err := load(s.ID)
			if err != nil {
				return nil, fmt.Errorf("season %d: %w", s.Year, err)
			}
			events = append(events, batch...)
		}
	}
	return events, nil
}

func each[T any](rows []T, err error, fn func(T) eventbus.Event) ([]eventbus.Event, error) {
	if err != nil {
		return nil, err
	}
	out := make([]eventbus.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, fn(row))
	}
	return out, nil
}

// Read loads and validates the journal stored under key.
func Read(ctx context.Context, store blob.Store, key string) (Journal, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return Journal{}, err
	}
	defer func() { _ = rc.Close() }()
	var journal Journal
	if err := json.NewDecoder(rc).Decode(&journal); err != nil {
		return Journal{}, fmt.Errorf("decode journal %s: %w", key, err)
	}
	if journal.Version != FormatVersion {
		return Journal{}, fmt.Errorf("journal %s has version %d, want %d", key, journal.Version, FormatVersion)
	}
	return journal, nil
}

// Restore replays the journal stored under key into one transaction on ds
// and returns the number of events applied. Restoring into a data source
// that already holds any of the rows fails with domain.ErrDuplicateKey and
// leaves it unchanged.
func Restore(ctx context.Context, ds domain.DataSource, store blob.Store, key string) (n int, err error) {
	journal, err := Read(ctx, store, key)
	if err != nil {
		return 0, err
	}
	events := make([]eventbus.Event, 0, len(journal.Events))
	for i, env := range journal.Events {
		e, err := domain.UnmarshalEvent(env)
		if err != nil {
			return 0, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, e)
	}

	tx, err := ds.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()
	replay := eventbus.New()
	domain.RegisterEventHandler(replay, tx)
	for i, e := range events {
		if err := replay.Publish(ctx, e); err != nil {
			return 0, fmt.Errorf("event %d (%s): %w", i, e.EventType(), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(events), nil
}
