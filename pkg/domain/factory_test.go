package domain

import (
	"context"
	"errors"
	"testing"

	"gridrank/pkg/eventbus"
)

func TestFactoriesPublishFullState(t *testing.T) {
	rec := eventbus.NewRecorder(nil)
	f := NewFactories(rec)
	ctx := context.Background()

	season, err := f.Season.Create(ctx, 2020)
	if err != nil {
		t.Fatalf("season: %v", err)
	}
	team, err := f.Team.Create(ctx, "A")
	if err != nil {
		t.Fatalf("team: %v", err)
	}
	aff, err := f.Affiliation.Create(ctx, season.ID, team.ID, SubdivisionFBS)
	if err != nil {
		t.Fatalf("affiliation: %v", err)
	}
	values := []TeamRankingValue{{TeamID: team.ID, Rank: 1, Value: 0.9}}
	ranking, err := f.TeamRanking.Create(ctx, "colley", season.ID, Week(3), values)
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	values[0].Rank = 99
	if ranking.Values[0].Rank != 1 {
		t.Fatalf("ranking shares caller's slice")
	}
	record, err := f.TeamRecord.Create(ctx, season.ID, nil, []TeamRecordValue{{TeamID: team.ID, Wins: 1}})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	gr, err := f.GameRanking.Create(ctx, "excitement", season.ID, nil, nil)
	if err != nil {
		t.Fatalf("game ranking: %v", err)
	}

	events := rec.Events()
	if len(events) != 6 {
		t.Fatalf("expected 6 events, got %d", len(events))
	}
	if e := events[0].(SeasonCreated); e.Season != *season {
		t.Fatalf("season event mismatch: %+v", e)
	}
	if e := events[1].(TeamCreated); e.Team != *team {
		t.Fatalf("team event mismatch: %+v", e)
	}
	if e := events[2].(AffiliationCreated); e.Affiliation != *aff {
		t.Fatalf("affiliation event mismatch: %+v", e)
	}
	if e := events[3].(TeamRankingCreated); e.Ranking.ID != ranking.ID || *e.Ranking.Week != 3 {
		t.Fatalf("ranking event mismatch: %+v", e)
	}
	if e := events[4].(TeamRecordCreated); e.Record.ID != record.ID || e.Record.Week != nil {
		t.Fatalf("record event mismatch: %+v", e)
	}
	if e := events[5].(GameRankingCreated); e.Ranking.ID != gr.ID {
		t.Fatalf("game ranking event mismatch: %+v", e)
	}
}

func TestFactoriesDoNotCheckUniqueness(t *testing.T) {
	f := NewFactories(eventbus.New())
	ctx := context.Background()
	a, err := f.Team.Create(ctx, "A")
	if err != nil {
		t.Fatalf("team: %v", err)
	}
	b, err := f.Team.Create(ctx, "A")
	if err != nil {
		t.Fatalf("second team with same name must be accepted by the factory: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("expected distinct generated IDs")
	}
}

func TestFactoryValidation(t *testing.T) {
	f := NewFactories(eventbus.New())
	ctx := context.Background()
	checks := map[string]error{}
	_, checks["season year"] = f.Season.Create(ctx, 0)
	_, checks["team name"] = f.Team.Create(ctx, "  ")
	_, checks["subdivision"] = f.Affiliation.Create(ctx, "s", "t", "D2")
	_, checks["self game"] = f.Game.Create(ctx, GameSpec{SeasonID: "s", HomeTeamID: "t", AwayTeamID: "t"})
	_, checks["record season"] = f.TeamRecord.Create(ctx, "", nil, nil)
	for name, err := range checks {
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}

func TestGameFactoryDefaultsToRegularScheduled(t *testing.T) {
	rec := eventbus.NewRecorder(nil)
	game, err := NewFactories(rec).Game.Create(context.Background(), GameSpec{SeasonID: "s", Week: 1, HomeTeamID: "a", AwayTeamID: "b"})
	if err != nil {
		t.Fatalf("game: %v", err)
	}
	if game.Status != StatusScheduled || game.SeasonSection != SectionRegular || game.Score != nil {
		t.Fatalf("unexpected new game: %+v", game.GameState)
	}
	created := rec.Events()[0].(GameCreated)
	if created.Game.ID != game.ID || created.Game.Status != StatusScheduled {
		t.Fatalf("unexpected created event: %+v", created)
	}
}
