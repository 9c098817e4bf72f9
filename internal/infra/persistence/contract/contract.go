// Package contract holds the behavioural test suite every domain.DataSource
// implementation must pass.
package contract

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

// Factory opens an empty data source for one subtest.
type Factory func(t *testing.T) domain.DataSource

// Run executes the full suite against data sources produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(t *testing.T, ds domain.DataSource)
	}{
		{"CreateAndLookup", testCreateAndLookup},
		{"DuplicateKeyAcrossTransactions", testDuplicateAcrossTransactions},
		{"DuplicateKeyWithinTransaction", testDuplicateWithinTransaction},
		{"DuplicateID", testDuplicateID},
		{"RollbackDiscardsWrites", testRollbackDiscards},
		{"GameLifecycle", testGameLifecycle},
		{"RescheduleCollision", testRescheduleCollision},
		{"OutOfSync", testOutOfSync},
		{"ReplaceOnWrite", testReplaceOnWrite},
		{"GamesBoundToBus", testGamesBoundToBus},
		{"Drop", testDrop},
		{"FinishTwice", testFinishTwice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ds := open(t)
			t.Cleanup(func() { _ = ds.Close() })
			tc.fn(t, ds)
		})
	}
}

// Fixture is a small committed data set: one season, two FBS teams and a
// scheduled week 1 game between them.
type Fixture struct {
	Season domain.Season
	Home   domain.Team
	Away   domain.Team
	Game   domain.GameState
}

// NewFixture builds fixture values with fresh IDs.
func NewFixture(year int) Fixture {
	rec := eventbus.NewRecorder(nil)
	f := domain.NewFactories(rec)
	ctx := context.Background()
	season, _ := f.Season.Create(ctx, year)
	home, _ := f.Team.Create(ctx, fmt.Sprintf("Home %d", year))
	away, _ := f.Team.Create(ctx, fmt.Sprintf("Away %d", year))
	game, _ := f.Game.Create(ctx, domain.GameSpec{
		SeasonID:   season.ID,
		Week:       1,
		Date:       time.Date(year, 9, 5, 17, 0, 0, 0, time.UTC),
		HomeTeamID: home.ID,
		AwayTeamID: away.ID,
	})
	return Fixture{Season: *season, Home: *home, Away: *away, Game: game.State()}
}

// Events returns the creation events of the fixture in dependency order.
func (f Fixture) Events() []eventbus.Event {
	return []eventbus.Event{
		domain.SeasonCreated{Season: f.Season},
		domain.TeamCreated{Team: f.Home},
		domain.TeamCreated{Team: f.Away},
		domain.AffiliationCreated{Affiliation: domain.Affiliation{ID: f.Home.ID + "-aff", SeasonID: f.Season.ID, TeamID: f.Home.ID, Subdivision: domain.SubdivisionFBS}},
		domain.AffiliationCreated{Affiliation: domain.Affiliation{ID: f.Away.ID + "-aff", SeasonID: f.Season.ID, TeamID: f.Away.ID, Subdivision: domain.SubdivisionFBS}},
		domain.GameCreated{Game: f.Game},
	}
}

// Apply replays events into one transaction and commits it. The first
// failing event rolls the transaction back and its error is returned.
func Apply(ctx context.Context, ds domain.DataSource, events ...eventbus.Event) error {
	tx, err := ds.Begin(ctx)
	if err != nil {
		return err
	}
	bus := eventbus.New()
	domain.RegisterEventHandler(bus, tx)
	for _, e := range events {
		if err := bus.Publish(ctx, e); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}
	return tx.Commit(ctx)
}

func mustApply(t *testing.T, ds domain.DataSource, events ...eventbus.Event) {
	t.Helper()
	if err := Apply(context.Background(), ds, events...); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func testCreateAndLookup(t *testing.T, ds domain.DataSource) {
	ctx := context.Background()
	fx := NewFixture(2020)
	mustApply(t, ds, fx.Events()...)
	repos := ds.Repositories(eventbus.New())

	season, err := repos.Season.Find(ctx, 2020)
	if err != nil || season == nil || season.ID != fx.Season.ID {
		t.Fatalf("season find: %v %+v", err, season)
	}
	if got, _ := repos.Season.Get(ctx, fx.Season.ID); got == nil || got.Year != 2020 {
		t.Fatalf("season get: %+v", got)
	}
	if miss, err := repos.Season.Find(ctx, 1999); err != nil || miss != nil {
		t.Fatalf("expected season miss, got %+v %v", miss, err)
	}
	seasons, err := repos.Season.All(ctx)
	if err != nil || len(seasons) != 1 {
		t.Fatalf("season all: %v %d", err, len(seasons))
	}

	team, err := repos.Team.Find(ctx, fx.Away.Name)
	if err != nil || team == nil || team.ID != fx.Away.ID {
		t.Fatalf("team find: %v %+v", err, team)
	}
	if got, _ := repos.Team.Get(ctx, fx.Home.ID); got == nil || got.Name != fx.Home.Name {
		t.Fatalf("team get: %+v", got)
	}
	teams, err := repos.Team.All(ctx)
	if err != nil || len(teams) != 2 {
		t.Fatalf("team all: %v %d", err, len(teams))
	}

	aff, err := repos.Affiliation.Find(ctx, fx.Season.ID, fx.Home.ID)
	if err != nil || aff == nil || aff.Subdivision != domain.SubdivisionFBS {
		t.Fatalf("affiliation find: %v %+v", err, aff)
	}
	if got, _ := repos.Affiliation.Get(ctx, aff.ID); got == nil || got.TeamID != fx.Home.ID {
		t.Fatalf("affiliation get: %+v", got)
	}
	affs, err := repos.Affiliation.ForSeason(ctx, fx.Season.ID)
	if err != nil || len(affs) != 2 {
		t.Fatalf("affiliation for season: %v %d", err, len(affs))
	}

	game, err := repos.Game.Find(ctx, fx.Season.ID, 1, fx.Away.ID, fx.Home.ID)
	if err != nil || game == nil || game.ID != fx.Game.ID {
		t.Fatalf("game find with swapped teams: %v %+v", err, game)
	}
	if game.HomeTeamID != fx.Home.ID || game.Status != domain.StatusScheduled || game.Score != nil {
		t.Fatalf("game state: %+v", game.GameState)
	}
	if !game.Date.Equal(fx.Game.Date) {
		t.Fatalf("game date changed: %v vs %v", game.Date, fx.Game.Date)
	}
	if got, _ := repos.Game.Get(ctx, fx.Game.ID); got == nil || got.Week != 1 {
		t.Fatalf("game get: %+v", got)
	}
	games, err := repos.Game.ForSeason(ctx, fx.Season.ID)
	if err != nil || len(games) != 1 {
		t.Fatalf("games for season: %v %d", err, len(games))
	}
	if none, _ := repos.Game.ForSeason(ctx, "no-such-season"); len(none) != 0 {
		t.Fatalf("expected no games for unknown season")
	}
}

func testDuplicateAcrossTransactions(t *testing.T, ds domain.DataSource) {
	ctx := context.Background()
	fx := NewFixture(2021)
	mustApply(t, ds, fx.Events()...)

	err := Apply(ctx, ds, domain.TeamCreated{Team: domain.Team{ID: "other-id", Name: fx.Home.Name}})
	var dup *domain.DuplicateKeyError
	if !errors.As(err, &dup) || dup.Entity != domain.EntityTeam {
		t.Fatalf("expected team duplicate, got %v", err)
	}

	err = Apply(ctx, ds, domain.GameCreated{Game: domain.GameState{
		ID: "dup-game", SeasonID: fx.Season.ID, Week: 1, Date: fx.Game.Date,
		SeasonSection: domain.SectionRegular, HomeTeamID: fx.Away.ID, AwayTeamID: fx.Home.ID,
		Status: domain.StatusScheduled,
	}})
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected game duplicate with swapped home/away, got %v", err)
	}

	teams, _ := ds.Repositories(eventbus.New()).Team.All(ctx)
	if len(teams) != 2 {
		t.Fatalf("failed transaction left %d teams", len(teams))
	}
}

func testDuplicateWithinTransaction(t *testing.T, ds domain.DataSource) {
	ctx := context.Background()
	err := Apply(ctx, ds,
		domain.SeasonCreated{Season: domain.Season{ID: "s1", Year: 2022}},
		domain.TeamCreated{Team: domain.Team{ID: "t1", Name: "Solo"}},
		domain.SeasonCreated{Season: domain.Season{ID: "s2", Year: 2022}},
	)
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected duplicate season, got %v", err)
	}
	repos := ds.Repositories(eventbus.New())
	if s, _ := repos.Season.Find(ctx, 2022); s != nil {
		t.Fatalf("partial transaction committed: %+v", s)
	}
	if team, _ := repos.Team.Get(ctx, "t1"); team != nil {
		t.Fatalf("partial transaction committed: %+v", team)
	}
}

func testDuplicateID(t *testing.T, ds domain.DataSource) {
	ctx := context.Background()
	mustApply(t, ds, domain.TeamCreated{Team: domain.Team{ID: "same", Name: "First"}})
	if err := Apply(ctx, ds, domain.TeamCreated{Team: domain.Team{ID: "same", Name: "Second"}}); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected duplicate id, got %v", err)
	}
}

func testRollbackDiscards(t *testing.T, ds domain.DataSource) {
	ctx := context.Background()
	tx, err := ds.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.HandleSeasonCreated(ctx, domain.SeasonCreated{Season: domain.Season{ID: "rb", Year: 1990}}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if s, _ := ds.Repositories(eventbus.New()).Season.Get(ctx, "rb"); s != nil {
		t.Fatalf("rolled back season visible: %+v", s)
	}
}

func testGameLifecycle(t *testing.T, ds domain.DataSource) {
	ctx := context.Background()
	fx := NewFixture(2023)
	mustApply(t, ds, fx.Events()...)

	game := domain.NewGame(fx.Game, eventbus.New())
	noted, err := game.UpdateNotes(ctx, "at neutral site")
	if err != nil {
		t.Fatalf("notes: %v", err)
	}
	moved, err := noted.Reschedule(ctx, 2, fx.Game.Date.Add(7*24*time.Hour))
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	done, err := moved.Complete(ctx, 28, 14)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	mustApply(t, ds,
		domain.GameNotesUpdated{Game: noted.State()},
		domain.GameRescheduled{Game: moved.State()},
		domain.GameCompleted{Game: done.State()},
	)

	repos := ds.Repositories(eventbus.New())
	if old, _ := repos.Game.Find(ctx, fx.Season.ID, 1, fx.Home.ID, fx.Away.ID); old != nil {
		t.Fatalf("game still indexed under week 1")
	}
	got, err := repos.Game.Find(ctx, fx.Season.ID, 2, fx.Home.ID, fx.Away.ID)
	if err != nil || got == nil {
		t.Fatalf("game not found under week 2: %v", err)
	}
	if got.Status != domain.StatusCompleted || got.Score == nil || got.Score.Home != 28 || got.Score.Away != 14 {
		t.Fatalf("completed state not stored: %+v", got.GameState)
	}
	if got.WinningTeamID != fx.Home.ID || got.LosingTeamID != fx.Away.ID || got.Notes != "at neutral site" {
		t.Fatalf("result or notes not stored: %+v", got.GameState)
	}

	other := NewFixture(2024)
	mustApply(t, ds, other.Events()...)
	canceled, err := domain.NewGame(other.Game, eventbus.New()).Cancel(ctx)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	mustApply(t, ds, domain.GameCanceled{Game: canceled.State()})
	if g, _ := repos.Game.Get(ctx, other.Game.ID); g == nil || g.Status != domain.StatusCanceled || g.Score != nil {
		t.Fatalf("cancel not stored: %+v", g)
	}
}

func testRescheduleCollision(t *testing.T, ds domain.DataSource) {
	ctx := context.Background()
	fx := NewFixture(2025)
	second := fx.Game
	second.ID = fx.Game.ID + "-2"
	second.Week = 2
	mustApply(t, ds, append(fx.Events(), domain.GameCreated{Game: second})...)

	moved := second
	moved.Week = 1
	err := Apply(ctx, ds, domain.GameRescheduled{Game: moved})
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected reschedule collision, got %v", err)
	}
	if g, _ := ds.Repositories(eventbus.New()).Game.Get(ctx, second.ID); g == nil || g.Week != 2 {
		t.Fatalf("colliding reschedule was stored: %+v", g)
	}
}

func testOutOfSync(t *testing.T, ds domain.DataSource) {
	ctx := context.Background()
	ghost := NewFixture(2026).Game
	ghost.Status = domain.StatusCompleted
	ghost.Score = &domain.Score{Home: 1, Away: 0}
	err := Apply(ctx, ds, domain.GameCompleted{Game: ghost})
	var oos *domain.OutOfSyncError
	if !errors.As(err, &oos) || oos.ID != ghost.ID || oos.Event != domain.EventGameCompleted {
		t.Fatalf("expected out of sync, got %v", err)
	}
}

func testReplaceOnWrite(t *testing.T, ds domain.DataSource) {
	ctx := context.Background()
	fx := NewFixture(2027)
	mustApply(t, ds, fx.Events()...)
	week := domain.Week(5)

	first := domain.TeamRanking{ID: "r1", Name: "colley", SeasonID: fx.Season.ID, Week: week, Values: []domain.TeamRankingValue{
		{TeamID: fx.Home.ID, Rank: 1, Value: 0.8}, {TeamID: fx.Away.ID, Rank: 2, Value: 0.2},
	}}
	second := domain.TeamRanking{ID: "r2", Name: "colley", SeasonID: fx.Season.ID, Week: domain.Week(5), Values: []domain.TeamRankingValue{
		{TeamID: fx.Away.ID, Rank: 1, Value: 0.6},
	}}
	seasonWide := domain.TeamRanking{ID: "r3", Name: "colley", SeasonID: fx.Season.ID, Values: []domain.TeamRankingValue{
		{TeamID: fx.Home.ID, Rank: 1, Value: 0.5},
	}}
	mustApply(t, ds, domain.TeamRankingCreated{Ranking: first})
	mustApply(t, ds, domain.TeamRankingCreated{Ranking: second}, domain.TeamRankingCreated{Ranking: seasonWide})

	repos := ds.Repositories(eventbus.New())
	if old, _ := repos.TeamRanking.Get(ctx, "r1"); old != nil {
		t.Fatalf("replaced ranking still stored")
	}
	got, err := repos.TeamRanking.Find(ctx, "colley", fx.Season.ID, domain.Week(5))
	if err != nil || got == nil || got.ID != "r2" || len(got.Values) != 1 || got.Values[0].TeamID != fx.Away.ID {
		t.Fatalf("unexpected ranking after replace: %v %+v", err, got)
	}
	if wide, _ := repos.TeamRanking.Find(ctx, "colley", fx.Season.ID, nil); wide == nil || wide.ID != "r3" || wide.Week != nil {
		t.Fatalf("season-wide ranking missing: %+v", wide)
	}
	rankings, _ := repos.TeamRanking.ForSeason(ctx, fx.Season.ID)
	if len(rankings) != 2 {
		t.Fatalf("expected 2 rankings, got %d", len(rankings))
	}

	gr1 := domain.GameRanking{ID: "g1", Name: "excitement", SeasonID: fx.Season.ID, Values: []domain.GameRankingValue{{GameID: fx.Game.ID, Rank: 1, Value: 9}}}
	gr2 := domain.GameRanking{ID: "g2", Name: "excitement", SeasonID: fx.Season.ID, Values: []domain.GameRankingValue{{GameID: fx.Game.ID, Rank: 1, Value: 3}}}
	mustApply(t, ds, domain.GameRankingCreated{Ranking: gr1})
	mustApply(t, ds, domain.GameRankingCreated{Ranking: gr2})
	if g, _ := repos.GameRanking.Find(ctx, "excitement", fx.Season.ID, nil); g == nil || g.ID != "g2" || g.Values[0].Value != 3 {
		t.Fatalf("game ranking not replaced: %+v", g)
	}
	if g, _ := repos.GameRanking.Get(ctx, "g1"); g != nil {
		t.Fatalf("replaced game ranking still stored")
	}
	if all, _ := repos.GameRanking.ForSeason(ctx, fx.Season.ID); len(all) != 1 {
		t.Fatalf("expected one game ranking, got %d", len(all))
	}

	rec1 := domain.TeamRecord{ID: "w1", SeasonID: fx.Season.ID, Week: domain.Week(1), Values: []domain.TeamRecordValue{{TeamID: fx.Home.ID, Wins: 1}}}
	rec2 := domain.TeamRecord{ID: "w2", SeasonID: fx.Season.ID, Week: domain.Week(1), Values: []domain.TeamRecordValue{{TeamID: fx.Home.ID, Wins: 1}, {TeamID: fx.Away.ID, Losses: 1}}}
	mustApply(t, ds, domain.TeamRecordCreated{Record: rec1})
	mustApply(t, ds, domain.TeamRecordCreated{Record: rec2})
	r, _ := repos.TeamRecord.Find(ctx, fx.Season.ID, domain.Week(1))
	if r == nil || r.ID != "w2" || len(r.Values) != 2 {
		t.Fatalf("record not replaced: %+v", r)
	}
	if g, _ := repos.TeamRecord.Get(ctx, "w2"); g == nil {
		t.Fatalf("record get miss")
	}
	if all, _ := repos.TeamRecord.ForSeason(ctx, fx.Season.ID); len(all) != 1 {
		t.Fatalf("expected one record, got %d", len(all))
	}
}

func testGamesBoundToBus(t *testing.T, ds domain.DataSource) {
	ctx := context.Background()
	fx := NewFixture(2028)
	mustApply(t, ds, fx.Events()...)

	rec := eventbus.NewRecorder(nil)
	game, err := ds.Repositories(rec).Game.Get(ctx, fx.Game.ID)
	if err != nil || game == nil {
		t.Fatalf("game get: %v", err)
	}
	if _, err := game.Complete(ctx, 3, 0); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if rec.Len() != 1 {
		t.Fatalf("expected the game to publish on the repository bus")
	}
	stored, _ := ds.Repositories(eventbus.New()).Game.Get(ctx, fx.Game.ID)
	if stored.Status != domain.StatusScheduled {
		t.Fatalf("publishing must not write to the store")
	}
}

func testDrop(t *testing.T, ds domain.DataSource) {
	ctx := context.Background()
	fx := NewFixture(2029)
	mustApply(t, ds, fx.Events()...)
	mustApply(t, ds, domain.TeamRecordCreated{Record: domain.TeamRecord{ID: "rec", SeasonID: fx.Season.ID}})

	if err := ds.Drop(ctx); err != nil {
		t.Fatalf("drop: %v", err)
	}
	repos := ds.Repositories(eventbus.New())
	if seasons, _ := repos.Season.All(ctx); len(seasons) != 0 {
		t.Fatalf("seasons survived drop")
	}
	if teams, _ := repos.Team.All(ctx); len(teams) != 0 {
		t.Fatalf("teams survived drop")
	}
	if r, _ := repos.TeamRecord.Get(ctx, "rec"); r != nil {
		t.Fatalf("record survived drop")
	}
	mustApply(t, ds, fx.Events()...)
}

func testFinishTwice(t *testing.T, ds domain.DataSource) {
	ctx := context.Background()
	tx, err := ds.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback after commit: %v", err)
	}

	tx, err = ds.Begin(ctx)
	if err != nil {
		t.Fatalf("begin after finished transaction: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("second rollback: %v", err)
	}
}
