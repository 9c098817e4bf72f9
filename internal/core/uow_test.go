package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"gridrank/internal/infra/persistence/memory"
	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

func TestUnitOfWorkCommitsScheduledAndCompletedGame(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	outer := eventbus.NewCounter(nil)

	uow := NewUnitOfWork(store, outer)
	defer func() { _ = uow.Close() }()
	season, err := uow.Factory.Season.Create(ctx, 2020)
	if err != nil {
		t.Fatalf("season: %v", err)
	}
	a, err := uow.Factory.Team.Create(ctx, "A")
	if err != nil {
		t.Fatalf("team A: %v", err)
	}
	b, err := uow.Factory.Team.Create(ctx, "B")
	if err != nil {
		t.Fatalf("team B: %v", err)
	}
	for _, team := range []*domain.Team{a, b} {
		if _, err := uow.Factory.Affiliation.Create(ctx, season.ID, team.ID, domain.SubdivisionFBS); err != nil {
			t.Fatalf("affiliation %s: %v", team.Name, err)
		}
	}
	game, err := uow.Factory.Game.Create(ctx, domain.GameSpec{
		SeasonID:   season.ID,
		Week:       1,
		Date:       time.Date(2020, 9, 5, 0, 0, 0, 0, time.UTC),
		HomeTeamID: a.ID,
		AwayTeamID: b.ID,
	})
	if err != nil {
		t.Fatalf("game: %v", err)
	}
	if _, err := game.Complete(ctx, 28, 14); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if game.Status != domain.StatusScheduled {
		t.Fatalf("complete must not mutate the receiver, got %s", game.Status)
	}
	if outer.Count(domain.EventGameCreated) != 0 {
		t.Fatalf("outer bus saw events before commit")
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	games, err := committed(t, store).Game.ForSeason(ctx, season.ID)
	if err != nil {
		t.Fatalf("for season: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("expected one game, got %d", len(games))
	}
	stored := games[0]
	if stored.Status != domain.StatusCompleted || stored.WinningTeamID != a.ID || stored.LosingTeamID != b.ID {
		t.Fatalf("unexpected stored game %+v", stored.State())
	}
	if stored.Score == nil || stored.Score.Home != 28 || stored.Score.Away != 14 {
		t.Fatalf("unexpected score %+v", stored.Score)
	}

	want := map[string]int{
		domain.EventSeasonCreated:      1,
		domain.EventTeamCreated:        2,
		domain.EventAffiliationCreated: 2,
		domain.EventGameCreated:        1,
		domain.EventGameCompleted:      1,
	}
	for eventType, n := range want {
		if got := outer.Count(eventType); got != n {
			t.Fatalf("outer %s: want %d got %d", eventType, n, got)
		}
	}
}

func TestUnitOfWorkReadsItsOwnWrites(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uow := NewUnitOfWork(store, nil)
	defer func() { _ = uow.Close() }()

	created, err := uow.Factory.Season.Create(ctx, 2021)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	found, err := uow.Season.Find(ctx, 2021)
	if err != nil || found == nil || found.ID != created.ID {
		t.Fatalf("uncommitted season not visible in its unit of work: %v %+v", err, found)
	}
	if other, _ := committed(t, store).Season.Find(ctx, 2021); other != nil {
		t.Fatalf("uncommitted season leaked into the store")
	}
	if len(uow.Pending()) != 1 {
		t.Fatalf("expected one pending event, got %d", len(uow.Pending()))
	}
}

func TestUnitOfWorkRollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	outer := eventbus.NewCounter(nil)
	uow := NewUnitOfWork(store, outer)

	if _, err := uow.Factory.Team.Create(ctx, "Navy"); err != nil {
		t.Fatalf("create: %v", err)
	}
	uow.Rollback()
	uow.Rollback()

	if team, _ := committed(t, store).Team.Find(ctx, "Navy"); team != nil {
		t.Fatalf("rolled back team was stored")
	}
	if len(outer.Counts()) != 0 {
		t.Fatalf("outer bus saw %v", outer.Counts())
	}
	if _, err := uow.Factory.Team.Create(ctx, "Army"); !errors.Is(err, ErrUnitOfWorkClosed) {
		t.Fatalf("expected closed error from factory, got %v", err)
	}
	if _, err := uow.Team.Find(ctx, "Navy"); !errors.Is(err, ErrUnitOfWorkClosed) {
		t.Fatalf("expected closed error from lookup, got %v", err)
	}
	if err := uow.Commit(ctx); !errors.Is(err, ErrUnitOfWorkClosed) {
		t.Fatalf("expected closed error from commit, got %v", err)
	}
	if err := uow.Close(); err != nil {
		t.Fatalf("close after rollback: %v", err)
	}
}

func TestUnitOfWorkCommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ds := &failingSource{DataSource: store}
	outer := eventbus.NewCounter(nil)
	metrics := &captureMetricsRecorder{}
	uow := NewUnitOfWork(ds, outer, WithMetrics(metrics))

	if _, err := uow.ImportGame(ctx, GameImport{
		Year: 2020, Week: 1,
		Home: TeamImport{Name: "A", Subdivision: domain.SubdivisionFBS},
		Away: TeamImport{Name: "B", Subdivision: domain.SubdivisionFBS},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := uow.Commit(ctx); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if ds.begins != 1 {
		t.Fatalf("expected one backend transaction, got %d", ds.begins)
	}
	if snap := store.Snapshot(); len(snap.Seasons) != 0 || len(snap.Teams) != 0 || len(snap.Affiliations) != 0 {
		t.Fatalf("partial commit visible: %+v", snap)
	}
	if len(outer.Counts()) != 0 || len(metrics.events) != 0 {
		t.Fatalf("failed commit published events")
	}
	if !metrics.has("uow.commit", false) {
		t.Fatalf("expected failed commit metric")
	}

	if err := uow.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := uow.Commit(ctx); !errors.Is(err, ErrUnitOfWorkClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestUnitOfWorkDuplicateAcrossUnitsFailsAtCommit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	first := NewUnitOfWork(store, nil)
	if _, err := first.Factory.Team.Create(ctx, "Navy"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := first.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	outer := eventbus.NewCounter(nil)
	second := NewUnitOfWork(store, outer)
	defer func() { _ = second.Close() }()
	if _, err := second.Factory.Team.Create(ctx, "Navy"); err != nil {
		t.Fatalf("blind create is accepted until commit: %v", err)
	}
	err := second.Commit(ctx)
	var dup *domain.DuplicateKeyError
	if !errors.As(err, &dup) || dup.Entity != domain.EntityTeam {
		t.Fatalf("expected team duplicate, got %v", err)
	}
	if len(outer.Counts()) != 0 {
		t.Fatalf("outer bus saw %v", outer.Counts())
	}
	teams, _ := committed(t, store).Team.All(ctx)
	if len(teams) != 1 {
		t.Fatalf("expected the first team only, got %d", len(teams))
	}
}

func TestUnitOfWorkDuplicateAfterLookupFailsImmediately(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	first := NewUnitOfWork(store, nil)
	if _, err := first.Factory.Team.Create(ctx, "Navy"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := first.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	uow := NewUnitOfWork(store, nil)
	defer func() { _ = uow.Close() }()
	if team, err := uow.Team.Find(ctx, "Navy"); err != nil || team == nil {
		t.Fatalf("find: %v %+v", err, team)
	}
	if _, err := uow.Factory.Team.Create(ctx, "Navy"); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected duplicate from the cache, got %v", err)
	}
	if len(uow.Pending()) != 0 {
		t.Fatalf("rejected event was recorded: %v", uow.Pending())
	}
}

func TestUnitOfWorkRejectsUnknownEventTypes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uow := NewUnitOfWork(store, nil)
	defer func() { _ = uow.Close() }()

	if _, err := uow.Factory.Season.Create(ctx, 2020); err != nil {
		t.Fatalf("season: %v", err)
	}
	if err := (recordingBus{u: uow}).Publish(ctx, strayEvent{}); err != nil {
		t.Fatalf("stray publish: %v", err)
	}
	err := uow.Commit(ctx)
	var unknown *domain.UnknownEventTypeError
	if !errors.As(err, &unknown) || unknown.Type != "StrayEvent" {
		t.Fatalf("expected unknown event type, got %v", err)
	}
	if season, _ := committed(t, store).Season.Find(ctx, 2020); season != nil {
		t.Fatalf("season committed alongside an unknown event")
	}
}

func TestUnitOfWorkGameUpdatesReachTheStore(t *testing.T) {
	ctx := context.Background()
	store, fx := seeded(t, 2020)

	uow := NewUnitOfWork(store, nil)
	defer func() { _ = uow.Close() }()
	game, err := uow.Game.Get(ctx, fx.Game.ID)
	if err != nil || game == nil {
		t.Fatalf("get: %v %+v", err, game)
	}
	if len(uow.Pending()) != 0 {
		t.Fatalf("backing lookups must not be recorded, got %v", uow.Pending())
	}
	if _, err := game.Complete(ctx, 10, 17); err != nil {
		t.Fatalf("complete: %v", err)
	}
	again, err := uow.Game.Get(ctx, fx.Game.ID)
	if err != nil || again.Status != domain.StatusCompleted {
		t.Fatalf("completed game not visible in the unit of work: %v %+v", err, again)
	}
	if game.Status != domain.StatusScheduled {
		t.Fatalf("held value changed: %s", game.Status)
	}
	uow.Rollback()

	uow = NewUnitOfWork(store, nil)
	defer func() { _ = uow.Close() }()
	game, _ = uow.Game.Find(ctx, fx.Season.ID, 1, fx.Away.ID, fx.Home.ID)
	if game == nil {
		t.Fatalf("find ignores which team is home")
	}
	if _, err := game.Complete(ctx, 10, 17); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	stored, _ := committed(t, store).Game.Get(ctx, fx.Game.ID)
	if stored.Status != domain.StatusCompleted || stored.WinningTeamID != fx.Away.ID {
		t.Fatalf("unexpected stored game %+v", stored.State())
	}
}

func TestUnitOfWorkCancelOfCompletedGameLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	store, fx := seeded(t, 2020)

	uow := NewUnitOfWork(store, nil)
	game, err := uow.Game.Get(ctx, fx.Game.ID)
	if err != nil || game == nil {
		t.Fatalf("get: %v %+v", err, game)
	}
	if _, err := game.Complete(ctx, 28, 14); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	outer := eventbus.NewCounter(nil)
	uow = NewUnitOfWork(store, outer)
	defer func() { _ = uow.Close() }()
	done, err := uow.Game.Get(ctx, fx.Game.ID)
	if err != nil || done == nil {
		t.Fatalf("get completed: %v %+v", err, done)
	}
	var statusErr *domain.GameStatusError
	if _, err := done.Cancel(ctx); !errors.As(err, &statusErr) || statusErr.Status != domain.StatusCompleted || statusErr.GameID != fx.Game.ID {
		t.Fatalf("expected GameStatusError for a completed game, got %v", err)
	}
	if pending := uow.Pending(); len(pending) != 0 {
		t.Fatalf("rejected cancel recorded events: %v", pending)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("empty commit: %v", err)
	}
	if len(outer.Counts()) != 0 {
		t.Fatalf("outer bus saw events: %v", outer.Counts())
	}

	stored, err := committed(t, store).Game.Get(ctx, fx.Game.ID)
	if err != nil || stored == nil {
		t.Fatalf("stored: %v %+v", err, stored)
	}
	if stored.Status != domain.StatusCompleted || stored.Score == nil || stored.Score.Home != 28 || stored.Score.Away != 14 {
		t.Fatalf("stored game changed: %+v", stored.State())
	}
	if stored.WinningTeamID != fx.Game.HomeTeamID {
		t.Fatalf("stored result changed: %+v", stored.State())
	}
}

func TestUnitOfWorkForSeasonMergesCacheAndStore(t *testing.T) {
	ctx := context.Background()
	store, fx := seeded(t, 2020)

	uow := NewUnitOfWork(store, nil)
	defer func() { _ = uow.Close() }()
	if _, err := uow.Factory.Game.Create(ctx, domain.GameSpec{
		SeasonID:   fx.Season.ID,
		Week:       2,
		HomeTeamID: fx.Away.ID,
		AwayTeamID: fx.Home.ID,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	games, err := uow.Game.ForSeason(ctx, fx.Season.ID)
	if err != nil {
		t.Fatalf("for season: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected stored and pending game, got %d", len(games))
	}
	affiliations, err := uow.Affiliation.ForSeason(ctx, fx.Season.ID)
	if err != nil || len(affiliations) != 2 {
		t.Fatalf("affiliations: %v %d", err, len(affiliations))
	}
	if len(uow.Pending()) != 1 {
		t.Fatalf("merging must not record backing rows, got %d", len(uow.Pending()))
	}
}

func TestUnitOfWorkReplacedRankingHidesStoredOne(t *testing.T) {
	ctx := context.Background()
	store, fx := seeded(t, 2020)

	first := NewUnitOfWork(store, nil)
	old, err := first.Factory.TeamRanking.Create(ctx, "colley", fx.Season.ID, domain.Week(1), []domain.TeamRankingValue{{TeamID: fx.Home.ID, Rank: 1, Value: 1}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := first.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	uow := NewUnitOfWork(store, nil)
	defer func() { _ = uow.Close() }()
	replacement, err := uow.Factory.TeamRanking.Create(ctx, "colley", fx.Season.ID, domain.Week(1), []domain.TeamRankingValue{{TeamID: fx.Away.ID, Rank: 1, Value: 2}})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	found, err := uow.TeamRanking.Find(ctx, "colley", fx.Season.ID, domain.Week(1))
	if err != nil || found == nil || found.ID != replacement.ID {
		t.Fatalf("expected the replacement, got %v %+v", err, found)
	}
	if stale, err := uow.TeamRanking.Get(ctx, old.ID); err != nil || stale != nil {
		t.Fatalf("replaced ranking still visible: %v %+v", err, stale)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	rankings, _ := committed(t, store).TeamRanking.ForSeason(ctx, fx.Season.ID)
	if len(rankings) != 1 || rankings[0].ID != replacement.ID {
		t.Fatalf("expected one replaced ranking, got %+v", rankings)
	}
}

func TestUnitOfWorkOuterBusFailureKeepsCommit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	outer := eventbus.New()
	outer.Register(domain.EventTeamCreated, eventbus.HandlerFunc(func(context.Context, eventbus.Event) error {
		return errInjected
	}))

	uow := NewUnitOfWork(store, outer)
	if _, err := uow.Factory.Team.Create(ctx, "Navy"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := uow.Commit(ctx); !errors.Is(err, errInjected) {
		t.Fatalf("expected republish failure, got %v", err)
	}
	if team, _ := committed(t, store).Team.Find(ctx, "Navy"); team == nil {
		t.Fatalf("durable commit was lost")
	}
	if err := uow.Commit(ctx); !errors.Is(err, ErrUnitOfWorkClosed) {
		t.Fatalf("expected committed unit of work to be closed, got %v", err)
	}
}

func TestUnitOfWorkObservesCommit(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	uow := NewUnitOfWork(memory.NewStore(), nil, WithMetrics(metrics), WithTracer(tracer), WithLogger(nil))

	if _, err := uow.Factory.Season.Create(ctx, 2020); err != nil {
		t.Fatalf("season: %v", err)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !metrics.has("uow.commit", true) || !tracer.has("uow.commit", true) {
		t.Fatalf("commit not observed: %+v %+v", metrics.calls, tracer.ended)
	}
	if len(metrics.events) != 1 || metrics.events[0] != domain.EventSeasonCreated {
		t.Fatalf("unexpected event metrics %v", metrics.events)
	}
}

func TestUnitOfWorkStateNames(t *testing.T) {
	cases := map[uowState]string{
		stateOpen:       "open",
		stateCommitted:  "committed",
		stateRolledBack: "rolled_back",
		stateClosed:     "closed",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("state %d: want %s got %s", state, want, got)
		}
	}
}

func TestUnitOfWorkLogsOutcomes(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	store := memory.NewStore()

	failing := NewUnitOfWork(&failingSource{DataSource: store}, nil, WithLogger(logger))
	if _, err := failing.Factory.Game.Create(ctx, domain.GameSpec{SeasonID: "s", HomeTeamID: "a", AwayTeamID: "b"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := failing.Commit(ctx); err == nil {
		t.Fatalf("expected commit failure")
	}
	_ = failing.Close()
	if !logger.has("error", "unit of work commit failed") {
		t.Fatalf("commit failure not logged: %+v", logger.lines)
	}
	if !logger.has("debug", "unit of work closed with uncommitted events") {
		t.Fatalf("discarded events not logged: %+v", logger.lines)
	}

	uow := NewUnitOfWork(store, nil, WithLogger(logger))
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("empty commit: %v", err)
	}
	if !logger.has("debug", "unit of work committed") {
		t.Fatalf("commit not logged: %+v", logger.lines)
	}
}
