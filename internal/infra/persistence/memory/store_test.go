package memory

import (
	"context"
	"errors"
	"testing"

	"gridrank/internal/infra/persistence/contract"
	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

func TestStoreContract(t *testing.T) {
	contract.Run(t, func(*testing.T) domain.DataSource { return NewStore() })
}

func TestTransactionIsInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.HandleTeamCreated(ctx, domain.TeamCreated{Team: domain.Team{ID: "t", Name: "Pending"}}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	repos := store.Repositories(eventbus.New())
	if team, _ := repos.Team.Find(ctx, "Pending"); team != nil {
		t.Fatalf("uncommitted team visible")
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if team, _ := repos.Team.Find(ctx, "Pending"); team == nil {
		t.Fatalf("committed team not visible")
	}
	if got := store.Snapshot(); len(got.Teams) != 1 {
		t.Fatalf("snapshot teams = %d", len(got.Teams))
	}
}

func TestFailedReplayLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	fx := contract.NewFixture(2020)
	if err := contract.Apply(ctx, store, fx.Events()...); err != nil {
		t.Fatalf("apply: %v", err)
	}
	before := store.Snapshot()

	err := contract.Apply(ctx, store,
		domain.TeamCreated{Team: domain.Team{ID: "new", Name: "Newcomer"}},
		domain.TeamCreated{Team: domain.Team{ID: "again", Name: fx.Home.Name}},
	)
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	after := store.Snapshot()
	if len(after.Teams) != len(before.Teams) {
		t.Fatalf("failed transaction changed team count: %d -> %d", len(before.Teams), len(after.Teams))
	}
}

func TestReturnedRowsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	ranking := domain.TeamRanking{ID: "r", Name: "n", SeasonID: "s", Week: domain.Week(2), Values: []domain.TeamRankingValue{{TeamID: "a", Rank: 1}}}
	if err := contract.Apply(ctx, store, domain.TeamRankingCreated{Ranking: ranking}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	repos := store.Repositories(eventbus.New())
	got, _ := repos.TeamRanking.Get(ctx, "r")
	got.Values[0].Rank = 42
	*got.Week = 9
	again, _ := repos.TeamRanking.Get(ctx, "r")
	if again.Values[0].Rank != 1 || *again.Week != 2 {
		t.Fatalf("stored ranking shares memory with caller: %+v", again)
	}
}

func TestStorageDrop(t *testing.T) {
	storage := NewStorage()
	h := NewEventHandler(storage)
	ctx := context.Background()
	if err := h.HandleSeasonCreated(ctx, domain.SeasonCreated{Season: domain.Season{ID: "s", Year: 2020}}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if storage.Len() != 1 {
		t.Fatalf("expected one row")
	}
	storage.Drop()
	if storage.Len() != 0 {
		t.Fatalf("expected empty storage")
	}
	if err := h.HandleSeasonCreated(ctx, domain.SeasonCreated{Season: domain.Season{ID: "s", Year: 2020}}); err != nil {
		t.Fatalf("re-add after drop: %v", err)
	}
}
