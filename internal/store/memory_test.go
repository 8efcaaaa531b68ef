package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stakevault/staking-engine/internal/model"
	"github.com/stakevault/staking-engine/internal/store"
)

func newPool() *model.PoolConfig {
	return &model.PoolConfig{
		Owner:          "admin",
		AssetID:        "TOKN",
		CustodyAccount: "custody",
		StartTime:      1000,
		EndTime:        2000,
		LockDuration:   500,
		AnnualRate:     10,
		TotalStaked:    decimal.Zero,
		CreatedAt:      time.Unix(900, 0).UTC(),
	}
}

func TestMemoryStore_PoolLifecycle(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetPool(ctx); !errors.Is(err, store.ErrPoolNotFound) {
		t.Errorf("expected ErrPoolNotFound, got %v", err)
	}

	if err := s.CreatePool(ctx, newPool()); err != nil {
		t.Fatal(err)
	}
	if err := s.CreatePool(ctx, newPool()); !errors.Is(err, store.ErrPoolExists) {
		t.Errorf("expected ErrPoolExists, got %v", err)
	}

	pool, err := s.GetPool(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if pool.Owner != "admin" || pool.AnnualRate != 10 {
		t.Errorf("unexpected pool: %+v", pool)
	}
}

func TestMemoryStore_GetPoolReturnsCopy(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	if err := s.CreatePool(ctx, newPool()); err != nil {
		t.Fatal(err)
	}

	pool, _ := s.GetPool(ctx)
	pool.AnnualRate = 999

	again, _ := s.GetPool(ctx)
	if again.AnnualRate != 10 {
		t.Errorf("caller mutation leaked into the store: rate=%d", again.AnnualRate)
	}
}

func TestMemoryStore_UpdatePoolParams(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	if err := s.UpdatePoolParams(ctx, 0, 1, 2, 3); !errors.Is(err, store.ErrPoolNotFound) {
		t.Errorf("expected ErrPoolNotFound, got %v", err)
	}

	if err := s.CreatePool(ctx, newPool()); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdatePoolParams(ctx, 500, 5000, 250, 20); err != nil {
		t.Fatal(err)
	}

	pool, _ := s.GetPool(ctx)
	if pool.StartTime != 500 || pool.EndTime != 5000 || pool.LockDuration != 250 || pool.AnnualRate != 20 {
		t.Errorf("unexpected pool after update: %+v", pool)
	}
	// Untouched fields survive.
	if pool.Owner != "admin" || pool.CustodyAccount != "custody" {
		t.Errorf("update clobbered immutable fields: %+v", pool)
	}
}

func TestMemoryStore_AddTotalStaked(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	if err := s.CreatePool(ctx, newPool()); err != nil {
		t.Fatal(err)
	}

	if err := s.AddTotalStaked(ctx, decimal.NewFromInt(1000)); err != nil {
		t.Fatal(err)
	}
	if err := s.AddTotalStaked(ctx, decimal.NewFromInt(-400)); err != nil {
		t.Fatal(err)
	}

	pool, _ := s.GetPool(ctx)
	if !pool.TotalStaked.Equal(decimal.NewFromInt(600)) {
		t.Errorf("total_staked: expected 600, got %s", pool.TotalStaked)
	}
}

func TestMemoryStore_EnsureStakeRecord(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetStakeRecord(ctx, "alice"); !errors.Is(err, store.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}

	rec, err := s.EnsureStakeRecord(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Owner != "alice" || rec.Active() {
		t.Errorf("expected empty record for alice, got %+v", rec)
	}

	// Ensure is idempotent and does not reset an existing record.
	rec.AmountStaked = decimal.NewFromInt(500)
	rec.StartTime = 1500
	if err := s.PutStakeRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	again, err := s.EnsureStakeRecord(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !again.AmountStaked.Equal(decimal.NewFromInt(500)) || again.StartTime != 1500 {
		t.Errorf("ensure reset an existing record: %+v", again)
	}
}

func TestMemoryStore_RecordsAreCopies(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	rec, err := s.EnsureStakeRecord(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	rec.AmountStaked = decimal.NewFromInt(999)

	stored, err := s.GetStakeRecord(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !stored.AmountStaked.IsZero() {
		t.Errorf("caller mutation leaked into the store: %s", stored.AmountStaked)
	}
}

func TestMemoryStore_ListStakeRecords(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	for _, owner := range []string{"alice", "bob", "carol"} {
		if _, err := s.EnsureStakeRecord(ctx, owner); err != nil {
			t.Fatal(err)
		}
	}

	records, err := s.ListStakeRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records, got %d", len(records))
	}
}

func TestMemoryStore_TransferJournal(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	entries := []*model.TransferEntry{
		{ID: "1", Operation: model.TransferStake, Owner: "alice", Amount: decimal.NewFromInt(100), Timestamp: time.Unix(1500, 0)},
		{ID: "2", Operation: model.TransferClaim, Owner: "alice", Amount: decimal.NewFromInt(10), Timestamp: time.Unix(1600, 0)},
		{ID: "3", Operation: model.TransferStake, Owner: "bob", Amount: decimal.NewFromInt(200), Timestamp: time.Unix(1700, 0)},
	}
	for _, e := range entries {
		if err := s.InsertTransferEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListTransfersByOwner(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries for alice, got %d", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "2" {
		t.Errorf("entries out of insertion order: %+v", got)
	}

	got, err = s.ListTransfersByOwner(ctx, "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries for nobody, got %d", len(got))
	}
}
