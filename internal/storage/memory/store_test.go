package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

func TestPositionStore_UpsertAndGet(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	pos := &domain.Position{
		Wallet:        "w1",
		Mint:          "m1",
		Quantity:      1000,
		AvgEntryPrice: decimal.RequireFromString("2.5"),
		Status:        domain.PositionOpen,
	}
	if err := store.Upsert(ctx, pos); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	pos.Quantity = 0
	pos.Status = domain.PositionClosed
	if err := store.Upsert(ctx, pos); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "w1", "m1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.PositionClosed || got.Quantity != 0 {
		t.Errorf("expected replaced closed position, got %+v", got)
	}
	if !got.AvgEntryPrice.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("AvgEntryPrice mismatch: got %s", got.AvgEntryPrice)
	}
}

func TestPositionStore_NotFound(t *testing.T) {
	store := NewPositionStore()

	_, err := store.Get(context.Background(), "w1", "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPositionStore_ListOpenOrdered(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	for _, p := range []*domain.Position{
		{Wallet: "w2", Mint: "a", Status: domain.PositionOpen},
		{Wallet: "w1", Mint: "b", Status: domain.PositionOpen},
		{Wallet: "w1", Mint: "a", Status: domain.PositionClosed},
	} {
		if err := store.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	all, _ := store.List(ctx)
	if len(all) != 3 || all[0].Mint != "a" || all[0].Wallet != "w1" {
		t.Errorf("unexpected order: %+v", all)
	}

	open, _ := store.ListOpen(ctx)
	if len(open) != 2 {
		t.Fatalf("expected 2 open positions, got %d", len(open))
	}
	if open[0].Wallet != "w1" || open[1].Wallet != "w2" {
		t.Errorf("unexpected open order: %s, %s", open[0].Wallet, open[1].Wallet)
	}
}

func TestPositionStore_InvalidInput(t *testing.T) {
	store := NewPositionStore()

	if err := store.Upsert(context.Background(), &domain.Position{Wallet: "w1"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestAttemptStore_InsertBulk(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	attempts := []*domain.SubmissionAttempt{
		{ID: "a2", PlanID: "p1", Channel: "relay", SubmittedAt: base.Add(time.Millisecond)},
		{ID: "a1", PlanID: "p1", Channel: "bundle", SubmittedAt: base},
		{ID: "a3", PlanID: "p2", Channel: "bundle", SubmittedAt: base},
	}
	if err := store.InsertBulk(ctx, attempts); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByPlanID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByPlanID failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a1" || got[1].ID != "a2" {
		t.Errorf("unexpected attempts: %+v", got)
	}
}

func TestAttemptStore_DuplicateFailsBatch(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.SubmissionAttempt{{ID: "a1", PlanID: "p1"}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.SubmissionAttempt{
		{ID: "a2", PlanID: "p1"},
		{ID: "a1", PlanID: "p1"},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByPlanID(ctx, "p1")
	if len(got) != 1 {
		t.Errorf("batch should be atomic, got %d attempts", len(got))
	}
}

func TestTraceStore_InsertAndGetByMint(t *testing.T) {
	store := NewTraceStore()
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	if err := store.Insert(ctx, &domain.SignalTrace{SignalID: "s2", Mint: "m1", ObservedAt: base.Add(time.Second)}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, &domain.SignalTrace{SignalID: "s1", Mint: "m1", ObservedAt: base}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.Insert(ctx, &domain.SignalTrace{SignalID: "s1", Mint: "m1"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByMint(ctx, "m1")
	if len(got) != 2 || got[0].SignalID != "s1" {
		t.Errorf("unexpected traces: %+v", got)
	}
}
