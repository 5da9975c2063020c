package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/model"
)

func newCachedStore(t *testing.T) (*CachedStore, *MemoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	primary := NewMemoryStore()
	return NewCachedStore(primary, rdb, time.Minute), primary, mr
}

func buy(t *testing.T, s Store, userID, symbol string, qty int64) {
	t.Helper()
	err := s.WithinTx(context.Background(), userID, func(ctx context.Context, tx Tx) error {
		if err := tx.SavePosition(ctx, &model.Position{Symbol: symbol, Quantity: qty, AveragePrice: d("10")}); err != nil {
			return err
		}
		return tx.AppendLedgerEntry(ctx, &model.LedgerEntry{ID: symbol, Symbol: symbol, Quantity: qty, Price: d("10")})
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}
}

func TestCachedStore_ReadThrough(t *testing.T) {
	cs, primary, mr := newCachedStore(t)
	seedAccount(t, primary, "u1", "alice", "1000")
	buy(t, primary, "u1", "AAPL", 3)
	ctx := context.Background()

	positions, err := cs.ListPositions(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 || positions[0].Quantity != 3 {
		t.Fatalf("unexpected positions: %+v", positions)
	}
	if !mr.Exists("positions:u1") {
		t.Error("expected positions to be cached after a miss")
	}

	cached, _ := cs.ListPositions(ctx, "u1")
	if len(cached) != 1 || !cached[0].AveragePrice.Equal(d("10")) {
		t.Errorf("cached positions should round-trip, got %+v", cached)
	}
}

func TestCachedStore_InvalidatesOnCommit(t *testing.T) {
	cs, primary, mr := newCachedStore(t)
	seedAccount(t, primary, "u1", "alice", "1000")
	ctx := context.Background()

	cs.ListPositions(ctx, "u1")
	cs.ListLedgerEntries(ctx, "u1")
	if !mr.Exists("positions:u1") || !mr.Exists("history:u1") {
		t.Fatal("expected projections to be cached")
	}

	buy(t, cs, "u1", "MSFT", 2)

	if mr.Exists("positions:u1") || mr.Exists("history:u1") {
		t.Error("commit should invalidate cached projections")
	}

	positions, _ := cs.ListPositions(ctx, "u1")
	if len(positions) != 1 || positions[0].Symbol != "MSFT" {
		t.Errorf("expected fresh positions after commit, got %+v", positions)
	}
	entries, _ := cs.ListLedgerEntries(ctx, "u1")
	if len(entries) != 1 {
		t.Errorf("expected fresh history after commit, got %+v", entries)
	}
}

func TestCachedStore_InvalidatesWhenCallerCancels(t *testing.T) {
	cs, primary, mr := newCachedStore(t)
	seedAccount(t, primary, "u1", "alice", "1000")
	buy(t, primary, "u1", "AAPL", 3)

	if cached, _ := cs.ListPositions(context.Background(), "u1"); len(cached) != 1 {
		t.Fatalf("expected one cached position, got %+v", cached)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := cs.WithinTx(ctx, "u1", func(ctx context.Context, tx Tx) error {
		if err := tx.DeletePosition(ctx, "AAPL"); err != nil {
			return err
		}
		if err := tx.AppendLedgerEntry(ctx, &model.LedgerEntry{ID: "sell", Symbol: "AAPL", Quantity: -3, Price: d("10")}); err != nil {
			return err
		}
		// Client disconnects after the writes but before the commit returns.
		cancel()
		return nil
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}

	if mr.Exists("positions:u1") || mr.Exists("history:u1") {
		t.Error("commit should invalidate cached projections even after the caller cancels")
	}

	materialized, _ := primary.ListPositions(context.Background(), "u1")
	served, _ := cs.ListPositions(context.Background(), "u1")
	if len(served) != len(materialized) {
		t.Errorf("served positions %+v differ from stored %+v", served, materialized)
	}
}

func TestCachedStore_FailedTxKeepsCache(t *testing.T) {
	cs, primary, mr := newCachedStore(t)
	seedAccount(t, primary, "u1", "alice", "1000")
	ctx := context.Background()

	cs.ListPositions(ctx, "u1")
	err := cs.WithinTx(ctx, "ghost", func(ctx context.Context, tx Tx) error { return nil })
	if err == nil {
		t.Fatal("expected error for unknown account")
	}
	if !mr.Exists("positions:u1") {
		t.Error("failed transaction should not touch other users' cache")
	}
}
