package trade

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/model"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/store"
)

// ErrLedgerInconsistent is returned by ReplayPositions when a ledger sells
// more than it bought.
var ErrLedgerInconsistent = errors.New("trade: ledger sells more than it holds")

// Balance returns the user's cash balance.
func (e *Engine) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	account, err := e.store.GetAccount(ctx, userID)
	if errors.Is(err, store.ErrAccountNotFound) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// Portfolio returns the materialized positions, ordered by symbol.
func (e *Engine) Portfolio(ctx context.Context, userID string) ([]model.Position, error) {
	positions, err := e.store.ListPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if positions == nil {
		positions = []model.Position{}
	}
	return positions, nil
}

// Ledger returns the user's raw ledger, newest first.
func (e *Engine) Ledger(ctx context.Context, userID string) ([]model.LedgerEntry, error) {
	entries, err := e.store.ListLedgerEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	return entries, nil
}

// History returns the ledger for display, newest first: the direction
// comes from the sign of the quantity and the amount is reported unsigned.
func (e *Engine) History(ctx context.Context, userID string) ([]model.HistoryItem, error) {
	entries, err := e.Ledger(ctx, userID)
	if err != nil {
		return nil, err
	}

	history := make([]model.HistoryItem, 0, len(entries))
	for _, entry := range entries {
		amount := entry.Quantity
		if amount < 0 {
			amount = -amount
		}
		history = append(history, model.HistoryItem{
			Symbol:    entry.Symbol,
			Amount:    amount,
			Price:     entry.Price,
			Timestamp: entry.Timestamp,
			Type:      entry.Side().Label(),
		})
	}
	return history, nil
}

// Reconciliation compares the materialized positions with the positions
// replayed from the ledger.
type Reconciliation struct {
	Consistent   bool             `json:"consistent"`
	Materialized []model.Position `json:"materialized"`
	Replayed     []model.Position `json:"replayed"`
}

// Reconcile replays the user's ledger and compares it with the position
// table. Both are read inside the user's atomic scope so no transaction
// can commit between the two reads.
func (e *Engine) Reconcile(ctx context.Context, userID string) (*Reconciliation, error) {
	var materialized []model.Position
	var entries []model.LedgerEntry
	err := e.store.WithinTx(ctx, userID, func(ctx context.Context, _ store.Tx) error {
		var err error
		if materialized, err = e.Portfolio(ctx, userID); err != nil {
			return err
		}
		entries, err = e.Ledger(ctx, userID)
		return err
	})
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	// Ledger comes back newest first; replay oldest first.
	oldestFirst := make([]model.LedgerEntry, len(entries))
	for i, entry := range entries {
		oldestFirst[len(entries)-1-i] = entry
	}

	rec := &Reconciliation{Materialized: materialized}
	replayed, err := ReplayPositions(userID, oldestFirst)
	if err != nil {
		rec.Replayed = []model.Position{}
		return rec, nil
	}
	rec.Replayed = replayed
	rec.Consistent = samePositions(materialized, replayed)
	return rec, nil
}

// ReplayPositions derives positions from a ledger in commit order using
// the same rules as Execute. The result is ordered by symbol.
func ReplayPositions(userID string, oldestFirst []model.LedgerEntry) ([]model.Position, error) {
	open := make(map[string]*model.Position)
	for _, entry := range oldestFirst {
		existing := open[entry.Symbol]
		if entry.Quantity > 0 {
			open[entry.Symbol] = applyBuy(existing, entry.Symbol, entry.Quantity, entry.Price)
			continue
		}

		qty := -entry.Quantity
		if existing == nil || existing.Quantity < qty {
			return nil, fmt.Errorf("%w: entry %s", ErrLedgerInconsistent, entry.ID)
		}
		if next := applySell(existing, qty); next != nil {
			open[entry.Symbol] = next
		} else {
			delete(open, entry.Symbol)
		}
	}

	positions := make([]model.Position, 0, len(open))
	for _, p := range open {
		p.UserID = userID
		positions = append(positions, *p)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions, nil
}

func samePositions(a, b []model.Position) bool {
	if len(a) != len(b) {
		return false
	}
	a, b = bySymbol(a), bySymbol(b)
	for i := range a {
		if a[i].Symbol != b[i].Symbol ||
			a[i].Quantity != b[i].Quantity ||
			!a[i].AveragePrice.Equal(b[i].AveragePrice) {
			return false
		}
	}
	return true
}

// bySymbol returns a copy of positions sorted by symbol. Database
// collation order may differ from byte order.
func bySymbol(positions []model.Position) []model.Position {
	out := make([]model.Position, len(positions))
	copy(out, positions)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
