// Package trade implements the portfolio transaction engine and the HTTP
// handlers in front of it: executing buys and sells, and projecting
// balance, portfolio, and transaction history.
//
// All monetary values use shopspring/decimal, never float64.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/metrics"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/model"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/quote"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/store"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/symbol"
)

// AveragePriceScale is the number of decimal places kept on average prices.
const AveragePriceScale int32 = 8

// Order is a request to buy or sell a whole number of shares.
type Order struct {
	UserID   string
	Symbol   string
	Quantity int64
	Side     model.Side
}

// Notifier is told about every committed transaction.
type Notifier interface {
	TransactionExecuted(c model.Confirmation)
}

// Engine applies orders to a user's balance, positions, and ledger.
// Serialization per user is delegated to store.WithinTx; the engine
// itself holds no locks.
type Engine struct {
	store    store.Store
	prices   quote.PriceSource
	notifier Notifier
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier registers n to receive committed transactions.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithClock overrides the ledger timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine. prices should already be composed with a
// fallback source; the engine treats any price error as internal.
func NewEngine(st store.Store, prices quote.PriceSource, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		prices: prices,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute validates the order, resolves a unit price, and atomically
// debits/credits the balance, updates the position, and appends a ledger
// entry.
func (e *Engine) Execute(ctx context.Context, order Order) (*model.Confirmation, error) {
	start := time.Now()
	conf, err := e.execute(ctx, order)

	outcome := "ok"
	if err != nil {
		outcome = Kind(err)
	}
	metrics.TransactionsTotal.WithLabelValues(string(order.Side), outcome).Inc()
	metrics.TransactionLatency.WithLabelValues(string(order.Side)).Observe(time.Since(start).Seconds())
	return conf, err
}

func (e *Engine) execute(ctx context.Context, order Order) (*model.Confirmation, error) {
	sym, err := validate(order)
	if err != nil {
		return nil, err
	}

	// Price is captured before the atomic section so one price is used
	// throughout.
	q, err := e.prices.Price(ctx, sym)
	if err != nil {
		return nil, fmt.Errorf("resolve price for %s: %w", sym, err)
	}
	if !q.Price.IsPositive() {
		return nil, fmt.Errorf("resolve price for %s: non-positive price %s", sym, q.Price)
	}

	unitPrice := q.Price
	qty := decimal.NewFromInt(order.Quantity)
	totalValue := unitPrice.Mul(qty)

	conf := &model.Confirmation{
		EntryID:     uuid.New().String(),
		Side:        order.Side,
		Symbol:      sym,
		Quantity:    order.Quantity,
		UnitPrice:   unitPrice,
		PriceSource: q.Source,
		TotalValue:  totalValue,
	}

	err = e.store.WithinTx(ctx, order.UserID, func(ctx context.Context, tx store.Tx) error {
		account, err := tx.Account(ctx)
		if err != nil {
			return err
		}
		existing, err := tx.Position(ctx, sym)
		if err != nil {
			return err
		}

		var balance decimal.Decimal
		var next *model.Position
		signed := order.Quantity

		switch order.Side {
		case model.SideBuy:
			if account.Balance.LessThan(totalValue) {
				return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, totalValue, account.Balance)
			}
			balance = account.Balance.Sub(totalValue)
			next = applyBuy(existing, sym, order.Quantity, unitPrice)

		case model.SideSell:
			if existing == nil || existing.Quantity < order.Quantity {
				held := int64(0)
				if existing != nil {
					held = existing.Quantity
				}
				return fmt.Errorf("%w: selling %d %s, holding %d", ErrInsufficientHoldings, order.Quantity, sym, held)
			}
			balance = account.Balance.Add(totalValue)
			next = applySell(existing, order.Quantity)
			signed = -order.Quantity
		}

		if err := tx.SetBalance(ctx, balance); err != nil {
			return err
		}
		if next == nil {
			if err := tx.DeletePosition(ctx, sym); err != nil {
				return err
			}
		} else {
			next.UserID = account.ID
			if err := tx.SavePosition(ctx, next); err != nil {
				return err
			}
		}

		entry := &model.LedgerEntry{
			ID:        conf.EntryID,
			UserID:    account.ID,
			Symbol:    sym,
			Quantity:  signed,
			Price:     unitPrice,
			Timestamp: e.now(),
		}
		if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
			return err
		}

		conf.NewBalance = balance
		conf.Position = next
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, store.ErrAccountNotFound):
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, order.UserID)
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInsufficientHoldings):
		return nil, err
	default:
		slog.Error("transaction failed to commit",
			"user", order.UserID,
			"symbol", sym,
			"side", order.Side,
			"qty", order.Quantity,
			"err", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	metrics.TradedShares.WithLabelValues(sym, string(order.Side)).Add(float64(order.Quantity))

	slog.Info("transaction executed",
		"entry_id", conf.EntryID,
		"user", order.UserID,
		"symbol", sym,
		"side", order.Side,
		"qty", order.Quantity,
		"price", unitPrice.String(),
		"price_source", q.Source,
		"balance", conf.NewBalance.String(),
	)

	if e.notifier != nil {
		e.notifier.TransactionExecuted(*conf)
	}
	return conf, nil
}

// validate checks the order shape and returns the normalized symbol.
func validate(order Order) (string, error) {
	if order.UserID == "" {
		return "", fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}
	if order.Side != model.SideBuy && order.Side != model.SideSell {
		return "", fmt.Errorf("%w: type must be buy or sell", ErrInvalidRequest)
	}
	if order.Quantity <= 0 {
		return "", fmt.Errorf("%w: amount must be a positive integer", ErrInvalidRequest)
	}
	sym, err := symbol.Parse(order.Symbol)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return sym, nil
}

// applyBuy returns the position after buying qty at price. A new position
// starts at price; an existing one takes the quantity-weighted average.
func applyBuy(existing *model.Position, sym string, qty int64, price decimal.Decimal) *model.Position {
	if existing == nil {
		return &model.Position{
			Symbol:       sym,
			Quantity:     qty,
			AveragePrice: price,
		}
	}
	newQty := existing.Quantity + qty
	return &model.Position{
		UserID:       existing.UserID,
		Symbol:       sym,
		Quantity:     newQty,
		AveragePrice: weightedAverage(existing.Quantity, existing.AveragePrice, qty, price),
	}
}

// applySell returns the position after selling qty, or nil once it is
// fully closed. The average price is unchanged.
func applySell(existing *model.Position, qty int64) *model.Position {
	newQty := existing.Quantity - qty
	if newQty == 0 {
		return nil
	}
	next := *existing
	next.Quantity = newQty
	return &next
}

// weightedAverage is (q1*p1 + q2*p2) / (q1+q2), rounded to AveragePriceScale.
func weightedAverage(q1 int64, p1 decimal.Decimal, q2 int64, p2 decimal.Decimal) decimal.Decimal {
	cost := p1.Mul(decimal.NewFromInt(q1)).Add(p2.Mul(decimal.NewFromInt(q2)))
	return cost.DivRound(decimal.NewFromInt(q1+q2), AveragePriceScale)
}
