// Package model defines the core domain types shared across the simulator.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Label is the upper-case form used in history and confirmation messages.
func (s Side) Label() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return ""
	}
}

// Account holds a user's credentials and cash balance.
// Balance is mutated only by the transaction engine and never goes negative.
type Account struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Position is a user's current holding in one symbol. It exists only while
// Quantity > 0; sells never change AveragePrice.
type Position struct {
	UserID       string          `json:"user_id"`
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"amount"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

// LedgerEntry is an immutable record of one buy or sell.
// Once created, these are never modified or deleted.
type LedgerEntry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"amount"` // signed: +buy, -sell
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Side derives the direction from the sign of the quantity.
func (e LedgerEntry) Side() Side {
	if e.Quantity > 0 {
		return SideBuy
	}
	return SideSell
}

// HistoryItem is the display form of a ledger entry.
type HistoryItem struct {
	Symbol    string          `json:"symbol"`
	Amount    int64           `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"` // "BUY" or "SELL"
}

// Confirmation is the result of a committed transaction.
type Confirmation struct {
	EntryID     string          `json:"entry_id"`
	Side        Side            `json:"side"`
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"amount"`
	UnitPrice   decimal.Decimal `json:"price"`
	PriceSource string          `json:"price_source"`
	TotalValue  decimal.Decimal `json:"total_value"`
	NewBalance  decimal.Decimal `json:"balance"`
	Position    *Position       `json:"position"` // nil once fully sold
}
