// Package quote provides market prices for the transaction engine.
//
// A PriceSource either returns a quote or fails with ErrUnavailable. The
// live Alpha Vantage source is composed with a synthetic source through
// the Fallback decorator so that transactions still complete when the
// market data API is down, slow, or out of quota.
//
// All prices use shopspring/decimal, never float64.
package quote

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Source labels reported alongside each quote.
const (
	SourceLive      = "live"
	SourceSynthetic = "synthetic"
	SourceStatic    = "static"
)

// ErrUnavailable is returned when a source has no usable price.
// It is internal to the engine: the fallback path always resolves it.
var ErrUnavailable = errors.New("quote: price unavailable")

// Quote is a unit price for one symbol.
type Quote struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Source     string          `json:"source"`
	ReceivedAt time.Time       `json:"received_at"`
}

// PriceSource resolves the current unit price of a symbol.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (Quote, error)
}

// PriceFunc adapts a function to the PriceSource interface.
type PriceFunc func(ctx context.Context, symbol string) (Quote, error)

func (f PriceFunc) Price(ctx context.Context, symbol string) (Quote, error) {
	return f(ctx, symbol)
}

// Static serves fixed prices. Unknown symbols are unavailable.
type Static map[string]decimal.Decimal

func (s Static) Price(_ context.Context, symbol string) (Quote, error) {
	p, ok := s[symbol]
	if !ok {
		return Quote{}, ErrUnavailable
	}
	return Quote{
		Symbol:     symbol,
		Price:      p,
		Source:     SourceStatic,
		ReceivedAt: time.Now().UTC(),
	}, nil
}
