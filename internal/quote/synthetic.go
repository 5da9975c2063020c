package quote

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Synthetic produces pseudo-random prices uniformly distributed in
// [min, max], rounded to cents. It never fails.
type Synthetic struct {
	min decimal.Decimal
	max decimal.Decimal

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthetic creates a synthetic source. Pass nil rng for a time-seeded
// generator. If max < min the bounds are swapped.
func NewSynthetic(min, max decimal.Decimal, rng *rand.Rand) *Synthetic {
	if max.LessThan(min) {
		min, max = max, min
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Synthetic{min: min, max: max, rng: rng}
}

func (s *Synthetic) Price(_ context.Context, symbol string) (Quote, error) {
	s.mu.Lock()
	f := s.rng.Float64()
	s.mu.Unlock()

	span := s.max.Sub(s.min)
	price := s.min.Add(span.Mul(decimal.NewFromFloat(f))).Round(2)
	if price.LessThan(s.min) {
		price = s.min
	}
	if price.GreaterThan(s.max) {
		price = s.max
	}

	return Quote{
		Symbol:     symbol,
		Price:      price,
		Source:     SourceSynthetic,
		ReceivedAt: time.Now().UTC(),
	}, nil
}
