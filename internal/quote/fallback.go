package quote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/metrics"
)

// Fallback tries the primary source under a timeout and substitutes the
// fallback source's price on any failure. There is exactly one
// substitution and no retry.
type Fallback struct {
	primary  PriceSource
	fallback PriceSource
	timeout  time.Duration
}

// WithFallback composes primary and fallback. A zero timeout leaves the
// primary bounded only by the caller's context.
func WithFallback(primary, fallback PriceSource, timeout time.Duration) *Fallback {
	return &Fallback{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
	}
}

func (f *Fallback) Price(ctx context.Context, symbol string) (Quote, error) {
	pctx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	q, err := f.primary.Price(pctx, symbol)
	if err == nil {
		return q, nil
	}

	reason := "unavailable"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	metrics.QuoteFallbacks.WithLabelValues(reason).Inc()
	slog.Warn("live quote unavailable, using fallback price",
		"symbol", symbol,
		"reason", reason,
		"err", err,
	)

	// Synthetic prices are local; resolve one even if the caller has gone.
	return f.fallback.Price(context.WithoutCancel(ctx), symbol)
}
