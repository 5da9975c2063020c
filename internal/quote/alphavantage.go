package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// DefaultAlphaVantageURL is the Alpha Vantage query endpoint.
const DefaultAlphaVantageURL = "https://www.alphavantage.co/query"

// defaultFetchTimeout bounds a shared upstream request when the client
// has no timeout of its own.
const defaultFetchTimeout = 10 * time.Second

// AlphaVantage fetches live prices with the GLOBAL_QUOTE function.
// Concurrent lookups of the same symbol share one upstream request. The
// shared request is not tied to any single caller, so one caller giving
// up does not fail the others.
type AlphaVantage struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	fetchTimeout time.Duration
	group        singleflight.Group
}

// NewAlphaVantage creates a live source. A nil client uses a client with
// a 10s timeout; an empty baseURL uses DefaultAlphaVantageURL.
func NewAlphaVantage(baseURL, apiKey string, client *http.Client) *AlphaVantage {
	if baseURL == "" {
		baseURL = DefaultAlphaVantageURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	fetchTimeout := client.Timeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &AlphaVantage{
		client:       client,
		baseURL:      baseURL,
		apiKey:       apiKey,
		fetchTimeout: fetchTimeout,
	}
}

// globalQuoteResponse is the subset of the GLOBAL_QUOTE payload we read.
// Throttled or invalid requests come back as 200 with Note/Information
// set and an empty quote.
type globalQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
	Error       string            `json:"Error Message"`
}

func (a *AlphaVantage) Price(ctx context.Context, symbol string) (Quote, error) {
	if a.apiKey == "" {
		return Quote{}, fmt.Errorf("%w: alpha vantage api key not configured", ErrUnavailable)
	}

	ch := a.group.DoChan(symbol, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.fetchTimeout)
		defer cancel()
		return a.fetch(fctx, symbol)
	})

	select {
	case <-ctx.Done():
		return Quote{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Quote{}, res.Err
		}
		return res.Val.(Quote), nil
	}
}

func (a *AlphaVantage) fetch(ctx context.Context, symbol string) (Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	params.Set("apikey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Quote{}, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("%w: alpha vantage returned %s", ErrUnavailable, resp.Status)
	}

	var body globalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Quote{}, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}

	raw := strings.TrimSpace(body.GlobalQuote["05. price"])
	if raw == "" {
		reason := "no quote for " + symbol
		switch {
		case body.Note != "":
			reason = body.Note
		case body.Information != "":
			reason = body.Information
		case body.Error != "":
			reason = body.Error
		}
		return Quote{}, fmt.Errorf("%w: %s", ErrUnavailable, reason)
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: bad price %q", ErrUnavailable, raw)
	}
	if !price.IsPositive() {
		return Quote{}, fmt.Errorf("%w: non-positive price %s", ErrUnavailable, raw)
	}

	return Quote{
		Symbol:     symbol,
		Price:      price,
		Source:     SourceLive,
		ReceivedAt: time.Now().UTC(),
	}, nil
}
