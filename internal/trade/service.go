package trade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/auth"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/model"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/quote"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/symbol"
)

// statusProbeSymbol is quoted by GET /api/status to check the live feed.
const statusProbeSymbol = "AAPL"

// Service exposes the engine over HTTP. Every handler except GetStock and
// Status expects auth.RequireUser to have resolved the user.
type Service struct {
	engine *Engine
	live   quote.PriceSource
}

// NewService creates the HTTP handlers. live is the market data source
// without fallback, used for quote lookups and the status probe.
func NewService(engine *Engine, live quote.PriceSource) *Service {
	return &Service{engine: engine, live: live}
}

// --- Request/Response types ---

// TransactionRequest is the JSON body for POST /api/transactions.
type TransactionRequest struct {
	Symbol string `json:"symbol"`
	Amount int64  `json:"amount"`
	Type   string `json:"type"` // "buy" or "sell", case-insensitive
}

// TransactionResponse is returned from a successful transaction.
type TransactionResponse struct {
	Message     string              `json:"message"`
	Transaction *model.Confirmation `json:"transaction"`
}

// StockResponse is returned from GET /api/stock/{symbol}.
type StockResponse struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source"`
}

// ExecuteTransaction handles POST /api/transactions
func (s *Service) ExecuteTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "InvalidRequest", "Invalid request body", http.StatusBadRequest)
		return
	}
	s.execute(w, r, req.Symbol, req.Amount, model.Side(strings.ToLower(strings.TrimSpace(req.Type))), "")
}

// Invest handles POST /api/invest, the legacy buy-only endpoint.
func (s *Service) Invest(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "InvalidRequest", "Invalid request body", http.StatusBadRequest)
		return
	}
	s.execute(w, r, req.Symbol, req.Amount, model.SideBuy, "Investment successful")
}

func (s *Service) execute(w http.ResponseWriter, r *http.Request, sym string, amount int64, side model.Side, message string) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, "Unauthorized", "Access token missing", http.StatusUnauthorized)
		return
	}

	conf, err := s.engine.Execute(r.Context(), Order{
		UserID:   userID,
		Symbol:   sym,
		Quantity: amount,
		Side:     side,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if message == "" {
		message = fmt.Sprintf("%s transaction successful", conf.Side.Label())
	}
	writeJSON(w, http.StatusOK, TransactionResponse{Message: message, Transaction: conf})
}

// GetBalance handles GET /api/balance
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	balance, err := s.engine.Balance(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

// GetPortfolio handles GET /api/portfolio
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	positions, err := s.engine.Portfolio(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]model.Position{"portfolio": positions})
}

// GetHistory handles GET /api/transaction-history
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	history, err := s.engine.History(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]model.HistoryItem{"history": history})
}

// GetPurchaseHistory handles GET /api/purchase-history. Amounts are
// signed: negative for sells.
func (s *Service) GetPurchaseHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	entries, err := s.engine.Ledger(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]model.LedgerEntry{"history": entries})
}

// Reconcile handles GET /api/portfolio/reconcile
func (s *Service) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	rec, err := s.engine.Reconcile(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !rec.Consistent {
		slog.Warn("positions diverge from ledger", "user", userID)
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetStock handles GET /api/stock/{symbol}
func (s *Service) GetStock(w http.ResponseWriter, r *http.Request) {
	sym, err := symbol.Parse(chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, "InvalidRequest", err.Error(), http.StatusBadRequest)
		return
	}

	q, err := s.live.Price(r.Context(), sym)
	if err != nil {
		if !errors.Is(err, quote.ErrUnavailable) {
			slog.Warn("quote lookup failed", "symbol", sym, "err", err)
		}
		writeError(w, "NotFound", "Stock not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, StockResponse{Symbol: q.Symbol, Price: q.Price, Source: q.Source})
}

// Status handles GET /api/status by probing the live quote source.
func (s *Service) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if _, err := s.live.Price(ctx, statusProbeSymbol); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "disconnected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, "Unauthorized", "Access token missing", http.StatusUnauthorized)
	}
	return userID, ok
}

// writeEngineError maps an engine error to its wire kind and status.
// Internal details of persistence and unexpected failures are logged by
// the engine, not returned.
func writeEngineError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		if !errors.Is(err, ErrPersistence) {
			slog.Error("request failed", "err", err)
		}
		message = "Internal server error"
	}
	writeError(w, Kind(err), message, status)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, kind, message string, status int) {
	writeJSON(w, status, map[string]string{"error": kind, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
