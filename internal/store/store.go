// Package store defines the persistence interface for the simulator.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and development).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/model"
)

var (
	// ErrAccountNotFound is returned when no account has the given id or username.
	ErrAccountNotFound = errors.New("store: account not found")

	// ErrAccountExists is returned when a username is already taken.
	ErrAccountExists = errors.New("store: account already exists")
)

// Store is the persistence interface. Balance, positions, and the ledger
// are mutated only through WithinTx.
type Store interface {
	// --- Accounts ---

	// CreateAccount persists a new account.
	CreateAccount(ctx context.Context, account *model.Account) error

	// GetAccount retrieves an account by its ID.
	GetAccount(ctx context.Context, id string) (*model.Account, error)

	// GetAccountByUsername retrieves an account by its unique username.
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)

	// UpdatePasswordHash replaces the stored credential hash.
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// --- Read projections ---

	// ListPositions returns the materialized positions of a user, by symbol.
	ListPositions(ctx context.Context, userID string) ([]model.Position, error)

	// ListLedgerEntries returns a user's ledger, newest first.
	ListLedgerEntries(ctx context.Context, userID string) ([]model.LedgerEntry, error)

	// --- Atomic scope ---

	// WithinTx runs fn with exclusive access to the user's account. All
	// writes made through tx are committed together when fn returns nil
	// and discarded otherwise. Returns ErrAccountNotFound before calling
	// fn if the account does not exist.
	WithinTx(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the unit of work handed to WithinTx callbacks.
type Tx interface {
	// Account returns the locked account as of the start of the scope,
	// with any balance written through SetBalance applied.
	Account(ctx context.Context) (*model.Account, error)

	// Position returns the user's position in symbol, or nil if none.
	Position(ctx context.Context, symbol string) (*model.Position, error)

	// SetBalance stages a new cash balance.
	SetBalance(ctx context.Context, balance decimal.Decimal) error

	// SavePosition stages an insert or update of a position.
	SavePosition(ctx context.Context, position *model.Position) error

	// DeletePosition stages removal of the user's position in symbol.
	DeletePosition(ctx context.Context, symbol string) error

	// AppendLedgerEntry stages an immutable ledger record.
	AppendLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error
}
