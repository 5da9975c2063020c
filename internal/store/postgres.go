package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/model"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
//
// WithinTx locks the user's row with SELECT ... FOR UPDATE, which
// serializes concurrent transactions of one user while leaving other
// users independent.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, password, balance, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5)`,
		a.ID, a.Username, a.PasswordHash, a.Balance.String(), a.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrAccountExists, a.Username)
	}
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id, username, password, balance::TEXT, created_at
		 FROM users WHERE id = $1`, id)
	return scanAccount(row, id)
}

func (s *PostgresStore) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, username, password, balance::TEXT, created_at
		 FROM users WHERE username = $1`, username)
	return scanAccount(row, username)
}

func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return nil
}

func (s *PostgresStore) ListPositions(ctx context.Context, userID string) ([]model.Position, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []model.Position{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, symbol, amount, average_price::TEXT
		 FROM portfolios WHERE user_id = $1 ORDER BY symbol`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []model.Position{}
	for rows.Next() {
		var p model.Position
		var avgS string
		if err := rows.Scan(&p.UserID, &p.Symbol, &p.Quantity, &avgS); err != nil {
			return nil, err
		}
		if p.AveragePrice, err = parseNumeric(avgS); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) ListLedgerEntries(ctx context.Context, userID string) ([]model.LedgerEntry, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, symbol, amount, price::TEXT, timestamp
		 FROM purchases WHERE user_id = $1
		 ORDER BY timestamp DESC, seq DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func (s *PostgresStore) WithinTx(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error {
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, userID)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT id, username, password, balance::TEXT, created_at
		 FROM users WHERE id = $1 FOR UPDATE`, userID)
	account, err := scanAccount(row, userID)
	if err != nil {
		return err
	}

	if err := fn(ctx, &pgTx{tx: tx, account: account}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// pgTx writes straight through the open transaction; Commit or Rollback
// in WithinTx decides whether any of it sticks.
type pgTx struct {
	tx      pgx.Tx
	account *model.Account
}

func (t *pgTx) Account(_ context.Context) (*model.Account, error) {
	cp := *t.account
	return &cp, nil
}

func (t *pgTx) Position(ctx context.Context, symbol string) (*model.Position, error) {
	var p model.Position
	var avgS string
	err := t.tx.QueryRow(ctx,
		`SELECT user_id, symbol, amount, average_price::TEXT
		 FROM portfolios WHERE user_id = $1 AND symbol = $2`,
		t.account.ID, symbol).
		Scan(&p.UserID, &p.Symbol, &p.Quantity, &avgS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", symbol, err)
	}
	if p.AveragePrice, err = parseNumeric(avgS); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) SetBalance(ctx context.Context, balance decimal.Decimal) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE users SET balance = $2::NUMERIC WHERE id = $1`,
		t.account.ID, balance.String())
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	t.account.Balance = balance
	return nil
}

func (t *pgTx) SavePosition(ctx context.Context, p *model.Position) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO portfolios (user_id, symbol, amount, average_price)
		 VALUES ($1, $2, $3, $4::NUMERIC)
		 ON CONFLICT (user_id, symbol)
		 DO UPDATE SET amount = EXCLUDED.amount, average_price = EXCLUDED.average_price`,
		t.account.ID, p.Symbol, p.Quantity, p.AveragePrice.String())
	if err != nil {
		return fmt.Errorf("save position %s: %w", p.Symbol, err)
	}
	return nil
}

func (t *pgTx) DeletePosition(ctx context.Context, symbol string) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM portfolios WHERE user_id = $1 AND symbol = $2`,
		t.account.ID, symbol)
	if err != nil {
		return fmt.Errorf("delete position %s: %w", symbol, err)
	}
	return nil
}

func (t *pgTx) AppendLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO purchases (id, user_id, symbol, amount, price, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6)`,
		e.ID, t.account.ID, e.Symbol, e.Quantity, e.Price.String(), e.Timestamp)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row, key string) (*model.Account, error) {
	var a model.Account
	var balanceS string
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &balanceS, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}
	if a.Balance, err = parseNumeric(balanceS); err != nil {
		return nil, err
	}
	return &a, nil
}

// scanLedgerEntries reads pgx rows into LedgerEntry slices.
func scanLedgerEntries(rows pgx.Rows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var priceS string

		if err := rows.Scan(&e.ID, &e.UserID, &e.Symbol, &e.Quantity, &priceS, &e.Timestamp); err != nil {
			return nil, err
		}

		var err error
		if e.Price, err = parseNumeric(priceS); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func parseNumeric(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return v, nil
}
