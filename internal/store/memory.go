package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// WithinTx holds a per-user mutex for the whole scope and buffers writes,
// applying them under the store lock only on commit.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]*model.Account
	usernames map[string]string                    // username → id
	positions map[string]map[string]model.Position // userID → symbol → position
	ledger    []model.LedgerEntry

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]*model.Account),
		usernames: make(map[string]string),
		positions: make(map[string]map[string]model.Position),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usernames[a.Username]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, a.Username)
	}
	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("%w: id %s", ErrAccountExists, a.ID)
	}

	// Store a copy to avoid external mutation.
	cp := *a
	s.accounts[a.ID] = &cp
	s.usernames[a.Username] = a.ID
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) GetAccountByUsername(_ context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *MemoryStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	a.PasswordHash = hash
	return nil
}

func (s *MemoryStore) ListPositions(_ context.Context, userID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make([]model.Position, 0, len(s.positions[userID]))
	for _, p := range s.positions[userID] {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions, nil
}

func (s *MemoryStore) ListLedgerEntries(_ context.Context, userID string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// The ledger slice is in commit order; walk it backwards for newest first.
	var result []model.LedgerEntry
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].UserID == userID {
			result = append(result, s.ledger[i])
		}
	}
	return result, nil
}

func (s *MemoryStore) WithinTx(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return err
	}

	tx := &memoryTx{
		store:     s,
		account:   account,
		positions: make(map[string]*model.Position),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.commit(tx)
	return nil
}

// userLock returns the mutex serializing transactions for userID.
func (s *MemoryStore) userLock(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func (s *MemoryStore) commit(tx *memoryTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := tx.account.ID
	if tx.balanceSet {
		s.accounts[userID].Balance = tx.account.Balance
	}
	for symbol, p := range tx.positions {
		if p == nil {
			delete(s.positions[userID], symbol)
			continue
		}
		if s.positions[userID] == nil {
			s.positions[userID] = make(map[string]model.Position)
		}
		s.positions[userID][symbol] = *p
	}
	s.ledger = append(s.ledger, tx.entries...)
}

// memoryTx buffers writes until commit. A nil entry in positions marks
// a staged delete.
type memoryTx struct {
	store      *MemoryStore
	account    *model.Account
	balanceSet bool
	positions  map[string]*model.Position
	entries    []model.LedgerEntry
}

func (tx *memoryTx) Account(_ context.Context) (*model.Account, error) {
	cp := *tx.account
	return &cp, nil
}

func (tx *memoryTx) Position(_ context.Context, symbol string) (*model.Position, error) {
	if p, staged := tx.positions[symbol]; staged {
		if p == nil {
			return nil, nil
		}
		cp := *p
		return &cp, nil
	}

	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	p, ok := tx.store.positions[tx.account.ID][symbol]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (tx *memoryTx) SetBalance(_ context.Context, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("store: negative balance %s", balance)
	}
	tx.account.Balance = balance
	tx.balanceSet = true
	return nil
}

func (tx *memoryTx) SavePosition(_ context.Context, p *model.Position) error {
	if p.Quantity <= 0 {
		return fmt.Errorf("store: position quantity must be positive, got %d", p.Quantity)
	}
	cp := *p
	cp.UserID = tx.account.ID
	tx.positions[p.Symbol] = &cp
	return nil
}

func (tx *memoryTx) DeletePosition(_ context.Context, symbol string) error {
	tx.positions[symbol] = nil
	return nil
}

func (tx *memoryTx) AppendLedgerEntry(_ context.Context, e *model.LedgerEntry) error {
	if e.Quantity == 0 {
		return fmt.Errorf("store: ledger entry quantity must be non-zero")
	}
	cp := *e
	cp.UserID = tx.account.ID
	tx.entries = append(tx.entries, cp)
	return nil
}
