package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the portfolio and history projections. Committed transactions
// invalidate the user's cached projections; reads check Redis first then
// fall back to the primary. Accounts are never cached since they carry
// credential hashes.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Writes (primary, then invalidate) ---

func (s *CachedStore) WithinTx(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error {
	if err := s.primary.WithinTx(ctx, userID, fn); err != nil {
		return err
	}
	// The commit has happened; drop stale projections even if the caller
	// has gone away.
	s.invalidate(context.WithoutCancel(ctx), userID)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListPositions(ctx context.Context, userID string) ([]model.Position, error) {
	var positions []model.Position
	if s.get(ctx, positionsKey(userID), &positions) {
		return positions, nil
	}

	positions, err := s.primary.ListPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.set(ctx, positionsKey(userID), positions)
	return positions, nil
}

func (s *CachedStore) ListLedgerEntries(ctx context.Context, userID string) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if s.get(ctx, historyKey(userID), &entries) {
		return entries, nil
	}

	entries, err := s.primary.ListLedgerEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.set(ctx, historyKey(userID), entries)
	return entries, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) CreateAccount(ctx context.Context, a *model.Account) error {
	return s.primary.CreateAccount(ctx, a)
}

func (s *CachedStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.primary.GetAccount(ctx, id)
}

func (s *CachedStore) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return s.primary.GetAccountByUsername(ctx, username)
}

func (s *CachedStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.primary.UpdatePasswordHash(ctx, id, hash)
}

// --- Cache helpers ---

func (s *CachedStore) get(ctx context.Context, key string, dst interface{}) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *CachedStore) set(ctx context.Context, key string, v interface{}) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func (s *CachedStore) invalidate(ctx context.Context, userID string) {
	if err := s.rdb.Del(ctx, positionsKey(userID), historyKey(userID)).Err(); err != nil {
		slog.Warn("cache invalidation failed", "user", userID, "err", err)
	}
}

func positionsKey(uid string) string { return fmt.Sprintf("positions:%s", uid) }
func historyKey(uid string) string   { return fmt.Sprintf("history:%s", uid) }
