package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"

	"github.com/limitless/market-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
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

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) Credit(ctx context.Context, addr solana.PublicKey, lamports uint64) error {
	if err := s.primary.Credit(ctx, addr, lamports); err != nil {
		return err
	}
	s.rdb.Del(ctx, accountKey(addr))
	return nil
}

// Atomic runs fn against the primary and, once it commits, drops every
// account the invocation touched from the cache.
func (s *CachedStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	touched := make(map[solana.PublicKey]struct{})
	err := s.primary.Atomic(ctx, func(tx Tx) error {
		return fn(&trackingTx{Tx: tx, touched: touched})
	})
	if err != nil {
		return err
	}
	if len(touched) == 0 {
		return nil
	}
	keys := make([]string, 0, len(touched))
	for addr := range touched {
		keys = append(keys, accountKey(addr))
	}
	s.rdb.Del(ctx, keys...)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAccount(ctx context.Context, addr solana.PublicKey) (*model.Account, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, accountKey(addr)).Bytes()
	if err == nil {
		var a model.Account
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	// Cache miss: read from primary.
	a, err := s.primary.GetAccount(ctx, addr)
	if err != nil {
		return nil, err
	}

	s.cacheAccount(ctx, a)
	return a, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListAccounts(ctx context.Context, owner solana.PublicKey) ([]model.Account, error) {
	return s.primary.ListAccounts(ctx, owner)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAccount(ctx context.Context, a *model.Account) {
	if data, err := json.Marshal(a); err == nil {
		s.rdb.Set(ctx, accountKey(a.Address), data, s.ttl)
	}
}

func accountKey(addr solana.PublicKey) string { return fmt.Sprintf("account:%s", addr) }

// trackingTx records which addresses an invocation allocated or wrote.
type trackingTx struct {
	Tx
	touched map[solana.PublicKey]struct{}
}

func (t *trackingTx) Allocate(ctx context.Context, a Allocation) (*model.Account, bool, error) {
	acct, created, err := t.Tx.Allocate(ctx, a)
	if err == nil && created {
		t.touched[a.Address] = struct{}{}
		t.touched[a.Payer] = struct{}{}
	}
	return acct, created, err
}

func (t *trackingTx) WriteData(ctx context.Context, addr solana.PublicKey, data []byte) error {
	if err := t.Tx.WriteData(ctx, addr, data); err != nil {
		return err
	}
	t.touched[addr] = struct{}{}
	return nil
}
