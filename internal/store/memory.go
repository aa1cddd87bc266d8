package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/limitless/market-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*model.Account
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[solana.PublicKey]*model.Account),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) GetAccount(_ context.Context, addr solana.PublicKey) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return a.Clone(), nil
}

func (s *MemoryStore) ListAccounts(_ context.Context, owner solana.PublicKey) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]model.Account, 0)
	for _, a := range s.accounts {
		if a.Owner.Equals(owner) {
			accounts = append(accounts, *a.Clone())
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (s *MemoryStore) Credit(_ context.Context, addr solana.PublicKey, lamports uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[addr]
	if !ok {
		s.accounts[addr] = &model.Account{
			Address:   addr,
			Owner:     solana.SystemProgramID,
			Lamports:  lamports,
			CreatedAt: s.now(),
		}
		return nil
	}
	a.Lamports += lamports
	return nil
}

// Atomic holds the write lock for the whole invocation and stages changes in
// an overlay that is merged only when fn succeeds.
func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, staged: make(map[solana.PublicKey]*model.Account)}
	if err := fn(tx); err != nil {
		return err
	}
	for addr, a := range tx.staged {
		s.accounts[addr] = a
	}
	return nil
}

// memTx is only used while MemoryStore.mu is held.
type memTx struct {
	store  *MemoryStore
	staged map[solana.PublicKey]*model.Account
}

// lookup returns the live (staged or committed) account without copying.
func (tx *memTx) lookup(addr solana.PublicKey) (*model.Account, bool) {
	if a, ok := tx.staged[addr]; ok {
		return a, true
	}
	a, ok := tx.store.accounts[addr]
	return a, ok
}

// stage returns a staged copy of addr that is safe to mutate.
func (tx *memTx) stage(addr solana.PublicKey) (*model.Account, bool) {
	if a, ok := tx.staged[addr]; ok {
		return a, true
	}
	a, ok := tx.store.accounts[addr]
	if !ok {
		return nil, false
	}
	c := a.Clone()
	tx.staged[addr] = c
	return c, true
}

func (tx *memTx) GetAccount(_ context.Context, addr solana.PublicKey) (*model.Account, error) {
	a, ok := tx.lookup(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return a.Clone(), nil
}

func (tx *memTx) Allocate(_ context.Context, a Allocation) (*model.Account, bool, error) {
	if a.Space > model.MaxAccountSpace {
		return nil, false, fmt.Errorf("%w: %d bytes", ErrSpaceTooLarge, a.Space)
	}
	existing, ok := tx.lookup(a.Address)
	if ok && !vacant(existing) {
		if err := checkReuse(existing, a); err != nil {
			return nil, false, fmt.Errorf("%w: %s", err, a.Address)
		}
		return existing.Clone(), false, nil
	}

	acct := &model.Account{
		Address:   a.Address,
		Owner:     a.Owner,
		Data:      make([]byte, a.Space),
		CreatedAt: tx.store.now(),
	}
	if ok {
		acct.Lamports = existing.Lamports
		acct.CreatedAt = existing.CreatedAt
	}

	payer, found := tx.lookup(a.Payer)
	if !found {
		return nil, false, fmt.Errorf("%w: %s", ErrPayerNotFound, a.Payer)
	}
	due := topUp(acct.Lamports, a.Space)
	if err := checkPayer(payer, due); err != nil {
		return nil, false, fmt.Errorf("%w: payer %s has %d lamports", err, a.Payer, payer.Lamports)
	}
	payer, _ = tx.stage(a.Payer)
	payer.Lamports -= due
	acct.Lamports += due

	tx.staged[a.Address] = acct
	return acct.Clone(), true, nil
}

func (tx *memTx) WriteData(_ context.Context, addr solana.PublicKey, data []byte) error {
	a, ok := tx.stage(addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if len(data) != len(a.Data) {
		return fmt.Errorf("%w: %s has %d bytes, got %d", ErrSpaceMismatch, addr, len(a.Data), len(data))
	}
	copy(a.Data, data)
	return nil
}
