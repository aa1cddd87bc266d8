package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limitless/market-engine/internal/model"
)

var errBoom = errors.New("boom")

func newKey() solana.PublicKey { return solana.NewWallet().PublicKey() }

func fundedStore(t *testing.T, payer solana.PublicKey, lamports uint64) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	require.NoError(t, s.Credit(context.Background(), payer, lamports))
	return s
}

func TestMemoryStore_AllocateCreates(t *testing.T) {
	ctx := context.Background()
	payer, addr, owner := newKey(), newKey(), newKey()
	s := fundedStore(t, payer, 10_000_000)

	err := s.Atomic(ctx, func(tx Tx) error {
		acct, created, err := tx.Allocate(ctx, Allocation{Address: addr, Owner: owner, Space: 64, Payer: payer})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Len(t, acct.Data, 64)
		assert.True(t, model.IsZeroed(acct.Data))
		return nil
	})
	require.NoError(t, err)

	acct, err := s.GetAccount(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, owner, acct.Owner)
	assert.Equal(t, model.MinimumBalance(64), acct.Lamports)

	p, err := s.GetAccount(ctx, payer)
	require.NoError(t, err)
	assert.Equal(t, 10_000_000-model.MinimumBalance(64), p.Lamports)
}

func TestMemoryStore_Policies(t *testing.T) {
	ctx := context.Background()
	payer, addr, owner := newKey(), newKey(), newKey()
	s := fundedStore(t, payer, 10_000_000)

	alloc := Allocation{Address: addr, Owner: owner, Space: 16, Payer: payer, Policy: CreateOrReuse}
	require.NoError(t, s.Atomic(ctx, func(tx Tx) error {
		_, _, err := tx.Allocate(ctx, alloc)
		if err != nil {
			return err
		}
		return tx.WriteData(ctx, addr, []byte("0123456789abcdef"))
	}))

	t.Run("reuse returns existing untouched", func(t *testing.T) {
		require.NoError(t, s.Atomic(ctx, func(tx Tx) error {
			acct, created, err := tx.Allocate(ctx, alloc)
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, []byte("0123456789abcdef"), acct.Data)
			return nil
		}))
	})

	t.Run("exclusive fails on occupied address", func(t *testing.T) {
		excl := alloc
		excl.Policy = CreateExclusive
		err := s.Atomic(ctx, func(tx Tx) error {
			_, _, err := tx.Allocate(ctx, excl)
			return err
		})
		assert.ErrorIs(t, err, ErrAccountInUse)
	})

	t.Run("reuse by another owner", func(t *testing.T) {
		other := alloc
		other.Owner = newKey()
		err := s.Atomic(ctx, func(tx Tx) error {
			_, _, err := tx.Allocate(ctx, other)
			return err
		})
		assert.ErrorIs(t, err, ErrOwnerMismatch)
	})

	t.Run("reuse at another size", func(t *testing.T) {
		bigger := alloc
		bigger.Space = 32
		err := s.Atomic(ctx, func(tx Tx) error {
			_, _, err := tx.Allocate(ctx, bigger)
			return err
		})
		assert.ErrorIs(t, err, ErrSpaceMismatch)
	})
}

func TestMemoryStore_PayerFailures(t *testing.T) {
	ctx := context.Background()
	payer, owner := newKey(), newKey()
	s := fundedStore(t, payer, 1000)

	tests := []struct {
		name  string
		alloc Allocation
		want  error
	}{
		{"unknown payer", Allocation{Address: newKey(), Owner: owner, Space: 8, Payer: newKey()}, ErrPayerNotFound},
		{"underfunded payer", Allocation{Address: newKey(), Owner: owner, Space: 8, Payer: payer}, ErrInsufficientFunds},
		{"too large", Allocation{Address: newKey(), Owner: owner, Space: model.MaxAccountSpace + 1, Payer: payer}, ErrSpaceTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Atomic(ctx, func(tx Tx) error {
				_, _, err := tx.Allocate(ctx, tt.alloc)
				return err
			})
			assert.ErrorIs(t, err, tt.want)
			_, err = s.GetAccount(ctx, tt.alloc.Address)
			assert.ErrorIs(t, err, ErrAccountNotFound)
		})
	}
}

func TestMemoryStore_AtomicRollback(t *testing.T) {
	ctx := context.Background()
	payer, first, second, owner := newKey(), newKey(), newKey(), newKey()
	s := fundedStore(t, payer, 10_000_000)

	err := s.Atomic(ctx, func(tx Tx) error {
		if _, _, err := tx.Allocate(ctx, Allocation{Address: first, Owner: owner, Space: 8, Payer: payer}); err != nil {
			return err
		}
		// Reads inside the invocation observe the staged allocation.
		if _, err := tx.GetAccount(ctx, first); err != nil {
			return err
		}
		if _, _, err := tx.Allocate(ctx, Allocation{Address: second, Owner: owner, Space: 8, Payer: payer}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = s.GetAccount(ctx, first)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = s.GetAccount(ctx, second)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	p, err := s.GetAccount(ctx, payer)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), p.Lamports, "payer must not be debited on rollback")
}

func TestMemoryStore_WriteData(t *testing.T) {
	ctx := context.Background()
	payer, addr, owner := newKey(), newKey(), newKey()
	s := fundedStore(t, payer, 10_000_000)

	err := s.Atomic(ctx, func(tx Tx) error {
		if _, _, err := tx.Allocate(ctx, Allocation{Address: addr, Owner: owner, Space: 4, Payer: payer}); err != nil {
			return err
		}
		return tx.WriteData(ctx, addr, []byte{1, 2, 3})
	})
	assert.ErrorIs(t, err, ErrSpaceMismatch)

	err = s.Atomic(ctx, func(tx Tx) error {
		return tx.WriteData(ctx, newKey(), []byte{1})
	})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestMemoryStore_ListAccounts(t *testing.T) {
	ctx := context.Background()
	payer, owner := newKey(), newKey()
	s := fundedStore(t, payer, 10_000_000)

	require.NoError(t, s.Atomic(ctx, func(tx Tx) error {
		for i := 0; i < 3; i++ {
			if _, _, err := tx.Allocate(ctx, Allocation{Address: newKey(), Owner: owner, Space: 8, Payer: payer}); err != nil {
				return err
			}
		}
		return nil
	}))

	owned, err := s.ListAccounts(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, owned, 3)

	system, err := s.ListAccounts(ctx, solana.SystemProgramID)
	require.NoError(t, err)
	assert.Len(t, system, 1)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	payer, addr, owner := newKey(), newKey(), newKey()
	s := fundedStore(t, payer, 10_000_000)
	require.NoError(t, s.Atomic(ctx, func(tx Tx) error {
		_, _, err := tx.Allocate(ctx, Allocation{Address: addr, Owner: owner, Space: 4, Payer: payer})
		return err
	}))

	a, err := s.GetAccount(ctx, addr)
	require.NoError(t, err)
	a.Data[0] = 9

	b, err := s.GetAccount(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, byte(0), b.Data[0])
}

func TestMemoryStore_AllocateTakesOverFundedAddress(t *testing.T) {
	ctx := context.Background()
	payer, owner := newKey(), newKey()
	s := fundedStore(t, payer, 10_000_000)
	rent := model.MinimumBalance(32)

	tests := []struct {
		name      string
		held      uint64
		policy    Policy
		wantDebit uint64
	}{
		{"dust exclusive", 1, CreateExclusive, rent - 1},
		{"dust reuse", 1, CreateOrReuse, rent - 1},
		{"already rent exempt", rent + 5, CreateExclusive, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := newKey()
			require.NoError(t, s.Credit(ctx, addr, tt.held))
			before, err := s.GetAccount(ctx, payer)
			require.NoError(t, err)

			require.NoError(t, s.Atomic(ctx, func(tx Tx) error {
				acct, created, err := tx.Allocate(ctx, Allocation{
					Address: addr, Owner: owner, Space: 32, Payer: payer, Policy: tt.policy,
				})
				require.NoError(t, err)
				assert.True(t, created)
				assert.Len(t, acct.Data, 32)
				return nil
			}))

			acct, err := s.GetAccount(ctx, addr)
			require.NoError(t, err)
			assert.Equal(t, owner, acct.Owner)
			assert.Equal(t, tt.held+tt.wantDebit, acct.Lamports)

			after, err := s.GetAccount(ctx, payer)
			require.NoError(t, err)
			assert.Equal(t, before.Lamports-tt.wantDebit, after.Lamports)
		})
	}
}

func TestMemoryStore_ConcurrentExclusiveAllocate(t *testing.T) {
	ctx := context.Background()
	payer, addr, owner := newKey(), newKey(), newKey()
	s := fundedStore(t, payer, 10_000_000)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Atomic(ctx, func(tx Tx) error {
				_, _, err := tx.Allocate(ctx, Allocation{
					Address: addr, Owner: owner, Space: 8, Payer: payer, Policy: CreateExclusive,
				})
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	var ok, inUse int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAccountInUse):
			inUse++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, inUse)

	p, err := s.GetAccount(ctx, payer)
	require.NoError(t, err)
	assert.Equal(t, 10_000_000-model.MinimumBalance(8), p.Lamports)
}
