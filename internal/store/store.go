// Package store is the account storage the bootstrap program runs against.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and local development).
//
// Every mutation happens inside Atomic: either all allocations and writes of
// one invocation become visible together, or none do.
package store

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/limitless/market-engine/internal/model"
)

var (
	// ErrAccountNotFound is returned when no account exists at an address.
	ErrAccountNotFound = errors.New("store: account not found")

	// ErrAccountInUse is returned when a create-exclusive allocation targets
	// an address that already holds an account.
	ErrAccountInUse = errors.New("store: account already in use")

	// ErrPayerNotFound is returned when the payer has no system account.
	ErrPayerNotFound = errors.New("store: payer account not found")

	// ErrInsufficientFunds is returned when the payer cannot cover rent.
	ErrInsufficientFunds = errors.New("store: insufficient funds for rent")

	// ErrSpaceTooLarge is returned when the requested space exceeds the
	// runtime's maximum account size.
	ErrSpaceTooLarge = errors.New("store: requested space exceeds maximum")

	// ErrOwnerMismatch is returned when an existing account is reused by a
	// program that does not own it.
	ErrOwnerMismatch = errors.New("store: account owned by another program")

	// ErrSpaceMismatch is returned when an existing account is reused at a
	// different size, or written with data of the wrong length.
	ErrSpaceMismatch = errors.New("store: account size mismatch")
)

// Policy decides what Allocate does when the address is already occupied.
// A system account that holds lamports but no data does not count as
// occupied: Allocate takes it over whatever the policy.
type Policy int

const (
	// CreateOrReuse returns the existing account untouched.
	CreateOrReuse Policy = iota
	// CreateExclusive fails with ErrAccountInUse.
	CreateExclusive
)

// Allocation describes an account to reserve.
type Allocation struct {
	Address solana.PublicKey
	Owner   solana.PublicKey // program that will own the data
	Space   int
	Payer   solana.PublicKey
	Policy  Policy
}

// Reader reads accounts. Both Store and Tx satisfy it.
type Reader interface {
	// GetAccount returns a copy of the account at addr.
	GetAccount(ctx context.Context, addr solana.PublicKey) (*model.Account, error)
}

// Tx is the view of the store inside one atomic invocation. Reads observe the
// invocation's own earlier writes.
type Tx interface {
	Reader

	// Allocate reserves a.Space zeroed bytes at a.Address owned by a.Owner,
	// debiting the rent-exempt minimum from a.Payer. Lamports already held
	// by a vacant system account at a.Address count towards the minimum.
	// created reports whether a new account was made; with CreateOrReuse an
	// existing account with the same owner and size is returned as-is.
	Allocate(ctx context.Context, a Allocation) (acct *model.Account, created bool, err error)

	// WriteData replaces the data of an existing account. len(data) must
	// equal the allocated size.
	WriteData(ctx context.Context, addr solana.PublicKey, data []byte) error
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	Reader

	// ListAccounts returns all accounts owned by owner.
	ListAccounts(ctx context.Context, owner solana.PublicKey) ([]model.Account, error)

	// Credit adds lamports to a system account, creating it if absent.
	Credit(ctx context.Context, addr solana.PublicKey, lamports uint64) error

	// Atomic runs fn as one unit. If fn returns an error nothing it did is
	// kept.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// checkReuse validates an occupied address against an allocation request.
func checkReuse(existing *model.Account, a Allocation) error {
	if a.Policy == CreateExclusive {
		return ErrAccountInUse
	}
	if !existing.Owner.Equals(a.Owner) {
		return ErrOwnerMismatch
	}
	if len(existing.Data) != a.Space {
		return ErrSpaceMismatch
	}
	return nil
}

// vacant reports whether a is a system account without data, such as an
// address that was only sent lamports. Allocations take vacant accounts over.
func vacant(a *model.Account) bool {
	return a.Owner.Equals(solana.SystemProgramID) && len(a.Data) == 0
}

// topUp returns how much a payer must add to held lamports so an account of
// space bytes is rent-exempt.
func topUp(held uint64, space int) uint64 {
	rent := model.MinimumBalance(space)
	if held >= rent {
		return 0
	}
	return rent - held
}

// checkPayer validates that payer can transfer amount lamports.
func checkPayer(payer *model.Account, amount uint64) error {
	if !payer.Owner.Equals(solana.SystemProgramID) {
		return ErrPayerNotFound
	}
	if payer.Lamports < amount {
		return ErrInsufficientFunds
	}
	return nil
}
