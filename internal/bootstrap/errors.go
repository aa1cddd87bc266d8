package bootstrap

import (
	"errors"
	"fmt"

	"github.com/limitless/market-engine/internal/pda"
	"github.com/limitless/market-engine/internal/store"
)

var (
	// ErrAllocationFailure means an account could not be reserved: the payer
	// is missing or underfunded, or the address holds an incompatible account.
	ErrAllocationFailure = errors.New("bootstrap: allocation failed")

	// ErrAlreadyExists means a create-exclusive account was already present.
	ErrAlreadyExists = errors.New("bootstrap: account already exists")

	// ErrDerivationExhausted means no bump produced a valid address.
	ErrDerivationExhausted = errors.New("bootstrap: address derivation exhausted")

	// ErrInvalidUnderlyingMint means the vault's underlying mint is not an
	// initialized token mint.
	ErrInvalidUnderlyingMint = errors.New("bootstrap: invalid underlying mint")

	// ErrMarketNotInitialized means no market record exists yet.
	ErrMarketNotInitialized = errors.New("bootstrap: market not initialized")

	// ErrVaultNotInitialized means no vault record exists yet.
	ErrVaultNotInitialized = errors.New("bootstrap: vault not initialized")

	// ErrBumpMismatch means a record's stored bump does not re-derive the
	// address it belongs to.
	ErrBumpMismatch = errors.New("bootstrap: stored bump does not derive address")
)

// classify tags err with the bootstrap error it belongs to, keeping the
// original in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrAccountInUse):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case errors.Is(err, store.ErrInsufficientFunds),
		errors.Is(err, store.ErrPayerNotFound),
		errors.Is(err, store.ErrSpaceTooLarge),
		errors.Is(err, store.ErrOwnerMismatch),
		errors.Is(err, store.ErrSpaceMismatch):
		return fmt.Errorf("%w: %w", ErrAllocationFailure, err)
	case errors.Is(err, pda.ErrDerivationExhausted):
		return fmt.Errorf("%w: %w", ErrDerivationExhausted, err)
	default:
		return err
	}
}
