// Package model defines the records the bootstrap program writes and the
// ledger account that carries them.
//
// Record layouts follow the Anchor account convention: an 8-byte
// discriminator followed by the fields in declaration order, Borsh encoded.
package model

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Account is a ledger account: an address holding lamports and an
// owner-controlled data buffer. Only the owner program may write Data.
type Account struct {
	Address   solana.PublicKey `json:"address" db:"address"`
	Owner     solana.PublicKey `json:"owner" db:"owner"`
	Lamports  uint64           `json:"lamports" db:"lamports"`
	Data      []byte           `json:"data" db:"data"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// Clone returns a deep copy so callers never alias stored buffers.
func (a *Account) Clone() *Account {
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

// Kind classifies what an account holds.
type Kind string

const (
	KindMarket       Kind = "market"
	KindVault        Kind = "vault"
	KindMint         Kind = "mint"
	KindTokenAccount Kind = "token_account"
	KindSystem       Kind = "system"
)

// Rent parameters of the ledger runtime.
const (
	// AccountStorageOverhead is charged on top of the data length.
	AccountStorageOverhead = 128
	// LamportsPerByteYear is the storage price.
	LamportsPerByteYear = 3480
	// ExemptionThresholdYears is how many years of rent make an account exempt.
	ExemptionThresholdYears = 2
	// MaxAccountSpace is the largest data buffer the runtime will reserve.
	MaxAccountSpace = 10 * 1024 * 1024
)

// MinimumBalance is the rent-exempt lamport balance for space bytes of data.
func MinimumBalance(space int) uint64 {
	return uint64(AccountStorageOverhead+space) * LamportsPerByteYear * ExemptionThresholdYears
}
