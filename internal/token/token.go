// Package token implements the parts of the fungible-token program the
// bootstrap depends on: creating mints and token accounts, and reading them
// back. Account data uses the SPL token layouts from solana-go so addresses
// and balances line up with standard tooling.
package token

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	spltoken "github.com/gagliardetto/solana-go/programs/token"
)

// Fixed account sizes.
const (
	MintSize    = 82
	AccountSize = 165
)

type (
	// Mint is a token type.
	Mint = spltoken.Mint
	// Account holds a balance of one mint on behalf of an owner.
	Account = spltoken.Account
	// AccountState of a token account.
	AccountState = spltoken.AccountState
)

const (
	StateUninitialized = spltoken.Uninitialized
	StateInitialized   = spltoken.Initialized
)

var (
	// ErrNotMint is returned when an address does not hold an initialized mint.
	ErrNotMint = errors.New("token: not an initialized mint")

	// ErrNotTokenAccount is returned when an address does not hold an
	// initialized token account.
	ErrNotTokenAccount = errors.New("token: not an initialized token account")
)

// EncodeMint serializes m into MintSize bytes.
func EncodeMint(m *Mint) ([]byte, error) {
	return encode(m, MintSize)
}

// EncodeAccount serializes a into AccountSize bytes.
func EncodeAccount(a *Account) ([]byte, error) {
	return encode(a, AccountSize)
}

// DecodeMint parses mint data. It fails unless the mint is initialized.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotMint, len(data))
	}
	var m Mint
	if err := m.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMint, err)
	}
	if !m.IsInitialized {
		return nil, ErrNotMint
	}
	return &m, nil
}

// DecodeAccount parses token account data. It fails unless the account is
// initialized.
func DecodeAccount(data []byte) (*Account, error) {
	if len(data) != AccountSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotTokenAccount, len(data))
	}
	var a Account
	if err := a.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotTokenAccount, err)
	}
	if a.State == StateUninitialized {
		return nil, ErrNotTokenAccount
	}
	return &a, nil
}

func encode(v bin.BinaryMarshaler, size int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := v.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	if buf.Len() != size {
		return nil, fmt.Errorf("token: encoded %d bytes, want %d", buf.Len(), size)
	}
	return buf.Bytes(), nil
}
