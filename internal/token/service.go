package token

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	spltoken "github.com/gagliardetto/solana-go/programs/token"

	"github.com/limitless/market-engine/internal/store"
)

// Service creates and reads token-program accounts. Every account it
// creates is owned by its program id.
type Service struct {
	programID solana.PublicKey
}

// NewService returns a Service for the standard token program.
func NewService() *Service {
	return &Service{programID: spltoken.ProgramID}
}

// ProgramID is the owner of mints and token accounts.
func (s *Service) ProgramID() solana.PublicKey { return s.programID }

// MintParams describes a new mint.
type MintParams struct {
	Address         solana.PublicKey
	Payer           solana.PublicKey
	Decimals        uint8
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

// AccountParams describes a new token account.
type AccountParams struct {
	Address solana.PublicKey
	Payer   solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
}

// InitializeMint allocates and initializes a mint with zero supply. The
// address must be free.
func (s *Service) InitializeMint(ctx context.Context, tx store.Tx, p MintParams) (*Mint, error) {
	if _, _, err := tx.Allocate(ctx, store.Allocation{
		Address: p.Address,
		Owner:   s.programID,
		Space:   MintSize,
		Payer:   p.Payer,
		Policy:  store.CreateExclusive,
	}); err != nil {
		return nil, fmt.Errorf("allocate mint %s: %w", p.Address, err)
	}

	authority := p.MintAuthority
	m := &Mint{
		MintAuthority:   &authority,
		Decimals:        p.Decimals,
		IsInitialized:   true,
		FreezeAuthority: p.FreezeAuthority,
	}
	data, err := EncodeMint(m)
	if err != nil {
		return nil, err
	}
	if err := tx.WriteData(ctx, p.Address, data); err != nil {
		return nil, fmt.Errorf("write mint %s: %w", p.Address, err)
	}
	return m, nil
}

// InitializeAccount allocates and initializes an empty token account of
// p.Mint owned by p.Owner. The mint must already exist and the address must
// be free.
func (s *Service) InitializeAccount(ctx context.Context, tx store.Tx, p AccountParams) (*Account, error) {
	if _, err := s.GetMint(ctx, tx, p.Mint); err != nil {
		return nil, err
	}
	if _, _, err := tx.Allocate(ctx, store.Allocation{
		Address: p.Address,
		Owner:   s.programID,
		Space:   AccountSize,
		Payer:   p.Payer,
		Policy:  store.CreateExclusive,
	}); err != nil {
		return nil, fmt.Errorf("allocate token account %s: %w", p.Address, err)
	}

	a := &Account{
		Mint:  p.Mint,
		Owner: p.Owner,
		State: StateInitialized,
	}
	data, err := EncodeAccount(a)
	if err != nil {
		return nil, err
	}
	if err := tx.WriteData(ctx, p.Address, data); err != nil {
		return nil, fmt.Errorf("write token account %s: %w", p.Address, err)
	}
	return a, nil
}

// GetMint reads the mint at addr.
func (s *Service) GetMint(ctx context.Context, r store.Reader, addr solana.PublicKey) (*Mint, error) {
	acct, err := r.GetAccount(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotMint, addr, err)
	}
	if !acct.Owner.Equals(s.programID) {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrNotMint, addr, acct.Owner)
	}
	m, err := DecodeMint(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", addr, err)
	}
	return m, nil
}

// GetAccount reads the token account at addr.
func (s *Service) GetAccount(ctx context.Context, r store.Reader, addr solana.PublicKey) (*Account, error) {
	acct, err := r.GetAccount(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotTokenAccount, addr, err)
	}
	if !acct.Owner.Equals(s.programID) {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrNotTokenAccount, addr, acct.Owner)
	}
	a, err := DecodeAccount(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", addr, err)
	}
	return a, nil
}
