// Package pda derives the program-owned addresses the market and vault records
// live at. Every address is a pure function of a fixed label, an optional
// discriminator and the program id, so any party can recompute and verify it
// without a private key.
package pda

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Label is the fixed seed prefix of a derived address.
type Label string

const (
	LabelMarketState    Label = "market_state"
	LabelVaultState     Label = "vault_state"
	LabelCustodySigner  Label = "token_account_owner_pda"
	LabelShareMint      Label = "share_mint"
	LabelCustodyAccount Label = "token_vault" // keyed by the underlying mint
)

var (
	// ErrDerivationExhausted is returned when no bump in [0, 255] produces an
	// off-curve address.
	ErrDerivationExhausted = errors.New("pda: no valid bump found")

	// ErrUnknownLabel is returned for labels this program never derives.
	ErrUnknownLabel = errors.New("pda: unknown label")

	// ErrDiscriminatorRequired is returned when a keyed label is derived
	// without its discriminator.
	ErrDiscriminatorRequired = errors.New("pda: label requires a discriminator")

	// ErrUnexpectedDiscriminator is returned when a singleton label is derived
	// with a discriminator. Market and vault are one-per-deployment.
	ErrUnexpectedDiscriminator = errors.New("pda: singleton label does not take a discriminator")
)

// keyed lists labels that need a discriminator. Everything else is a singleton.
var keyed = map[Label]bool{
	LabelMarketState:    false,
	LabelVaultState:     false,
	LabelCustodySigner:  false,
	LabelShareMint:      false,
	LabelCustodyAccount: true,
}

// Derived is an address together with the bump that makes it off-curve.
type Derived struct {
	Address solana.PublicKey `json:"address"`
	Bump    uint8            `json:"bump"`
}

// Seeds returns the seed list for label and discriminator after validating
// the singleton/keyed contract of the label.
func Seeds(label Label, discriminator []byte) ([][]byte, error) {
	needsKey, ok := keyed[label]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	if needsKey && len(discriminator) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrDiscriminatorRequired, label)
	}
	if !needsKey && len(discriminator) > 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedDiscriminator, label)
	}

	seeds := [][]byte{[]byte(label)}
	if needsKey {
		seeds = append(seeds, discriminator)
	}
	return seeds, nil
}

// Derive searches bumps from 255 downwards for the first off-curve address.
func Derive(programID solana.PublicKey, label Label, discriminator []byte) (Derived, error) {
	seeds, err := Seeds(label, discriminator)
	if err != nil {
		return Derived{}, err
	}
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return Derived{}, fmt.Errorf("%w: %s: %v", ErrDerivationExhausted, label, err)
	}
	return Derived{Address: addr, Bump: bump}, nil
}

// Verify reports whether d is the address produced by label, discriminator
// and the stored bump under programID.
func Verify(programID solana.PublicKey, label Label, discriminator []byte, d Derived) bool {
	seeds, err := Seeds(label, discriminator)
	if err != nil {
		return false
	}
	seeds = append(seeds, []byte{d.Bump})
	addr, err := solana.CreateProgramAddress(seeds, programID)
	if err != nil {
		return false
	}
	return addr.Equals(d.Address)
}
