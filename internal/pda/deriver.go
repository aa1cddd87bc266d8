package pda

import (
	"github.com/gagliardetto/solana-go"
)

// Deriver binds derivation to one program id.
type Deriver struct {
	programID solana.PublicKey
}

// NewDeriver creates a deriver for programID.
func NewDeriver(programID solana.PublicKey) *Deriver {
	return &Deriver{programID: programID}
}

// ProgramID returns the program identity addresses are derived under.
func (d *Deriver) ProgramID() solana.PublicKey {
	return d.programID
}

// Derive derives label (and discriminator, for keyed labels).
func (d *Deriver) Derive(label Label, discriminator []byte) (Derived, error) {
	return Derive(d.programID, label, discriminator)
}

// Addresses is the full set of records the bootstrap touches.
type Addresses struct {
	Market         Derived `json:"market"`
	Vault          Derived `json:"vault"`
	CustodySigner  Derived `json:"custody_signer"`
	ShareMint      Derived `json:"share_mint"`
	CustodyAccount Derived `json:"custody_account"`
}

// All derives every address for a deployment whose vault holds underlyingMint.
func (d *Deriver) All(underlyingMint solana.PublicKey) (*Addresses, error) {
	var a Addresses
	var err error

	if a.Market, err = d.Derive(LabelMarketState, nil); err != nil {
		return nil, err
	}
	if a.Vault, err = d.Derive(LabelVaultState, nil); err != nil {
		return nil, err
	}
	if a.CustodySigner, err = d.Derive(LabelCustodySigner, nil); err != nil {
		return nil, err
	}
	if a.ShareMint, err = d.Derive(LabelShareMint, nil); err != nil {
		return nil, err
	}
	if a.CustodyAccount, err = d.Derive(LabelCustodyAccount, underlyingMint.Bytes()); err != nil {
		return nil, err
	}
	return &a, nil
}

// Signer is proof of control over a program-derived address. It holds no
// private key; the program proves control by presenting the seeds and bump,
// which anyone can re-derive against the program id.
type Signer struct {
	programID solana.PublicKey
	label     Label
	derived   Derived
}

// Signer derives the signing capability for a singleton label.
func (d *Deriver) Signer(label Label) (*Signer, error) {
	derived, err := d.Derive(label, nil)
	if err != nil {
		return nil, err
	}
	return &Signer{programID: d.programID, label: label, derived: derived}, nil
}

// Address is the authority address the signer speaks for.
func (s *Signer) Address() solana.PublicKey { return s.derived.Address }

// Bump is the bump persisted alongside records that reference the signer.
func (s *Signer) Bump() uint8 { return s.derived.Bump }

// SignerSeeds returns the seeds, bump last, that authorize the signer.
func (s *Signer) SignerSeeds() [][]byte {
	return [][]byte{[]byte(s.label), {s.derived.Bump}}
}

// Verify reports whether the signer's seeds derive its address under
// programID. A signer minted for another program never verifies.
func (s *Signer) Verify(programID solana.PublicKey) bool {
	if !programID.Equals(s.programID) {
		return false
	}
	addr, err := solana.CreateProgramAddress(s.SignerSeeds(), programID)
	return err == nil && addr.Equals(s.derived.Address)
}
