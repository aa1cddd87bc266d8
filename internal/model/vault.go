package model

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/limitless/market-engine/internal/wad"
)

const (
	VaultInitSpace = KeySize + 1 + KeySize + 4*8
	VaultSpace     = DiscriminatorSize + VaultInitSpace
)

// VaultDiscriminator tags vault accounts.
var VaultDiscriminator = AccountDiscriminator("Vault")

// Vault is the liquidity pool backing the market. Shares are minted by the
// custody signer whose bump is kept in PdaBump.
type Vault struct {
	ShareMint solana.PublicKey `json:"share_mint"`
	PdaBump   uint8            `json:"pda_bump"`
	Market    solana.PublicKey `json:"market"`

	ScaleFactor       wad.Amount `json:"scale_factor"`
	MaxUtilPercentage uint64     `json:"max_util_percentage"`

	TotalUnderlyingDeposited uint64 `json:"total_underlying_deposited"`
	TotalShares              uint64 `json:"total_shares"`
}

// NewVault returns a vault with WAD scaling and empty totals.
func NewVault(market solana.PublicKey, utilPct uint64, shareMint solana.PublicKey, custodyBump uint8) *Vault {
	v := &Vault{}
	v.Initialize(market, utilPct, shareMint, custodyBump)
	return v
}

// Initialize overwrites every field. utilPct is stored as given.
func (v *Vault) Initialize(market solana.PublicKey, utilPct uint64, shareMint solana.PublicKey, custodyBump uint8) {
	v.ShareMint = shareMint
	v.PdaBump = custodyBump
	v.Market = market
	v.ScaleFactor = wad.One
	v.MaxUtilPercentage = utilPct
	v.TotalUnderlyingDeposited = 0
	v.TotalShares = 0
}

func (v *Vault) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(VaultDiscriminator[:], false); err != nil {
		return err
	}
	if err := writeKey(enc, v.ShareMint); err != nil {
		return err
	}
	if err := enc.WriteUint8(v.PdaBump); err != nil {
		return err
	}
	if err := writeKey(enc, v.Market); err != nil {
		return err
	}
	if err := writeWad64(enc, v.ScaleFactor); err != nil {
		return err
	}
	for _, n := range []uint64{v.MaxUtilPercentage, v.TotalUnderlyingDeposited, v.TotalShares} {
		if err := writeU64(enc, n); err != nil {
			return err
		}
	}
	return nil
}

func (v *Vault) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if err = checkDiscriminator(dec, VaultDiscriminator); err != nil {
		return err
	}
	if v.ShareMint, err = readKey(dec); err != nil {
		return err
	}
	if v.PdaBump, err = dec.ReadUint8(); err != nil {
		return err
	}
	if v.Market, err = readKey(dec); err != nil {
		return err
	}
	if v.ScaleFactor, err = readWad64(dec); err != nil {
		return err
	}
	for _, n := range []*uint64{&v.MaxUtilPercentage, &v.TotalUnderlyingDeposited, &v.TotalShares} {
		if *n, err = readU64(dec); err != nil {
			return err
		}
	}
	return nil
}

// Encode serializes the vault into a VaultSpace buffer.
func (v *Vault) Encode() ([]byte, error) {
	return encode(v, VaultSpace)
}

// DecodeVault parses vault account data.
func DecodeVault(data []byte) (*Vault, error) {
	if len(data) < VaultSpace {
		return nil, ErrShortData
	}
	var v Vault
	if err := v.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, err
	}
	return &v, nil
}

// IsVault reports whether data carries the vault tag.
func IsVault(data []byte) bool {
	return len(data) >= DiscriminatorSize && bytes.Equal(data[:DiscriminatorSize], VaultDiscriminator[:])
}
