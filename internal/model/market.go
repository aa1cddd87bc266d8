package model

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/limitless/market-engine/internal/wad"
)

// Protocol defaults seeded into every market.
const (
	MaxBps            uint64 = 10000            // 100%
	SecondsInYear     uint64 = 365 * 24 * 60 * 60
	LiquidationFeePct uint64 = 10 // 10%
	MaxLeverage       uint64 = 5
)

// MinPositionSize is the smallest notional a position may open, in WAD.
var MinPositionSize = wad.FromUnits(100)

// MarketInitSpace is the serialized field size; MarketSpace adds the tag.
const (
	MarketInitSpace = 3*KeySize + 5*8 + 16 + 4*8 + 1
	MarketSpace     = DiscriminatorSize + MarketInitSpace
)

// MarketDiscriminator tags market accounts.
var MarketDiscriminator = AccountDiscriminator("Market")

// Market holds the risk parameters and aggregate open interest of the
// deployment's single market.
type Market struct {
	Vault           solana.PublicKey `json:"vault"`
	Oracle          solana.PublicKey `json:"oracle"`
	CollateralToken solana.PublicKey `json:"collateral_token"`

	BaseDecimals      wad.Amount `json:"base_decimals"` // WAD scale, 1e18
	MaxBps            uint64     `json:"max_bps"`
	SecondsInYear     uint64     `json:"seconds_in_year"`
	LiquidationFeePct uint64     `json:"liquidation_fee_pct"`
	MaxLeverage       uint64     `json:"max_leverage"`
	MinPositionSize   wad.Amount `json:"min_position_size"` // u128 on the wire

	OpenInterestUsdLong         uint64 `json:"open_interest_usd_long"`
	OpenInterestUsdShort        uint64 `json:"open_interest_usd_short"`
	OpenInterestUnderlyingLong  uint64 `json:"open_interest_underlying_long"`
	OpenInterestUnderlyingShort uint64 `json:"open_interest_underlying_short"`

	Bump uint8 `json:"bump"`
}

// NewMarket returns a market seeded with the protocol defaults and zeroed
// open interest.
func NewMarket(vault, oracle, collateralToken solana.PublicKey, bump uint8) *Market {
	m := &Market{}
	m.Initialize(vault, oracle, collateralToken, bump)
	return m
}

// Initialize overwrites every field, counters included.
func (m *Market) Initialize(vault, oracle, collateralToken solana.PublicKey, bump uint8) {
	m.Vault = vault
	m.Oracle = oracle
	m.CollateralToken = collateralToken
	m.BaseDecimals = wad.One
	m.MaxBps = MaxBps
	m.SecondsInYear = SecondsInYear
	m.LiquidationFeePct = LiquidationFeePct
	m.MaxLeverage = MaxLeverage
	m.MinPositionSize = MinPositionSize
	m.OpenInterestUsdLong = 0
	m.OpenInterestUsdShort = 0
	m.OpenInterestUnderlyingLong = 0
	m.OpenInterestUnderlyingShort = 0
	m.Bump = bump
}

// HasOpenInterest reports whether any counter is nonzero.
func (m *Market) HasOpenInterest() bool {
	return m.OpenInterestUsdLong != 0 || m.OpenInterestUsdShort != 0 ||
		m.OpenInterestUnderlyingLong != 0 || m.OpenInterestUnderlyingShort != 0
}

func (m *Market) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(MarketDiscriminator[:], false); err != nil {
		return err
	}
	for _, k := range []solana.PublicKey{m.Vault, m.Oracle, m.CollateralToken} {
		if err := writeKey(enc, k); err != nil {
			return err
		}
	}
	if err := writeWad64(enc, m.BaseDecimals); err != nil {
		return err
	}
	for _, v := range []uint64{m.MaxBps, m.SecondsInYear, m.LiquidationFeePct, m.MaxLeverage} {
		if err := writeU64(enc, v); err != nil {
			return err
		}
	}
	if err := writeWad128(enc, m.MinPositionSize); err != nil {
		return err
	}
	for _, v := range []uint64{
		m.OpenInterestUsdLong, m.OpenInterestUsdShort,
		m.OpenInterestUnderlyingLong, m.OpenInterestUnderlyingShort,
	} {
		if err := writeU64(enc, v); err != nil {
			return err
		}
	}
	return enc.WriteUint8(m.Bump)
}

func (m *Market) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if err = checkDiscriminator(dec, MarketDiscriminator); err != nil {
		return err
	}
	for _, k := range []*solana.PublicKey{&m.Vault, &m.Oracle, &m.CollateralToken} {
		if *k, err = readKey(dec); err != nil {
			return err
		}
	}
	if m.BaseDecimals, err = readWad64(dec); err != nil {
		return err
	}
	for _, v := range []*uint64{&m.MaxBps, &m.SecondsInYear, &m.LiquidationFeePct, &m.MaxLeverage} {
		if *v, err = readU64(dec); err != nil {
			return err
		}
	}
	if m.MinPositionSize, err = readWad128(dec); err != nil {
		return err
	}
	for _, v := range []*uint64{
		&m.OpenInterestUsdLong, &m.OpenInterestUsdShort,
		&m.OpenInterestUnderlyingLong, &m.OpenInterestUnderlyingShort,
	} {
		if *v, err = readU64(dec); err != nil {
			return err
		}
	}
	m.Bump, err = dec.ReadUint8()
	return err
}

// Encode serializes the market into a MarketSpace buffer.
func (m *Market) Encode() ([]byte, error) {
	return encode(m, MarketSpace)
}

// DecodeMarket parses market account data.
func DecodeMarket(data []byte) (*Market, error) {
	if len(data) < MarketSpace {
		return nil, ErrShortData
	}
	var m Market
	if err := m.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, err
	}
	return &m, nil
}

// IsMarket reports whether data carries the market tag.
func IsMarket(data []byte) bool {
	return len(data) >= DiscriminatorSize && bytes.Equal(data[:DiscriminatorSize], MarketDiscriminator[:])
}
