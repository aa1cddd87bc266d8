// Package wad implements the 18-decimal fixed-point scale shared by every
// USD-denominated and share-price field of the protocol records.
//
// Values are held as shopspring/decimal integers in raw (scaled) units so the
// scale never travels separately from the number.
package wad

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of a WAD.
const Decimals = 18

var (
	// ErrOverflow is returned when a raw value does not fit the wire width.
	ErrOverflow = errors.New("wad: value overflows wire width")

	// ErrNegative is returned when a raw value is negative.
	ErrNegative = errors.New("wad: negative value")

	scale   = decimal.New(1, Decimals)
	maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	mask64  = new(big.Int).SetUint64(^uint64(0))
)

// Amount is a WAD-scaled quantity. The zero value is zero.
type Amount struct {
	raw decimal.Decimal
}

// One is 1.0 in WAD, i.e. raw 10^18.
var One = FromUnits(1)

// FromUnits scales whole units up to WAD: FromUnits(100) has raw 100e18.
func FromUnits(units int64) Amount {
	return Amount{raw: decimal.NewFromInt(units).Mul(scale)}
}

// FromRaw wraps an already-scaled integer.
func FromRaw(raw decimal.Decimal) Amount {
	return Amount{raw: raw.Truncate(0)}
}

// FromUint64 wraps an already-scaled u64 wire value.
func FromUint64(raw uint64) Amount {
	return Amount{raw: decimal.NewFromBigInt(new(big.Int).SetUint64(raw), 0)}
}

// FromUint128 wraps an already-scaled u128 wire value split into halves.
func FromUint128(lo, hi uint64) Amount {
	v := new(big.Int).SetUint64(hi)
	v.Lsh(v, 64)
	v.Or(v, new(big.Int).SetUint64(lo))
	return Amount{raw: decimal.NewFromBigInt(v, 0)}
}

// Raw returns the scaled integer.
func (a Amount) Raw() decimal.Decimal { return a.raw }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.raw.IsZero() }

// Equal compares raw values.
func (a Amount) Equal(b Amount) bool { return a.raw.Equal(b.raw) }

// String renders the raw integer.
func (a Amount) String() string { return a.raw.String() }

// Uint64 returns the raw value as a u64 wire value.
func (a Amount) Uint64() (uint64, error) {
	bi := a.raw.BigInt()
	if bi.Sign() < 0 {
		return 0, ErrNegative
	}
	if !bi.IsUint64() {
		return 0, ErrOverflow
	}
	return bi.Uint64(), nil
}

// Uint128 returns the raw value split into little-endian halves.
func (a Amount) Uint128() (lo, hi uint64, err error) {
	bi := a.raw.BigInt()
	if bi.Sign() < 0 {
		return 0, 0, ErrNegative
	}
	if bi.Cmp(maxU128) > 0 {
		return 0, 0, ErrOverflow
	}
	lo = new(big.Int).And(bi, mask64).Uint64()
	hi = new(big.Int).Rsh(bi, 64).Uint64()
	return lo, hi, nil
}

// MarshalJSON renders the raw integer as a JSON string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.raw.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted or bare raw integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = FromRaw(d)
	return nil
}
