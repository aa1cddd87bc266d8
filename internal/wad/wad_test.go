package wad

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestOne(t *testing.T) {
	raw, err := One.Uint64()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != 1_000_000_000_000_000_000 {
		t.Errorf("expected 1e18, got %d", raw)
	}
	if !One.Equal(FromRaw(decimal.New(1, Decimals))) {
		t.Errorf("expected raw 1e18, got %s", One)
	}
}

func TestFromUnits_Uint128(t *testing.T) {
	a := FromUnits(100)
	if a.String() != "100000000000000000000" {
		t.Fatalf("expected 100e18, got %s", a)
	}

	lo, hi, err := a.Uint128()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 100e18 = 5 * 2^64 + 7766279631452241920
	if hi != 5 || lo != 7766279631452241920 {
		t.Errorf("unexpected halves lo=%d hi=%d", lo, hi)
	}
	if !FromUint128(lo, hi).Equal(a) {
		t.Errorf("u128 halves do not reassemble to %s", a)
	}
}

func TestUint64_Overflow(t *testing.T) {
	if _, err := FromUnits(100).Uint64(); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
	if _, err := FromUnits(-1).Uint64(); !errors.Is(err, ErrNegative) {
		t.Errorf("expected ErrNegative, got %v", err)
	}
	if _, _, err := FromUnits(-1).Uint128(); !errors.Is(err, ErrNegative) {
		t.Errorf("expected ErrNegative, got %v", err)
	}
}

func TestFromRaw_Truncates(t *testing.T) {
	a := FromRaw(decimal.RequireFromString("12.9"))
	if !a.Raw().Equal(decimal.NewFromInt(12)) {
		t.Errorf("expected raw 12, got %s", a.Raw())
	}
}

func TestJSON(t *testing.T) {
	data, err := json.Marshal(FromUnits(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"100000000000000000000"` {
		t.Errorf("unexpected json %s", data)
	}

	var back Amount
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !back.Equal(FromUnits(100)) {
		t.Errorf("expected 100e18, got %s", back)
	}
}
