package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/limitless/market-engine/internal/wad"
)

func key() solana.PublicKey { return solana.NewWallet().PublicKey() }

func TestRecordSpace(t *testing.T) {
	if MarketSpace != 193 {
		t.Errorf("expected market space 193, got %d", MarketSpace)
	}
	if VaultSpace != 105 {
		t.Errorf("expected vault space 105, got %d", VaultSpace)
	}
}

func TestAccountDiscriminator(t *testing.T) {
	sum := sha256.Sum256([]byte("account:Market"))
	if !bytes.Equal(MarketDiscriminator[:], sum[:8]) {
		t.Errorf("unexpected market discriminator %x", MarketDiscriminator)
	}
	if MarketDiscriminator == VaultDiscriminator {
		t.Error("market and vault discriminators must differ")
	}
}

func TestNewMarket_Defaults(t *testing.T) {
	v, o, c := key(), key(), key()
	m := NewMarket(v, o, c, 254)

	if !m.Vault.Equals(v) || !m.Oracle.Equals(o) || !m.CollateralToken.Equals(c) {
		t.Error("references not stored")
	}
	if m.BaseDecimals.String() != "1000000000000000000" {
		t.Errorf("expected base_decimals 1e18, got %s", m.BaseDecimals)
	}
	if m.MaxBps != 10000 {
		t.Errorf("expected max_bps 10000, got %d", m.MaxBps)
	}
	if m.SecondsInYear != 31536000 {
		t.Errorf("expected seconds_in_year 31536000, got %d", m.SecondsInYear)
	}
	if m.LiquidationFeePct != 10 || m.MaxLeverage != 5 {
		t.Errorf("unexpected fee/leverage %d/%d", m.LiquidationFeePct, m.MaxLeverage)
	}
	if m.MinPositionSize.String() != "100000000000000000000" {
		t.Errorf("expected min_position_size 100e18, got %s", m.MinPositionSize)
	}
	if m.HasOpenInterest() {
		t.Error("new market should have zero open interest")
	}
	if m.Bump != 254 {
		t.Errorf("expected bump 254, got %d", m.Bump)
	}
}

func TestMarket_EncodeLayout(t *testing.T) {
	m := NewMarket(key(), key(), key(), 7)
	m.OpenInterestUsdShort = 42

	data, err := m.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != MarketSpace {
		t.Fatalf("expected %d bytes, got %d", MarketSpace, len(data))
	}
	if !IsMarket(data) || IsVault(data) {
		t.Error("wrong discriminator on encoded market")
	}
	if !bytes.Equal(data[8:40], m.Vault[:]) {
		t.Error("vault key not at offset 8")
	}
	// base_decimals follows the three keys.
	if got := binary.LittleEndian.Uint64(data[104:112]); got != 1_000_000_000_000_000_000 {
		t.Errorf("expected base_decimals 1e18 at offset 104, got %d", got)
	}
	// min_position_size is a little-endian u128 after four u64 params.
	if hi := binary.LittleEndian.Uint64(data[152:160]); hi != 5 {
		t.Errorf("expected u128 high word 5, got %d", hi)
	}
	if data[MarketSpace-1] != 7 {
		t.Errorf("expected bump as last byte, got %d", data[MarketSpace-1])
	}

	back, err := DecodeMarket(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, _ := back.Encode()
	if !bytes.Equal(again, data) || !back.MinPositionSize.Equal(m.MinPositionSize) || back.OpenInterestUsdShort != 42 {
		t.Errorf("decoded market differs:\n got %+v\nwant %+v", back, m)
	}
}

func TestVault_EncodeDecode(t *testing.T) {
	market, mint := key(), key()
	v := NewVault(market, 8000, mint, 253)

	if !v.ScaleFactor.Equal(wad.One) {
		t.Errorf("expected scale factor 1e18, got %s", v.ScaleFactor)
	}
	if v.TotalShares != 0 || v.TotalUnderlyingDeposited != 0 {
		t.Error("new vault should have empty totals")
	}

	data, err := v.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != VaultSpace {
		t.Fatalf("expected %d bytes, got %d", VaultSpace, len(data))
	}
	if data[40] != 253 {
		t.Errorf("expected pda_bump at offset 40, got %d", data[40])
	}

	back, err := DecodeVault(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !back.Market.Equals(market) || !back.ShareMint.Equals(mint) || back.MaxUtilPercentage != 8000 ||
		back.PdaBump != 253 || !back.ScaleFactor.Equal(wad.One) {
		t.Errorf("decoded vault differs:\n got %+v\nwant %+v", back, v)
	}
}

func TestDecode_WrongRecordType(t *testing.T) {
	data, _ := NewVault(key(), 1, key(), 1).Encode()
	padded := make([]byte, MarketSpace)
	copy(padded, data)

	if _, err := DecodeMarket(padded); !errors.Is(err, ErrInvalidDiscriminator) {
		t.Errorf("expected ErrInvalidDiscriminator, got %v", err)
	}
	if _, err := DecodeVault(data[:10]); !errors.Is(err, ErrShortData) {
		t.Errorf("expected ErrShortData, got %v", err)
	}
}

func TestMinimumBalance(t *testing.T) {
	// (128 + 193) * 3480 * 2
	if got := MinimumBalance(MarketSpace); got != 2_234_160 {
		t.Errorf("expected 2234160, got %d", got)
	}
	if got := MinimumBalance(0); got != 890_880 {
		t.Errorf("expected 890880, got %d", got)
	}
}

func TestIsZeroed(t *testing.T) {
	if !IsZeroed(make([]byte, 16)) {
		t.Error("zero buffer should be zeroed")
	}
	if IsZeroed([]byte{0, 1}) {
		t.Error("non-zero buffer reported zeroed")
	}
}
