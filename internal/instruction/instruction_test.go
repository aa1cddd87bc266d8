package instruction

import (
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
)

var testProgramID = solana.MustPublicKeyFromBase58("BADPqHQ6dqfb2KfHk1JiHzJNWScAfgB4SQyVP283mPuy")

func mustData(t *testing.T, ix interface{ Data() ([]byte, error) }) []byte {
	t.Helper()
	data, err := ix.Data()
	if err != nil {
		t.Fatalf("encode %T: %v", ix, err)
	}
	return data
}

func TestInitializeVault_Data(t *testing.T) {
	market := solana.NewWallet().PublicKey()
	data := mustData(t, InitializeVault{Market: market, UtilPct: 8000})

	if len(data) != 8+32+8 {
		t.Fatalf("expected 48 bytes, got %d", len(data))
	}
	sum := sha256.Sum256([]byte("global:initialize_vault_handler"))
	if string(data[:8]) != string(sum[:8]) {
		t.Errorf("unexpected discriminator %x", data[:8])
	}

	ix, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := ix.(*InitializeVault)
	if !ok {
		t.Fatalf("expected *InitializeVault, got %T", ix)
	}
	if !v.Market.Equals(market) || v.UtilPct != 8000 {
		t.Errorf("decoded %+v", v)
	}
}

func TestInitializeMarket_Data(t *testing.T) {
	want := InitializeMarket{
		Vault:           solana.NewWallet().PublicKey(),
		Oracle:          solana.NewWallet().PublicKey(),
		CollateralToken: solana.NewWallet().PublicKey(),
	}
	data := mustData(t, want)
	if len(data) != 8+3*32 {
		t.Fatalf("expected 104 bytes, got %d", len(data))
	}

	ix, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := ix.(*InitializeMarket)
	if !ok || *got != want {
		t.Errorf("decoded %+v, want %+v", ix, want)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrUnknownInstruction},
		{"unknown", make([]byte, 16), ErrUnknownInstruction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	truncated := mustData(t, InitializeVault{UtilPct: 1})[:20]
	if _, err := Decode(truncated); err == nil {
		t.Error("expected error for truncated vault args")
	}
}

func TestVerifyPayer(t *testing.T) {
	payer := solana.NewWallet()
	data := mustData(t, InitializeVault{Market: solana.NewWallet().PublicKey(), UtilPct: 1})

	sig, err := Sign(testProgramID, payer.PrivateKey, data)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := VerifyPayer(testProgramID, payer.PublicKey(), sig, data); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}

	tampered := append([]byte(nil), data...)
	tampered[len(tampered)-1] ^= 0xff
	if err := VerifyPayer(testProgramID, payer.PublicKey(), sig, tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("tampered payload: expected ErrInvalidSignature, got %v", err)
	}

	other := solana.NewWallet().PublicKey()
	if err := VerifyPayer(other, payer.PublicKey(), sig, data); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("other program: expected ErrInvalidSignature, got %v", err)
	}
	if err := VerifyPayer(testProgramID, solana.NewWallet().PublicKey(), sig, data); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("other payer: expected ErrInvalidSignature, got %v", err)
	}
	if err := VerifyPayer(testProgramID, payer.PublicKey(), solana.Signature{}, data); !errors.Is(err, ErrMissingSignature) {
		t.Errorf("expected ErrMissingSignature, got %v", err)
	}
}
