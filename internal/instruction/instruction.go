// Package instruction encodes the bootstrap program's instructions and
// authenticates the payer that submits them.
//
// Instruction data is sha256("global:<name>")[:8] followed by the Borsh
// encoded arguments.
package instruction

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction names.
const (
	NameInitializeVault  = "initialize_vault_handler"
	NameInitializeMarket = "initialize_market_handler"
)

var (
	// ErrUnknownInstruction is returned for data whose discriminator matches
	// no instruction.
	ErrUnknownInstruction = errors.New("instruction: unknown discriminator")

	// ErrMissingSignature is returned when no payer signature was supplied.
	ErrMissingSignature = errors.New("instruction: missing payer signature")

	// ErrInvalidSignature is returned when the payer signature does not
	// verify.
	ErrInvalidSignature = errors.New("instruction: invalid payer signature")
)

var (
	initializeVaultDisc  = discriminator(NameInitializeVault)
	initializeMarketDisc = discriminator(NameInitializeMarket)
)

func discriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}

// InitializeVault carries the vault initializer's arguments.
type InitializeVault struct {
	Market  solana.PublicKey `json:"market"`
	UtilPct uint64           `json:"util_pct"`
}

func (ix InitializeVault) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(initializeVaultDisc[:], false); err != nil {
		return err
	}
	if err := enc.WriteBytes(ix.Market[:], false); err != nil {
		return err
	}
	return enc.WriteUint64(ix.UtilPct, binary.LittleEndian)
}

// Data returns the instruction data.
func (ix InitializeVault) Data() ([]byte, error) { return encode(ix) }

// InitializeMarket carries the market initializer's arguments.
type InitializeMarket struct {
	Vault           solana.PublicKey `json:"vault"`
	Oracle          solana.PublicKey `json:"oracle"`
	CollateralToken solana.PublicKey `json:"collateral_token"`
}

func (ix InitializeMarket) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(initializeMarketDisc[:], false); err != nil {
		return err
	}
	for _, k := range []solana.PublicKey{ix.Vault, ix.Oracle, ix.CollateralToken} {
		if err := enc.WriteBytes(k[:], false); err != nil {
			return err
		}
	}
	return nil
}

// Data returns the instruction data.
func (ix InitializeMarket) Data() ([]byte, error) { return encode(ix) }

func encode(ix bin.BinaryMarshaler) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := ix.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses instruction data into *InitializeVault or *InitializeMarket.
func Decode(data []byte) (any, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrUnknownInstruction, len(data))
	}
	dec := bin.NewBorshDecoder(data[8:])
	switch {
	case bytes.Equal(data[:8], initializeVaultDisc[:]):
		var ix InitializeVault
		market, err := dec.ReadNBytes(32)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", NameInitializeVault, err)
		}
		ix.Market = solana.PublicKeyFromBytes(market)
		if ix.UtilPct, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return nil, fmt.Errorf("decode %s: %w", NameInitializeVault, err)
		}
		return &ix, nil
	case bytes.Equal(data[:8], initializeMarketDisc[:]):
		var ix InitializeMarket
		for _, k := range []*solana.PublicKey{&ix.Vault, &ix.Oracle, &ix.CollateralToken} {
			b, err := dec.ReadNBytes(32)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", NameInitializeMarket, err)
			}
			*k = solana.PublicKeyFromBytes(b)
		}
		return &ix, nil
	default:
		return nil, ErrUnknownInstruction
	}
}

// Message is what the payer signs: the program id followed by the
// instruction data.
func Message(programID solana.PublicKey, data []byte) []byte {
	msg := make([]byte, 0, len(programID)+len(data))
	msg = append(msg, programID[:]...)
	return append(msg, data...)
}

// Sign produces the payer signature for data.
func Sign(programID solana.PublicKey, key solana.PrivateKey, data []byte) (solana.Signature, error) {
	return key.Sign(Message(programID, data))
}

// VerifyPayer checks that sig is payer's signature over data.
func VerifyPayer(programID, payer solana.PublicKey, sig solana.Signature, data []byte) error {
	if sig == (solana.Signature{}) {
		return ErrMissingSignature
	}
	if !sig.Verify(payer, Message(programID, data)) {
		return fmt.Errorf("%w: payer %s", ErrInvalidSignature, payer)
	}
	return nil
}
