package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/limitless/market-engine/internal/wad"
)

const (
	// DiscriminatorSize is the length of the account type tag.
	DiscriminatorSize = 8
	// KeySize is the length of an address.
	KeySize = 32
)

var (
	// ErrInvalidDiscriminator is returned when account data carries another
	// record type's tag.
	ErrInvalidDiscriminator = errors.New("model: account discriminator mismatch")

	// ErrShortData is returned when account data is smaller than the record.
	ErrShortData = errors.New("model: account data too short")
)

// AccountDiscriminator is the Anchor tag for a record: sha256("account:<Name>")[:8].
func AccountDiscriminator(name string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var out [DiscriminatorSize]byte
	copy(out[:], sum[:DiscriminatorSize])
	return out
}

// IsZeroed reports whether data has never been written, which is how a
// freshly allocated account looks.
func IsZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

type marshaler interface {
	MarshalWithEncoder(enc *bin.Encoder) error
}

// encode serializes v into a buffer of exactly space bytes.
func encode(v marshaler, space int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := v.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	if buf.Len() > space {
		return nil, fmt.Errorf("model: encoded %d bytes into %d-byte account", buf.Len(), space)
	}
	out := make([]byte, space)
	copy(out, buf.Bytes())
	return out, nil
}

func checkDiscriminator(dec *bin.Decoder, want [DiscriminatorSize]byte) error {
	got, err := dec.ReadNBytes(DiscriminatorSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrShortData, err)
	}
	if !bytes.Equal(got, want[:]) {
		return ErrInvalidDiscriminator
	}
	return nil
}

func writeKey(enc *bin.Encoder, k solana.PublicKey) error {
	return enc.WriteBytes(k[:], false)
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(KeySize)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

func writeU64(enc *bin.Encoder, v uint64) error {
	return enc.WriteUint64(v, binary.LittleEndian)
}

func readU64(dec *bin.Decoder) (uint64, error) {
	return dec.ReadUint64(binary.LittleEndian)
}

// writeWad64 writes a WAD amount in a u64 slot.
func writeWad64(enc *bin.Encoder, a wad.Amount) error {
	v, err := a.Uint64()
	if err != nil {
		return err
	}
	return writeU64(enc, v)
}

func readWad64(dec *bin.Decoder) (wad.Amount, error) {
	v, err := readU64(dec)
	if err != nil {
		return wad.Amount{}, err
	}
	return wad.FromUint64(v), nil
}

// writeWad128 writes a WAD amount in a little-endian u128 slot.
func writeWad128(enc *bin.Encoder, a wad.Amount) error {
	lo, hi, err := a.Uint128()
	if err != nil {
		return err
	}
	if err := writeU64(enc, lo); err != nil {
		return err
	}
	return writeU64(enc, hi)
}

func readWad128(dec *bin.Decoder) (wad.Amount, error) {
	lo, err := readU64(dec)
	if err != nil {
		return wad.Amount{}, err
	}
	hi, err := readU64(dec)
	if err != nil {
		return wad.Amount{}, err
	}
	return wad.FromUint128(lo, hi), nil
}
