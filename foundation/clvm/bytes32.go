package clvm

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Bytes32 is a 32 byte hash, used for tree hashes, coin ids and
// puzzle hashes.
type Bytes32 [32]byte

// ParseBytes32 decodes a hex string with or without the 0x prefix.
func ParseBytes32(s string) (Bytes32, error) {
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}

	b, err := hexutil.Decode(s)
	if err != nil {
		return Bytes32{}, fmt.Errorf("parse bytes32: %w", err)
	}

	if len(b) != 32 {
		return Bytes32{}, fmt.Errorf("parse bytes32: length %d: %w", len(b), ErrWrongAtomLength)
	}

	return Bytes32(b), nil
}

// MustParseBytes32 is used for package level constants and panics on
// malformed input.
func MustParseBytes32(s string) Bytes32 {
	b, err := ParseBytes32(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Hex returns the 0x prefixed hex encoding.
func (b Bytes32) Hex() string {
	return hexutil.Encode(b[:])
}

// String implements the fmt.Stringer interface.
func (b Bytes32) String() string {
	return b.Hex()
}

// IsZero reports if every byte is zero.
func (b Bytes32) IsZero() bool {
	return b == Bytes32{}
}

// Compare orders two hashes lexicographically.
func (b Bytes32) Compare(o Bytes32) int {
	return bytes.Compare(b[:], o[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
func (b Bytes32) MarshalText() ([]byte, error) {
	return []byte(b.Hex()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (b *Bytes32) UnmarshalText(data []byte) error {
	v, err := ParseBytes32(string(data))
	if err != nil {
		return err
	}

	*b = v
	return nil
}
