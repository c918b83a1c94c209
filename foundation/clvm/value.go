package clvm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Value is implemented by types that move in and out of the arena.
// FromClvm is called on a zero value and returns the decoded value.
type Value[T any] interface {
	ToClvm(a *Allocator) (NodePtr, error)
	FromClvm(a *Allocator, n NodePtr) (T, error)
}

// Raw wraps a node so it can be used wherever a Value is expected.
type Raw NodePtr

// ToClvm implements the Value interface.
func (r Raw) ToClvm(a *Allocator) (NodePtr, error) {
	return NodePtr(r), nil
}

// FromClvm implements the Value interface.
func (Raw) FromClvm(a *Allocator, n NodePtr) (Raw, error) {
	return Raw(n), nil
}

// Decode is a convenience for calling FromClvm on the zero value of T.
func Decode[T Value[T]](a *Allocator, n NodePtr) (T, error) {
	var zero T
	return zero.FromClvm(a, n)
}

// =============================================================================

// DeserializeHex decodes a hex encoded program, with or without the 0x
// prefix.
func (a *Allocator) DeserializeHex(s string) (NodePtr, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return Nil, err
	}
	return a.DeserializeBackrefs(b)
}

// DecodeHex decodes hex with or without the 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}

	if s == "0x" {
		return nil, nil
	}

	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}

	return b, nil
}
