package clvm

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
)

// MaxSafeInteger is the largest integer a float64 holds without losing
// precision.
const MaxSafeInteger = 1<<53 - 1

// EncodeInt returns the minimal big endian two's complement encoding
// used for CLVM integers. Zero encodes as the empty atom.
func EncodeInt(v *big.Int) []byte {
	switch v.Sign() {
	case 0:
		return nil

	case 1:
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}

	n := (v.BitLen() + 8) / 8
	mod := new(big.Int).Lsh(big.NewInt(1), uint(n*8))
	b := new(big.Int).Add(mod, v).FillBytes(make([]byte, n))

	return trimSigned(b)
}

// DecodeInt interprets an atom as a signed big endian integer.
func DecodeInt(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return v
}

// EncodeUint64 returns the CLVM encoding of an unsigned value.
func EncodeUint64(v uint64) []byte {
	if v == 0 {
		return nil
	}

	var buf [9]byte
	binary.BigEndian.PutUint64(buf[1:], v)

	i := 1
	for buf[i] == 0 {
		i++
	}
	if buf[i]&0x80 != 0 {
		i--
	}

	return append([]byte(nil), buf[i:]...)
}

// EncodeInt64 returns the CLVM encoding of a signed value.
func EncodeInt64(v int64) []byte {
	if v == 0 {
		return nil
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))

	return append([]byte(nil), trimSigned(buf[:])...)
}

func trimSigned(b []byte) []byte {
	i := 0
	for i < len(b)-1 {
		switch {
		case b[i] == 0x00 && b[i+1]&0x80 == 0:
			i++
			continue
		case b[i] == 0xff && b[i+1]&0x80 != 0:
			i++
			continue
		}
		break
	}
	return b[i:]
}

// =============================================================================

// NewUint64 stores an unsigned integer atom.
func (a *Allocator) NewUint64(v uint64) NodePtr {
	return a.NewAtom(EncodeUint64(v))
}

// NewInt64 stores a signed integer atom.
func (a *Allocator) NewInt64(v int64) NodePtr {
	return a.NewAtom(EncodeInt64(v))
}

// NewBigInt stores an arbitrary precision integer atom.
func (a *Allocator) NewBigInt(v *big.Int) NodePtr {
	return a.NewAtom(EncodeInt(v))
}

// NewF64 stores a float64 that holds an exact integer. Values that would
// lose precision are rejected instead of being truncated.
func (a *Allocator) NewF64(v float64) (NodePtr, error) {
	switch {
	case math.IsInf(v, 0):
		return Nil, ErrInfinite
	case math.IsNaN(v):
		return Nil, ErrNaN
	case v != math.Trunc(v):
		return Nil, ErrFractional
	case v > MaxSafeInteger:
		return Nil, ErrTooLarge
	case v < -MaxSafeInteger:
		return Nil, ErrTooSmall
	}

	return a.NewInt64(int64(v)), nil
}

// BigInt reads an atom as a signed integer.
func (a *Allocator) BigInt(n NodePtr) (*big.Int, error) {
	b, err := a.Atom(n)
	if err != nil {
		return nil, err
	}
	return DecodeInt(b), nil
}

// F64 reads an integer atom that fits a float64 exactly.
func (a *Allocator) F64(n NodePtr) (float64, error) {
	v, err := a.BigInt(n)
	if err != nil {
		return 0, err
	}

	switch {
	case v.Cmp(big.NewInt(MaxSafeInteger)) > 0:
		return 0, ErrTooLarge
	case v.Cmp(big.NewInt(-MaxSafeInteger)) < 0:
		return 0, ErrTooSmall
	}

	return float64(v.Int64()), nil
}

// Uint64 reads an atom as an unsigned 64 bit integer.
func (a *Allocator) Uint64(n NodePtr) (uint64, error) {
	b, err := a.Atom(n)
	if err != nil {
		return 0, err
	}

	if len(b) > 0 && b[0]&0x80 != 0 {
		return 0, fmt.Errorf("uint64 %x: %w", b, ErrNegative)
	}

	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}

	if len(b) > 8 {
		return 0, fmt.Errorf("uint64 %x: %w", b, ErrTooLarge)
	}

	var buf [8]byte
	copy(buf[8-len(b):], b)

	return binary.BigEndian.Uint64(buf[:]), nil
}

// Uint32 reads an atom as an unsigned 32 bit integer.
func (a *Allocator) Uint32(n NodePtr) (uint32, error) {
	v, err := a.Uint64(n)
	if err != nil {
		return 0, err
	}

	if v > math.MaxUint32 {
		return 0, fmt.Errorf("uint32 %d: %w", v, ErrTooLarge)
	}

	return uint32(v), nil
}

// Uint8 reads an atom as an unsigned byte.
func (a *Allocator) Uint8(n NodePtr) (uint8, error) {
	v, err := a.Uint64(n)
	if err != nil {
		return 0, err
	}

	if v > math.MaxUint8 {
		return 0, fmt.Errorf("uint8 %d: %w", v, ErrTooLarge)
	}

	return uint8(v), nil
}

// Int64 reads an atom as a signed 64 bit integer.
func (a *Allocator) Int64(n NodePtr) (int64, error) {
	v, err := a.BigInt(n)
	if err != nil {
		return 0, err
	}

	switch {
	case v.Cmp(big.NewInt(math.MaxInt64)) > 0:
		return 0, fmt.Errorf("int64 %s: %w", v, ErrTooLarge)
	case v.Cmp(big.NewInt(math.MinInt64)) < 0:
		return 0, fmt.Errorf("int64 %s: %w", v, ErrTooSmall)
	}

	return v.Int64(), nil
}
