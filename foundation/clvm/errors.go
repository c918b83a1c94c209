package clvm

import "errors"

// Shape errors.
var (
	ErrAtomExpected    = errors.New("atom expected")
	ErrPairExpected    = errors.New("pair expected")
	ErrExpectedNil     = errors.New("expected nil terminator")
	ErrWrongAtomLength = errors.New("wrong atom length")
)

// Range errors.
var (
	ErrTooLarge   = errors.New("value too large")
	ErrTooSmall   = errors.New("value too small")
	ErrFractional = errors.New("value has a fractional part")
	ErrInfinite   = errors.New("value is infinite")
	ErrNaN        = errors.New("value is not a number")
	ErrNegative   = errors.New("value is negative")
)

// Serialization errors.
var (
	ErrBadEncoding   = errors.New("bad encoding")
	ErrUnexpectedEOF = errors.New("unexpected end of input")
	ErrBackReference = errors.New("back reference not allowed")
	ErrInvalidPath   = errors.New("invalid back reference path")
	ErrTrailingBytes = errors.New("trailing bytes after program")
	ErrAtomTooLong   = errors.New("atom too long to encode")
	ErrNotCurried    = errors.New("program is not curried")
)
