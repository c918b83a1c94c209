package driver

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Set of protocol errors returned when a puzzle or solution does not match
// the structure a driver expects.
var (
	ErrNonStandardLayer   = errors.New("non standard layer")
	ErrInvalidMerkleProof = errors.New("invalid merkle proof")
	ErrMissingRunner      = errors.New("no runner configured")
	ErrCostExceeded       = errors.New("cost exceeded")
)

// RunError carries the message raised by the runner verbatim.
type RunError struct {
	Message string
}

// Error implements the error interface.
func (re *RunError) Error() string {
	return "run: " + re.Message
}

// LayerError identifies the layer that rejected a puzzle.
type LayerError struct {
	Layer string
	Err   error
}

// Error implements the error interface.
func (le *LayerError) Error() string {
	return fmt.Sprintf("%s: %s", le.Layer, le.Err)
}

// Unwrap returns the underlying error.
func (le *LayerError) Unwrap() error {
	return le.Err
}

// NonStandard constructs the error returned when a puzzle matched a mod
// hash but its curried arguments could not be parsed.
func NonStandard(layer string, err error) error {
	if err == nil {
		return &LayerError{Layer: layer, Err: ErrNonStandardLayer}
	}
	return &LayerError{Layer: layer, Err: fmt.Errorf("%w: %w", ErrNonStandardLayer, err)}
}

// WrongArgCount builds the error for a curried puzzle with the wrong number
// of arguments.
func WrongArgCount(layer string, got int, exp int) error {
	return NonStandard(layer, fmt.Errorf("args[%d] exp[%d]: %w", got, exp, clvm.ErrPairExpected))
}
