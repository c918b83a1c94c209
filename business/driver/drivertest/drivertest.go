// Package drivertest provides a runner for tests. It interprets puzzle
// bytes and lets tests stand Go functions in for puzzles whose bytes are
// not available, such as the external puzzles a library stands in for.
package drivertest

import (
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// DefaultCost is charged for every run.
const DefaultCost uint64 = 1_000

// Program executes a puzzle. Args holds the curried arguments, innermost
// curry first.
type Program func(a *clvm.Allocator, args []clvm.NodePtr, solution clvm.NodePtr) (clvm.NodePtr, error)

// Runner dispatches on the tree hash of a puzzle, or of the program it
// curries, to a registered Go function. Everything else is interpreted, and
// the interpreter dispatches to the registered functions whenever a program
// applies one of them.
type Runner struct {
	programs map[clvm.Bytes32]Program
	Cost     uint64
	Runs     int
}

// NewRunner constructs an empty runner.
func NewRunner() *Runner {
	return &Runner{
		programs: make(map[clvm.Bytes32]Program),
		Cost:     DefaultCost,
	}
}

// Handle registers the program for the mod hash.
func (r *Runner) Handle(modHash clvm.Bytes32, p Program) {
	r.programs[modHash] = p
}

// Run implements the driver.Runner interface. Cost is the fixed charge of
// a run plus whatever the interpreter spends.
func (r *Runner) Run(a *clvm.Allocator, puzzle clvm.NodePtr, solution clvm.NodePtr, maxCost uint64) (driver.Reduction, error) {
	r.Runs++

	if r.Cost > maxCost {
		return driver.Reduction{}, fmt.Errorf("cost[%d] max[%d]: %w", r.Cost, maxCost, driver.ErrCostExceeded)
	}

	out, cost, err := r.interpret(a, puzzle, solution, maxCost-r.Cost)
	if err != nil {
		return driver.Reduction{}, err
	}

	return driver.Reduction{Cost: r.Cost + cost, Result: out}, nil
}

// Raise builds the error a program returns when it fails an assertion.
func Raise(format string, args ...any) error {
	return &driver.RunError{Message: fmt.Sprintf(format, args...)}
}

// Standard mirrors the standard p2 puzzle for quoted delegated puzzles. It
// outputs the delegated conditions behind an AGG_SIG_ME of the synthetic key
// on the delegated puzzle hash.
func Standard(a *clvm.Allocator, args []clvm.NodePtr, solution clvm.NodePtr) (clvm.NodePtr, error) {
	if len(args) != 1 {
		return clvm.Nil, Raise("standard: args[%d]", len(args))
	}

	items, _, err := a.Items(solution, 3)
	if err != nil {
		return clvm.Nil, Raise("standard: solution: %v", err)
	}

	conds, err := Quoted(a, items[1])
	if err != nil {
		return clvm.Nil, err
	}

	msg := a.TreeHash(items[1])
	sig := a.List(a.NewInt64(int64(driver.OpAggSigMe)), args[0], a.NewBytes32(msg))

	return a.Cons(sig, conds), nil
}

// Quoted returns the value of a quoted delegated puzzle.
func Quoted(a *clvm.Allocator, n clvm.NodePtr) (clvm.NodePtr, error) {
	first, rest, ok := a.Pair(n)
	if !ok || !a.Equal(first, clvm.One) {
		return clvm.Nil, Raise("puzzle is not quoted")
	}
	return rest, nil
}
