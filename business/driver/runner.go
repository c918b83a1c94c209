package driver

import (
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// DefaultMaxCost is the cost ceiling of a single block.
const DefaultMaxCost uint64 = 11_000_000_000

// Reduction is the result of running a puzzle against a solution.
type Reduction struct {
	Cost   uint64
	Result clvm.NodePtr
}

// Runner interface represents the behavior required to be implemented by
// any package able to execute a puzzle against a solution. Implementations
// return ErrCostExceeded when the ceiling is hit and a *RunError when the
// program raises.
type Runner interface {
	Run(a *clvm.Allocator, puzzle clvm.NodePtr, solution clvm.NodePtr, maxCost uint64) (Reduction, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(a *clvm.Allocator, puzzle clvm.NodePtr, solution clvm.NodePtr, maxCost uint64) (Reduction, error)

// Run implements the Runner interface.
func (f RunnerFunc) Run(a *clvm.Allocator, puzzle clvm.NodePtr, solution clvm.NodePtr, maxCost uint64) (Reduction, error) {
	return f(a, puzzle, solution, maxCost)
}
