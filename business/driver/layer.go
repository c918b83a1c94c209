package driver

import (
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Layer interface represents the behavior every puzzle kind provides to
// build its puzzle. Layers nest, an outer layer curries in the puzzle
// built by the layer below it.
type Layer interface {
	ConstructPuzzle(ctx *SpendContext) (clvm.NodePtr, error)
}

// SolutionLayer is a layer that also knows how to build its solution.
type SolutionLayer[S any] interface {
	Layer
	ConstructSolution(ctx *SpendContext, solution S) (clvm.NodePtr, error)
}

// ConstructSpend builds the puzzle and solution of a layer.
func ConstructSpend[S any](ctx *SpendContext, layer SolutionLayer[S], solution S) (Spend, error) {
	puzzle, err := layer.ConstructPuzzle(ctx)
	if err != nil {
		return Spend{}, err
	}

	sol, err := layer.ConstructSolution(ctx, solution)
	if err != nil {
		return Spend{}, err
	}

	return NewSpend(puzzle, sol), nil
}

// Parser parses a puzzle as the layer L. It returns false without an error
// when the puzzle is some other layer and an error when it is L but does
// not follow the layer's rules. Every layer pairs its ConstructPuzzle with
// a Parser, which is a function since there is no value to call it on
// before the puzzle is parsed.
type Parser[L Layer] func(ctx *SpendContext, p Puzzle) (L, bool, error)

// SolutionParser decodes the solution a layer constructs.
type SolutionParser[S any] func(a *clvm.Allocator, n clvm.NodePtr) (S, error)

// Reparse builds the layer and parses it back with the parser. It reports
// ErrNonStandardLayer when the parser does not recognize what the layer
// built.
func Reparse[L Layer](ctx *SpendContext, layer L, parse Parser[L]) (L, error) {
	n, err := layer.ConstructPuzzle(ctx)
	if err != nil {
		var zero L
		return zero, err
	}

	got, ok, err := parse(ctx, ParsePuzzle(ctx.Allocator, n))
	switch {
	case err != nil:
		var zero L
		return zero, err
	case !ok:
		var zero L
		return zero, NonStandard("reparse", nil)
	}

	return got, nil
}

// PuzzleHash builds the layer and returns the tree hash of its puzzle.
func PuzzleHash(ctx *SpendContext, layer Layer) (clvm.Bytes32, error) {
	n, err := layer.ConstructPuzzle(ctx)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	return ctx.TreeHash(n), nil
}

// =============================================================================

// Puzzle is a parsed view of a puzzle node. A curried puzzle exposes the
// program it curries and the arguments. Puzzle is itself a layer so an
// unparsed inner puzzle can be carried through an outer layer untouched.
type Puzzle struct {
	Ptr     clvm.NodePtr
	Hash    clvm.Bytes32
	Curried bool
	Mod     clvm.NodePtr
	ModHash clvm.Bytes32
	Args    []clvm.NodePtr
}

// ParsePuzzle probes the node for the curry shape.
func ParsePuzzle(a *clvm.Allocator, n clvm.NodePtr) Puzzle {
	p := Puzzle{
		Ptr:  n,
		Hash: a.TreeHash(n),
	}

	mod, args, ok := a.Uncurry(n)
	if !ok {
		p.Mod = n
		p.ModHash = p.Hash
		return p
	}

	p.Curried = true
	p.Mod = mod
	p.ModHash = a.TreeHash(mod)
	p.Args = args

	return p
}

// ConstructPuzzle implements the Layer interface.
func (p Puzzle) ConstructPuzzle(ctx *SpendContext) (clvm.NodePtr, error) {
	return p.Ptr, nil
}

// Is reports if the puzzle is the named program curried.
func (p Puzzle) Is(ctx *SpendContext, name puzzles.Name) bool {
	if !p.Curried {
		return false
	}

	hash, err := ctx.ModHash(name)
	if err != nil {
		return false
	}

	return p.ModHash == hash
}

// Expect checks the puzzle is the named program curried with the expected
// number of arguments. It returns false without an error when the mod hash
// does not match, so callers can probe several layers in turn.
func (p Puzzle) Expect(ctx *SpendContext, name puzzles.Name, args int) (bool, error) {
	if !p.Is(ctx, name) {
		return false, nil
	}

	if len(p.Args) != args {
		return false, WrongArgCount(string(name), len(p.Args), args)
	}

	return true, nil
}
