package layers

import (
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// AugmentedConditionLayer adds a fixed condition to the output of its
// inner puzzle.
type AugmentedConditionLayer struct {
	Condition   driver.Condition
	InnerPuzzle driver.Layer
}

// ConstructPuzzle implements the driver.Layer interface.
func (l AugmentedConditionLayer) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	cond, err := l.Condition.ToClvm(ctx.Allocator)
	if err != nil {
		return clvm.Nil, err
	}

	inner, err := l.InnerPuzzle.ConstructPuzzle(ctx)
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Curry(puzzles.AugmentedCondition, cond, inner)
}

// ConstructSolution implements the driver.SolutionLayer interface.
func (l AugmentedConditionLayer) ConstructSolution(ctx *driver.SpendContext, innerSolution clvm.NodePtr) (clvm.NodePtr, error) {
	return ctx.List(innerSolution), nil
}

// ParseAugmentedConditionLayer parses an augmented condition puzzle.
func ParseAugmentedConditionLayer(ctx *driver.SpendContext, p driver.Puzzle) (AugmentedConditionLayer, bool, error) {
	if ok, err := p.Expect(ctx, puzzles.AugmentedCondition, 2); !ok {
		return AugmentedConditionLayer{}, false, err
	}

	cond, err := driver.ParseCondition(ctx.Allocator, p.Args[0])
	if err != nil {
		return AugmentedConditionLayer{}, false, driver.NonStandard("augmented condition", err)
	}

	l := AugmentedConditionLayer{
		Condition:   cond,
		InnerPuzzle: driver.ParsePuzzle(ctx.Allocator, p.Args[1]),
	}

	return l, true, nil
}

// ParseAugmentedConditionSolution returns the inner solution.
func ParseAugmentedConditionSolution(a *clvm.Allocator, n clvm.NodePtr) (clvm.NodePtr, error) {
	items, err := a.ListItems(n)
	if err != nil || len(items) != 1 {
		return clvm.Nil, driver.NonStandard("augmented condition solution", err)
	}
	return items[0], nil
}
