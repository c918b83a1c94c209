package layers

import (
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// StandardLayer is the standard p2 puzzle locked to a synthetic public key.
type StandardLayer struct {
	SyntheticKey []byte
}

// StandardPuzzleHash returns the puzzle hash of the standard puzzle for the
// synthetic key.
func StandardPuzzleHash(lib puzzles.Library, syntheticKey []byte) clvm.Bytes32 {
	return clvm.CurryTreeHash(lib.MustHash(puzzles.Standard), clvm.TreeHashAtom(syntheticKey))
}

// ConstructPuzzle implements the driver.Layer interface.
func (l StandardLayer) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	return ctx.Curry(puzzles.Standard, ctx.NewAtom(l.SyntheticKey))
}

// ConstructSolution implements the driver.SolutionLayer interface. The
// solution runs the delegated spend.
func (l StandardLayer) ConstructSolution(ctx *driver.SpendContext, delegated driver.Spend) (clvm.NodePtr, error) {
	return ctx.List(clvm.Nil, delegated.Puzzle, delegated.Solution), nil
}

// Spend builds the standard spend that outputs the conditions.
func (l StandardLayer) Spend(ctx *driver.SpendContext, conds driver.Conditions) (driver.Spend, error) {
	delegated, err := ctx.DelegatedSpend(conds)
	if err != nil {
		return driver.Spend{}, err
	}

	return driver.ConstructSpend[driver.Spend](ctx, l, delegated)
}

// ParseStandardLayer parses a standard puzzle.
func ParseStandardLayer(ctx *driver.SpendContext, p driver.Puzzle) (StandardLayer, bool, error) {
	if ok, err := p.Expect(ctx, puzzles.Standard, 1); !ok {
		return StandardLayer{}, false, err
	}

	key, err := ctx.Atom(p.Args[0])
	if err != nil {
		return StandardLayer{}, false, driver.NonStandard("standard", err)
	}

	return StandardLayer{SyntheticKey: append([]byte(nil), key...)}, true, nil
}

// ParseStandardSolution returns the delegated spend of a standard solution.
func ParseStandardSolution(a *clvm.Allocator, n clvm.NodePtr) (driver.Spend, error) {
	items, _, err := a.Items(n, 3)
	if err != nil {
		return driver.Spend{}, driver.NonStandard("standard solution", err)
	}

	return driver.NewSpend(items[1], items[2]), nil
}

// =============================================================================

// Payment is one output of a settlement payment.
type Payment struct {
	PuzzleHash clvm.Bytes32
	Amount     uint64
	Memos      [][]byte
}

// NotarizedPayment is a set of payments bound to a nonce, the nonce is
// usually the id of the coin the payment is offered against.
type NotarizedPayment struct {
	Nonce    clvm.Bytes32
	Payments []Payment
}

// ToClvm implements the driver.Encoder interface.
func (np NotarizedPayment) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	payments := make([]clvm.NodePtr, len(np.Payments))
	for i, p := range np.Payments {
		items := []clvm.NodePtr{a.NewBytes32(p.PuzzleHash), a.NewUint64(p.Amount)}
		if p.Memos != nil {
			memos := make([]clvm.NodePtr, len(p.Memos))
			for j, m := range p.Memos {
				memos[j] = a.NewAtom(m)
			}
			items = append(items, a.List(memos...))
		}
		payments[i] = a.List(items...)
	}

	return a.Cons(a.NewBytes32(np.Nonce), a.List(payments...)), nil
}

// FromClvm implements the clvm.Value interface.
func (NotarizedPayment) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (NotarizedPayment, error) {
	nonce, rest, ok := a.Pair(n)
	if !ok {
		return NotarizedPayment{}, driver.NonStandard("notarized payment", clvm.ErrPairExpected)
	}

	var np NotarizedPayment
	var err error
	if np.Nonce, err = a.Bytes32(nonce); err != nil {
		return NotarizedPayment{}, driver.NonStandard("notarized payment", err)
	}

	items, err := a.ListItems(rest)
	if err != nil {
		return NotarizedPayment{}, driver.NonStandard("notarized payment", err)
	}

	for _, item := range items {
		fields, err := a.ListItems(item)
		if err != nil || len(fields) < 2 {
			return NotarizedPayment{}, driver.NonStandard("payment", err)
		}

		var p Payment
		if p.PuzzleHash, err = a.Bytes32(fields[0]); err != nil {
			return NotarizedPayment{}, driver.NonStandard("payment", err)
		}
		if p.Amount, err = a.Uint64(fields[1]); err != nil {
			return NotarizedPayment{}, driver.NonStandard("payment", err)
		}
		if len(fields) > 2 {
			memos, err := a.ListItems(fields[2])
			if err != nil {
				return NotarizedPayment{}, driver.NonStandard("payment memos", err)
			}
			p.Memos = make([][]byte, 0, len(memos))
			for _, m := range memos {
				b, err := a.Atom(m)
				if err != nil {
					return NotarizedPayment{}, driver.NonStandard("payment memo", err)
				}
				p.Memos = append(p.Memos, append([]byte(nil), b...))
			}
		}
		np.Payments = append(np.Payments, p)
	}

	return np, nil
}

// SettlementLayer is the settlement payments puzzle offers pay into. Any
// spender may spend it as long as the notarized payments are announced.
type SettlementLayer struct{}

// ConstructPuzzle implements the driver.Layer interface.
func (SettlementLayer) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	return ctx.Puzzle(puzzles.SettlementPayment)
}

// ConstructSolution implements the driver.SolutionLayer interface.
func (SettlementLayer) ConstructSolution(ctx *driver.SpendContext, payments []NotarizedPayment) (clvm.NodePtr, error) {
	nodes := make([]clvm.NodePtr, len(payments))
	for i, np := range payments {
		n, err := np.ToClvm(ctx.Allocator)
		if err != nil {
			return clvm.Nil, err
		}
		nodes[i] = n
	}

	return ctx.List(nodes...), nil
}

// ParseSettlementSolution parses the notarized payments of a settlement
// solution.
func ParseSettlementSolution(a *clvm.Allocator, n clvm.NodePtr) ([]NotarizedPayment, error) {
	items, err := a.ListItems(n)
	if err != nil {
		return nil, driver.NonStandard("settlement solution", err)
	}

	out := make([]NotarizedPayment, len(items))
	for i, item := range items {
		if out[i], err = clvm.Decode[NotarizedPayment](a, item); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// SettlementAnnouncement returns the puzzle announcement id the settlement
// coin makes for a notarized payment.
func SettlementAnnouncement(a *clvm.Allocator, lib puzzles.Library, np NotarizedPayment) (clvm.Bytes32, error) {
	n, err := np.ToClvm(a)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	message := a.TreeHash(n)
	return AnnouncementID(lib.MustHash(puzzles.SettlementPayment), message[:]), nil
}

// =============================================================================

// OptionContractLayer locks an option singleton's inner puzzle to the
// underlying coin it can exercise.
type OptionContractLayer struct {
	UnderlyingCoinID              clvm.Bytes32
	UnderlyingDelegatedPuzzleHash clvm.Bytes32
	InnerPuzzle                   driver.Layer
}

// ConstructPuzzle implements the driver.Layer interface.
func (l OptionContractLayer) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	inner, err := l.InnerPuzzle.ConstructPuzzle(ctx)
	if err != nil {
		return clvm.Nil, err
	}

	modHash, err := ctx.ModHash(puzzles.OptionContract)
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Curry(puzzles.OptionContract, ctx.NewBytes32(modHash), ctx.NewBytes32(l.UnderlyingCoinID), ctx.NewBytes32(l.UnderlyingDelegatedPuzzleHash), inner)
}

// ConstructSolution implements the driver.SolutionLayer interface.
func (l OptionContractLayer) ConstructSolution(ctx *driver.SpendContext, innerSolution clvm.NodePtr) (clvm.NodePtr, error) {
	return ctx.List(innerSolution), nil
}

// ParseOptionContractLayer parses an option contract puzzle.
func ParseOptionContractLayer(ctx *driver.SpendContext, p driver.Puzzle) (OptionContractLayer, bool, error) {
	if ok, err := p.Expect(ctx, puzzles.OptionContract, 4); !ok {
		return OptionContractLayer{}, false, err
	}

	if modHash, err := ctx.Bytes32(p.Args[0]); err != nil || modHash != p.ModHash {
		return OptionContractLayer{}, false, driver.NonStandard("option contract", err)
	}

	coinID, err := ctx.Bytes32(p.Args[1])
	if err != nil {
		return OptionContractLayer{}, false, driver.NonStandard("option contract", err)
	}

	delegated, err := ctx.Bytes32(p.Args[2])
	if err != nil {
		return OptionContractLayer{}, false, driver.NonStandard("option contract", err)
	}

	l := OptionContractLayer{
		UnderlyingCoinID:              coinID,
		UnderlyingDelegatedPuzzleHash: delegated,
		InnerPuzzle:                   driver.ParsePuzzle(ctx.Allocator, p.Args[3]),
	}

	return l, true, nil
}

// =============================================================================

// P2DelegatedBySingletonLayer locks a coin to delegated puzzles approved by
// a singleton in the same block. Registries use it for their reserves.
type P2DelegatedBySingletonLayer struct {
	LauncherID clvm.Bytes32
	Nonce      uint64
}

// P2DelegatedBySingletonSolution is the solution of the layer.
type P2DelegatedBySingletonSolution struct {
	SingletonInnerPuzzleHash clvm.Bytes32
	Delegated                driver.Spend
}

// PuzzleHash returns the puzzle hash of the layer without building it.
func (l P2DelegatedBySingletonLayer) PuzzleHash(lib puzzles.Library) clvm.Bytes32 {
	singletonMod := lib.MustHash(puzzles.Singleton)
	return clvm.CurryTreeHash(lib.MustHash(puzzles.P2DelegatedBySingleton),
		clvm.TreeHashAtom(singletonMod[:]),
		clvm.TreeHashAtom(l.structHash(lib)),
		clvm.TreeHashAtom(clvm.EncodeUint64(l.Nonce)),
	)
}

// ConstructPuzzle implements the driver.Layer interface.
func (l P2DelegatedBySingletonLayer) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	singletonMod, err := ctx.ModHash(puzzles.Singleton)
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Curry(puzzles.P2DelegatedBySingleton, ctx.NewBytes32(singletonMod), ctx.NewAtom(l.structHash(ctx.Library())), ctx.NewUint64(l.Nonce))
}

// ConstructSolution implements the driver.SolutionLayer interface.
func (l P2DelegatedBySingletonLayer) ConstructSolution(ctx *driver.SpendContext, sol P2DelegatedBySingletonSolution) (clvm.NodePtr, error) {
	return ctx.List(ctx.NewBytes32(sol.SingletonInnerPuzzleHash), sol.Delegated.Puzzle, sol.Delegated.Solution), nil
}

// ParseP2DelegatedBySingletonSolution parses the layer solution.
func ParseP2DelegatedBySingletonSolution(a *clvm.Allocator, n clvm.NodePtr) (P2DelegatedBySingletonSolution, error) {
	items, _, err := a.Items(n, 3)
	if err != nil {
		return P2DelegatedBySingletonSolution{}, driver.NonStandard("p2 delegated by singleton solution", err)
	}

	ph, err := a.Bytes32(items[0])
	if err != nil {
		return P2DelegatedBySingletonSolution{}, driver.NonStandard("p2 delegated by singleton solution", err)
	}

	return P2DelegatedBySingletonSolution{SingletonInnerPuzzleHash: ph, Delegated: driver.NewSpend(items[1], items[2])}, nil
}

// DelegatedMessage returns the message the singleton must send for the
// delegated puzzle to run.
func (l P2DelegatedBySingletonLayer) DelegatedMessage(a *clvm.Allocator, delegatedPuzzle clvm.NodePtr) []byte {
	h := a.TreeHash(delegatedPuzzle)
	return h[:]
}

func (l P2DelegatedBySingletonLayer) structHash(lib puzzles.Library) []byte {
	h := NewSingletonStruct(lib, l.LauncherID).Hash()
	return h[:]
}
