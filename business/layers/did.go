package layers

import (
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// didSpendMode selects the normal spend path of the DID inner puzzle.
const didSpendMode = 1

// DidLayer is the DID inner puzzle. It wraps the p2 puzzle and commits to
// the recovery list, the metadata and the singleton struct.
type DidLayer struct {
	LauncherID       clvm.Bytes32
	RecoveryListHash *clvm.Bytes32
	NumVerifications uint64
	Metadata         clvm.NodePtr
	InnerPuzzle      driver.Layer
}

// ConstructPuzzle implements the driver.Layer interface.
func (l DidLayer) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	inner, err := l.InnerPuzzle.ConstructPuzzle(ctx)
	if err != nil {
		return clvm.Nil, err
	}

	ss, err := NewSingletonStruct(ctx.Library(), l.LauncherID).ToClvm(ctx.Allocator)
	if err != nil {
		return clvm.Nil, err
	}

	recovery := clvm.Nil
	if l.RecoveryListHash != nil {
		recovery = ctx.NewBytes32(*l.RecoveryListHash)
	}

	return ctx.Curry(puzzles.DidInnerPuzzle, inner, recovery, ctx.NewUint64(l.NumVerifications), ss, l.Metadata)
}

// ConstructSolution implements the driver.SolutionLayer interface.
func (l DidLayer) ConstructSolution(ctx *driver.SpendContext, innerSolution clvm.NodePtr) (clvm.NodePtr, error) {
	return ctx.List(ctx.NewUint64(didSpendMode), innerSolution), nil
}

// ParseDidLayer parses a DID inner puzzle.
func ParseDidLayer(ctx *driver.SpendContext, p driver.Puzzle) (DidLayer, bool, error) {
	if ok, err := p.Expect(ctx, puzzles.DidInnerPuzzle, 5); !ok {
		return DidLayer{}, false, err
	}

	var recovery *clvm.Bytes32
	if !ctx.IsNil(p.Args[1]) {
		h, err := ctx.Bytes32(p.Args[1])
		if err != nil {
			return DidLayer{}, false, driver.NonStandard("did", err)
		}
		recovery = &h
	}

	num, err := ctx.Uint64(p.Args[2])
	if err != nil {
		return DidLayer{}, false, driver.NonStandard("did", err)
	}

	ss, err := clvm.Decode[SingletonStruct](ctx.Allocator, p.Args[3])
	if err != nil {
		return DidLayer{}, false, driver.NonStandard("did", err)
	}

	l := DidLayer{
		LauncherID:       ss.LauncherID,
		RecoveryListHash: recovery,
		NumVerifications: num,
		Metadata:         p.Args[4],
		InnerPuzzle:      driver.ParsePuzzle(ctx.Allocator, p.Args[0]),
	}

	return l, true, nil
}

// ParseDidSolution parses the (mode inner_solution) DID solution.
func ParseDidSolution(a *clvm.Allocator, n clvm.NodePtr) (clvm.NodePtr, error) {
	items, _, err := a.Items(n, 2)
	if err != nil {
		return clvm.Nil, driver.NonStandard("did solution", err)
	}

	mode, err := a.Uint8(items[0])
	if err != nil || mode != didSpendMode {
		return clvm.Nil, driver.NonStandard("did solution", err)
	}

	return items[1], nil
}

// =============================================================================

// DidInfo is everything that determines a DID's puzzle hash.
type DidInfo struct {
	LauncherID       clvm.Bytes32
	RecoveryListHash *clvm.Bytes32
	NumVerifications uint64
	Metadata         []byte
	P2PuzzleHash     clvm.Bytes32
}

// InnerPuzzleHash returns the singleton inner puzzle hash of the DID.
func (info DidInfo) InnerPuzzleHash(lib puzzles.Library) (clvm.Bytes32, error) {
	a := clvm.NewAllocator()
	metadata, err := a.Deserialize(info.Metadata)
	if err != nil {
		return clvm.Bytes32{}, fmt.Errorf("did metadata: %w", err)
	}

	recovery := clvm.TreeHashAtom(nil)
	if info.RecoveryListHash != nil {
		recovery = clvm.TreeHashAtom(info.RecoveryListHash[:])
	}

	return clvm.CurryTreeHash(lib.MustHash(puzzles.DidInnerPuzzle),
		info.P2PuzzleHash,
		recovery,
		clvm.TreeHashAtom(clvm.EncodeUint64(info.NumVerifications)),
		NewSingletonStruct(lib, info.LauncherID).Hash(),
		a.TreeHash(metadata),
	), nil
}

// Did is a live DID coin.
type Did struct {
	Coin  database.Coin
	Proof database.Proof
	Info  DidInfo
}

// Spend wraps the p2 spend in the DID layer and the singleton.
func (did Did) Spend(ctx *driver.SpendContext, p2 driver.Spend) error {
	metadata, err := ctx.Deserialize(did.Info.Metadata)
	if err != nil {
		return fmt.Errorf("did metadata: %w", err)
	}

	layer := DidLayer{
		LauncherID:       did.Info.LauncherID,
		RecoveryListHash: did.Info.RecoveryListHash,
		NumVerifications: did.Info.NumVerifications,
		Metadata:         metadata,
		InnerPuzzle:      driver.ParsePuzzle(ctx.Allocator, p2.Puzzle),
	}

	inner, err := driver.ConstructSpend[clvm.NodePtr](ctx, layer, p2.Solution)
	if err != nil {
		return err
	}

	s := Singleton{Coin: did.Coin, LauncherID: did.Info.LauncherID, Proof: did.Proof, InnerPuzzleHash: ctx.TreeHash(inner.Puzzle)}
	return s.Spend(ctx, inner)
}

// Child returns the DID recreated with the child info.
func (did Did) Child(lib puzzles.Library, info DidInfo) (Did, error) {
	parentInner, err := did.Info.InnerPuzzleHash(lib)
	if err != nil {
		return Did{}, err
	}

	childInner, err := info.InnerPuzzleHash(lib)
	if err != nil {
		return Did{}, err
	}

	s := Singleton{Coin: did.Coin, LauncherID: did.Info.LauncherID, Proof: did.Proof, InnerPuzzleHash: parentInner}
	child := s.Child(lib, childInner, did.Coin.Amount)

	return Did{Coin: child.Coin, Proof: child.Proof, Info: info}, nil
}

// CreateDid launches a DID from the parent coin. It returns the eve DID and
// the conditions the parent must emit. The launcher id is filled into the
// info.
func CreateDid(ctx *driver.SpendContext, parentCoinID clvm.Bytes32, info DidInfo) (Did, driver.Conditions, error) {
	launcher, create := NewLauncher(ctx.Library(), parentCoinID, 1)
	info.LauncherID = launcher.Coin.CoinID()

	innerPH, err := info.InnerPuzzleHash(ctx.Library())
	if err != nil {
		return Did{}, nil, err
	}

	eve, assert, err := launcher.Spend(ctx, innerPH, clvm.Nil)
	if err != nil {
		return Did{}, nil, err
	}

	ctx.Event("layers: create did: launcher[%s]", info.LauncherID)

	return Did{Coin: eve.Coin, Proof: eve.Proof, Info: info}, driver.Conditions{create, assert}, nil
}
