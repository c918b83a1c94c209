// Package layers implements the puzzle layers assets are built from. Each
// layer constructs its puzzle and solution, and parses them back, failing
// closed when a mod hash does not match.
package layers

import (
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// SingletonStruct is the (mod_hash . (launcher_id . launcher_puzzle_hash))
// value that identifies a singleton lineage.
type SingletonStruct struct {
	ModHash            clvm.Bytes32
	LauncherID         clvm.Bytes32
	LauncherPuzzleHash clvm.Bytes32
}

// NewSingletonStruct constructs the struct for a launcher id.
func NewSingletonStruct(lib puzzles.Library, launcherID clvm.Bytes32) SingletonStruct {
	return SingletonStruct{
		ModHash:            lib.MustHash(puzzles.Singleton),
		LauncherID:         launcherID,
		LauncherPuzzleHash: lib.MustHash(puzzles.SingletonLauncher),
	}
}

// ToClvm implements the driver.Encoder interface.
func (ss SingletonStruct) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.Cons(a.NewBytes32(ss.ModHash), a.Cons(a.NewBytes32(ss.LauncherID), a.NewBytes32(ss.LauncherPuzzleHash))), nil
}

// FromClvm implements the clvm.Value interface.
func (SingletonStruct) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (SingletonStruct, error) {
	modHash, rest, ok := a.Pair(n)
	if !ok {
		return SingletonStruct{}, fmt.Errorf("singleton struct: %w", clvm.ErrPairExpected)
	}

	launcherID, launcherPH, ok := a.Pair(rest)
	if !ok {
		return SingletonStruct{}, fmt.Errorf("singleton struct: %w", clvm.ErrPairExpected)
	}

	var ss SingletonStruct
	var err error
	if ss.ModHash, err = a.Bytes32(modHash); err != nil {
		return SingletonStruct{}, err
	}
	if ss.LauncherID, err = a.Bytes32(launcherID); err != nil {
		return SingletonStruct{}, err
	}
	if ss.LauncherPuzzleHash, err = a.Bytes32(launcherPH); err != nil {
		return SingletonStruct{}, err
	}

	return ss, nil
}

// Hash returns the tree hash of the struct.
func (ss SingletonStruct) Hash() clvm.Bytes32 {
	return clvm.TreeHashPair(clvm.TreeHashAtom(ss.ModHash[:]), clvm.TreeHashPair(clvm.TreeHashAtom(ss.LauncherID[:]), clvm.TreeHashAtom(ss.LauncherPuzzleHash[:])))
}

// SingletonPuzzleHash returns the full puzzle hash of a singleton with the
// specified inner puzzle hash.
func SingletonPuzzleHash(lib puzzles.Library, launcherID clvm.Bytes32, innerPuzzleHash clvm.Bytes32) clvm.Bytes32 {
	ss := NewSingletonStruct(lib, launcherID)
	return clvm.CurryTreeHash(ss.ModHash, ss.Hash(), innerPuzzleHash)
}

// =============================================================================

// SingletonLayer wraps an inner puzzle so exactly one coin of the lineage
// exists at a time.
type SingletonLayer struct {
	LauncherID  clvm.Bytes32
	InnerPuzzle driver.Layer
}

// SingletonSolution is the solution of the singleton layer.
type SingletonSolution struct {
	LineageProof  database.Proof
	Amount        uint64
	InnerSolution clvm.NodePtr
}

// ConstructPuzzle implements the driver.Layer interface.
func (l SingletonLayer) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	inner, err := l.InnerPuzzle.ConstructPuzzle(ctx)
	if err != nil {
		return clvm.Nil, err
	}

	ss, err := NewSingletonStruct(ctx.Library(), l.LauncherID).ToClvm(ctx.Allocator)
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Curry(puzzles.Singleton, ss, inner)
}

// ConstructSolution implements the driver.SolutionLayer interface.
func (l SingletonLayer) ConstructSolution(ctx *driver.SpendContext, sol SingletonSolution) (clvm.NodePtr, error) {
	proof, err := sol.LineageProof.ToClvm(ctx.Allocator)
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.List(proof, ctx.NewUint64(sol.Amount), sol.InnerSolution), nil
}

// ParseSingletonLayer parses a singleton puzzle. The inner puzzle is left
// as a driver.Puzzle for the caller to parse further.
func ParseSingletonLayer(ctx *driver.SpendContext, p driver.Puzzle) (SingletonLayer, bool, error) {
	if ok, err := p.Expect(ctx, puzzles.Singleton, 2); !ok {
		return SingletonLayer{}, false, err
	}

	ss, err := clvm.Decode[SingletonStruct](ctx.Allocator, p.Args[0])
	if err != nil {
		return SingletonLayer{}, false, driver.NonStandard("singleton", err)
	}

	if ss.ModHash != ctx.Library().MustHash(puzzles.Singleton) || ss.LauncherPuzzleHash != ctx.Library().MustHash(puzzles.SingletonLauncher) {
		return SingletonLayer{}, false, driver.NonStandard("singleton", nil)
	}

	l := SingletonLayer{
		LauncherID:  ss.LauncherID,
		InnerPuzzle: driver.ParsePuzzle(ctx.Allocator, p.Args[1]),
	}

	return l, true, nil
}

// ParseSingletonSolution parses a singleton solution.
func ParseSingletonSolution(a *clvm.Allocator, n clvm.NodePtr) (SingletonSolution, error) {
	items, _, err := a.Items(n, 3)
	if err != nil {
		return SingletonSolution{}, driver.NonStandard("singleton solution", err)
	}

	proof, err := clvm.Decode[database.Proof](a, items[0])
	if err != nil {
		return SingletonSolution{}, driver.NonStandard("singleton solution", err)
	}

	amount, err := a.Uint64(items[1])
	if err != nil {
		return SingletonSolution{}, driver.NonStandard("singleton solution", err)
	}

	return SingletonSolution{LineageProof: proof, Amount: amount, InnerSolution: items[2]}, nil
}

// =============================================================================

// Singleton is a live singleton coin and what is needed to spend it.
type Singleton struct {
	Coin            database.Coin
	LauncherID      clvm.Bytes32
	Proof           database.Proof
	InnerPuzzleHash clvm.Bytes32
}

// Spend wraps the inner spend in the singleton layer and records the coin
// spend in the context.
func (s Singleton) Spend(ctx *driver.SpendContext, inner driver.Spend) error {
	layer := SingletonLayer{LauncherID: s.LauncherID, InnerPuzzle: driver.ParsePuzzle(ctx.Allocator, inner.Puzzle)}

	spend, err := driver.ConstructSpend[SingletonSolution](ctx, layer, SingletonSolution{
		LineageProof:  s.Proof,
		Amount:        s.Coin.Amount,
		InnerSolution: inner.Solution,
	})
	if err != nil {
		return err
	}

	return ctx.Spend(s.Coin, spend)
}

// Child returns the singleton the coin recreates with the new inner puzzle
// hash.
func (s Singleton) Child(lib puzzles.Library, innerPuzzleHash clvm.Bytes32, amount uint64) Singleton {
	return Singleton{
		Coin:       s.Coin.Child(SingletonPuzzleHash(lib, s.LauncherID, innerPuzzleHash), amount),
		LauncherID: s.LauncherID,
		Proof: database.LineageOf(database.LineageProof{
			ParentParentCoinInfo:  s.Coin.ParentCoinInfo,
			ParentInnerPuzzleHash: s.InnerPuzzleHash,
			ParentAmount:          s.Coin.Amount,
		}),
		InnerPuzzleHash: innerPuzzleHash,
	}
}

// =============================================================================

// Launcher is the coin that starts a singleton lineage. Its coin id is the
// launcher id.
type Launcher struct {
	Coin database.Coin
}

// NewLauncher returns the launcher created by the parent coin and the
// condition the parent must emit to create it.
func NewLauncher(lib puzzles.Library, parentCoinID clvm.Bytes32, amount uint64) (Launcher, driver.CreateCoin) {
	launcherPH := lib.MustHash(puzzles.SingletonLauncher)
	l := Launcher{Coin: database.NewCoin(parentCoinID, launcherPH, amount)}

	return l, driver.NewCreateCoin(launcherPH, amount)
}

// Spend spends the launcher into the eve singleton with the inner puzzle
// hash. It returns the eve singleton and the announcement assertion the
// parent must emit.
func (l Launcher) Spend(ctx *driver.SpendContext, innerPuzzleHash clvm.Bytes32, keyValues clvm.NodePtr) (Singleton, driver.Condition, error) {
	launcherID := l.Coin.CoinID()
	fullPH := SingletonPuzzleHash(ctx.Library(), launcherID, innerPuzzleHash)

	puzzle, err := ctx.Puzzle(puzzles.SingletonLauncher)
	if err != nil {
		return Singleton{}, nil, err
	}

	solution := ctx.List(ctx.NewBytes32(fullPH), ctx.NewUint64(l.Coin.Amount), keyValues)
	if err := ctx.Spend(l.Coin, driver.NewSpend(puzzle, solution)); err != nil {
		return Singleton{}, nil, err
	}

	eve := Singleton{
		Coin:       l.Coin.Child(fullPH, l.Coin.Amount),
		LauncherID: launcherID,
		Proof: database.EveOf(database.EveProof{
			ParentParentCoinInfo: l.Coin.ParentCoinInfo,
			ParentAmount:         l.Coin.Amount,
		}),
		InnerPuzzleHash: innerPuzzleHash,
	}

	message := ctx.TreeHash(solution)
	assert := driver.Assert{Code: driver.OpAssertCoinAnnouncement, Hash: AnnouncementID(launcherID, message[:])}

	ctx.Event("layers: launch: launcher[%s] inner[%s]", launcherID, innerPuzzleHash)

	return eve, assert, nil
}
