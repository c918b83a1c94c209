package registry

import (
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// UniquenessPrelauncher is a zero amount coin the registry creates for a
// value. Its only job is to create a singleton launcher, so the launcher
// id is unique to the registry and the value.
type UniquenessPrelauncher struct {
	Coin  database.Coin
	Value clvm.Bytes32
}

// PrelauncherFirstCurryHash returns the hash of the prelauncher puzzle
// curried with the launcher puzzle hash.
func PrelauncherFirstCurryHash(lib puzzles.Library) clvm.Bytes32 {
	launcherPH := lib.MustHash(puzzles.SingletonLauncher)
	return clvm.CurryTreeHash(lib.MustHash(puzzles.UniquenessPrelauncher), clvm.TreeHashAtom(launcherPH[:]))
}

// NewUniquenessPrelauncher returns the prelauncher the parent creates for
// the value.
func NewUniquenessPrelauncher(lib puzzles.Library, parentCoinID clvm.Bytes32, value clvm.Bytes32) UniquenessPrelauncher {
	ph := clvm.CurryTreeHash(PrelauncherFirstCurryHash(lib), clvm.TreeHashAtom(value[:]))

	return UniquenessPrelauncher{
		Coin:  database.NewCoin(parentCoinID, ph, 0),
		Value: value,
	}
}

// ConstructPuzzle builds the prelauncher puzzle.
func (p UniquenessPrelauncher) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	first, err := ctx.Curry(puzzles.UniquenessPrelauncher, ctx.NewBytes32(ctx.Library().MustHash(puzzles.SingletonLauncher)))
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Allocator.Curry(first, ctx.NewBytes32(p.Value)), nil
}

// Spend spends the prelauncher and returns the launcher it creates.
func (p UniquenessPrelauncher) Spend(ctx *driver.SpendContext) (layers.Launcher, error) {
	puzzle, err := p.ConstructPuzzle(ctx)
	if err != nil {
		return layers.Launcher{}, err
	}

	if err := ctx.Spend(p.Coin, driver.NewSpend(puzzle, clvm.Nil)); err != nil {
		return layers.Launcher{}, err
	}

	launcher, _ := layers.NewLauncher(ctx.Library(), p.Coin.CoinID(), 1)
	return launcher, nil
}

// =============================================================================

// DefaultCatMakerHash returns the puzzle hash of the cat maker that wraps
// an inner puzzle hash in the CAT of the asset.
func DefaultCatMakerHash(lib puzzles.Library, assetID clvm.Bytes32) clvm.Bytes32 {
	tailHashHash := clvm.TreeHashAtom(assetID[:])
	return clvm.CurryTreeHash(lib.MustHash(puzzles.DefaultCatMaker), clvm.TreeHashAtom(tailHashHash[:]))
}

// DefaultCatMaker builds the cat maker for the asset.
func DefaultCatMaker(ctx *driver.SpendContext, assetID clvm.Bytes32) (clvm.NodePtr, error) {
	return ctx.Curry(puzzles.DefaultCatMaker, ctx.NewBytes32(clvm.TreeHashAtom(assetID[:])))
}
