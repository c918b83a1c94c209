package actionlayer

import (
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Reserve is the CAT that holds the assets of a registry. Only the
// registry singleton can spend it, through a delegated puzzle it approves
// with a message.
type Reserve struct {
	Coin         database.Coin
	LineageProof *database.LineageProof
	AssetID      clvm.Bytes32
	LauncherID   clvm.Bytes32
	Nonce        uint64
}

// NewReserve returns the reserve the coin with the parent id holds.
func NewReserve(lib puzzles.Library, parentCoinID clvm.Bytes32, proof *database.LineageProof, assetID clvm.Bytes32, launcherID clvm.Bytes32, nonce uint64, amount uint64) Reserve {
	r := Reserve{
		LineageProof: proof,
		AssetID:      assetID,
		LauncherID:   launcherID,
		Nonce:        nonce,
	}
	r.Coin = database.NewCoin(parentCoinID, r.PuzzleHash(lib), amount)

	return r
}

// InnerPuzzleHash returns the puzzle hash inside the CAT layer.
func (r Reserve) InnerPuzzleHash(lib puzzles.Library) clvm.Bytes32 {
	return r.inner().PuzzleHash(lib)
}

// PuzzleHash returns the full puzzle hash of the reserve.
func (r Reserve) PuzzleHash(lib puzzles.Library) clvm.Bytes32 {
	return layers.CatPuzzleHash(lib, r.AssetID, r.InnerPuzzleHash(lib))
}

// Finalizer returns the reserve finalizer that recreates this reserve.
func (r Reserve) Finalizer(lib puzzles.Library, amountProgram []byte, hint clvm.Bytes32) ReserveFinalizer {
	return ReserveFinalizer{
		ReserveFullPuzzleHash:  r.PuzzleHash(lib),
		ReserveInnerPuzzleHash: r.InnerPuzzleHash(lib),
		AmountProgram:          amountProgram,
		Hint:                   hint,
	}
}

// Spend spends the reserve with the delegated puzzle the registry approved.
// The reserve is alone in its CAT ring.
func (r Reserve) Spend(ctx *driver.SpendContext, registryInnerPuzzleHash clvm.Bytes32, delegatedPuzzle clvm.NodePtr) error {
	inner, err := driver.ConstructSpend[layers.P2DelegatedBySingletonSolution](ctx, r.inner(), layers.P2DelegatedBySingletonSolution{
		SingletonInnerPuzzleHash: registryInnerPuzzleHash,
		Delegated:                driver.NewSpend(delegatedPuzzle, clvm.Nil),
	})
	if err != nil {
		return err
	}

	cat := layers.Cat{
		Coin:         r.Coin,
		LineageProof: r.LineageProof,
		AssetID:      r.AssetID,
		P2PuzzleHash: r.InnerPuzzleHash(ctx.Library()),
	}

	return cat.SpendAlone(ctx, inner)
}

// Child returns the reserve recreated with the amount.
func (r Reserve) Child(lib puzzles.Library, amount uint64) Reserve {
	child := NewReserve(lib, r.Coin.CoinID(), &database.LineageProof{
		ParentParentCoinInfo:  r.Coin.ParentCoinInfo,
		ParentInnerPuzzleHash: r.InnerPuzzleHash(lib),
		ParentAmount:          r.Coin.Amount,
	}, r.AssetID, r.LauncherID, r.Nonce, amount)

	return child
}

func (r Reserve) inner() layers.P2DelegatedBySingletonLayer {
	return layers.P2DelegatedBySingletonLayer{LauncherID: r.LauncherID, Nonce: r.Nonce}
}
