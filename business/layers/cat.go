package layers

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// ErrEmptyRing is returned when no CAT spends are supplied.
var ErrEmptyRing = errors.New("no cat spends in ring")

// CatPuzzleHash returns the full puzzle hash of a CAT with the inner puzzle
// hash.
func CatPuzzleHash(lib puzzles.Library, assetID clvm.Bytes32, innerPuzzleHash clvm.Bytes32) clvm.Bytes32 {
	modHash := lib.MustHash(puzzles.Cat)
	return clvm.CurryTreeHash(modHash, clvm.TreeHashAtom(modHash[:]), clvm.TreeHashAtom(assetID[:]), innerPuzzleHash)
}

// CatLayer locks an inner puzzle to a fungible asset id.
type CatLayer struct {
	AssetID     clvm.Bytes32
	InnerPuzzle driver.Layer
}

// CoinProof is the (parent inner_puzzle_hash amount) of a ring neighbor.
type CoinProof struct {
	ParentCoinInfo  clvm.Bytes32
	InnerPuzzleHash clvm.Bytes32
	Amount          uint64
}

// CatSolution is the solution of the CAT layer. A nil LineageProof is
// used by the eve spend that runs a TAIL.
type CatSolution struct {
	InnerSolution clvm.NodePtr
	LineageProof  *database.LineageProof
	PrevCoinID    clvm.Bytes32
	ThisCoinInfo  database.Coin
	NextCoinProof CoinProof
	PrevSubtotal  int64
	ExtraDelta    int64
}

// ConstructPuzzle implements the driver.Layer interface.
func (l CatLayer) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	inner, err := l.InnerPuzzle.ConstructPuzzle(ctx)
	if err != nil {
		return clvm.Nil, err
	}

	modHash, err := ctx.ModHash(puzzles.Cat)
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Curry(puzzles.Cat, ctx.NewBytes32(modHash), ctx.NewBytes32(l.AssetID), inner)
}

// ConstructSolution implements the driver.SolutionLayer interface.
func (l CatLayer) ConstructSolution(ctx *driver.SpendContext, sol CatSolution) (clvm.NodePtr, error) {
	lineage := clvm.Nil
	if sol.LineageProof != nil {
		var err error
		lineage, err = database.LineageOf(*sol.LineageProof).ToClvm(ctx.Allocator)
		if err != nil {
			return clvm.Nil, err
		}
	}

	this, err := sol.ThisCoinInfo.ToClvm(ctx.Allocator)
	if err != nil {
		return clvm.Nil, err
	}

	next := ctx.List(ctx.NewBytes32(sol.NextCoinProof.ParentCoinInfo), ctx.NewBytes32(sol.NextCoinProof.InnerPuzzleHash), ctx.NewUint64(sol.NextCoinProof.Amount))

	return ctx.List(
		sol.InnerSolution,
		lineage,
		ctx.NewBytes32(sol.PrevCoinID),
		this,
		next,
		ctx.NewInt64(sol.PrevSubtotal),
		ctx.NewInt64(sol.ExtraDelta),
	), nil
}

// ParseCatLayer parses a CAT puzzle.
func ParseCatLayer(ctx *driver.SpendContext, p driver.Puzzle) (CatLayer, bool, error) {
	if ok, err := p.Expect(ctx, puzzles.Cat, 3); !ok {
		return CatLayer{}, false, err
	}

	modHash, err := ctx.Bytes32(p.Args[0])
	if err != nil || modHash != p.ModHash {
		return CatLayer{}, false, driver.NonStandard("cat", err)
	}

	assetID, err := ctx.Bytes32(p.Args[1])
	if err != nil {
		return CatLayer{}, false, driver.NonStandard("cat", err)
	}

	return CatLayer{AssetID: assetID, InnerPuzzle: driver.ParsePuzzle(ctx.Allocator, p.Args[2])}, true, nil
}

// ParseCatSolution parses a CAT solution.
func ParseCatSolution(a *clvm.Allocator, n clvm.NodePtr) (CatSolution, error) {
	items, _, err := a.Items(n, 7)
	if err != nil {
		return CatSolution{}, driver.NonStandard("cat solution", err)
	}

	sol := CatSolution{InnerSolution: items[0]}

	if !a.IsNil(items[1]) {
		proof, err := clvm.Decode[database.Proof](a, items[1])
		if err != nil || proof.Lineage == nil {
			return CatSolution{}, driver.NonStandard("cat lineage proof", err)
		}
		sol.LineageProof = proof.Lineage
	}

	if sol.PrevCoinID, err = a.Bytes32(items[2]); err != nil {
		return CatSolution{}, driver.NonStandard("cat prev coin id", err)
	}

	if sol.ThisCoinInfo, err = clvm.Decode[database.Coin](a, items[3]); err != nil {
		return CatSolution{}, driver.NonStandard("cat this coin", err)
	}

	next, err := clvm.Decode[database.Coin](a, items[4])
	if err != nil {
		return CatSolution{}, driver.NonStandard("cat next coin proof", err)
	}
	sol.NextCoinProof = CoinProof{ParentCoinInfo: next.ParentCoinInfo, InnerPuzzleHash: next.PuzzleHash, Amount: next.Amount}

	if sol.PrevSubtotal, err = a.Int64(items[5]); err != nil {
		return CatSolution{}, driver.NonStandard("cat prev subtotal", err)
	}

	if sol.ExtraDelta, err = a.Int64(items[6]); err != nil {
		return CatSolution{}, driver.NonStandard("cat extra delta", err)
	}

	return sol, nil
}

// =============================================================================

// Cat is a CAT coin and what is needed to spend it.
type Cat struct {
	Coin         database.Coin
	LineageProof *database.LineageProof
	AssetID      clvm.Bytes32
	P2PuzzleHash clvm.Bytes32
}

// Child returns the CAT the coin creates with a CREATE_COIN to the inner
// puzzle hash.
func (c Cat) Child(lib puzzles.Library, p2PuzzleHash clvm.Bytes32, amount uint64) Cat {
	return Cat{
		Coin: c.Coin.Child(CatPuzzleHash(lib, c.AssetID, p2PuzzleHash), amount),
		LineageProof: &database.LineageProof{
			ParentParentCoinInfo:  c.Coin.ParentCoinInfo,
			ParentInnerPuzzleHash: c.P2PuzzleHash,
			ParentAmount:          c.Coin.Amount,
		},
		AssetID:      c.AssetID,
		P2PuzzleHash: p2PuzzleHash,
	}
}

// CatSpend is one member of a CAT ring spend.
type CatSpend struct {
	Cat        Cat
	Inner      driver.Spend
	ExtraDelta int64
}

// SpendCats spends every CAT in one ring. Each inner spend is run to learn
// its outputs so the subtotals can be computed.
func SpendCats(ctx *driver.SpendContext, spends []CatSpend) error {
	if len(spends) == 0 {
		return ErrEmptyRing
	}

	var total int64
	subtotals := make([]int64, len(spends))

	for i, cs := range spends {
		conds, err := ctx.RunConditions(cs.Inner)
		if err != nil {
			return fmt.Errorf("cat %s: inner: %w", cs.Cat.Coin.CoinID(), err)
		}

		var outputs uint64
		for _, cc := range conds.CreateCoins() {
			outputs += cc.Amount
		}

		subtotals[i] = total
		total += int64(cs.Cat.Coin.Amount) - int64(outputs) + cs.ExtraDelta
	}

	for i, cs := range spends {
		prev := spends[(i+len(spends)-1)%len(spends)]
		next := spends[(i+1)%len(spends)]

		layer := CatLayer{AssetID: cs.Cat.AssetID, InnerPuzzle: driver.ParsePuzzle(ctx.Allocator, cs.Inner.Puzzle)}
		spend, err := driver.ConstructSpend[CatSolution](ctx, layer, CatSolution{
			InnerSolution: cs.Inner.Solution,
			LineageProof:  cs.Cat.LineageProof,
			PrevCoinID:    prev.Cat.Coin.CoinID(),
			ThisCoinInfo:  cs.Cat.Coin,
			NextCoinProof: CoinProof{
				ParentCoinInfo:  next.Cat.Coin.ParentCoinInfo,
				InnerPuzzleHash: next.Cat.P2PuzzleHash,
				Amount:          next.Cat.Coin.Amount,
			},
			PrevSubtotal: subtotals[i],
			ExtraDelta:   cs.ExtraDelta,
		})
		if err != nil {
			return err
		}

		if err := ctx.Spend(cs.Cat.Coin, spend); err != nil {
			return err
		}
	}

	ctx.Event("layers: spend cats: ring[%d]", len(spends))
	return nil
}

// SpendAlone spends the CAT as the only member of its ring. The inner
// spend must recreate the full amount, so nothing is run to learn it.
func (c Cat) SpendAlone(ctx *driver.SpendContext, inner driver.Spend) error {
	layer := CatLayer{AssetID: c.AssetID, InnerPuzzle: driver.ParsePuzzle(ctx.Allocator, inner.Puzzle)}
	spend, err := driver.ConstructSpend[CatSolution](ctx, layer, CatSolution{
		InnerSolution: inner.Solution,
		LineageProof:  c.LineageProof,
		PrevCoinID:    c.Coin.CoinID(),
		ThisCoinInfo:  c.Coin,
		NextCoinProof: CoinProof{
			ParentCoinInfo:  c.Coin.ParentCoinInfo,
			InnerPuzzleHash: c.P2PuzzleHash,
			Amount:          c.Coin.Amount,
		},
	})
	if err != nil {
		return err
	}

	return ctx.Spend(c.Coin, spend)
}

// =============================================================================

// GenesisByCoinID returns the TAIL that allows a single issuance from the
// genesis coin and the asset id it defines.
func GenesisByCoinID(ctx *driver.SpendContext, genesisCoinID clvm.Bytes32) (clvm.NodePtr, clvm.Bytes32, error) {
	tail, err := ctx.Curry(puzzles.GenesisByCoinID, ctx.NewBytes32(genesisCoinID))
	if err != nil {
		return clvm.Nil, clvm.Bytes32{}, err
	}

	return tail, ctx.TreeHash(tail), nil
}

// IssueCat returns the eve CAT created by the parent coin and the
// condition that creates it. The eve CAT must be spent with a RunCatTail
// condition revealing the TAIL.
func IssueCat(ctx *driver.SpendContext, parentCoinID clvm.Bytes32, assetID clvm.Bytes32, amount uint64, p2PuzzleHash clvm.Bytes32) (Cat, driver.CreateCoin) {
	ph := CatPuzzleHash(ctx.Library(), assetID, p2PuzzleHash)

	eve := Cat{
		Coin:         database.NewCoin(parentCoinID, ph, amount),
		AssetID:      assetID,
		P2PuzzleHash: p2PuzzleHash,
	}

	return eve, driver.NewCreateCoin(ph, amount, driver.Hint(p2PuzzleHash)...)
}

// AnnouncementID returns sha256(id || message), the id asserted for a coin
// or puzzle announcement.
func AnnouncementID(id clvm.Bytes32, message []byte) clvm.Bytes32 {
	h := sha256.New()
	h.Write(id[:])
	h.Write(message)

	var out clvm.Bytes32
	h.Sum(out[:0])
	return out
}
