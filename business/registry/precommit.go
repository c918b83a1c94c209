package registry

import (
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Modes a precommit coin can be spent with.
const (
	PrecommitRefund   uint8 = 0
	PrecommitRegister uint8 = 1
)

// PrecommitLayer locks a payment behind a commitment to a value until the
// registry singleton uses it, or refunds it. It can only be spent after the
// relative block height so the value stays hidden while the commitment is
// being confirmed.
type PrecommitLayer[V driver.Encoder] struct {
	ControllerStructHash clvm.Bytes32
	RelativeBlockHeight  uint32
	PayoutPuzzleHash     clvm.Bytes32
	RefundPuzzleHash     clvm.Bytes32
	Value                V
}

// PrecommitSolution is the solution of the precommit layer.
type PrecommitSolution struct {
	Mode                     uint8
	Amount                   uint64
	SingletonInnerPuzzleHash clvm.Bytes32
}

// PrecommitFirstCurryHash returns the hash of the precommit puzzle curried
// with the registry it pays into.
func PrecommitFirstCurryHash(lib puzzles.Library, controllerStructHash clvm.Bytes32, relativeBlockHeight uint32, payoutPuzzleHash clvm.Bytes32) clvm.Bytes32 {
	singletonMod := lib.MustHash(puzzles.Singleton)

	return clvm.CurryTreeHash(lib.MustHash(puzzles.PrecommitLayer),
		clvm.TreeHashAtom(singletonMod[:]),
		clvm.TreeHashAtom(controllerStructHash[:]),
		clvm.TreeHashAtom(clvm.EncodeUint64(uint64(relativeBlockHeight))),
		clvm.TreeHashAtom(payoutPuzzleHash[:]),
	)
}

// PuzzleHash returns the inner puzzle hash of the precommit coin.
func (l PrecommitLayer[V]) PuzzleHash(lib puzzles.Library) (clvm.Bytes32, error) {
	hash, err := valueHash(l.Value)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	first := PrecommitFirstCurryHash(lib, l.ControllerStructHash, l.RelativeBlockHeight, l.PayoutPuzzleHash)
	return clvm.CurryTreeHash(first, clvm.TreeHashAtom(l.RefundPuzzleHash[:]), hash), nil
}

// ConstructPuzzle implements the driver.Layer interface.
func (l PrecommitLayer[V]) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	first, err := ctx.Curry(puzzles.PrecommitLayer,
		ctx.NewBytes32(ctx.Library().MustHash(puzzles.Singleton)),
		ctx.NewBytes32(l.ControllerStructHash),
		ctx.NewUint64(uint64(l.RelativeBlockHeight)),
		ctx.NewBytes32(l.PayoutPuzzleHash),
	)
	if err != nil {
		return clvm.Nil, err
	}

	value, err := l.Value.ToClvm(ctx.Allocator)
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Allocator.Curry(first, ctx.NewBytes32(l.RefundPuzzleHash), value), nil
}

// ConstructSolution implements the driver.SolutionLayer interface.
func (l PrecommitLayer[V]) ConstructSolution(ctx *driver.SpendContext, sol PrecommitSolution) (clvm.NodePtr, error) {
	return ctx.List(ctx.NewUint64(uint64(sol.Mode)), ctx.NewUint64(sol.Amount), ctx.NewBytes32(sol.SingletonInnerPuzzleHash)), nil
}

// ParsePrecommitLayer parses a precommit layer puzzle. The value is
// decoded with V.
func ParsePrecommitLayer[V clvm.Value[V]](ctx *driver.SpendContext, p driver.Puzzle) (PrecommitLayer[V], bool, error) {
	if !p.Curried || len(p.Args) != 2 {
		return PrecommitLayer[V]{}, false, nil
	}

	first := driver.ParsePuzzle(ctx.Allocator, p.Mod)
	if ok, err := first.Expect(ctx, puzzles.PrecommitLayer, 4); !ok {
		return PrecommitLayer[V]{}, false, err
	}

	var l PrecommitLayer[V]
	var err error

	if l.ControllerStructHash, err = ctx.Bytes32(first.Args[1]); err != nil {
		return PrecommitLayer[V]{}, false, driver.NonStandard("precommit layer", err)
	}
	if l.RelativeBlockHeight, err = ctx.Uint32(first.Args[2]); err != nil {
		return PrecommitLayer[V]{}, false, driver.NonStandard("precommit layer", err)
	}
	if l.PayoutPuzzleHash, err = ctx.Bytes32(first.Args[3]); err != nil {
		return PrecommitLayer[V]{}, false, driver.NonStandard("precommit layer", err)
	}
	if l.RefundPuzzleHash, err = ctx.Bytes32(p.Args[0]); err != nil {
		return PrecommitLayer[V]{}, false, driver.NonStandard("precommit layer", err)
	}
	if l.Value, err = clvm.Decode[V](ctx.Allocator, p.Args[1]); err != nil {
		return PrecommitLayer[V]{}, false, driver.NonStandard("precommit value", err)
	}

	return l, true, nil
}

// ParsePrecommitSolution decodes a precommit layer solution.
func ParsePrecommitSolution(a *clvm.Allocator, n clvm.NodePtr) (PrecommitSolution, error) {
	items, _, err := a.Items(n, 3)
	if err != nil {
		return PrecommitSolution{}, driver.NonStandard("precommit solution", err)
	}

	var sol PrecommitSolution
	if sol.Mode, err = a.Uint8(items[0]); err != nil {
		return PrecommitSolution{}, driver.NonStandard("precommit mode", err)
	}
	if sol.Amount, err = a.Uint64(items[1]); err != nil {
		return PrecommitSolution{}, driver.NonStandard("precommit amount", err)
	}
	if sol.SingletonInnerPuzzleHash, err = a.Bytes32(items[2]); err != nil {
		return PrecommitSolution{}, driver.NonStandard("precommit inner puzzle hash", err)
	}

	return sol, nil
}

// =============================================================================

// PrecommitCoin is a CAT locked by the precommit layer. It is alone in its
// ring when the registry spends it.
type PrecommitCoin[V driver.Encoder] struct {
	Coin         database.Coin
	LineageProof *database.LineageProof
	AssetID      clvm.Bytes32
	Layer        PrecommitLayer[V]
}

// NewPrecommitCoin returns the precommit coin the parent creates. The
// lineage proof describes the parent CAT.
func NewPrecommitCoin[V driver.Encoder](lib puzzles.Library, parentCoinID clvm.Bytes32, proof *database.LineageProof, assetID clvm.Bytes32, layer PrecommitLayer[V], amount uint64) (PrecommitCoin[V], error) {
	innerPH, err := layer.PuzzleHash(lib)
	if err != nil {
		return PrecommitCoin[V]{}, err
	}

	c := PrecommitCoin[V]{
		Coin:         database.NewCoin(parentCoinID, layers.CatPuzzleHash(lib, assetID, innerPH), amount),
		LineageProof: proof,
		AssetID:      assetID,
		Layer:        layer,
	}

	return c, nil
}

// Spend spends the precommit coin in the mode. The registry spending it
// alongside has the inner puzzle hash.
func (c PrecommitCoin[V]) Spend(ctx *driver.SpendContext, mode uint8, registryInnerPuzzleHash clvm.Bytes32) error {
	inner, err := driver.ConstructSpend[PrecommitSolution](ctx, c.Layer, PrecommitSolution{
		Mode:                     mode,
		Amount:                   c.Coin.Amount,
		SingletonInnerPuzzleHash: registryInnerPuzzleHash,
	})
	if err != nil {
		return err
	}

	innerPH, err := c.Layer.PuzzleHash(ctx.Library())
	if err != nil {
		return err
	}

	cat := layers.Cat{Coin: c.Coin, LineageProof: c.LineageProof, AssetID: c.AssetID, P2PuzzleHash: innerPH}
	if err := cat.SpendAlone(ctx, inner); err != nil {
		return err
	}

	ctx.Event("registry: precommit: coin[%s] mode[%d] amount[%d]", c.Coin.CoinID(), mode, c.Coin.Amount)
	return nil
}

// =============================================================================

// CatalogPrecommitValue is what a CATalog registration commits to. On
// chain the value is the TAIL reveal and a hash of the rest.
type CatalogPrecommitValue struct {
	Tail                   []byte
	InitialInnerPuzzleHash clvm.Bytes32
	CatMakerHash           clvm.Bytes32
}

// TailHash returns the asset id the registration is for.
func (v CatalogPrecommitValue) TailHash() (clvm.Bytes32, error) {
	a := clvm.NewAllocator()
	tail, err := a.Deserialize(v.Tail)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	return a.TreeHash(tail), nil
}

// ToClvm implements the driver.Encoder interface.
func (v CatalogPrecommitValue) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	tail, err := a.Deserialize(v.Tail)
	if err != nil {
		return clvm.Nil, err
	}

	catMaker := clvm.TreeHashPair(clvm.TreeHashAtom(v.CatMakerHash[:]), clvm.TreeHashAtom(nil))
	hash := clvm.TreeHashPair(clvm.TreeHashAtom(v.InitialInnerPuzzleHash[:]), catMaker)

	return a.Cons(tail, a.NewBytes32(hash)), nil
}

// XchandlesPricingSolution is the solution of the XCHandles pricing
// puzzles: (buy_time current_expiration handle . num_periods).
type XchandlesPricingSolution struct {
	BuyTime           uint64
	CurrentExpiration uint64
	Handle            string
	NumPeriods        uint64
}

// ToClvm implements the driver.Encoder interface.
func (s XchandlesPricingSolution) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.ListWithRest(a.NewUint64(s.NumPeriods), a.NewUint64(s.BuyTime), a.NewUint64(s.CurrentExpiration), a.NewString(s.Handle)), nil
}

// XchandlesPrecommitValue is what an XCHandles registration or expiration
// commits to. On chain the value is only the hash of these fields.
type XchandlesPrecommitValue struct {
	CatMakerHash      clvm.Bytes32
	PricingPuzzleHash clvm.Bytes32
	PricingSolution   XchandlesPricingSolution
	Handle            string
	Secret            clvm.Bytes32
	OwnerLauncherID   clvm.Bytes32
	ResolvedData      []byte
}

// ToClvm implements the driver.Encoder interface.
func (v XchandlesPrecommitValue) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	pricing, err := valueHash(v.PricingSolution)
	if err != nil {
		return clvm.Nil, err
	}

	makers := clvm.TreeHashPair(
		clvm.TreeHashPair(clvm.TreeHashAtom(v.CatMakerHash[:]), clvm.TreeHashAtom(nil)),
		clvm.TreeHashPair(clvm.TreeHashAtom(v.PricingPuzzleHash[:]), pricing),
	)
	data := clvm.TreeHashPair(
		clvm.TreeHashPair(clvm.TreeHashAtom([]byte(v.Handle)), clvm.TreeHashAtom(v.Secret[:])),
		clvm.TreeHashPair(clvm.TreeHashAtom(v.OwnerLauncherID[:]), clvm.TreeHashAtom(v.ResolvedData)),
	)

	return a.NewBytes32(clvm.TreeHashPair(makers, data)), nil
}

var (
	_ driver.Parser[PrecommitLayer[clvm.Raw]]  = ParsePrecommitLayer[clvm.Raw]
	_ driver.SolutionParser[PrecommitSolution] = ParsePrecommitSolution
)
