package registry

import (
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/actionlayer"
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// CatalogSlotValue is a CATalog entry: an asset id and its neighbors,
// encoded as (asset_id . (left . right)).
type CatalogSlotValue struct {
	AssetID   clvm.Bytes32
	Neighbors Neighbors
}

// Key implements the Linked interface.
func (v CatalogSlotValue) Key() clvm.Bytes32 { return v.AssetID }

// Links implements the Linked interface.
func (v CatalogSlotValue) Links() Neighbors { return v.Neighbors }

// ToClvm implements the clvm.Value interface.
func (v CatalogSlotValue) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	nb, err := v.Neighbors.ToClvm(a)
	if err != nil {
		return clvm.Nil, err
	}

	return a.Cons(a.NewBytes32(v.AssetID), nb), nil
}

// FromClvm implements the clvm.Value interface.
func (CatalogSlotValue) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (CatalogSlotValue, error) {
	id, rest, ok := a.Pair(n)
	if !ok {
		return CatalogSlotValue{}, clvm.ErrPairExpected
	}

	var v CatalogSlotValue
	var err error
	if v.AssetID, err = a.Bytes32(id); err != nil {
		return CatalogSlotValue{}, err
	}
	if v.Neighbors, err = clvm.Decode[Neighbors](a, rest); err != nil {
		return CatalogSlotValue{}, err
	}

	return v, nil
}

// CatalogState is the registry state: the cat maker of the payment asset
// and the price of a registration, encoded as (cat_maker . price).
type CatalogState struct {
	CatMakerPuzzleHash clvm.Bytes32
	RegistrationPrice  uint64
}

// ToClvm implements the clvm.Value interface.
func (s CatalogState) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.Cons(a.NewBytes32(s.CatMakerPuzzleHash), a.NewUint64(s.RegistrationPrice)), nil
}

// FromClvm implements the clvm.Value interface.
func (CatalogState) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (CatalogState, error) {
	maker, price, ok := a.Pair(n)
	if !ok {
		return CatalogState{}, clvm.ErrPairExpected
	}

	var s CatalogState
	var err error
	if s.CatMakerPuzzleHash, err = a.Bytes32(maker); err != nil {
		return CatalogState{}, err
	}
	if s.RegistrationPrice, err = a.Uint64(price); err != nil {
		return CatalogState{}, err
	}

	return s, nil
}

// CatalogConstants never change across the lineage of a CATalog.
type CatalogConstants struct {
	LauncherID                clvm.Bytes32
	RoyaltyAddress            clvm.Bytes32
	RoyaltyBasisPoints        uint16
	PrecommitPayoutPuzzleHash clvm.Bytes32
	RelativeBlockHeight       uint32
	PriceSingletonLauncherID  clvm.Bytes32
}

func (c CatalogConstants) precommitFirstCurryHash(lib puzzles.Library) clvm.Bytes32 {
	structHash := layers.NewSingletonStruct(lib, c.LauncherID).Hash()
	return PrecommitFirstCurryHash(lib, structHash, c.RelativeBlockHeight, c.PrecommitPayoutPuzzleHash)
}

// =============================================================================

// CatalogRegisterAction registers a new asset id: it mints the asset's NFT
// and links a new slot between the two neighbors.
type CatalogRegisterAction struct {
	Constants CatalogConstants
}

// ConstructPuzzle implements the driver.Layer interface.
func (r CatalogRegisterAction) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	lib := ctx.Library()
	c := r.Constants

	updater := lib.MustHash(puzzles.AnyMetadataUpdater)
	updaterHash := clvm.TreeHashAtom(updater[:])
	royaltyHash := clvm.TreeHashAtom(c.RoyaltyAddress[:])

	pack := ctx.Cons(
		ctx.Cons(
			ctx.Cons(ctx.NewBytes32(lib.MustHash(puzzles.SingletonLauncher)), ctx.NewBytes32(lib.MustHash(puzzles.Singleton))),
			ctx.Cons(ctx.NewBytes32(lib.MustHash(puzzles.NftStateLayer)), ctx.NewBytes32(updaterHash)),
		),
		ctx.Cons(
			ctx.Cons(ctx.NewBytes32(lib.MustHash(puzzles.NftOwnershipLayer)), ctx.NewBytes32(lib.MustHash(puzzles.NftRoyaltyTransfer))),
			ctx.Cons(ctx.NewBytes32(royaltyHash), ctx.NewUint64(uint64(c.RoyaltyBasisPoints))),
		),
	)

	return ctx.Curry(puzzles.CatalogRegister,
		pack,
		ctx.NewBytes32(PrelauncherFirstCurryHash(lib)),
		ctx.NewBytes32(c.precommitFirstCurryHash(lib)),
		ctx.NewBytes32(SlotFirstCurryHash(lib, c.LauncherID, 0)),
	)
}

// CatalogRefundAction returns a precommitment that cannot be used, either
// because the asset is already registered or the payment does not match
// the current price.
type CatalogRefundAction struct {
	Constants CatalogConstants
}

// ConstructPuzzle implements the driver.Layer interface.
func (r CatalogRefundAction) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	lib := ctx.Library()

	return ctx.Curry(puzzles.CatalogRefund,
		ctx.NewBytes32(r.Constants.precommitFirstCurryHash(lib)),
		ctx.NewBytes32(SlotFirstCurryHash(lib, r.Constants.LauncherID, 0)),
	)
}

// CatalogActionHashes returns the whitelist of a CATalog in merkle order.
func CatalogActionHashes(lib puzzles.Library, c CatalogConstants) ([]clvm.Bytes32, error) {
	register, err := layerHash(lib, CatalogRegisterAction{Constants: c})
	if err != nil {
		return nil, err
	}

	refund, err := layerHash(lib, CatalogRefundAction{Constants: c})
	if err != nil {
		return nil, err
	}

	delegated := actionlayer.DelegatedStateAction{OtherLauncherID: c.PriceSingletonLauncherID}.PuzzleHash(lib)

	return []clvm.Bytes32{register, refund, delegated}, nil
}

// =============================================================================

// Catalog is a CATalog registry: a sorted list of asset ids, each with an
// NFT minted on registration.
type Catalog struct {
	chain[CatalogState, CatalogSlotValue]
	Constants CatalogConstants
}

// NewCatalog constructs the registry around the live singleton coin.
func NewCatalog(lib puzzles.Library, coin database.Coin, proof database.Proof, constants CatalogConstants, state CatalogState) (*Catalog, error) {
	hashes, err := CatalogActionHashes(lib, constants)
	if err != nil {
		return nil, err
	}

	layer, err := actionlayer.New(hashes, state, actionlayer.DefaultFinalizer{Hint: constants.LauncherID})
	if err != nil {
		return nil, err
	}

	c := Catalog{
		chain:     newChain[CatalogState, CatalogSlotValue](lib, actionlayer.NewRegistry(coin, proof, constants.LauncherID, layer, hashes, nil)),
		Constants: constants,
	}

	return &c, nil
}

// LaunchCatalog launches a CATalog from the parent coin. The launcher id
// in the constants is replaced. It returns the registry, the two sentinel
// slots and the conditions the parent must emit.
func LaunchCatalog(ctx *driver.SpendContext, parentCoinID clvm.Bytes32, constants CatalogConstants, state CatalogState) (*Catalog, []Slot[CatalogSlotValue], driver.Conditions, error) {
	lib := ctx.Library()

	launcher, create := layers.NewLauncher(lib, parentCoinID, 1)
	constants.LauncherID = launcher.Coin.CoinID()

	hashes, err := CatalogActionHashes(lib, constants)
	if err != nil {
		return nil, nil, nil, err
	}

	layer, err := actionlayer.New(hashes, state, actionlayer.DefaultFinalizer{Hint: constants.LauncherID})
	if err != nil {
		return nil, nil, nil, err
	}

	innerPH, err := layer.PuzzleHash(lib)
	if err != nil {
		return nil, nil, nil, err
	}

	sentinels := []CatalogSlotValue{
		{AssetID: SlotMin, Neighbors: Neighbors{Left: SlotMin, Right: SlotMax}},
		{AssetID: SlotMax, Neighbors: Neighbors{Left: SlotMin, Right: SlotMax}},
	}

	slotHashes := make([]clvm.Bytes32, len(sentinels))
	for i, v := range sentinels {
		if slotHashes[i], err = valueHash(v); err != nil {
			return nil, nil, nil, err
		}
	}

	singleton, proof, assert, err := launch(ctx, launcher, innerPH, slotHashes)
	if err != nil {
		return nil, nil, nil, err
	}

	slots := make([]Slot[CatalogSlotValue], len(sentinels))
	for i, v := range sentinels {
		if slots[i], err = NewSlot(lib, proof, constants.LauncherID, 0, v); err != nil {
			return nil, nil, nil, err
		}
	}

	c, err := NewCatalog(lib, singleton.Coin, singleton.Proof, constants, state)
	if err != nil {
		return nil, nil, nil, err
	}

	return c, slots, driver.Conditions{create, assert}, nil
}

// Register queues the registration of the asset the precommit coin commits
// to. The eve NFT is spent with the inner spend, which usually runs the
// initial metadata update. It returns the condition the payer must assert.
func (c *Catalog) Register(ctx *driver.SpendContext, left Slot[CatalogSlotValue], right Slot[CatalogSlotValue], precommit PrecommitCoin[CatalogPrecommitValue], eveNftInner driver.Spend) (driver.Conditions, error) {
	lib := ctx.Library()
	value := precommit.Layer.Value

	tailHash, err := value.TailHash()
	if err != nil {
		return nil, err
	}

	left, right, err = c.ActualNeighbors(lib, tailHash, left, right)
	if err != nil {
		return nil, err
	}

	if err := bracketed(tailHash, left.Value, right.Value); err != nil {
		return nil, err
	}

	innerPH, err := c.Registry.InnerPuzzleHash(ctx)
	if err != nil {
		return nil, err
	}

	if err := precommit.Spend(ctx, PrecommitRegister, innerPH); err != nil {
		return nil, err
	}

	prelauncher := NewUniquenessPrelauncher(lib, c.Registry.Coin.CoinID(), tailHash)
	if _, err := prelauncher.Spend(ctx); err != nil {
		return nil, err
	}

	nft, _, err := layers.MintNft(ctx, prelauncher.Coin.CoinID(), layers.NftInfo{
		Metadata:           []byte{0x80},
		MetadataUpdaterPH:  lib.MustHash(puzzles.AnyMetadataUpdater),
		RoyaltyPuzzleHash:  c.Constants.RoyaltyAddress,
		RoyaltyBasisPoints: c.Constants.RoyaltyBasisPoints,
		P2PuzzleHash:       value.InitialInnerPuzzleHash,
	})
	if err != nil {
		return nil, err
	}

	if err := nft.Spend(ctx, eveNftInner); err != nil {
		return nil, err
	}

	puzzle, err := CatalogRegisterAction{Constants: c.Constants}.ConstructPuzzle(ctx)
	if err != nil {
		return nil, err
	}

	catMaker, err := DefaultCatMaker(ctx, precommit.AssetID)
	if err != nil {
		return nil, err
	}

	refundHash := clvm.TreeHashAtom(precommit.Layer.RefundPuzzleHash[:])
	solution := ctx.ListWithRest(ctx.NewBytes32(c.Registry.Coin.CoinID()),
		catMaker,
		clvm.Nil,
		ctx.NewBytes32(tailHash),
		ctx.NewBytes32(value.InitialInnerPuzzleHash),
		ctx.NewBytes32(refundHash),
		ctx.NewBytes32(left.Value.AssetID),
		ctx.NewBytes32(left.Value.Neighbors.Left),
		ctx.NewBytes32(right.Value.AssetID),
		ctx.NewBytes32(right.Value.Neighbors.Right),
	)

	created := []CatalogSlotValue{
		{AssetID: left.Value.AssetID, Neighbors: Neighbors{Left: left.Value.Neighbors.Left, Right: tailHash}},
		{AssetID: tailHash, Neighbors: Neighbors{Left: left.Value.AssetID, Right: right.Value.AssetID}},
		{AssetID: right.Value.AssetID, Neighbors: Neighbors{Left: tailHash, Right: right.Value.Neighbors.Right}},
	}

	if err := c.insert(driver.NewSpend(puzzle, solution), c.Registry.State(), created, []CatalogSlotValue{left.Value, right.Value}); err != nil {
		return nil, err
	}

	if err := left.Spend(ctx, innerPH); err != nil {
		return nil, err
	}
	if err := right.Spend(ctx, innerPH); err != nil {
		return nil, err
	}

	ctx.Event("registry: catalog: register: asset[%s] nft[%s]", tailHash, nft.Info.LauncherID)

	msg := clvm.TreeHashPair(clvm.TreeHashAtom(tailHash[:]), clvm.TreeHashAtom(value.InitialInnerPuzzleHash[:]))
	return driver.Conditions{c.announcement('r', msg[:])}, nil
}

// Refund queues the refund of a precommit coin. When the asset is already
// registered its slot is passed so the action can prove it, the slot is
// spent and recreated unchanged.
func (c *Catalog) Refund(ctx *driver.SpendContext, precommit PrecommitCoin[CatalogPrecommitValue], slot *Slot[CatalogSlotValue]) (driver.Conditions, error) {
	lib := ctx.Library()
	value := precommit.Layer.Value

	tailHash, err := value.TailHash()
	if err != nil {
		return nil, err
	}

	innerPH, err := c.Registry.InnerPuzzleHash(ctx)
	if err != nil {
		return nil, err
	}

	if err := precommit.Spend(ctx, PrecommitRefund, innerPH); err != nil {
		return nil, err
	}

	puzzle, err := CatalogRefundAction{Constants: c.Constants}.ConstructPuzzle(ctx)
	if err != nil {
		return nil, err
	}

	catMaker, err := DefaultCatMaker(ctx, precommit.AssetID)
	if err != nil {
		return nil, err
	}

	neighbors := clvm.Nil
	var touched []CatalogSlotValue
	if slot != nil {
		actual, err := c.ActualSlot(lib, *slot)
		if err != nil {
			return nil, err
		}
		if actual.Value.AssetID != tailHash {
			return nil, fmt.Errorf("slot[%s] asset[%s]: %w", actual.Value.AssetID, tailHash, ErrSlotNotFound)
		}

		if neighbors, err = actual.Value.Neighbors.ToClvm(ctx.Allocator); err != nil {
			return nil, err
		}
		touched = []CatalogSlotValue{actual.Value}
		slot = &actual
	}

	refundHash := clvm.TreeHashAtom(precommit.Layer.RefundPuzzleHash[:])
	solution := ctx.ListWithRest(neighbors,
		ctx.NewBytes32(value.CatMakerHash),
		catMaker,
		clvm.Nil,
		ctx.NewBytes32(tailHash),
		ctx.NewBytes32(value.InitialInnerPuzzleHash),
		ctx.NewBytes32(refundHash),
		ctx.NewUint64(precommit.Coin.Amount),
	)

	if err := c.insert(driver.NewSpend(puzzle, solution), c.Registry.State(), touched, touched); err != nil {
		return nil, err
	}

	if slot != nil {
		if err := slot.Spend(ctx, innerPH); err != nil {
			return nil, err
		}
	}

	ctx.Event("registry: catalog: refund: asset[%s] amount[%d]", tailHash, precommit.Coin.Amount)

	return driver.Conditions{c.announcement('$', precommit.Coin.PuzzleHash[:])}, nil
}

// UpdateState queues a state change approved by the price singleton. It
// returns the message the price singleton must send.
func (c *Catalog) UpdateState(ctx *driver.SpendContext, state CatalogState, priceInnerPuzzleHash clvm.Bytes32) (driver.Condition, error) {
	return c.updateState(ctx, c.Constants.PriceSingletonLauncherID, state, priceInnerPuzzleHash)
}

// Finish spends the registry with the queued actions. It returns the
// registry recreated with the new state and the slots the spend created.
func (c *Catalog) Finish(ctx *driver.SpendContext) (*Catalog, []Slot[CatalogSlotValue], error) {
	next, slots, err := c.finish(ctx)
	if err != nil {
		return nil, nil, err
	}

	out := Catalog{
		chain:     chain[CatalogState, CatalogSlotValue]{Registry: next},
		Constants: c.Constants,
	}

	return &out, slots, nil
}

// =============================================================================

// bracketed checks the key sits strictly between two adjacent slots.
func bracketed[V Linked](key clvm.Bytes32, left V, right V) error {
	if left.Key().Compare(key) >= 0 || key.Compare(right.Key()) >= 0 {
		return fmt.Errorf("left[%s] key[%s] right[%s]: %w", left.Key(), key, right.Key(), ErrNotBracketed)
	}

	if left.Links().Right != right.Key() || right.Links().Left != left.Key() {
		return fmt.Errorf("left[%s] right[%s] not adjacent: %w", left.Key(), right.Key(), ErrNotBracketed)
	}

	return nil
}

// layerHash returns the puzzle hash of a layer built in a scratch context.
func layerHash(lib puzzles.Library, l driver.Layer) (clvm.Bytes32, error) {
	return driver.PuzzleHash(driver.New(driver.Config{Library: lib}), l)
}
