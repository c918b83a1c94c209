package registry

import (
	"errors"
	"fmt"
	"math"

	"github.com/ardanlabs/puzzlekit/business/actionlayer"
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Set of errors for handle registrations.
var (
	ErrPriceMismatch   = errors.New("precommit amount does not match the price")
	ErrPricingMismatch = errors.New("pricing puzzle is not the registry's")
	ErrWrongHandle     = errors.New("handle does not match the slot")
)

// Message mode of the update: the owner commits to its puzzle hash and the
// registry to its full coin.
const updateMessageMode = 18

// XchandlesData is who owns a handle and what it resolves to.
type XchandlesData struct {
	OwnerLauncherID clvm.Bytes32
	ResolvedData    []byte
}

// ToClvm implements the clvm.Value interface.
func (d XchandlesData) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.Cons(a.NewBytes32(d.OwnerLauncherID), a.NewAtom(d.ResolvedData)), nil
}

// FromClvm implements the clvm.Value interface.
func (XchandlesData) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (XchandlesData, error) {
	owner, data, ok := a.Pair(n)
	if !ok {
		return XchandlesData{}, clvm.ErrPairExpected
	}

	var d XchandlesData
	var err error
	if d.OwnerLauncherID, err = a.Bytes32(owner); err != nil {
		return XchandlesData{}, err
	}
	if d.ResolvedData, err = a.Atom(data); err != nil {
		return XchandlesData{}, err
	}

	return d, nil
}

// XchandlesSlotValue is an XCHandles entry, encoded as
// ((handle_hash . (left . right)) . (expiration . (owner . data))).
type XchandlesSlotValue struct {
	HandleHash clvm.Bytes32
	Neighbors  Neighbors
	Expiration uint64
	Data       XchandlesData
}

// NewHandleSlotValue returns the value for the handle.
func NewHandleSlotValue(handle string, neighbors Neighbors, expiration uint64, data XchandlesData) XchandlesSlotValue {
	return XchandlesSlotValue{
		HandleHash: HandleHash(handle),
		Neighbors:  neighbors,
		Expiration: expiration,
		Data:       data,
	}
}

// HandleHash returns the key of a handle.
func HandleHash(handle string) clvm.Bytes32 {
	return clvm.TreeHashAtom([]byte(handle))
}

// Key implements the Linked interface.
func (v XchandlesSlotValue) Key() clvm.Bytes32 { return v.HandleHash }

// Links implements the Linked interface.
func (v XchandlesSlotValue) Links() Neighbors { return v.Neighbors }

// rest is (expiration . (owner . data)).
func (v XchandlesSlotValue) rest(a *clvm.Allocator) (clvm.NodePtr, error) {
	data, err := v.Data.ToClvm(a)
	if err != nil {
		return clvm.Nil, err
	}

	return a.Cons(a.NewUint64(v.Expiration), data), nil
}

// ToClvm implements the clvm.Value interface.
func (v XchandlesSlotValue) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	nb, err := v.Neighbors.ToClvm(a)
	if err != nil {
		return clvm.Nil, err
	}

	rest, err := v.rest(a)
	if err != nil {
		return clvm.Nil, err
	}

	return a.Cons(a.Cons(a.NewBytes32(v.HandleHash), nb), rest), nil
}

// FromClvm implements the clvm.Value interface.
func (XchandlesSlotValue) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (XchandlesSlotValue, error) {
	head, rest, ok := a.Pair(n)
	if !ok {
		return XchandlesSlotValue{}, clvm.ErrPairExpected
	}

	hash, nb, ok := a.Pair(head)
	if !ok {
		return XchandlesSlotValue{}, clvm.ErrPairExpected
	}

	exp, data, ok := a.Pair(rest)
	if !ok {
		return XchandlesSlotValue{}, clvm.ErrPairExpected
	}

	var v XchandlesSlotValue
	var err error
	if v.HandleHash, err = a.Bytes32(hash); err != nil {
		return XchandlesSlotValue{}, err
	}
	if v.Neighbors, err = clvm.Decode[Neighbors](a, nb); err != nil {
		return XchandlesSlotValue{}, err
	}
	if v.Expiration, err = a.Uint64(exp); err != nil {
		return XchandlesSlotValue{}, err
	}
	if v.Data, err = clvm.Decode[XchandlesData](a, data); err != nil {
		return XchandlesSlotValue{}, err
	}

	return v, nil
}

// XchandlesState is the registry state, encoded as
// (cat_maker pricing . expired_pricing).
type XchandlesState struct {
	CatMakerPuzzleHash             clvm.Bytes32
	PricingPuzzleHash              clvm.Bytes32
	ExpiredHandlePricingPuzzleHash clvm.Bytes32
}

// ToClvm implements the clvm.Value interface.
func (s XchandlesState) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.ListWithRest(a.NewBytes32(s.ExpiredHandlePricingPuzzleHash), a.NewBytes32(s.CatMakerPuzzleHash), a.NewBytes32(s.PricingPuzzleHash)), nil
}

// FromClvm implements the clvm.Value interface.
func (XchandlesState) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (XchandlesState, error) {
	items, rest, err := a.Items(n, 2)
	if err != nil {
		return XchandlesState{}, err
	}

	var s XchandlesState
	if s.CatMakerPuzzleHash, err = a.Bytes32(items[0]); err != nil {
		return XchandlesState{}, err
	}
	if s.PricingPuzzleHash, err = a.Bytes32(items[1]); err != nil {
		return XchandlesState{}, err
	}
	if s.ExpiredHandlePricingPuzzleHash, err = a.Bytes32(rest); err != nil {
		return XchandlesState{}, err
	}

	return s, nil
}

// XchandlesConstants never change across the lineage of an XCHandles
// registry.
type XchandlesConstants struct {
	LauncherID                clvm.Bytes32
	PrecommitPayoutPuzzleHash clvm.Bytes32
	RelativeBlockHeight       uint32
	PriceSingletonLauncherID  clvm.Bytes32
}

func (c XchandlesConstants) precommitFirstCurryHash(lib puzzles.Library) clvm.Bytes32 {
	structHash := layers.NewSingletonStruct(lib, c.LauncherID).Hash()
	return PrecommitFirstCurryHash(lib, structHash, c.RelativeBlockHeight, c.PrecommitPayoutPuzzleHash)
}

// =============================================================================

// XchandlesAction names one of the six handle actions. They only differ by
// mod and curried arguments.
type XchandlesAction struct {
	Name      puzzles.Name
	Constants XchandlesConstants
}

// ConstructPuzzle implements the driver.Layer interface.
func (x XchandlesAction) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	lib := ctx.Library()
	c := x.Constants
	slot := ctx.NewBytes32(SlotFirstCurryHash(lib, c.LauncherID, 0))

	switch x.Name {
	case puzzles.XchandlesRegister, puzzles.XchandlesRefund, puzzles.XchandlesExpire:
		return ctx.Curry(x.Name, ctx.NewBytes32(c.precommitFirstCurryHash(lib)), slot)

	case puzzles.XchandlesExtend:
		return ctx.Curry(x.Name,
			ctx.NewBytes32(lib.MustHash(puzzles.SettlementPayment)),
			ctx.NewBytes32(c.PrecommitPayoutPuzzleHash),
			slot,
		)

	case puzzles.XchandlesUpdate, puzzles.XchandlesOracle:
		return ctx.Curry(x.Name, slot)
	}

	return clvm.Nil, fmt.Errorf("xchandles action[%s]: %w", x.Name, driver.ErrNonStandardLayer)
}

// XchandlesActionNames lists the actions in merkle order. The delegated
// state action comes last.
var XchandlesActionNames = []puzzles.Name{
	puzzles.XchandlesExpire,
	puzzles.XchandlesExtend,
	puzzles.XchandlesOracle,
	puzzles.XchandlesRegister,
	puzzles.XchandlesUpdate,
	puzzles.XchandlesRefund,
}

// XchandlesActionHashes returns the whitelist of an XCHandles registry in
// merkle order.
func XchandlesActionHashes(lib puzzles.Library, c XchandlesConstants) ([]clvm.Bytes32, error) {
	hashes := make([]clvm.Bytes32, 0, len(XchandlesActionNames)+1)
	for _, name := range XchandlesActionNames {
		h, err := layerHash(lib, XchandlesAction{Name: name, Constants: c})
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}

	delegated := actionlayer.DelegatedStateAction{OtherLauncherID: c.PriceSingletonLauncherID}.PuzzleHash(lib)
	return append(hashes, delegated), nil
}

// =============================================================================

// Xchandles is an XCHandles registry: a sorted list of handles, each with
// an expiration, an owner and resolved data.
type Xchandles struct {
	chain[XchandlesState, XchandlesSlotValue]
	Constants XchandlesConstants
}

// NewXchandles constructs the registry around the live singleton coin.
func NewXchandles(lib puzzles.Library, coin database.Coin, proof database.Proof, constants XchandlesConstants, state XchandlesState) (*Xchandles, error) {
	hashes, err := XchandlesActionHashes(lib, constants)
	if err != nil {
		return nil, err
	}

	layer, err := actionlayer.New(hashes, state, actionlayer.DefaultFinalizer{Hint: constants.LauncherID})
	if err != nil {
		return nil, err
	}

	x := Xchandles{
		chain:     newChain[XchandlesState, XchandlesSlotValue](lib, actionlayer.NewRegistry(coin, proof, constants.LauncherID, layer, hashes, nil)),
		Constants: constants,
	}

	return &x, nil
}

// LaunchXchandles launches an XCHandles registry from the parent coin. The
// launcher id in the constants is replaced. It returns the registry, the
// two sentinel slots and the conditions the parent must emit.
func LaunchXchandles(ctx *driver.SpendContext, parentCoinID clvm.Bytes32, constants XchandlesConstants, state XchandlesState) (*Xchandles, []Slot[XchandlesSlotValue], driver.Conditions, error) {
	lib := ctx.Library()

	launcher, create := layers.NewLauncher(lib, parentCoinID, 1)
	constants.LauncherID = launcher.Coin.CoinID()

	hashes, err := XchandlesActionHashes(lib, constants)
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

	ends := Neighbors{Left: SlotMin, Right: SlotMax}
	sentinels := []XchandlesSlotValue{
		{HandleHash: SlotMin, Neighbors: ends, Expiration: math.MaxUint64},
		{HandleHash: SlotMax, Neighbors: ends, Expiration: math.MaxUint64},
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

	slots := make([]Slot[XchandlesSlotValue], len(sentinels))
	for i, v := range sentinels {
		if slots[i], err = NewSlot(lib, proof, constants.LauncherID, 0, v); err != nil {
			return nil, nil, nil, err
		}
	}

	x, err := NewXchandles(lib, singleton.Coin, singleton.Proof, constants, state)
	if err != nil {
		return nil, nil, nil, err
	}

	return x, slots, driver.Conditions{create, assert}, nil
}

// Register queues the registration of the handle the precommit coin commits
// to. The precommit amount must be the quoted price.
func (x *Xchandles) Register(ctx *driver.SpendContext, left Slot[XchandlesSlotValue], right Slot[XchandlesSlotValue], precommit PrecommitCoin[XchandlesPrecommitValue], pricing Pricing) (driver.Conditions, error) {
	lib := ctx.Library()
	value := precommit.Layer.Value
	state := x.Registry.State()

	if err := ValidateHandle(value.Handle); err != nil {
		return nil, err
	}

	handleHash := HandleHash(value.Handle)
	if err := x.checkPayment(lib, precommit, pricing, state.PricingPuzzleHash); err != nil {
		return nil, err
	}

	_, delta, err := pricing.Quote(value.PricingSolution)
	if err != nil {
		return nil, err
	}

	left, right, err = x.ActualNeighbors(lib, handleHash, left, right)
	if err != nil {
		return nil, err
	}

	if err := bracketed(handleHash, left.Value, right.Value); err != nil {
		return nil, err
	}

	innerPH, err := x.Registry.InnerPuzzleHash(ctx)
	if err != nil {
		return nil, err
	}

	if err := precommit.Spend(ctx, PrecommitRegister, innerPH); err != nil {
		return nil, err
	}

	puzzle, err := XchandlesAction{Name: puzzles.XchandlesRegister, Constants: x.Constants}.ConstructPuzzle(ctx)
	if err != nil {
		return nil, err
	}

	pricingPuzzle, catMaker, pricingSol, err := x.reveals(ctx, precommit.AssetID, pricing, value.PricingSolution)
	if err != nil {
		return nil, err
	}

	data := XchandlesData{OwnerLauncherID: value.OwnerLauncherID, ResolvedData: value.ResolvedData}
	nodes := make([]clvm.NodePtr, 0, 3)
	for _, d := range []XchandlesData{left.Value.Data, right.Value.Data, data} {
		n, err := d.ToClvm(ctx.Allocator)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	refundHash := clvm.TreeHashAtom(precommit.Layer.RefundPuzzleHash[:])
	solution := ctx.List(
		ctx.NewBytes32(handleHash),
		pricingPuzzle,
		pricingSol,
		catMaker,
		clvm.Nil,
		ctx.Cons(ctx.NewBytes32(left.Value.HandleHash), ctx.NewBytes32(right.Value.HandleHash)),
		ctx.NewBytes32(left.Value.Neighbors.Left),
		ctx.NewUint64(left.Value.Expiration),
		nodes[0],
		ctx.NewBytes32(right.Value.Neighbors.Right),
		ctx.NewUint64(right.Value.Expiration),
		nodes[1],
		nodes[2],
		ctx.NewBytes32(refundHash),
		ctx.NewBytes32(value.Secret),
	)

	lv := left.Value
	lv.Neighbors.Right = handleHash
	rv := right.Value
	rv.Neighbors.Left = handleHash
	created := []XchandlesSlotValue{
		lv,
		{
			HandleHash: handleHash,
			Neighbors:  Neighbors{Left: left.Value.HandleHash, Right: right.Value.HandleHash},
			Expiration: value.PricingSolution.BuyTime + delta,
			Data:       data,
		},
		rv,
	}

	if err := x.insert(driver.NewSpend(puzzle, solution), state, created, []XchandlesSlotValue{left.Value, right.Value}); err != nil {
		return nil, err
	}

	if err := left.Spend(ctx, innerPH); err != nil {
		return nil, err
	}
	if err := right.Spend(ctx, innerPH); err != nil {
		return nil, err
	}

	ctx.Event("registry: xchandles: register: handle[%s] expiration[%d]", value.Handle, created[1].Expiration)

	return driver.Conditions{x.announcement('r', precommit.Coin.PuzzleHash[:])}, nil
}

// Expire queues the purchase of an expired handle. The pricing is the
// expired handle pricing and its solution carries the slot's expiration.
func (x *Xchandles) Expire(ctx *driver.SpendContext, slot Slot[XchandlesSlotValue], precommit PrecommitCoin[XchandlesPrecommitValue], pricing Pricing) (driver.Conditions, error) {
	lib := ctx.Library()
	value := precommit.Layer.Value
	state := x.Registry.State()

	slot, err := x.ActualSlot(lib, slot)
	if err != nil {
		return nil, err
	}

	if HandleHash(value.Handle) != slot.Value.HandleHash {
		return nil, fmt.Errorf("handle[%s]: %w", value.Handle, ErrWrongHandle)
	}

	if value.PricingSolution.CurrentExpiration != slot.Value.Expiration {
		return nil, fmt.Errorf("handle[%s] expiration[%d] quoted[%d]: %w", value.Handle, slot.Value.Expiration, value.PricingSolution.CurrentExpiration, ErrPriceMismatch)
	}

	if err := x.checkPayment(lib, precommit, pricing, state.ExpiredHandlePricingPuzzleHash); err != nil {
		return nil, err
	}

	_, delta, err := pricing.Quote(value.PricingSolution)
	if err != nil {
		return nil, err
	}

	innerPH, err := x.Registry.InnerPuzzleHash(ctx)
	if err != nil {
		return nil, err
	}

	if err := precommit.Spend(ctx, PrecommitRegister, innerPH); err != nil {
		return nil, err
	}

	puzzle, err := XchandlesAction{Name: puzzles.XchandlesExpire, Constants: x.Constants}.ConstructPuzzle(ctx)
	if err != nil {
		return nil, err
	}

	pricingPuzzle, catMaker, pricingSol, err := x.reveals(ctx, precommit.AssetID, pricing, value.PricingSolution)
	if err != nil {
		return nil, err
	}

	next := slot.Value
	next.Expiration = value.PricingSolution.BuyTime + delta
	next.Data = XchandlesData{OwnerLauncherID: value.OwnerLauncherID, ResolvedData: value.ResolvedData}

	neighbors, err := slot.Value.Neighbors.ToClvm(ctx.Allocator)
	if err != nil {
		return nil, err
	}
	oldRest, err := slot.Value.rest(ctx.Allocator)
	if err != nil {
		return nil, err
	}
	newRest, err := next.rest(ctx.Allocator)
	if err != nil {
		return nil, err
	}

	refundHash := clvm.TreeHashAtom(precommit.Layer.RefundPuzzleHash[:])
	solution := ctx.ListWithRest(newRest,
		catMaker,
		clvm.Nil,
		pricingPuzzle,
		pricingSol,
		ctx.NewBytes32(refundHash),
		ctx.NewBytes32(value.Secret),
		neighbors,
		oldRest,
	)

	if err := x.insert(driver.NewSpend(puzzle, solution), state, []XchandlesSlotValue{next}, []XchandlesSlotValue{slot.Value}); err != nil {
		return nil, err
	}

	if err := slot.Spend(ctx, innerPH); err != nil {
		return nil, err
	}

	ctx.Event("registry: xchandles: expire: handle[%s] expiration[%d]", value.Handle, next.Expiration)

	return driver.Conditions{x.announcement('x', precommit.Coin.PuzzleHash[:])}, nil
}

// Extend queues the renewal of a handle for a number of periods. The
// payment is not a precommit: it returns the notarized payment the payer
// must make to the payout puzzle hash in the payment asset.
func (x *Xchandles) Extend(ctx *driver.SpendContext, handle string, slot Slot[XchandlesSlotValue], numPeriods uint64, buyTime uint64, paymentAssetID clvm.Bytes32, pricing Pricing) (driver.Conditions, layers.NotarizedPayment, error) {
	lib := ctx.Library()
	state := x.Registry.State()

	slot, err := x.ActualSlot(lib, slot)
	if err != nil {
		return nil, layers.NotarizedPayment{}, err
	}

	if HandleHash(handle) != slot.Value.HandleHash {
		return nil, layers.NotarizedPayment{}, fmt.Errorf("handle[%s]: %w", handle, ErrWrongHandle)
	}

	if pricing.PuzzleHash(lib) != state.PricingPuzzleHash {
		return nil, layers.NotarizedPayment{}, fmt.Errorf("handle[%s]: %w", handle, ErrPricingMismatch)
	}

	sol := XchandlesPricingSolution{BuyTime: buyTime, CurrentExpiration: slot.Value.Expiration, Handle: handle, NumPeriods: numPeriods}
	price, delta, err := pricing.Quote(sol)
	if err != nil {
		return nil, layers.NotarizedPayment{}, err
	}

	puzzle, err := XchandlesAction{Name: puzzles.XchandlesExtend, Constants: x.Constants}.ConstructPuzzle(ctx)
	if err != nil {
		return nil, layers.NotarizedPayment{}, err
	}

	pricingPuzzle, catMaker, pricingSol, err := x.reveals(ctx, paymentAssetID, pricing, sol)
	if err != nil {
		return nil, layers.NotarizedPayment{}, err
	}

	neighbors, err := slot.Value.Neighbors.ToClvm(ctx.Allocator)
	if err != nil {
		return nil, layers.NotarizedPayment{}, err
	}
	rest, err := slot.Value.rest(ctx.Allocator)
	if err != nil {
		return nil, layers.NotarizedPayment{}, err
	}

	solution := ctx.ListWithRest(ctx.Cons(neighbors, rest),
		pricingPuzzle,
		pricingSol,
		catMaker,
		clvm.Nil,
	)

	next := slot.Value
	next.Expiration = slot.Value.Expiration + delta

	if err := x.insert(driver.NewSpend(puzzle, solution), state, []XchandlesSlotValue{next}, []XchandlesSlotValue{slot.Value}); err != nil {
		return nil, layers.NotarizedPayment{}, err
	}

	innerPH, err := x.Registry.InnerPuzzleHash(ctx)
	if err != nil {
		return nil, layers.NotarizedPayment{}, err
	}

	if err := slot.Spend(ctx, innerPH); err != nil {
		return nil, layers.NotarizedPayment{}, err
	}

	payout := x.Constants.PrecommitPayoutPuzzleHash
	payment := layers.NotarizedPayment{
		Nonce: clvm.TreeHashPair(clvm.TreeHashAtom([]byte(handle)), clvm.TreeHashAtom(clvm.EncodeUint64(slot.Value.Expiration))),
		Payments: []layers.Payment{
			{PuzzleHash: payout, Amount: price, Memos: driver.Hint(payout)},
		},
	}

	ctx.Event("registry: xchandles: extend: handle[%s] expiration[%d] price[%d]", handle, next.Expiration, price)

	msg := clvm.TreeHashPair(clvm.TreeHashAtom(clvm.EncodeUint64(price)), clvm.TreeHashAtom([]byte(handle)))
	return driver.Conditions{x.announcement('e', msg[:])}, payment, nil
}

// Update queues a change of owner and resolved data. It returns the message
// the current owner must send to authorize it.
func (x *Xchandles) Update(ctx *driver.SpendContext, slot Slot[XchandlesSlotValue], data XchandlesData, announcerInnerPuzzleHash clvm.Bytes32) (driver.Conditions, error) {
	slot, err := x.ActualSlot(ctx.Library(), slot)
	if err != nil {
		return nil, err
	}

	puzzle, err := XchandlesAction{Name: puzzles.XchandlesUpdate, Constants: x.Constants}.ConstructPuzzle(ctx)
	if err != nil {
		return nil, err
	}

	current, err := slot.Value.ToClvm(ctx.Allocator)
	if err != nil {
		return nil, err
	}
	newData, err := data.ToClvm(ctx.Allocator)
	if err != nil {
		return nil, err
	}

	solution := ctx.ListWithRest(ctx.NewBytes32(announcerInnerPuzzleHash), current, newData)

	next := slot.Value
	next.Data = data

	if err := x.insert(driver.NewSpend(puzzle, solution), x.Registry.State(), []XchandlesSlotValue{next}, []XchandlesSlotValue{slot.Value}); err != nil {
		return nil, err
	}

	innerPH, err := x.Registry.InnerPuzzleHash(ctx)
	if err != nil {
		return nil, err
	}

	if err := slot.Spend(ctx, innerPH); err != nil {
		return nil, err
	}

	dataHash, err := valueHash(data)
	if err != nil {
		return nil, err
	}
	msg := clvm.TreeHashPair(clvm.TreeHashAtom(slot.Value.HandleHash[:]), dataHash)

	ctx.Event("registry: xchandles: update: handle[%s] owner[%s]", slot.Value.HandleHash, data.OwnerLauncherID)

	send := driver.Message{
		Mode:    updateMessageMode,
		Message: msg[:],
		Data:    []clvm.NodePtr{ctx.NewBytes32(x.Registry.Coin.PuzzleHash)},
	}

	return driver.Conditions{send}, nil
}

// Oracle queues an action that spends and recreates the slot unchanged,
// announcing its value so other spends can read it.
func (x *Xchandles) Oracle(ctx *driver.SpendContext, slot Slot[XchandlesSlotValue]) (driver.Conditions, error) {
	slot, err := x.ActualSlot(ctx.Library(), slot)
	if err != nil {
		return nil, err
	}

	puzzle, err := XchandlesAction{Name: puzzles.XchandlesOracle, Constants: x.Constants}.ConstructPuzzle(ctx)
	if err != nil {
		return nil, err
	}

	solution, err := slot.Value.ToClvm(ctx.Allocator)
	if err != nil {
		return nil, err
	}

	same := []XchandlesSlotValue{slot.Value}
	if err := x.insert(driver.NewSpend(puzzle, solution), x.Registry.State(), same, same); err != nil {
		return nil, err
	}

	innerPH, err := x.Registry.InnerPuzzleHash(ctx)
	if err != nil {
		return nil, err
	}

	if err := slot.Spend(ctx, innerPH); err != nil {
		return nil, err
	}

	ctx.Event("registry: xchandles: oracle: handle[%s]", slot.Value.HandleHash)

	msg, err := valueHash(slot.Value)
	if err != nil {
		return nil, err
	}

	return driver.Conditions{x.announcement('o', msg[:])}, nil
}

// Refund queues the refund of a precommit coin that cannot be used. When
// the handle is registered its slot is passed so the action can prove it.
func (x *Xchandles) Refund(ctx *driver.SpendContext, precommit PrecommitCoin[XchandlesPrecommitValue], pricing Pricing, slot *Slot[XchandlesSlotValue]) (driver.Conditions, error) {
	lib := ctx.Library()
	value := precommit.Layer.Value

	innerPH, err := x.Registry.InnerPuzzleHash(ctx)
	if err != nil {
		return nil, err
	}

	if err := precommit.Spend(ctx, PrecommitRefund, innerPH); err != nil {
		return nil, err
	}

	puzzle, err := XchandlesAction{Name: puzzles.XchandlesRefund, Constants: x.Constants}.ConstructPuzzle(ctx)
	if err != nil {
		return nil, err
	}

	pricingPuzzle, catMaker, pricingSol, err := x.reveals(ctx, precommit.AssetID, pricing, value.PricingSolution)
	if err != nil {
		return nil, err
	}

	slotValue := clvm.Nil
	var touched []XchandlesSlotValue
	if slot != nil {
		actual, err := x.ActualSlot(lib, *slot)
		if err != nil {
			return nil, err
		}
		if actual.Value.HandleHash != HandleHash(value.Handle) {
			return nil, fmt.Errorf("handle[%s]: %w", value.Handle, ErrWrongHandle)
		}

		if slotValue, err = actual.Value.ToClvm(ctx.Allocator); err != nil {
			return nil, err
		}
		touched = []XchandlesSlotValue{actual.Value}
		slot = &actual
	}

	refundHash := clvm.TreeHashAtom(precommit.Layer.RefundPuzzleHash[:])
	solution := ctx.ListWithRest(slotValue,
		ctx.NewBytes32(value.CatMakerHash),
		catMaker,
		clvm.Nil,
		ctx.NewBytes32(value.PricingPuzzleHash),
		pricingPuzzle,
		pricingSol,
		ctx.NewString(value.Handle),
		ctx.NewBytes32(value.Secret),
		ctx.NewBytes32(value.OwnerLauncherID),
		ctx.NewAtom(value.ResolvedData),
		ctx.NewBytes32(refundHash),
		ctx.NewUint64(precommit.Coin.Amount),
	)

	if err := x.insert(driver.NewSpend(puzzle, solution), x.Registry.State(), touched, touched); err != nil {
		return nil, err
	}

	if slot != nil {
		if err := slot.Spend(ctx, innerPH); err != nil {
			return nil, err
		}
	}

	ctx.Event("registry: xchandles: refund: handle[%s] amount[%d]", value.Handle, precommit.Coin.Amount)

	return driver.Conditions{x.announcement('$', precommit.Coin.PuzzleHash[:])}, nil
}

// UpdateState queues a state change approved by the price singleton. It
// returns the message the price singleton must send.
func (x *Xchandles) UpdateState(ctx *driver.SpendContext, state XchandlesState, priceInnerPuzzleHash clvm.Bytes32) (driver.Condition, error) {
	return x.updateState(ctx, x.Constants.PriceSingletonLauncherID, state, priceInnerPuzzleHash)
}

// Finish spends the registry with the queued actions. It returns the
// registry recreated with the new state and the slots the spend created.
func (x *Xchandles) Finish(ctx *driver.SpendContext) (*Xchandles, []Slot[XchandlesSlotValue], error) {
	next, slots, err := x.finish(ctx)
	if err != nil {
		return nil, nil, err
	}

	out := Xchandles{
		chain:     chain[XchandlesState, XchandlesSlotValue]{Registry: next},
		Constants: x.Constants,
	}

	return &out, slots, nil
}

// =============================================================================

// checkPayment checks the precommit pays the quoted price with the pricing
// puzzle the registry expects.
func (x *Xchandles) checkPayment(lib puzzles.Library, precommit PrecommitCoin[XchandlesPrecommitValue], pricing Pricing, want clvm.Bytes32) error {
	value := precommit.Layer.Value

	ph := pricing.PuzzleHash(lib)
	if ph != want || ph != value.PricingPuzzleHash {
		return fmt.Errorf("handle[%s] pricing[%s]: %w", value.Handle, ph, ErrPricingMismatch)
	}

	price, _, err := pricing.Quote(value.PricingSolution)
	if err != nil {
		return err
	}

	if price != precommit.Coin.Amount {
		return fmt.Errorf("handle[%s] price[%d] amount[%d]: %w", value.Handle, price, precommit.Coin.Amount, ErrPriceMismatch)
	}

	return nil
}

// reveals builds the pricing puzzle, the cat maker and the pricing solution
// the actions take.
func (x *Xchandles) reveals(ctx *driver.SpendContext, assetID clvm.Bytes32, pricing Pricing, sol XchandlesPricingSolution) (clvm.NodePtr, clvm.NodePtr, clvm.NodePtr, error) {
	pricingPuzzle, err := pricing.ConstructPuzzle(ctx)
	if err != nil {
		return clvm.Nil, clvm.Nil, clvm.Nil, err
	}

	catMaker, err := DefaultCatMaker(ctx, assetID)
	if err != nil {
		return clvm.Nil, clvm.Nil, clvm.Nil, err
	}

	pricingSol, err := sol.ToClvm(ctx.Allocator)
	if err != nil {
		return clvm.Nil, clvm.Nil, clvm.Nil, err
	}

	return pricingPuzzle, catMaker, pricingSol, nil
}
