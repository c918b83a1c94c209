package registry

import (
	"github.com/ardanlabs/puzzlekit/business/actionlayer"
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// SlotValue is a registry slot value: it moves in and out of the arena and
// is a node of the sorted chain.
type SlotValue[V any] interface {
	clvm.Value[V]
	Linked
}

// chain is the part shared by the registries: the action layer registry
// and the slots created by the pending actions that are still live.
type chain[S clvm.Value[S], V SlotValue[V]] struct {
	Registry *actionlayer.Registry[S]
	live     []V
}

// newChain wraps the registry and has it check the slots its spends create
// and spend against the pending actions.
func newChain[S clvm.Value[S], V SlotValue[V]](lib puzzles.Library, reg *actionlayer.Registry[S]) chain[S, V] {
	launcherID := reg.LauncherID
	reg.SlotPuzzleHash = func(valueHash clvm.Bytes32) clvm.Bytes32 {
		return SlotPuzzleHash(lib, launcherID, 0, valueHash)
	}

	return chain[S, V]{Registry: reg}
}

// insert queues an action that spends and creates the slot values.
func (c *chain[S, V]) insert(spend driver.Spend, state S, created []V, spent []V) error {
	step := actionlayer.Step[S]{Spend: spend, State: state}

	for _, v := range spent {
		h, err := valueHash(v)
		if err != nil {
			return err
		}
		step.SpentSlots = append(step.SpentSlots, h)
		c.drop(h)
	}

	for _, v := range created {
		h, err := valueHash(v)
		if err != nil {
			return err
		}
		step.CreatedSlots = append(step.CreatedSlots, h)
		c.live = append(c.live, v)
	}

	c.Registry.Insert(step)
	return nil
}

// drop removes the pending slot with the value hash, if there is one.
func (c *chain[S, V]) drop(hash clvm.Bytes32) {
	for i, v := range c.live {
		if h, err := valueHash(v); err == nil && h == hash {
			c.live = append(c.live[:i], c.live[i+1:]...)
			return
		}
	}
}

// proof returns the proof of slots created by the pending spend.
func (c *chain[S, V]) proof(lib puzzles.Library) (SlotProof, error) {
	innerPH, err := c.Registry.Layer.PuzzleHash(lib)
	if err != nil {
		return SlotProof{}, err
	}

	return SlotProof{ParentParentCoinInfo: c.Registry.Coin.ParentCoinInfo, ParentInnerPuzzleHash: innerPH}, nil
}

// pendingSlot returns the slot the pending spend creates for the value.
func (c *chain[S, V]) pendingSlot(lib puzzles.Library, v V) (Slot[V], error) {
	proof, err := c.proof(lib)
	if err != nil {
		return Slot[V]{}, err
	}

	return NewSlot(lib, proof, c.Registry.LauncherID, 0, v)
}

// ActualNeighbors returns the slots that bracket the key once the pending
// actions are applied. Callers find left and right on chain, but earlier
// actions of the same spend may have replaced them.
func (c *chain[S, V]) ActualNeighbors(lib puzzles.Library, key clvm.Bytes32, left Slot[V], right Slot[V]) (Slot[V], Slot[V], error) {
	for _, v := range c.live {
		k := v.Key()

		if k.Compare(key) < 0 && k.Compare(left.Value.Key()) >= 0 {
			s, err := c.pendingSlot(lib, v)
			if err != nil {
				return Slot[V]{}, Slot[V]{}, err
			}
			left = s
		}

		if k.Compare(key) > 0 && k.Compare(right.Value.Key()) <= 0 {
			s, err := c.pendingSlot(lib, v)
			if err != nil {
				return Slot[V]{}, Slot[V]{}, err
			}
			right = s
		}
	}

	return left, right, nil
}

// ActualSlot returns the latest version of the slot once the pending
// actions are applied.
func (c *chain[S, V]) ActualSlot(lib puzzles.Library, slot Slot[V]) (Slot[V], error) {
	for _, v := range c.live {
		if v.Key() != slot.Value.Key() {
			continue
		}

		s, err := c.pendingSlot(lib, v)
		if err != nil {
			return Slot[V]{}, err
		}
		slot = s
	}

	return slot, nil
}

// PendingSlots returns the slots the pending spend creates that no later
// action spends.
func (c *chain[S, V]) PendingSlots(lib puzzles.Library) ([]Slot[V], error) {
	slots := make([]Slot[V], len(c.live))
	for i, v := range c.live {
		s, err := c.pendingSlot(lib, v)
		if err != nil {
			return nil, err
		}
		slots[i] = s
	}

	return slots, nil
}

// finish spends the registry and returns the new registry and the slots
// the spend created.
func (c *chain[S, V]) finish(ctx *driver.SpendContext) (*actionlayer.Registry[S], []Slot[V], error) {
	slots, err := c.PendingSlots(ctx.Library())
	if err != nil {
		return nil, nil, err
	}

	next, err := c.Registry.Finish(ctx)
	if err != nil {
		return nil, nil, err
	}

	return next, slots, nil
}

// updateState queues the delegated state action that lets the price
// singleton set the state. It returns the message the price singleton must
// send.
func (c *chain[S, V]) updateState(ctx *driver.SpendContext, priceLauncherID clvm.Bytes32, state S, priceInnerPuzzleHash clvm.Bytes32) (driver.Condition, error) {
	node, err := state.ToClvm(ctx.Allocator)
	if err != nil {
		return nil, err
	}

	action := actionlayer.DelegatedStateAction{OtherLauncherID: priceLauncherID}
	spend, msg, err := action.Spend(ctx, c.Registry.Coin.PuzzleHash, node, priceInnerPuzzleHash)
	if err != nil {
		return nil, err
	}

	if err := c.insert(spend, state, nil, nil); err != nil {
		return nil, err
	}

	return msg, nil
}

// announcement returns the assertion of a puzzle announcement the registry
// coin makes.
func (c *chain[S, V]) announcement(prefix byte, body []byte) driver.Assert {
	msg := append([]byte{prefix}, body...)
	return driver.AssertPuzzleAnnouncement(layers.AnnouncementID(c.Registry.Coin.PuzzleHash, msg))
}

// =============================================================================

// launch spends the launcher into an eve singleton whose only job is to
// create the registry coin and the sentinel slots. It returns the registry
// singleton, the proof of the sentinel slots and the assertion the parent
// of the launcher must make.
func launch(ctx *driver.SpendContext, launcher layers.Launcher, registryInnerPuzzleHash clvm.Bytes32, slotHashes []clvm.Bytes32) (layers.Singleton, SlotProof, driver.Condition, error) {
	lib := ctx.Library()
	launcherID := launcher.Coin.CoinID()

	conds := driver.Conditions{driver.NewCreateCoin(registryInnerPuzzleHash, 1, launcherID[:])}
	for _, h := range slotHashes {
		conds = append(conds, driver.NewCreateCoin(SlotPuzzleHash(lib, launcherID, 0, h), 0))
	}

	node, err := conds.ToClvm(ctx.Allocator)
	if err != nil {
		return layers.Singleton{}, SlotProof{}, nil, err
	}

	eveInner := ctx.Quote(node)
	eveInnerPH := ctx.TreeHash(eveInner)

	eve, assert, err := launcher.Spend(ctx, eveInnerPH, clvm.Nil)
	if err != nil {
		return layers.Singleton{}, SlotProof{}, nil, err
	}

	if err := eve.Spend(ctx, driver.NewSpend(eveInner, clvm.Nil)); err != nil {
		return layers.Singleton{}, SlotProof{}, nil, err
	}

	proof := SlotProof{ParentParentCoinInfo: eve.Coin.ParentCoinInfo, ParentInnerPuzzleHash: eveInnerPH}
	child := eve.Child(lib, registryInnerPuzzleHash, 1)

	ctx.Event("registry: launch: launcher[%s] slots[%d]", launcherID, len(slotHashes))

	return child, proof, assert, nil
}
