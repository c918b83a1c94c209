// Package registry implements the slot based registries: a sorted linked
// list kept on chain as slot coins created and spent by a singleton that
// holds an action layer. CATalog maps asset ids to NFTs and XCHandles maps
// handles to owners.
package registry

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Set of error variables for the registries.
var (
	ErrNotBracketed = errors.New("key is not between the neighbor slots")
	ErrBrokenChain  = errors.New("slots do not form a sorted chain")
	ErrSlotNotFound = errors.New("slot not found")
	ErrBadHandle    = errors.New("invalid handle")
	ErrNotExpired   = errors.New("handle has not expired")
)

// Keys of the two sentinel slots every registry starts with.
var (
	SlotMin = clvm.Bytes32{}
	SlotMax = maxKey()
)

func maxKey() clvm.Bytes32 {
	var k clvm.Bytes32
	for i := range k {
		k[i] = 0xff
	}
	return k
}

// =============================================================================

// Neighbors holds the keys of the slots before and after a slot.
type Neighbors struct {
	Left  clvm.Bytes32
	Right clvm.Bytes32
}

// ToClvm implements the clvm.Value interface.
func (n Neighbors) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.Cons(a.NewBytes32(n.Left), a.NewBytes32(n.Right)), nil
}

// FromClvm implements the clvm.Value interface.
func (Neighbors) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (Neighbors, error) {
	left, right, ok := a.Pair(n)
	if !ok {
		return Neighbors{}, clvm.ErrPairExpected
	}

	var nb Neighbors
	var err error
	if nb.Left, err = a.Bytes32(left); err != nil {
		return Neighbors{}, err
	}
	if nb.Right, err = a.Bytes32(right); err != nil {
		return Neighbors{}, err
	}

	return nb, nil
}

// Linked is a slot value that is a node of the sorted chain.
type Linked interface {
	Key() clvm.Bytes32
	Links() Neighbors
}

// CheckChain verifies the values form one sorted chain from the minimum
// sentinel to the maximum sentinel where every value is reachable and
// every neighbor pointer is mirrored by the neighbor.
func CheckChain[V Linked](values []V) error {
	byKey := make(map[clvm.Bytes32]V, len(values))
	for _, v := range values {
		if _, exists := byKey[v.Key()]; exists {
			return fmt.Errorf("duplicate key[%s]: %w", v.Key(), ErrBrokenChain)
		}
		byKey[v.Key()] = v
	}

	cur, exists := byKey[SlotMin]
	if !exists {
		return fmt.Errorf("missing min sentinel: %w", ErrBrokenChain)
	}

	visited := 1
	for cur.Key() != SlotMax {
		next, exists := byKey[cur.Links().Right]
		if !exists {
			return fmt.Errorf("key[%s] right[%s] missing: %w", cur.Key(), cur.Links().Right, ErrBrokenChain)
		}

		if next.Key().Compare(cur.Key()) <= 0 {
			return fmt.Errorf("key[%s] right[%s] out of order: %w", cur.Key(), next.Key(), ErrBrokenChain)
		}

		if next.Links().Left != cur.Key() {
			return fmt.Errorf("key[%s] left[%s] expected[%s]: %w", next.Key(), next.Links().Left, cur.Key(), ErrBrokenChain)
		}

		cur = next
		visited++
	}

	if visited != len(values) {
		return fmt.Errorf("visited[%d] slots[%d]: %w", visited, len(values), ErrBrokenChain)
	}

	return nil
}

// =============================================================================

// SlotProof is the compact lineage of the registry coin that created a
// slot. Slots are always created by the registry singleton.
type SlotProof struct {
	ParentParentCoinInfo  clvm.Bytes32
	ParentInnerPuzzleHash clvm.Bytes32
}

// ParentID returns the coin id of the registry coin that created the slot.
func (p SlotProof) ParentID(lib puzzles.Library, launcherID clvm.Bytes32) clvm.Bytes32 {
	ph := layers.SingletonPuzzleHash(lib, launcherID, p.ParentInnerPuzzleHash)
	return database.NewCoin(p.ParentParentCoinInfo, ph, 1).CoinID()
}

// Slot is a zero amount coin that commits to one value of a registry.
type Slot[V clvm.Value[V]] struct {
	Coin       database.Coin
	Proof      SlotProof
	LauncherID clvm.Bytes32
	Nonce      uint64
	Value      V
	ValueHash  clvm.Bytes32
}

// NewSlot returns the slot the registry coin described by the proof
// created for the value.
func NewSlot[V clvm.Value[V]](lib puzzles.Library, proof SlotProof, launcherID clvm.Bytes32, nonce uint64, value V) (Slot[V], error) {
	hash, err := valueHash(value)
	if err != nil {
		return Slot[V]{}, err
	}

	s := Slot[V]{
		Coin:       database.NewCoin(proof.ParentID(lib, launcherID), SlotPuzzleHash(lib, launcherID, nonce, hash), 0),
		Proof:      proof,
		LauncherID: launcherID,
		Nonce:      nonce,
		Value:      value,
		ValueHash:  hash,
	}

	return s, nil
}

// SlotFirstCurryHash returns the hash of the slot puzzle curried with the
// registry's singleton info and the nonce. Actions commit to it so they can
// compute any slot puzzle hash from a value hash.
func SlotFirstCurryHash(lib puzzles.Library, launcherID clvm.Bytes32, nonce uint64) clvm.Bytes32 {
	singletonMod := lib.MustHash(puzzles.Singleton)
	structHash := layers.NewSingletonStruct(lib, launcherID).Hash()

	packed := clvm.TreeHashPair(clvm.TreeHashAtom(singletonMod[:]), clvm.TreeHashAtom(structHash[:]))
	return clvm.CurryTreeHash(lib.MustHash(puzzles.Slot), packed, clvm.TreeHashAtom(clvm.EncodeUint64(nonce)))
}

// SlotPuzzleHash returns the puzzle hash of the slot holding the value.
func SlotPuzzleHash(lib puzzles.Library, launcherID clvm.Bytes32, nonce uint64, valueHash clvm.Bytes32) clvm.Bytes32 {
	return clvm.CurryTreeHash(SlotFirstCurryHash(lib, launcherID, nonce), clvm.TreeHashAtom(valueHash[:]))
}

// ConstructPuzzle builds the slot puzzle.
func (s Slot[V]) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	lib := ctx.Library()
	packed := ctx.Cons(
		ctx.NewBytes32(lib.MustHash(puzzles.Singleton)),
		ctx.NewBytes32(layers.NewSingletonStruct(lib, s.LauncherID).Hash()),
	)

	first, err := ctx.Curry(puzzles.Slot, packed, ctx.NewUint64(s.Nonce))
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Allocator.Curry(first, ctx.NewBytes32(s.ValueHash)), nil
}

// Spend spends the slot. The registry spending it must have the inner
// puzzle hash, which the slot checks through a message.
func (s Slot[V]) Spend(ctx *driver.SpendContext, spenderInnerPuzzleHash clvm.Bytes32) error {
	puzzle, err := s.ConstructPuzzle(ctx)
	if err != nil {
		return err
	}

	lineage := ctx.ListWithRest(ctx.NewUint64(1), ctx.NewBytes32(s.Proof.ParentParentCoinInfo), ctx.NewBytes32(s.Proof.ParentInnerPuzzleHash))
	solution := ctx.Cons(lineage, ctx.NewBytes32(spenderInnerPuzzleHash))

	return ctx.Spend(s.Coin, driver.NewSpend(puzzle, solution))
}

func valueHash[V driver.Encoder](v V) (clvm.Bytes32, error) {
	a := clvm.NewAllocator()
	n, err := v.ToClvm(a)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	return a.TreeHash(n), nil
}
