package actionlayer

import (
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Step is the off chain result of one action: the spend that runs it and
// what running it does to the registry.
type Step[S clvm.Value[S]] struct {
	Spend             driver.Spend
	State             S
	CreatedSlots      []clvm.Bytes32
	SpentSlots        []clvm.Bytes32
	ReserveDelta      int64
	ReserveConditions []driver.Condition
}

// PendingSpend mirrors what the queued actions do so callers can read the
// intermediate state without running the puzzle.
type PendingSpend[S clvm.Value[S]] struct {
	Actions           []driver.Spend
	CreatedSlots      []clvm.Bytes32
	SpentSlots        []clvm.Bytes32
	LatestState       S
	ReserveDelta      int64
	ReserveConditions []driver.Condition
}

// Registry is a singleton holding an action layer. Actions are queued with
// Insert and the singleton is spent once by Finish.
type Registry[S clvm.Value[S]] struct {
	Coin         database.Coin
	Proof        database.Proof
	LauncherID   clvm.Bytes32
	Layer        ActionLayer[S]
	ActionHashes []clvm.Bytes32
	Reserve      *Reserve
	Pending      PendingSpend[S]

	// SlotPuzzleHash maps a slot value hash to the puzzle hash of the slot
	// coin. When it is set Finish checks the slots the puzzle creates and
	// spends against the pending spend.
	SlotPuzzleHash func(valueHash clvm.Bytes32) clvm.Bytes32
}

// NewRegistry constructs a registry around the live singleton coin. The
// reserve is nil for registries that use the default finalizer.
func NewRegistry[S clvm.Value[S]](coin database.Coin, proof database.Proof, launcherID clvm.Bytes32, layer ActionLayer[S], actionHashes []clvm.Bytes32, reserve *Reserve) *Registry[S] {
	return &Registry[S]{
		Coin:         coin,
		Proof:        proof,
		LauncherID:   launcherID,
		Layer:        layer,
		ActionHashes: actionHashes,
		Reserve:      reserve,
		Pending:      PendingSpend[S]{LatestState: layer.State},
	}
}

// State returns the state after every queued action.
func (r *Registry[S]) State() S {
	return r.Pending.LatestState
}

// Insert queues the action step.
func (r *Registry[S]) Insert(step Step[S]) {
	r.Pending.Actions = append(r.Pending.Actions, step.Spend)
	r.Pending.CreatedSlots = append(r.Pending.CreatedSlots, step.CreatedSlots...)
	r.Pending.SpentSlots = append(r.Pending.SpentSlots, step.SpentSlots...)
	r.Pending.LatestState = step.State
	r.Pending.ReserveDelta += step.ReserveDelta
	r.Pending.ReserveConditions = append(r.Pending.ReserveConditions, step.ReserveConditions...)
}

// InnerPuzzleHash returns the singleton inner puzzle hash of the registry
// before the pending actions.
func (r *Registry[S]) InnerPuzzleHash(ctx *driver.SpendContext) (clvm.Bytes32, error) {
	return r.Layer.HashIn(ctx)
}

// Finish spends the registry with every queued action and returns the
// registry recreated with the new state. When the context can run puzzles
// the solution is executed and the result must match the pending spend.
func (r *Registry[S]) Finish(ctx *driver.SpendContext) (*Registry[S], error) {
	lib := ctx.Library()

	finalizerSolution := clvm.Nil
	if r.Reserve != nil {
		finalizerSolution = ctx.List(ctx.NewBytes32(r.Reserve.Coin.ParentCoinInfo))
	}

	inner, err := driver.ConstructSpend[Solution](ctx, r.Layer, Solution{
		ActionHashes:      r.ActionHashes,
		Actions:           r.Pending.Actions,
		FinalizerSolution: finalizerSolution,
	})
	if err != nil {
		return nil, err
	}

	if err := r.check(ctx, inner); err != nil {
		return nil, err
	}

	innerPH, err := r.Layer.HashIn(ctx)
	if err != nil {
		return nil, err
	}

	singleton := layers.Singleton{Coin: r.Coin, LauncherID: r.LauncherID, Proof: r.Proof, InnerPuzzleHash: innerPH}
	if err := singleton.Spend(ctx, inner); err != nil {
		return nil, err
	}

	next := r.Layer.WithState(r.Pending.LatestState)
	nextPH, err := next.HashIn(ctx)
	if err != nil {
		return nil, err
	}
	child := singleton.Child(lib, nextPH, r.Coin.Amount)

	var reserve *Reserve
	if r.Reserve != nil {
		amount, err := r.reserveAmount()
		if err != nil {
			return nil, err
		}

		f, ok := r.Layer.Finalizer.(ReserveFinalizer)
		if !ok {
			return nil, driver.NonStandard("registry finalizer", nil)
		}

		conds := make([]clvm.NodePtr, len(r.Pending.ReserveConditions))
		for i, c := range r.Pending.ReserveConditions {
			if conds[i], err = c.ToClvm(ctx.Allocator); err != nil {
				return nil, err
			}
		}

		if err := r.Reserve.Spend(ctx, innerPH, f.DelegatedPuzzle(ctx, amount, conds)); err != nil {
			return nil, err
		}

		rc := r.Reserve.Child(lib, amount)
		reserve = &rc
	}

	ctx.Event("actionlayer: finish: registry[%s] actions[%d] created[%d] spent[%d]", r.LauncherID, len(r.Pending.Actions), len(r.Pending.CreatedSlots), len(r.Pending.SpentSlots))

	nr := NewRegistry(child.Coin, child.Proof, r.LauncherID, next, r.ActionHashes, reserve)
	nr.SlotPuzzleHash = r.SlotPuzzleHash

	return nr, nil
}

func (r *Registry[S]) reserveAmount() (uint64, error) {
	amount := int64(r.Reserve.Coin.Amount) + r.Pending.ReserveDelta
	if amount < 0 {
		return 0, fmt.Errorf("reserve[%d] delta[%d]: %w", r.Reserve.Coin.Amount, r.Pending.ReserveDelta, clvm.ErrNegative)
	}
	return uint64(amount), nil
}

// check runs the layer puzzle and compares its output with the pending
// spend: the state, the conditions the mirror expects, the recreated coin,
// the reserve approval and the slots created and spent. Without a runner
// nothing can be compared and the skip is raised as an event.
func (r *Registry[S]) check(ctx *driver.SpendContext, inner driver.Spend) error {
	if !ctx.CanRun() {
		ctx.Event("actionlayer: finish: registry[%s] unchecked: no runner", r.LauncherID)
		return nil
	}

	mirror, err := r.Layer.Execute(ctx, inner.Solution)
	if err != nil {
		return err
	}

	got, err := mirror.State.ToClvm(ctx.Allocator)
	if err != nil {
		return err
	}
	exp, err := r.Pending.LatestState.ToClvm(ctx.Allocator)
	if err != nil {
		return err
	}

	if ctx.TreeHash(got) != ctx.TreeHash(exp) {
		return fmt.Errorf("state: %w", ErrPendingMismatch)
	}

	conds, err := ctx.RunConditions(inner)
	if err != nil {
		return fmt.Errorf("action layer puzzle: %w", err)
	}

	if err := sameConditions(ctx, conds, mirror.Conditions); err != nil {
		return err
	}

	nextPH, err := r.Layer.WithState(r.Pending.LatestState).HashIn(ctx)
	if err != nil {
		return err
	}

	var created, spent []clvm.Bytes32
	recreated := false
	for _, c := range conds {
		switch c := c.(type) {
		case driver.CreateCoin:
			switch {
			case c.Amount == 1 && c.PuzzleHash == nextPH:
				recreated = true
			case c.Amount == 0:
				created = append(created, c.PuzzleHash)
			}

		case driver.Message:
			if c.Receive || c.Mode != slotMessageMode || len(c.Data) == 0 {
				continue
			}
			ph, err := ctx.Bytes32(c.Data[0])
			if err != nil {
				return fmt.Errorf("slot message: %w", err)
			}
			spent = append(spent, ph)
		}
	}

	if !recreated {
		return fmt.Errorf("registry not recreated with puzzle hash[%s]: %w", nextPH, ErrPendingMismatch)
	}

	if f, ok := r.Layer.Finalizer.(ReserveFinalizer); ok && r.Reserve != nil {
		if err := r.checkReserve(ctx, f, got, conds); err != nil {
			return err
		}
	}

	if r.SlotPuzzleHash == nil {
		return nil
	}

	if err := sameSlots("created", created, r.Pending.CreatedSlots, r.SlotPuzzleHash); err != nil {
		return err
	}

	return sameSlots("spent", spent, r.Pending.SpentSlots, r.SlotPuzzleHash)
}

// checkReserve compares the reserve approval the puzzle sends with the
// reserve spend Finish builds from the pending spend.
func (r *Registry[S]) checkReserve(ctx *driver.SpendContext, f ReserveFinalizer, state clvm.NodePtr, conds driver.Conditions) error {
	amount, err := f.Amount(ctx, state)
	if err != nil {
		return err
	}

	pending, err := r.reserveAmount()
	if err != nil {
		return err
	}

	if amount != pending {
		return fmt.Errorf("reserve amount[%d] pending[%d]: %w", amount, pending, ErrPendingMismatch)
	}

	reserveConds := make([]clvm.NodePtr, len(r.Pending.ReserveConditions))
	for i, c := range r.Pending.ReserveConditions {
		if reserveConds[i], err = c.ToClvm(ctx.Allocator); err != nil {
			return err
		}
	}

	exp, err := ReserveMessage(ctx, f.DelegatedPuzzle(ctx, pending, reserveConds), r.Reserve.Coin.CoinID()).ToClvm(ctx.Allocator)
	if err != nil {
		return err
	}

	for _, c := range conds {
		if c.Opcode() != driver.OpSendMessage {
			continue
		}

		n, err := c.ToClvm(ctx.Allocator)
		if err != nil {
			return err
		}
		if ctx.TreeHash(n) == ctx.TreeHash(exp) {
			return nil
		}
	}

	return fmt.Errorf("reserve approval: %w", ErrPendingMismatch)
}

// sameConditions compares two condition lists by the tree hash of their
// encoding.
func sameConditions(ctx *driver.SpendContext, got driver.Conditions, exp driver.Conditions) error {
	g, err := got.ToClvm(ctx.Allocator)
	if err != nil {
		return err
	}

	e, err := exp.ToClvm(ctx.Allocator)
	if err != nil {
		return err
	}

	if ctx.TreeHash(g) != ctx.TreeHash(e) {
		return fmt.Errorf("conditions got[%d] exp[%d]: %w", len(got), len(exp), ErrPendingMismatch)
	}

	return nil
}

// sameSlots compares the slot puzzle hashes the puzzle output with the
// value hashes of the pending spend. Order does not matter.
func sameSlots(kind string, got []clvm.Bytes32, valueHashes []clvm.Bytes32, slotPuzzleHash func(clvm.Bytes32) clvm.Bytes32) error {
	counts := make(map[clvm.Bytes32]int, len(valueHashes))
	for _, h := range valueHashes {
		counts[slotPuzzleHash(h)]++
	}

	for _, ph := range got {
		counts[ph]--
	}

	for ph, n := range counts {
		if n != 0 {
			return fmt.Errorf("%s slot[%s] count[%d]: %w", kind, ph, n, ErrPendingMismatch)
		}
	}

	return nil
}
