package actionlayer

import (
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// OpReserveCondition wraps a condition an action wants the reserve coin to
// emit. The reserve finalizer moves these into the reserve's spend.
const OpReserveCondition driver.Opcode = -42

// reserveMessageMode commits the message to the sender's puzzle hash and
// the receiver's coin id.
const reserveMessageMode = 0x17

// slotMessageMode commits the message to the sender's and the receiver's
// puzzle hashes. An action spends a slot by sending it a message.
const slotMessageMode = 18

// ReserveCondition is output by an action for the reserve coin to emit.
type ReserveCondition struct {
	Condition driver.Condition
}

// Opcode implements the driver.Condition interface.
func (ReserveCondition) Opcode() driver.Opcode { return OpReserveCondition }

// ToClvm implements the driver.Condition interface.
func (c ReserveCondition) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	inner, err := c.Condition.ToClvm(a)
	if err != nil {
		return clvm.Nil, err
	}

	return a.Cons(a.NewInt64(int64(OpReserveCondition)), inner), nil
}

// =============================================================================

// Output is the result of running a solution against the layer.
// Conditions are in the order the finalizer outputs them.
type Output[S clvm.Value[S]] struct {
	State      S
	Ephemeral  clvm.NodePtr
	Conditions driver.Conditions
}

// RunActions runs every action against the state node in order. Each action
// is run with ((ephemeral . state) solution) and returns
// ((ephemeral . state) . conditions). The ephemeral state starts as nil.
// The conditions of each action are returned separately, in action order.
func RunActions(ctx *driver.SpendContext, state clvm.NodePtr, actions []driver.Spend) (clvm.NodePtr, clvm.NodePtr, []driver.Conditions, error) {
	ephemeral := clvm.Nil

	conds := make([]driver.Conditions, len(actions))
	for i, action := range actions {
		out, err := ctx.Run(action.Puzzle, ctx.List(ctx.Cons(ephemeral, state), action.Solution))
		if err != nil {
			return clvm.Nil, clvm.Nil, nil, fmt.Errorf("action[%d]: %w", i, err)
		}

		threaded, condsNode, ok := ctx.Pair(out)
		if !ok {
			return clvm.Nil, clvm.Nil, nil, fmt.Errorf("action[%d]: output: %w", i, clvm.ErrPairExpected)
		}

		if ephemeral, state, ok = ctx.Pair(threaded); !ok {
			return clvm.Nil, clvm.Nil, nil, fmt.Errorf("action[%d]: state: %w", i, clvm.ErrPairExpected)
		}

		if conds[i], err = driver.ParseConditions(ctx.Allocator, condsNode); err != nil {
			return clvm.Nil, clvm.Nil, nil, fmt.Errorf("action[%d]: %w", i, err)
		}
	}

	return ephemeral, state, conds, nil
}

// Execute runs a solution the way the puzzle does: every proof is checked
// against the merkle root, the actions run in order and the finalizer adds
// the conditions that recreate the coin.
func (l ActionLayer[S]) Execute(ctx *driver.SpendContext, solution clvm.NodePtr) (Output[S], error) {
	ps, err := ParseSolution(ctx.Allocator, solution)
	if err != nil {
		return Output[S]{}, err
	}

	if err := ps.Verify(ctx.Allocator, l.MerkleRoot); err != nil {
		return Output[S]{}, err
	}

	initial, err := l.State.ToClvm(ctx.Allocator)
	if err != nil {
		return Output[S]{}, err
	}

	ephemeral, stateNode, conds, err := RunActions(ctx, initial, ps.Actions)
	if err != nil {
		return Output[S]{}, err
	}

	state, err := clvm.Decode[S](ctx.Allocator, stateNode)
	if err != nil {
		return Output[S]{}, driver.NonStandard("action layer state", err)
	}

	final, err := l.finalize(ctx, initial, stateNode, state, conds, ps.FinalizerSolution)
	if err != nil {
		return Output[S]{}, err
	}

	return Output[S]{State: state, Ephemeral: ephemeral, Conditions: final}, nil
}

// finalize outputs what the finalizer puzzles output. The default finalizer
// recreates the coin and then emits the conditions of the last action
// first. The reserve finalizer recreates the coin, approves the reserve
// spend and then emits the actions in order with the conditions of each
// action reversed. Reserve conditions are moved into the reserve spend in
// that same order.
func (l ActionLayer[S]) finalize(ctx *driver.SpendContext, initial clvm.NodePtr, stateNode clvm.NodePtr, state S, conds []driver.Conditions, finalizerSolution clvm.NodePtr) (driver.Conditions, error) {
	childPH, err := l.WithState(state).HashIn(ctx)
	if err != nil {
		return nil, err
	}

	switch f := l.Finalizer.(type) {
	case DefaultFinalizer:
		out := driver.Conditions{driver.NewCreateCoin(childPH, 1, f.Hint[:])}
		for i := len(conds) - 1; i >= 0; i-- {
			out = append(out, conds[i]...)
		}
		return out, nil

	case ReserveFinalizer:
		var normal driver.Conditions
		var reserveConds []clvm.NodePtr
		for _, cs := range conds {
			for i := len(cs) - 1; i >= 0; i-- {
				if cs[i].Opcode() != OpReserveCondition {
					normal = append(normal, cs[i])
					continue
				}

				n, err := cs[i].ToClvm(ctx.Allocator)
				if err != nil {
					return nil, err
				}
				inner, err := ctx.Rest(n)
				if err != nil {
					return nil, driver.NonStandard("reserve condition", err)
				}
				reserveConds = append(reserveConds, inner)
			}
		}

		items, _, err := ctx.Items(finalizerSolution, 1)
		if err != nil {
			return nil, driver.NonStandard("reserve finalizer solution", err)
		}
		reserveParentID, err := ctx.Bytes32(items[0])
		if err != nil {
			return nil, driver.NonStandard("reserve finalizer solution", err)
		}

		oldAmount, err := f.Amount(ctx, initial)
		if err != nil {
			return nil, err
		}
		newAmount, err := f.Amount(ctx, stateNode)
		if err != nil {
			return nil, err
		}

		delegated := f.DelegatedPuzzle(ctx, newAmount, reserveConds)
		reserveID := database.NewCoin(reserveParentID, f.ReserveFullPuzzleHash, oldAmount).CoinID()

		out := driver.Conditions{
			driver.NewCreateCoin(childPH, 1, f.Hint[:]),
			ReserveMessage(ctx, delegated, reserveID),
		}
		return append(out, normal...), nil
	}

	return nil, driver.NonStandard("finalizer", nil)
}

// ReserveMessage is the message the registry sends to approve the
// delegated puzzle of the reserve coin.
func ReserveMessage(ctx *driver.SpendContext, delegated clvm.NodePtr, reserveID clvm.Bytes32) driver.Message {
	h := ctx.TreeHash(delegated)
	return driver.Message{Mode: reserveMessageMode, Message: h[:], Data: []clvm.NodePtr{ctx.NewBytes32(reserveID)}}
}

// Amount runs the amount program against the state to get the reserve
// amount.
func (f ReserveFinalizer) Amount(ctx *driver.SpendContext, state clvm.NodePtr) (uint64, error) {
	program, err := ctx.Deserialize(f.program())
	if err != nil {
		return 0, err
	}

	out, err := ctx.Run(program, state)
	if err != nil {
		return 0, fmt.Errorf("reserve amount: %w", err)
	}

	amount, err := ctx.Uint64(out)
	if err != nil {
		return 0, fmt.Errorf("reserve amount: %w", err)
	}

	return amount, nil
}

// DelegatedPuzzle returns the puzzle the reserve runs: it recreates the
// reserve with the amount and emits the reserve conditions of the actions.
func (f ReserveFinalizer) DelegatedPuzzle(ctx *driver.SpendContext, amount uint64, reserveConds []clvm.NodePtr) clvm.NodePtr {
	recreate := ctx.List(
		ctx.NewInt64(int64(driver.OpCreateCoin)),
		ctx.NewBytes32(f.ReserveInnerPuzzleHash),
		ctx.NewUint64(amount),
		ctx.List(ctx.NewBytes32(f.ReserveInnerPuzzleHash)),
	)

	return ctx.Quote(ctx.List(append([]clvm.NodePtr{recreate}, reserveConds...)...))
}

// =============================================================================

// DelegatedStateAction lets another singleton set the state. The other
// singleton sends the tree hash of the new state as a message.
type DelegatedStateAction struct {
	OtherLauncherID clvm.Bytes32
}

// ConstructPuzzle implements the driver.Layer interface.
func (d DelegatedStateAction) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	return ctx.Curry(puzzles.DelegatedStateAction, ctx.NewBytes32(ctx.Library().MustHash(puzzles.Singleton)), ctx.NewBytes32(layers.NewSingletonStruct(ctx.Library(), d.OtherLauncherID).Hash()))
}

// PuzzleHash returns the action's puzzle hash.
func (d DelegatedStateAction) PuzzleHash(lib puzzles.Library) clvm.Bytes32 {
	singletonMod := lib.MustHash(puzzles.Singleton)
	structHash := layers.NewSingletonStruct(lib, d.OtherLauncherID).Hash()

	return clvm.CurryTreeHash(lib.MustHash(puzzles.DelegatedStateAction), clvm.TreeHashAtom(singletonMod[:]), clvm.TreeHashAtom(structHash[:]))
}

// Spend returns the action spend that sets the new state, and the message
// the other singleton must send to the action layer coin.
func (d DelegatedStateAction) Spend(ctx *driver.SpendContext, myPuzzleHash clvm.Bytes32, newState clvm.NodePtr, otherInnerPuzzleHash clvm.Bytes32) (driver.Spend, driver.Condition, error) {
	puzzle, err := d.ConstructPuzzle(ctx)
	if err != nil {
		return driver.Spend{}, nil, err
	}

	solution := ctx.Cons(newState, ctx.NewBytes32(otherInnerPuzzleHash))
	message := ctx.TreeHash(newState)

	send := driver.Message{Mode: 18, Message: message[:], Data: []clvm.NodePtr{ctx.NewBytes32(myPuzzleHash)}}

	return driver.NewSpend(puzzle, solution), send, nil
}
