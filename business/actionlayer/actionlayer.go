// Package actionlayer implements the action layer: a merkle gated state
// machine puzzle. A coin holding the layer threads its state through a
// sequence of whitelisted action puzzles and a finalizer recreates the coin
// with the new state. The merkle root of the whitelist never changes across
// the lineage, only the state does.
package actionlayer

import (
	"errors"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/merkle"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Set of error variables for the action layer.
var (
	ErrNoActions       = errors.New("no action puzzle hashes")
	ErrUnknownAction   = errors.New("action is not in the merkle tree")
	ErrBadSelector     = errors.New("malformed action selector")
	ErrPendingMismatch = errors.New("pending spend does not match the puzzle output")
)

// DefaultReserveAmountProgram returns the first element of the state as
// the reserve amount.
var DefaultReserveAmountProgram = []byte{0x02}

// =============================================================================

// Finalizer is the program that runs after every action and recreates the
// action layer coin.
type Finalizer interface {
	construct(ctx *driver.SpendContext) (clvm.NodePtr, error)
	hash(lib puzzles.Library) (clvm.Bytes32, error)
}

// DefaultFinalizer recreates the coin with amount 1 and hints it.
type DefaultFinalizer struct {
	Hint clvm.Bytes32
}

func (f DefaultFinalizer) construct(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	first, err := ctx.Curry(puzzles.DefaultFinalizer, ctx.NewBytes32(ctx.Library().MustHash(puzzles.ActionLayer)), ctx.NewBytes32(f.Hint))
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Allocator.Curry(first, ctx.NewBytes32(ctx.TreeHash(first))), nil
}

func (f DefaultFinalizer) hash(lib puzzles.Library) (clvm.Bytes32, error) {
	al := lib.MustHash(puzzles.ActionLayer)
	self := clvm.CurryTreeHash(lib.MustHash(puzzles.DefaultFinalizer), clvm.TreeHashAtom(al[:]), clvm.TreeHashAtom(f.Hint[:]))

	return selfCurried(self), nil
}

// ReserveFinalizer recreates the coin like the default finalizer and also
// recreates the reserve coin that backs the registry. The reserve amount is
// computed from the new state by the amount program.
type ReserveFinalizer struct {
	ReserveFullPuzzleHash  clvm.Bytes32
	ReserveInnerPuzzleHash clvm.Bytes32
	AmountProgram          []byte
	Hint                   clvm.Bytes32
}

func (f ReserveFinalizer) program() []byte {
	if f.AmountProgram == nil {
		return DefaultReserveAmountProgram
	}
	return f.AmountProgram
}

func (f ReserveFinalizer) construct(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	program, err := ctx.Deserialize(f.program())
	if err != nil {
		return clvm.Nil, err
	}

	first, err := ctx.Curry(puzzles.ReserveFinalizer,
		ctx.NewBytes32(ctx.Library().MustHash(puzzles.ActionLayer)),
		ctx.NewBytes32(f.ReserveFullPuzzleHash),
		ctx.NewBytes32(f.ReserveInnerPuzzleHash),
		program,
		ctx.NewBytes32(f.Hint),
	)
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Allocator.Curry(first, ctx.NewBytes32(ctx.TreeHash(first))), nil
}

func (f ReserveFinalizer) hash(lib puzzles.Library) (clvm.Bytes32, error) {
	a := clvm.NewAllocator()
	program, err := a.Deserialize(f.program())
	if err != nil {
		return clvm.Bytes32{}, err
	}

	al := lib.MustHash(puzzles.ActionLayer)
	self := clvm.CurryTreeHash(lib.MustHash(puzzles.ReserveFinalizer),
		clvm.TreeHashAtom(al[:]),
		clvm.TreeHashAtom(f.ReserveFullPuzzleHash[:]),
		clvm.TreeHashAtom(f.ReserveInnerPuzzleHash[:]),
		a.TreeHash(program),
		clvm.TreeHashAtom(f.Hint[:]),
	)

	return selfCurried(self), nil
}

// selfCurried returns the hash of a program curried with its own hash.
func selfCurried(self clvm.Bytes32) clvm.Bytes32 {
	return clvm.CurryTreeHash(self, clvm.TreeHashAtom(self[:]))
}

// =============================================================================

// ActionLayer is the state machine puzzle. S is the state the actions
// thread through.
type ActionLayer[S clvm.Value[S]] struct {
	MerkleRoot clvm.Bytes32
	State      S
	Finalizer  Finalizer
}

// New constructs an action layer whose whitelist is the set of action
// puzzle hashes.
func New[S clvm.Value[S]](actionHashes []clvm.Bytes32, state S, finalizer Finalizer) (ActionLayer[S], error) {
	if len(actionHashes) == 0 {
		return ActionLayer[S]{}, ErrNoActions
	}

	l := ActionLayer[S]{
		MerkleRoot: merkle.NewHashTree(actionHashes).Root32(),
		State:      state,
		Finalizer:  finalizer,
	}

	return l, nil
}

// WithState returns the layer with the state replaced. The merkle root and
// finalizer carry over.
func (l ActionLayer[S]) WithState(state S) ActionLayer[S] {
	l.State = state
	return l
}

// ConstructPuzzle implements the driver.Layer interface.
func (l ActionLayer[S]) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	finalizer, err := l.Finalizer.construct(ctx)
	if err != nil {
		return clvm.Nil, err
	}

	state, err := l.State.ToClvm(ctx.Allocator)
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Curry(puzzles.ActionLayer, finalizer, ctx.NewBytes32(l.MerkleRoot), state)
}

// PuzzleHash returns the puzzle hash of the layer without building it in a
// spend context. The state is encoded in a scratch arena so it must not
// hold nodes of another arena. Use HashIn for states such as clvm.Raw.
func (l ActionLayer[S]) PuzzleHash(lib puzzles.Library) (clvm.Bytes32, error) {
	return l.puzzleHash(lib, clvm.NewAllocator())
}

// HashIn returns the puzzle hash of the layer with the state encoded in
// the arena of the context.
func (l ActionLayer[S]) HashIn(ctx *driver.SpendContext) (clvm.Bytes32, error) {
	return l.puzzleHash(ctx.Library(), ctx.Allocator)
}

func (l ActionLayer[S]) puzzleHash(lib puzzles.Library, a *clvm.Allocator) (clvm.Bytes32, error) {
	finalizer, err := l.Finalizer.hash(lib)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	state, err := l.State.ToClvm(a)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	return clvm.CurryTreeHash(lib.MustHash(puzzles.ActionLayer), finalizer, clvm.TreeHashAtom(l.MerkleRoot[:]), a.TreeHash(state)), nil
}

// Parse parses an action layer puzzle. It fails closed when the finalizer
// is not one of the known finalizers or does not commit to itself.
func Parse[S clvm.Value[S]](ctx *driver.SpendContext, p driver.Puzzle) (ActionLayer[S], bool, error) {
	if ok, err := p.Expect(ctx, puzzles.ActionLayer, 3); !ok {
		return ActionLayer[S]{}, false, err
	}

	finalizer, err := parseFinalizer(ctx, p.Args[0])
	if err != nil {
		return ActionLayer[S]{}, false, err
	}

	root, err := ctx.Bytes32(p.Args[1])
	if err != nil {
		return ActionLayer[S]{}, false, driver.NonStandard("action layer", err)
	}

	state, err := clvm.Decode[S](ctx.Allocator, p.Args[2])
	if err != nil {
		return ActionLayer[S]{}, false, driver.NonStandard("action layer state", err)
	}

	return ActionLayer[S]{MerkleRoot: root, State: state, Finalizer: finalizer}, true, nil
}

func parseFinalizer(ctx *driver.SpendContext, n clvm.NodePtr) (Finalizer, error) {
	lib := ctx.Library()

	first, selfArgs, ok := ctx.Uncurry(n)
	if !ok || len(selfArgs) != 1 {
		return nil, driver.NonStandard("finalizer", nil)
	}

	self, err := ctx.Bytes32(selfArgs[0])
	if err != nil || self != ctx.TreeHash(first) {
		return nil, driver.NonStandard("finalizer self hash", err)
	}

	p := driver.ParsePuzzle(ctx.Allocator, first)
	if !p.Curried || len(p.Args) == 0 {
		return nil, driver.NonStandard("finalizer", nil)
	}

	if al, err := ctx.Bytes32(p.Args[0]); err != nil || al != lib.MustHash(puzzles.ActionLayer) {
		return nil, driver.NonStandard("finalizer action layer hash", err)
	}

	switch {
	case p.Is(ctx, puzzles.DefaultFinalizer):
		if len(p.Args) != 2 {
			return nil, driver.WrongArgCount("default finalizer", len(p.Args), 2)
		}

		hint, err := ctx.Bytes32(p.Args[1])
		if err != nil {
			return nil, driver.NonStandard("default finalizer", err)
		}
		return DefaultFinalizer{Hint: hint}, nil

	case p.Is(ctx, puzzles.ReserveFinalizer):
		if len(p.Args) != 5 {
			return nil, driver.WrongArgCount("reserve finalizer", len(p.Args), 5)
		}

		var f ReserveFinalizer
		if f.ReserveFullPuzzleHash, err = ctx.Bytes32(p.Args[1]); err != nil {
			return nil, driver.NonStandard("reserve finalizer", err)
		}
		if f.ReserveInnerPuzzleHash, err = ctx.Bytes32(p.Args[2]); err != nil {
			return nil, driver.NonStandard("reserve finalizer", err)
		}
		if f.AmountProgram, err = ctx.Serialize(p.Args[3]); err != nil {
			return nil, driver.NonStandard("reserve finalizer", err)
		}
		if f.Hint, err = ctx.Bytes32(p.Args[4]); err != nil {
			return nil, driver.NonStandard("reserve finalizer", err)
		}
		return f, nil
	}

	return nil, driver.NonStandard("finalizer", nil)
}
