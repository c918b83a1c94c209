// Package driver provides the spend context used to build puzzles and
// solutions, the layer protocol every puzzle kind implements, and the typed
// conditions puzzles emit.
package driver

import (
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// EventHandler defines a function that is called when events occur while
// building spends.
type EventHandler func(v string, args ...any)

// Encoder is implemented by values that can be moved into the arena.
type Encoder interface {
	ToClvm(a *clvm.Allocator) (clvm.NodePtr, error)
}

// =============================================================================

// Config represents the configuration of a spend context.
type Config struct {
	Library   puzzles.Library
	Runner    Runner
	MaxCost   uint64
	EvHandler EventHandler
}

// SpendContext owns the arena for one transaction and accumulates the coin
// spends built in it. A SpendContext is not safe for concurrent use.
type SpendContext struct {
	*clvm.Allocator

	lib        puzzles.Library
	runner     Runner
	maxCost    uint64
	evHandler  EventHandler
	programs   map[puzzles.Name]clvm.NodePtr
	coinSpends []database.CoinSpend
}

// New constructs a spend context with a fresh arena.
func New(cfg Config) *SpendContext {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	maxCost := cfg.MaxCost
	if maxCost == 0 {
		maxCost = DefaultMaxCost
	}

	return &SpendContext{
		Allocator: clvm.NewAllocator(),
		lib:       cfg.Library,
		runner:    cfg.Runner,
		maxCost:   maxCost,
		evHandler: ev,
		programs:  make(map[puzzles.Name]clvm.NodePtr),
	}
}

// Library returns the puzzle library the context builds with.
func (ctx *SpendContext) Library() puzzles.Library {
	return ctx.lib
}

// Event raises an event through the configured handler.
func (ctx *SpendContext) Event(v string, args ...any) {
	ctx.evHandler(v, args...)
}

// Puzzle returns the node for the named program, deserializing it into the
// arena the first time it is requested.
func (ctx *SpendContext) Puzzle(name puzzles.Name) (clvm.NodePtr, error) {
	if n, exists := ctx.programs[name]; exists {
		return n, nil
	}

	program, err := ctx.lib.Program(name)
	if err != nil {
		return clvm.Nil, err
	}

	n, err := ctx.Deserialize(program)
	if err != nil {
		return clvm.Nil, fmt.Errorf("puzzle %s: %w", name, err)
	}

	ctx.programs[name] = n
	return n, nil
}

// ModHash returns the tree hash of the named program.
func (ctx *SpendContext) ModHash(name puzzles.Name) (clvm.Bytes32, error) {
	return ctx.lib.Hash(name)
}

// Curry curries the named program with the specified arguments.
func (ctx *SpendContext) Curry(name puzzles.Name, args ...clvm.NodePtr) (clvm.NodePtr, error) {
	mod, err := ctx.Puzzle(name)
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Allocator.Curry(mod, args...), nil
}

// Alloc moves the value into the arena.
func (ctx *SpendContext) Alloc(v Encoder) (clvm.NodePtr, error) {
	return v.ToClvm(ctx.Allocator)
}

// DelegatedSpend returns the spend of a puzzle that quotes the conditions.
func (ctx *SpendContext) DelegatedSpend(conds Conditions) (Spend, error) {
	n, err := conds.ToClvm(ctx.Allocator)
	if err != nil {
		return Spend{}, err
	}

	return NewSpend(ctx.Quote(n), clvm.Nil), nil
}

// =============================================================================

// Spend serializes the spend of the coin and appends it to the context.
func (ctx *SpendContext) Spend(coin database.Coin, spend Spend) error {
	puzzle, err := ctx.Serialize(spend.Puzzle)
	if err != nil {
		return fmt.Errorf("spend %s: puzzle: %w", coin.CoinID(), err)
	}

	solution, err := ctx.Serialize(spend.Solution)
	if err != nil {
		return fmt.Errorf("spend %s: solution: %w", coin.CoinID(), err)
	}

	if ph := ctx.TreeHash(spend.Puzzle); ph != coin.PuzzleHash {
		return fmt.Errorf("spend %s: puzzle hash %s: %w", coin.CoinID(), ph, ErrNonStandardLayer)
	}

	ctx.Insert(database.NewCoinSpend(coin, puzzle, solution))
	return nil
}

// Insert appends a coin spend that was built elsewhere.
func (ctx *SpendContext) Insert(cs database.CoinSpend) {
	ctx.evHandler("driver: insert: coin[%s] amount[%d]", cs.Coin.CoinID(), cs.Coin.Amount)
	ctx.coinSpends = append(ctx.coinSpends, cs)
}

// Take drains and returns the accumulated coin spends.
func (ctx *SpendContext) Take() []database.CoinSpend {
	spends := ctx.coinSpends
	ctx.coinSpends = nil

	ctx.evHandler("driver: take: spends[%d]", len(spends))
	return spends
}

// Pending returns the number of coin spends accumulated so far.
func (ctx *SpendContext) Pending() int {
	return len(ctx.coinSpends)
}

// CanRun reports whether the context was configured with a runner.
func (ctx *SpendContext) CanRun() bool {
	return ctx.runner != nil
}

// Run executes the puzzle against the solution using the configured runner
// and returns the output.
func (ctx *SpendContext) Run(puzzle clvm.NodePtr, solution clvm.NodePtr) (clvm.NodePtr, error) {
	if ctx.runner == nil {
		return clvm.Nil, ErrMissingRunner
	}

	red, err := ctx.runner.Run(ctx.Allocator, puzzle, solution, ctx.maxCost)
	if err != nil {
		return clvm.Nil, err
	}

	if red.Cost > ctx.maxCost {
		return clvm.Nil, fmt.Errorf("cost[%d] max[%d]: %w", red.Cost, ctx.maxCost, ErrCostExceeded)
	}

	return red.Result, nil
}

// RunConditions runs the spend and parses the output as conditions.
func (ctx *SpendContext) RunConditions(spend Spend) (Conditions, error) {
	out, err := ctx.Run(spend.Puzzle, spend.Solution)
	if err != nil {
		return nil, err
	}

	return ParseConditions(ctx.Allocator, out)
}

// =============================================================================

// Spend is the puzzle reveal and solution that satisfy one coin.
type Spend struct {
	Puzzle   clvm.NodePtr
	Solution clvm.NodePtr
}

// NewSpend constructs a spend.
func NewSpend(puzzle clvm.NodePtr, solution clvm.NodePtr) Spend {
	return Spend{
		Puzzle:   puzzle,
		Solution: solution,
	}
}
