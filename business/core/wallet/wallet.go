// Package wallet plans XCH sends for the keys of a key ring over the coins
// held by a coin store, and commits planned sends back to the store.
package wallet

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/business/spends"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/selector"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/ardanlabs/puzzlekit/foundation/nameservice"
)

// Set of error variables for planning sends.
var (
	ErrUnknownName = errors.New("unknown key name")
	ErrZeroAmount  = errors.New("amount must be greater than zero")
)

// EventHandler defines a function that is called when events
// occur in the processing of sends.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start the wallet.
type Config struct {
	Library   puzzles.Library
	Store     *database.Database
	Keys      *nameservice.NameService
	Strategy  string
	MaxCost   uint64
	EvHandler EventHandler
}

// Wallet plans sends for the keys of the key ring.
type Wallet struct {
	mu sync.Mutex

	lib       puzzles.Library
	store     *database.Database
	keys      *nameservice.NameService
	selector  selector.Func
	maxCost   uint64
	evHandler EventHandler
}

// New constructs a wallet over the coin store.
func New(cfg Config) (*Wallet, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	strategy := cfg.Strategy
	if strategy == "" {
		strategy = selector.StrategyKnapsack
	}

	fn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	w := Wallet{
		lib:       cfg.Library,
		store:     cfg.Store,
		keys:      cfg.Keys,
		selector:  fn,
		maxCost:   cfg.MaxCost,
		evHandler: ev,
	}

	return &w, nil
}

// =============================================================================

// Send describes an XCH payment from a named key.
type Send struct {
	From   string
	To     clvm.Bytes32
	Amount uint64
	Fee    uint64
	Memos  [][]byte
}

// Plan is a built but uncommitted send.
type Plan struct {
	Selected   []database.Coin
	CoinSpends []database.CoinSpend
	Additions  []database.Coin
	Fee        uint64
}

// Plan selects coins owned by the sender, pays the recipient, returns
// change to the sender, and signs nothing. The coin store is not changed.
func (w *Wallet) Plan(send Send) (Plan, error) {
	if send.Amount == 0 {
		return Plan{}, ErrZeroAmount
	}

	entry, exists := w.keys.ByName(send.From)
	if !exists {
		return Plan{}, fmt.Errorf("name[%s]: %w", send.From, ErrUnknownName)
	}

	coins := w.store.UnspentCoins(entry.PuzzleHash)

	selected, err := w.selector(coins, send.Amount+send.Fee)
	if err != nil {
		return Plan{}, fmt.Errorf("select: %w", err)
	}

	w.evHandler("wallet: plan: from[%s] to[%s] amount[%d] fee[%d] selected[%d]", send.From, send.To, send.Amount, send.Fee, len(selected))

	ctx := driver.New(driver.Config{
		Library:   w.lib,
		MaxCost:   w.maxCost,
		EvHandler: driver.EventHandler(w.evHandler),
	})

	s := spends.New(w.lib, entry.PuzzleHash)
	for _, c := range selected {
		s.AddXch(c)
	}

	actions := []spends.Action{
		spends.Send{ID: spends.XCH, PuzzleHash: send.To, Amount: send.Amount, Memos: send.Memos},
	}
	if send.Fee > 0 {
		actions = append(actions, spends.Fee{Amount: send.Fee})
	}

	deltas, err := s.Apply(ctx, actions)
	if err != nil {
		return Plan{}, fmt.Errorf("apply: %w", err)
	}

	out, err := s.FinishWithKeys(ctx, deltas, w.keys.Keys())
	if err != nil {
		return Plan{}, fmt.Errorf("finish: %w", err)
	}

	plan := Plan{
		Selected:   selected,
		CoinSpends: ctx.Take(),
		Additions:  out.Xch,
		Fee:        out.Fee,
	}

	return plan, nil
}

// Commit applies the plan to the coin store one height above the peak.
// It fails without changes if any selected coin has been spent since the
// plan was built.
func (w *Wallet) Commit(plan Plan) (uint32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	height := w.store.Peak() + 1
	if err := w.store.ApplySpends(height, plan.CoinSpends, plan.Additions); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	w.evHandler("wallet: commit: spends[%d] additions[%d] height[%d]", len(plan.CoinSpends), len(plan.Additions), height)

	return height, nil
}

// Balance returns the unspent total of the named key.
func (w *Wallet) Balance(name string) (clvm.Bytes32, uint64, error) {
	entry, exists := w.keys.ByName(name)
	if !exists {
		return clvm.Bytes32{}, 0, fmt.Errorf("name[%s]: %w", name, ErrUnknownName)
	}

	return entry.PuzzleHash, w.store.Balance(entry.PuzzleHash), nil
}

// Resolve returns the puzzle hash of a key name, or parses a hex puzzle
// hash.
func (w *Wallet) Resolve(nameOrHash string) (clvm.Bytes32, error) {
	if entry, exists := w.keys.ByName(nameOrHash); exists {
		return entry.PuzzleHash, nil
	}

	ph, err := clvm.ParseBytes32(nameOrHash)
	if err != nil {
		return clvm.Bytes32{}, fmt.Errorf("name[%s]: %w", nameOrHash, ErrUnknownName)
	}

	return ph, nil
}

// Lookup returns the key name owning the puzzle hash, or its hex.
func (w *Wallet) Lookup(puzzleHash clvm.Bytes32) string {
	return w.keys.Lookup(puzzleHash)
}
