package spends

import (
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// FungibleAsset is a coin of an asset whose amount can be split between
// children.
type FungibleAsset[A any] interface {
	CoinID() clvm.Bytes32
	Amount() uint64
	P2PuzzleHash() clvm.Bytes32
	Child(lib puzzles.Library, p2PuzzleHash clvm.Bytes32, amount uint64) A
}

// XchCoin is a standard XCH coin. Its puzzle hash is its p2 puzzle hash.
type XchCoin struct {
	Coin database.Coin
}

// CoinID implements the FungibleAsset interface.
func (c XchCoin) CoinID() clvm.Bytes32 { return c.Coin.CoinID() }

// Amount implements the FungibleAsset interface.
func (c XchCoin) Amount() uint64 { return c.Coin.Amount }

// P2PuzzleHash implements the FungibleAsset interface.
func (c XchCoin) P2PuzzleHash() clvm.Bytes32 { return c.Coin.PuzzleHash }

// Child implements the FungibleAsset interface.
func (c XchCoin) Child(_ puzzles.Library, p2PuzzleHash clvm.Bytes32, amount uint64) XchCoin {
	return XchCoin{Coin: c.Coin.Child(p2PuzzleHash, amount)}
}

// CatCoin is a CAT coin.
type CatCoin struct {
	Cat layers.Cat
}

// CoinID implements the FungibleAsset interface.
func (c CatCoin) CoinID() clvm.Bytes32 { return c.Cat.Coin.CoinID() }

// Amount implements the FungibleAsset interface.
func (c CatCoin) Amount() uint64 { return c.Cat.Coin.Amount }

// P2PuzzleHash implements the FungibleAsset interface.
func (c CatCoin) P2PuzzleHash() clvm.Bytes32 { return c.Cat.P2PuzzleHash }

// Child implements the FungibleAsset interface.
func (c CatCoin) Child(lib puzzles.Library, p2PuzzleHash clvm.Bytes32, amount uint64) CatCoin {
	return CatCoin{Cat: c.Cat.Child(lib, p2PuzzleHash, amount)}
}

// =============================================================================

// FungibleSpend is one coin of a fungible asset and what it will emit.
// An ephemeral coin is created in the same transaction, so its amount is
// not part of the selected amount.
type FungibleSpend[A FungibleAsset[A]] struct {
	Asset      A
	Kind       *SpendKind
	Ephemeral  bool
	ExtraDelta int64
}

// FungibleSpends is every coin of one fungible asset in a transaction.
type FungibleSpends[A FungibleAsset[A]] struct {
	Items []*FungibleSpend[A]
}

// Add selects the coin with the kind for spending.
func (fs *FungibleSpends[A]) Add(asset A, kind *SpendKind) {
	fs.Items = append(fs.Items, &FungibleSpend[A]{Asset: asset, Kind: kind})
}

// SelectedAmount returns the amount of the coins that exist before the
// transaction.
func (fs *FungibleSpends[A]) SelectedAmount() uint64 {
	var total uint64
	for _, item := range fs.Items {
		if !item.Ephemeral {
			total += item.Asset.Amount()
		}
	}
	return total
}

// outputSource returns the item that will create the output, creating an
// intermediate coin when no selected coin can.
func (fs *FungibleSpends[A]) outputSource(lib puzzles.Library, puzzleHash clvm.Bytes32, amount uint64) (*FungibleSpend[A], bool) {
	for _, item := range fs.Items {
		if item.Kind.allows(puzzleHash, amount) {
			return item, true
		}
	}

	if len(fs.Items) == 0 {
		return nil, false
	}

	child, ok := fs.intermediateSource(lib, fs.Items[0].Asset.P2PuzzleHash())
	if !ok || !child.Kind.allows(puzzleHash, amount) {
		return nil, false
	}
	return child, true
}

// conditionsSource returns an item that can emit conditions. If every
// coin is settlement only, an intermediate coin owned by the conditions
// puzzle hash is created to host them.
func (fs *FungibleSpends[A]) conditionsSource(lib puzzles.Library, conditionsPuzzleHash clvm.Bytes32) (*FungibleSpend[A], bool) {
	for _, item := range fs.Items {
		if !item.Kind.IsSettlement() {
			return item, true
		}
	}

	child, ok := fs.intermediateSource(lib, conditionsPuzzleHash)
	if !ok || child.Kind.IsSettlement() {
		return nil, false
	}
	return child, true
}

// settlementSource returns an item that pays out notarized payments.
func (fs *FungibleSpends[A]) settlementSource(lib puzzles.Library) (*FungibleSpend[A], bool) {
	for _, item := range fs.Items {
		if item.Kind.IsSettlement() {
			return item, true
		}
	}

	return fs.intermediateSource(lib, lib.MustHash(puzzles.SettlementPayment))
}

// intermediateSource has a selected coin create a zero amount child owned
// by the p2 puzzle hash and adds the child as an ephemeral coin.
func (fs *FungibleSpends[A]) intermediateSource(lib puzzles.Library, p2PuzzleHash clvm.Bytes32) (*FungibleSpend[A], bool) {
	for _, item := range fs.Items {
		if !item.Kind.allows(p2PuzzleHash, 0) {
			continue
		}

		item.Kind.addOutput(p2PuzzleHash, 0, nil)

		child := &FungibleSpend[A]{
			Asset:     item.Asset.Child(lib, p2PuzzleHash, 0),
			Kind:      KindFor(lib, p2PuzzleHash),
			Ephemeral: true,
		}
		fs.Items = append(fs.Items, child)

		return child, true
	}

	return nil, false
}

// createChange sends what is left of the asset to the change puzzle hash.
// It returns the change amount.
func (fs *FungibleSpends[A]) createChange(lib puzzles.Library, id ID, delta Delta, changePuzzleHash clvm.Bytes32, memos [][]byte) (uint64, error) {
	input := fs.SelectedAmount() + delta.Input
	if delta.Output > input {
		return 0, &SourceError{Asset: id, Amount: delta.Output - input, PuzzleHash: changePuzzleHash}
	}

	change := input - delta.Output
	if change == 0 {
		return 0, nil
	}

	item, ok := fs.outputSource(lib, changePuzzleHash, change)
	if !ok {
		return 0, &SourceError{Asset: id, Amount: change, PuzzleHash: changePuzzleHash}
	}
	item.Kind.addOutput(changePuzzleHash, change, memos)

	return change, nil
}

// children returns the coins the items create that are not spent in the
// same transaction.
func (fs *FungibleSpends[A]) children(lib puzzles.Library, spent map[clvm.Bytes32]bool) []A {
	var out []A
	for _, item := range fs.Items {
		for _, cc := range item.Kind.createdCoins() {
			child := item.Asset.Child(lib, cc.PuzzleHash, cc.Amount)
			if !spent[child.CoinID()] {
				out = append(out, child)
			}
		}
	}
	return out
}

// spend builds the spend of every item with the spend function.
func (fs *FungibleSpends[A]) spend(ctx *driver.SpendContext, f SpendFunc) ([]driver.Spend, error) {
	out := make([]driver.Spend, len(fs.Items))
	for i, item := range fs.Items {
		s, err := f(ctx, item.Asset.P2PuzzleHash(), item.Kind)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
