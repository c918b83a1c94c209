// Package spends builds balanced multi asset transactions from a list of
// actions over a set of selected coins.
package spends

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Set of error variables for building spends.
var (
	ErrNoSourceForOutput    = errors.New("no source for output")
	ErrInvalidAssetID       = errors.New("invalid asset id")
	ErrMissingKey           = errors.New("missing key")
	ErrCannotEmitConditions = errors.New("cannot emit conditions")
)

// SourceError reports an output of an asset no selected coin can fund.
type SourceError struct {
	Asset      ID
	Amount     uint64
	PuzzleHash clvm.Bytes32
}

// Error implements the error interface.
func (se *SourceError) Error() string {
	return fmt.Sprintf("asset[%s] amount[%d] puzzle hash[%s]: %s", se.Asset, se.Amount, se.PuzzleHash, ErrNoSourceForOutput)
}

// Unwrap returns ErrNoSourceForOutput.
func (se *SourceError) Unwrap() error {
	return ErrNoSourceForOutput
}

// KeyError reports a coin whose p2 puzzle hash has no known key.
type KeyError struct {
	PuzzleHash clvm.Bytes32
}

// Error implements the error interface.
func (ke *KeyError) Error() string {
	return fmt.Sprintf("puzzle hash[%s]: %s", ke.PuzzleHash, ErrMissingKey)
}

// Unwrap returns ErrMissingKey.
func (ke *KeyError) Unwrap() error {
	return ErrMissingKey
}

// =============================================================================

// SpendFunc builds the p2 spend of a coin owned by the p2 puzzle hash that
// emits what the kind describes.
type SpendFunc func(ctx *driver.SpendContext, p2PuzzleHash clvm.Bytes32, kind *SpendKind) (driver.Spend, error)

// Outputs are the coins a finished transaction leaves unspent.
type Outputs struct {
	Xch  []database.Coin
	Cats map[ID][]layers.Cat
	Nfts map[ID]layers.Nft
	Dids map[ID]layers.Did
	Fee  uint64
}

// Spends collects the selected coins of a transaction and what each of them
// will emit. A Spends is not safe for concurrent use.
type Spends struct {
	lib              puzzles.Library
	changePuzzleHash clvm.Bytes32

	xch     FungibleSpends[XchCoin]
	cats    map[ID]*FungibleSpends[CatCoin]
	nfts    map[ID]*SingletonSpends[layers.Nft]
	dids    map[ID]*SingletonSpends[layers.Did]
	pending driver.Conditions
	fee     uint64
}

// New constructs an empty transaction. Change, intermediate conditions
// coins and new assets go to the change puzzle hash.
func New(lib puzzles.Library, changePuzzleHash clvm.Bytes32) *Spends {
	return &Spends{
		lib:              lib,
		changePuzzleHash: changePuzzleHash,
		cats:             make(map[ID]*FungibleSpends[CatCoin]),
		nfts:             make(map[ID]*SingletonSpends[layers.Nft]),
		dids:             make(map[ID]*SingletonSpends[layers.Did]),
	}
}

// ChangePuzzleHash returns the puzzle hash change is sent to.
func (s *Spends) ChangePuzzleHash() clvm.Bytes32 {
	return s.changePuzzleHash
}

// AddXch selects the XCH coin.
func (s *Spends) AddXch(coin database.Coin) {
	s.xch.Add(XchCoin{Coin: coin}, KindFor(s.lib, coin.PuzzleHash))
}

// AddCat selects the CAT. It is keyed by its asset id.
func (s *Spends) AddCat(cat layers.Cat) {
	id := Existing(cat.AssetID)

	fs, exists := s.cats[id]
	if !exists {
		fs = &FungibleSpends[CatCoin]{}
		s.cats[id] = fs
	}
	fs.Add(CatCoin{Cat: cat}, KindFor(s.lib, cat.P2PuzzleHash))
}

// AddNft selects the NFT. It is keyed by its launcher id.
func (s *Spends) AddNft(nft layers.Nft) {
	s.nfts[Existing(nft.Info.LauncherID)] = &SingletonSpends[layers.Nft]{
		Asset: nft,
		Kind:  KindFor(s.lib, nft.Info.P2PuzzleHash),
	}
}

// AddDid selects the DID. It is keyed by its launcher id.
func (s *Spends) AddDid(did layers.Did) {
	s.dids[Existing(did.Info.LauncherID)] = &SingletonSpends[layers.Did]{
		Asset: did,
		Kind:  KindFor(s.lib, did.Info.P2PuzzleHash),
	}
}

// Xch returns the XCH coins of the transaction.
func (s *Spends) Xch() *FungibleSpends[XchCoin] {
	return &s.xch
}

// Cat returns the coins of the CAT.
func (s *Spends) Cat(id ID) (*FungibleSpends[CatCoin], bool) {
	fs, exists := s.cats[id]
	return fs, exists
}

// Apply computes the deltas of the actions, then performs them. Nothing
// is spent until Finish.
func (s *Spends) Apply(ctx *driver.SpendContext, actions []Action) (*Deltas, error) {
	deltas := DeltasFrom(actions)

	for i, a := range actions {
		if err := a.Spend(ctx, s, i); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}

	return deltas, nil
}

// Finish balances every asset with change, places the pending conditions,
// and spends every selected coin with the spend function. It returns the
// coins the transaction leaves unspent.
func (s *Spends) Finish(ctx *driver.SpendContext, deltas *Deltas, f SpendFunc) (Outputs, error) {
	for _, id := range deltas.IDs() {
		if id.IsXch() {
			continue
		}
		if !s.known(id) {
			return Outputs{}, fmt.Errorf("asset[%s]: %w", id, ErrInvalidAssetID)
		}
	}

	change, err := s.xch.createChange(s.lib, XCH, deltas.Get(XCH), s.changePuzzleHash, nil)
	if err != nil {
		return Outputs{}, err
	}
	ctx.Event("spends: finish: asset[%s] change[%d]", XCH, change)

	for _, id := range s.catIDs() {
		change, err := s.cats[id].createChange(s.lib, id, deltas.Get(id), s.changePuzzleHash, driver.Hint(s.changePuzzleHash))
		if err != nil {
			return Outputs{}, err
		}
		ctx.Event("spends: finish: asset[%s] change[%d]", id, change)
	}

	if err := s.emitConditions(); err != nil {
		return Outputs{}, err
	}

	out := Outputs{
		Cats: make(map[ID][]layers.Cat),
		Nfts: make(map[ID]layers.Nft),
		Dids: make(map[ID]layers.Did),
		Fee:  s.fee,
	}

	spent := make(map[clvm.Bytes32]bool)

	for _, id := range sortedIDs(s.nfts) {
		ss := s.nfts[id]
		spent[ss.Asset.Coin.CoinID()] = true
		spent[ss.Asset.Info.LauncherID] = true

		child, live, err := finishNft(ctx, ss, f)
		if err != nil {
			return Outputs{}, fmt.Errorf("nft[%s]: %w", id, err)
		}
		if live {
			out.Nfts[id] = child
		}
	}

	for _, id := range sortedIDs(s.dids) {
		ss := s.dids[id]
		spent[ss.Asset.Coin.CoinID()] = true
		spent[ss.Asset.Info.LauncherID] = true

		child, live, err := finishDid(ctx, ss, f)
		if err != nil {
			return Outputs{}, fmt.Errorf("did[%s]: %w", id, err)
		}
		if live {
			out.Dids[id] = child
		}
	}

	xch, err := s.xch.spend(ctx, f)
	if err != nil {
		return Outputs{}, err
	}
	for i, item := range s.xch.Items {
		spent[item.Asset.CoinID()] = true
		if err := ctx.Spend(item.Asset.Coin, xch[i]); err != nil {
			return Outputs{}, err
		}
	}

	for _, id := range s.catIDs() {
		fs := s.cats[id]

		inner, err := fs.spend(ctx, f)
		if err != nil {
			return Outputs{}, err
		}

		ring := make([]layers.CatSpend, len(fs.Items))
		for i, item := range fs.Items {
			spent[item.Asset.CoinID()] = true
			ring[i] = layers.CatSpend{Cat: item.Asset.Cat, Inner: inner[i], ExtraDelta: item.ExtraDelta}
		}

		if err := layers.SpendCats(ctx, ring); err != nil {
			return Outputs{}, fmt.Errorf("cat[%s]: %w", id, err)
		}
	}

	for _, c := range s.xch.children(s.lib, spent) {
		out.Xch = append(out.Xch, c.Coin)
	}

	for _, id := range s.catIDs() {
		for _, c := range s.cats[id].children(s.lib, spent) {
			out.Cats[id] = append(out.Cats[id], c.Cat)
		}
	}

	return out, nil
}

// FinishWithKeys finishes the transaction with standard spends signed by
// the synthetic keys, keyed by their p2 puzzle hash. Settlement coins are
// spent with their notarized payments.
func (s *Spends) FinishWithKeys(ctx *driver.SpendContext, deltas *Deltas, keys map[clvm.Bytes32][]byte) (Outputs, error) {
	f := func(ctx *driver.SpendContext, p2PuzzleHash clvm.Bytes32, kind *SpendKind) (driver.Spend, error) {
		if kind.IsSettlement() {
			return driver.ConstructSpend[[]layers.NotarizedPayment](ctx, layers.SettlementLayer{}, kind.Payments())
		}

		key, exists := keys[p2PuzzleHash]
		if !exists {
			return driver.Spend{}, &KeyError{PuzzleHash: p2PuzzleHash}
		}

		return layers.StandardLayer{SyntheticKey: key}.Spend(ctx, kind.Conditions())
	}

	return s.Finish(ctx, deltas, f)
}

// =============================================================================

// emitConditions places the pending conditions on a conditions capable
// XCH coin, or on a CAT coin when the transaction has no XCH.
func (s *Spends) emitConditions() error {
	if len(s.pending) == 0 {
		return nil
	}

	if item, ok := s.xch.conditionsSource(s.lib, s.changePuzzleHash); ok {
		return s.takePending(item.Kind)
	}

	for _, id := range s.catIDs() {
		if item, ok := s.cats[id].conditionsSource(s.lib, s.changePuzzleHash); ok {
			return s.takePending(item.Kind)
		}
	}

	return fmt.Errorf("pending[%d]: %w", len(s.pending), ErrCannotEmitConditions)
}

func (s *Spends) takePending(kind *SpendKind) error {
	if err := kind.addConditions(s.pending...); err != nil {
		return err
	}
	s.pending = nil
	return nil
}

// xchConditionsSource returns the XCH coin new assets are launched from.
func (s *Spends) xchConditionsSource() (*FungibleSpend[XchCoin], error) {
	item, ok := s.xch.conditionsSource(s.lib, s.changePuzzleHash)
	if !ok {
		return nil, &SourceError{Asset: XCH, PuzzleHash: s.changePuzzleHash}
	}
	return item, nil
}

// known reports whether a selected or created asset has the id.
func (s *Spends) known(id ID) bool {
	if id.IsXch() {
		return true
	}
	_, cat := s.cats[id]
	_, nft := s.nfts[id]
	_, did := s.dids[id]
	return cat || nft || did
}

// catIDs returns the CAT ids in a stable order.
func (s *Spends) catIDs() []ID {
	return sortedIDs(s.cats)
}

func sortedIDs[V any](m map[ID]V) []ID {
	ids := make([]ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, ID.compare)
	return ids
}
