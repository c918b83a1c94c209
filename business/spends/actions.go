package spends

import (
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Action is one step of a transaction. CalculateDelta records what the
// action brings in and takes out of each asset without building anything,
// Spend performs it on the selected coins. The index is the position of
// the action in the list, assets it creates are NewAsset(index).
type Action interface {
	CalculateDelta(d *Deltas, index int)
	Spend(ctx *driver.SpendContext, s *Spends, index int) error
}

// emptyMetadata is the serialized nil program.
var emptyMetadata = []byte{0x80}

// =============================================================================

// Send pays an amount of an asset to a puzzle hash. Sending an NFT or DID
// sets the puzzle hash it is recreated to and ignores the amount.
type Send struct {
	ID         ID
	PuzzleHash clvm.Bytes32
	Amount     uint64
	Memos      [][]byte
}

// CalculateDelta implements the Action interface.
func (a Send) CalculateDelta(d *Deltas, _ int) {
	d.Update(a.ID).Output += a.Amount
}

// Spend implements the Action interface.
func (a Send) Spend(ctx *driver.SpendContext, s *Spends, _ int) error {
	if ss, exists := s.nfts[a.ID]; exists {
		ss.Destination, ss.Memos = &a.PuzzleHash, a.Memos
		return nil
	}

	if ss, exists := s.dids[a.ID]; exists {
		ss.Destination, ss.Memos = &a.PuzzleHash, a.Memos
		return nil
	}

	if a.ID.IsXch() {
		item, ok := s.xch.outputSource(s.lib, a.PuzzleHash, a.Amount)
		if !ok {
			return &SourceError{Asset: a.ID, Amount: a.Amount, PuzzleHash: a.PuzzleHash}
		}
		item.Kind.addOutput(a.PuzzleHash, a.Amount, a.Memos)
		return nil
	}

	fs, exists := s.cats[a.ID]
	if !exists {
		return fmt.Errorf("asset[%s]: %w", a.ID, ErrInvalidAssetID)
	}

	item, ok := fs.outputSource(s.lib, a.PuzzleHash, a.Amount)
	if !ok {
		return &SourceError{Asset: a.ID, Amount: a.Amount, PuzzleHash: a.PuzzleHash}
	}

	memos := a.Memos
	if memos == nil {
		memos = driver.Hint(a.PuzzleHash)
	}
	item.Kind.addOutput(a.PuzzleHash, a.Amount, memos)

	return nil
}

// =============================================================================

// Fee reserves an amount of XCH for the farmer.
type Fee struct {
	Amount uint64
}

// CalculateDelta implements the Action interface.
func (a Fee) CalculateDelta(d *Deltas, _ int) {
	d.Update(XCH).Output += a.Amount
}

// Spend implements the Action interface.
func (a Fee) Spend(_ *driver.SpendContext, s *Spends, _ int) error {
	s.pending = append(s.pending, driver.ReserveFee{Amount: a.Amount})
	s.fee += a.Amount
	return nil
}

// =============================================================================

// IssueCat issues a new CAT from an XCH coin. A nil Tail issues with the
// single issuance TAIL of the XCH coin's id.
type IssueCat struct {
	Tail   *driver.Spend
	Amount uint64
}

// CalculateDelta implements the Action interface.
func (a IssueCat) CalculateDelta(d *Deltas, index int) {
	d.Update(XCH).Output += a.Amount
	d.Update(NewAsset(index)).Input += a.Amount
}

// Spend implements the Action interface.
func (a IssueCat) Spend(ctx *driver.SpendContext, s *Spends, index int) error {
	source, err := s.xchConditionsSource()
	if err != nil {
		return err
	}

	var tail driver.Spend
	var assetID clvm.Bytes32

	switch a.Tail {
	case nil:
		program, id, err := layers.GenesisByCoinID(ctx, source.Asset.CoinID())
		if err != nil {
			return err
		}
		tail, assetID = driver.NewSpend(program, clvm.Nil), id

	default:
		tail, assetID = *a.Tail, ctx.TreeHash(a.Tail.Puzzle)
	}

	eve, create := layers.IssueCat(ctx, source.Asset.CoinID(), assetID, a.Amount, s.changePuzzleHash)
	if err := source.Kind.addConditions(create); err != nil {
		return err
	}

	kind := NewConditionsKind()
	if err := kind.addConditions(driver.RunCatTail{Program: tail.Puzzle, Solution: tail.Solution}); err != nil {
		return err
	}

	s.cats[NewAsset(index)] = &FungibleSpends[CatCoin]{
		Items: []*FungibleSpend[CatCoin]{{Asset: CatCoin{Cat: eve}, Kind: kind, Ephemeral: true}},
	}

	ctx.Event("spends: issue cat: asset[%s] amount[%d]", assetID, a.Amount)
	return nil
}

// =============================================================================

// RunTail runs the TAIL of a CAT to change its supply. A positive supply
// delta issues new supply, a negative one melts it.
type RunTail struct {
	ID          ID
	Tail        driver.Spend
	SupplyDelta int64
}

// CalculateDelta implements the Action interface.
func (a RunTail) CalculateDelta(d *Deltas, _ int) {
	switch {
	case a.SupplyDelta > 0:
		d.Update(a.ID).Input += uint64(a.SupplyDelta)
	case a.SupplyDelta < 0:
		d.Update(a.ID).Output += uint64(-a.SupplyDelta)
	}
}

// Spend implements the Action interface.
func (a RunTail) Spend(_ *driver.SpendContext, s *Spends, _ int) error {
	fs, exists := s.cats[a.ID]
	if !exists {
		return fmt.Errorf("asset[%s]: %w", a.ID, ErrInvalidAssetID)
	}

	item, ok := fs.conditionsSource(s.lib, s.changePuzzleHash)
	if !ok {
		return ErrCannotEmitConditions
	}

	if err := item.Kind.addConditions(driver.RunCatTail{Program: a.Tail.Puzzle, Solution: a.Tail.Solution}); err != nil {
		return err
	}
	item.ExtraDelta += a.SupplyDelta

	return nil
}

// =============================================================================

// MintNft launches an NFT from an XCH coin. It is owned by the change
// puzzle hash until it is sent elsewhere.
type MintNft struct {
	Metadata           []byte
	MetadataUpdaterPH  clvm.Bytes32
	RoyaltyPuzzleHash  clvm.Bytes32
	RoyaltyBasisPoints uint16
}

// CalculateDelta implements the Action interface.
func (a MintNft) CalculateDelta(d *Deltas, _ int) {
	d.Update(XCH).Output++
}

// Spend implements the Action interface.
func (a MintNft) Spend(ctx *driver.SpendContext, s *Spends, index int) error {
	source, err := s.xchConditionsSource()
	if err != nil {
		return err
	}

	metadata := a.Metadata
	if metadata == nil {
		metadata = emptyMetadata
	}

	info := layers.NftInfo{
		Metadata:           metadata,
		MetadataUpdaterPH:  a.MetadataUpdaterPH,
		RoyaltyPuzzleHash:  a.RoyaltyPuzzleHash,
		RoyaltyBasisPoints: a.RoyaltyBasisPoints,
		P2PuzzleHash:       s.changePuzzleHash,
	}

	nft, conds, err := layers.MintNft(ctx, source.Asset.CoinID(), info)
	if err != nil {
		return err
	}

	if err := source.Kind.addConditions(conds...); err != nil {
		return err
	}

	s.nfts[NewAsset(index)] = &SingletonSpends[layers.Nft]{Asset: nft, Kind: NewConditionsKind()}
	return nil
}

// =============================================================================

// UpdateNft transfers an NFT to a DID, or clears its owner when the DID
// launcher id is nil.
type UpdateNft struct {
	ID                 ID
	DidLauncherID      *clvm.Bytes32
	DidInnerPuzzleHash *clvm.Bytes32
	TradePrices        []driver.TradePrice
}

// CalculateDelta implements the Action interface.
func (UpdateNft) CalculateDelta(*Deltas, int) {}

// Spend implements the Action interface.
func (a UpdateNft) Spend(_ *driver.SpendContext, s *Spends, _ int) error {
	ss, exists := s.nfts[a.ID]
	if !exists {
		return fmt.Errorf("nft[%s]: %w", a.ID, ErrInvalidAssetID)
	}

	ss.Transfer = &driver.TransferNft{
		LauncherID:      a.DidLauncherID,
		TradePrices:     a.TradePrices,
		InnerPuzzleHash: a.DidInnerPuzzleHash,
	}

	return nil
}

// =============================================================================

// CreateDid launches a DID from an XCH coin. It is owned by the change
// puzzle hash until it is sent elsewhere.
type CreateDid struct {
	Metadata []byte
}

// CalculateDelta implements the Action interface.
func (CreateDid) CalculateDelta(d *Deltas, _ int) {
	d.Update(XCH).Output++
}

// Spend implements the Action interface.
func (a CreateDid) Spend(ctx *driver.SpendContext, s *Spends, index int) error {
	source, err := s.xchConditionsSource()
	if err != nil {
		return err
	}

	metadata := a.Metadata
	if metadata == nil {
		metadata = emptyMetadata
	}

	did, conds, err := layers.CreateDid(ctx, source.Asset.CoinID(), layers.DidInfo{Metadata: metadata, P2PuzzleHash: s.changePuzzleHash})
	if err != nil {
		return err
	}

	if err := source.Kind.addConditions(conds...); err != nil {
		return err
	}

	s.dids[NewAsset(index)] = &SingletonSpends[layers.Did]{Asset: did, Kind: NewConditionsKind()}
	return nil
}

// =============================================================================

// UpdateDid replaces the metadata of a DID.
type UpdateDid struct {
	ID       ID
	Metadata []byte
}

// CalculateDelta implements the Action interface.
func (UpdateDid) CalculateDelta(*Deltas, int) {}

// Spend implements the Action interface.
func (a UpdateDid) Spend(_ *driver.SpendContext, s *Spends, _ int) error {
	ss, exists := s.dids[a.ID]
	if !exists {
		return fmt.Errorf("did[%s]: %w", a.ID, ErrInvalidAssetID)
	}

	ss.Metadata = a.Metadata
	return nil
}

// =============================================================================

// MeltSingleton destroys an NFT or DID. Its amount returns to the XCH
// balance of the transaction.
type MeltSingleton struct {
	ID     ID
	Amount uint64
}

// CalculateDelta implements the Action interface.
func (a MeltSingleton) CalculateDelta(d *Deltas, _ int) {
	d.Update(XCH).Input += a.amount()
}

// Spend implements the Action interface.
func (a MeltSingleton) Spend(_ *driver.SpendContext, s *Spends, _ int) error {
	var amount uint64

	switch {
	case s.nfts[a.ID] != nil:
		s.nfts[a.ID].Melt = true
		amount = s.nfts[a.ID].Asset.Coin.Amount

	case s.dids[a.ID] != nil:
		s.dids[a.ID].Melt = true
		amount = s.dids[a.ID].Asset.Coin.Amount

	default:
		return fmt.Errorf("singleton[%s]: %w", a.ID, ErrInvalidAssetID)
	}

	if amount != a.amount() {
		return fmt.Errorf("singleton[%s] amount[%d] expected[%d]: %w", a.ID, amount, a.amount(), ErrInvalidAssetID)
	}

	return nil
}

func (a MeltSingleton) amount() uint64 {
	if a.Amount == 0 {
		return 1
	}
	return a.Amount
}

// =============================================================================

// Settle pays a notarized payment out of the settlement coins of an asset
// and asserts its announcement from a conditions coin.
type Settle struct {
	ID      ID
	Payment layers.NotarizedPayment
}

// CalculateDelta implements the Action interface.
func (a Settle) CalculateDelta(d *Deltas, _ int) {
	delta := d.Update(a.ID)
	for _, p := range a.Payment.Payments {
		delta.Output += p.Amount
	}
	d.SetXchNeeded()
}

// Spend implements the Action interface.
func (a Settle) Spend(ctx *driver.SpendContext, s *Spends, _ int) error {
	var kind *SpendKind

	switch {
	case a.ID.IsXch():
		item, ok := s.xch.settlementSource(s.lib)
		if !ok {
			return &SourceError{Asset: a.ID, PuzzleHash: s.lib.MustHash(puzzles.SettlementPayment)}
		}
		kind = item.Kind

	default:
		fs, exists := s.cats[a.ID]
		if !exists {
			return fmt.Errorf("asset[%s]: %w", a.ID, ErrInvalidAssetID)
		}
		item, ok := fs.settlementSource(s.lib)
		if !ok {
			return &SourceError{Asset: a.ID, PuzzleHash: s.lib.MustHash(puzzles.SettlementPayment)}
		}
		kind = item.Kind
	}

	kind.addNotarizedPayment(a.Payment)

	announcement, err := layers.SettlementAnnouncement(ctx.Allocator, s.lib, a.Payment)
	if err != nil {
		return err
	}
	s.pending = append(s.pending, driver.AssertPuzzleAnnouncement(announcement))

	return nil
}
