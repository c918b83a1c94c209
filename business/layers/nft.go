package layers

import (
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// NftStateLayer carries the metadata of an NFT and the puzzle hash of the
// program allowed to update it.
type NftStateLayer struct {
	Metadata          clvm.NodePtr
	MetadataUpdaterPH clvm.Bytes32
	InnerPuzzle       driver.Layer
}

// ConstructPuzzle implements the driver.Layer interface.
func (l NftStateLayer) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	inner, err := l.InnerPuzzle.ConstructPuzzle(ctx)
	if err != nil {
		return clvm.Nil, err
	}

	modHash, err := ctx.ModHash(puzzles.NftStateLayer)
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Curry(puzzles.NftStateLayer, ctx.NewBytes32(modHash), l.Metadata, ctx.NewBytes32(l.MetadataUpdaterPH), inner)
}

// ConstructSolution implements the driver.SolutionLayer interface.
func (l NftStateLayer) ConstructSolution(ctx *driver.SpendContext, innerSolution clvm.NodePtr) (clvm.NodePtr, error) {
	return ctx.List(innerSolution), nil
}

// ParseNftStateLayer parses an NFT state layer puzzle.
func ParseNftStateLayer(ctx *driver.SpendContext, p driver.Puzzle) (NftStateLayer, bool, error) {
	if ok, err := p.Expect(ctx, puzzles.NftStateLayer, 4); !ok {
		return NftStateLayer{}, false, err
	}

	if modHash, err := ctx.Bytes32(p.Args[0]); err != nil || modHash != p.ModHash {
		return NftStateLayer{}, false, driver.NonStandard("nft state", err)
	}

	updater, err := ctx.Bytes32(p.Args[2])
	if err != nil {
		return NftStateLayer{}, false, driver.NonStandard("nft state", err)
	}

	l := NftStateLayer{
		Metadata:          p.Args[1],
		MetadataUpdaterPH: updater,
		InnerPuzzle:       driver.ParsePuzzle(ctx.Allocator, p.Args[3]),
	}

	return l, true, nil
}

// =============================================================================

// NftOwnershipLayer tracks the DID that owns an NFT and runs the transfer
// program when the owner changes.
type NftOwnershipLayer struct {
	CurrentOwner    *clvm.Bytes32
	TransferProgram driver.Layer
	InnerPuzzle     driver.Layer
}

// ConstructPuzzle implements the driver.Layer interface.
func (l NftOwnershipLayer) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	transfer, err := l.TransferProgram.ConstructPuzzle(ctx)
	if err != nil {
		return clvm.Nil, err
	}

	inner, err := l.InnerPuzzle.ConstructPuzzle(ctx)
	if err != nil {
		return clvm.Nil, err
	}

	modHash, err := ctx.ModHash(puzzles.NftOwnershipLayer)
	if err != nil {
		return clvm.Nil, err
	}

	owner := clvm.Nil
	if l.CurrentOwner != nil {
		owner = ctx.NewBytes32(*l.CurrentOwner)
	}

	return ctx.Curry(puzzles.NftOwnershipLayer, ctx.NewBytes32(modHash), owner, transfer, inner)
}

// ConstructSolution implements the driver.SolutionLayer interface.
func (l NftOwnershipLayer) ConstructSolution(ctx *driver.SpendContext, innerSolution clvm.NodePtr) (clvm.NodePtr, error) {
	return ctx.List(innerSolution), nil
}

// ParseNftOwnershipLayer parses an NFT ownership layer puzzle.
func ParseNftOwnershipLayer(ctx *driver.SpendContext, p driver.Puzzle) (NftOwnershipLayer, bool, error) {
	if ok, err := p.Expect(ctx, puzzles.NftOwnershipLayer, 4); !ok {
		return NftOwnershipLayer{}, false, err
	}

	if modHash, err := ctx.Bytes32(p.Args[0]); err != nil || modHash != p.ModHash {
		return NftOwnershipLayer{}, false, driver.NonStandard("nft ownership", err)
	}

	var owner *clvm.Bytes32
	if !ctx.IsNil(p.Args[1]) {
		o, err := ctx.Bytes32(p.Args[1])
		if err != nil {
			return NftOwnershipLayer{}, false, driver.NonStandard("nft ownership", err)
		}
		owner = &o
	}

	l := NftOwnershipLayer{
		CurrentOwner:    owner,
		TransferProgram: driver.ParsePuzzle(ctx.Allocator, p.Args[2]),
		InnerPuzzle:     driver.ParsePuzzle(ctx.Allocator, p.Args[3]),
	}

	return l, true, nil
}

// ParseInnerSolution parses the (inner_solution) list both NFT layers use.
func ParseInnerSolution(a *clvm.Allocator, n clvm.NodePtr) (clvm.NodePtr, error) {
	items, _, err := a.Items(n, 1)
	if err != nil {
		return clvm.Nil, driver.NonStandard("inner solution", err)
	}
	return items[0], nil
}

// =============================================================================

// RoyaltyTransferLayer is the transfer program that pays royalties on
// every trade price when an NFT changes owner.
type RoyaltyTransferLayer struct {
	LauncherID         clvm.Bytes32
	RoyaltyPuzzleHash  clvm.Bytes32
	RoyaltyBasisPoints uint16
}

// ConstructPuzzle implements the driver.Layer interface.
func (l RoyaltyTransferLayer) ConstructPuzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	ss, err := NewSingletonStruct(ctx.Library(), l.LauncherID).ToClvm(ctx.Allocator)
	if err != nil {
		return clvm.Nil, err
	}

	return ctx.Curry(puzzles.NftRoyaltyTransfer, ss, ctx.NewBytes32(l.RoyaltyPuzzleHash), ctx.NewUint64(uint64(l.RoyaltyBasisPoints)))
}

// ParseRoyaltyTransferLayer parses a royalty transfer program.
func ParseRoyaltyTransferLayer(ctx *driver.SpendContext, p driver.Puzzle) (RoyaltyTransferLayer, bool, error) {
	if ok, err := p.Expect(ctx, puzzles.NftRoyaltyTransfer, 3); !ok {
		return RoyaltyTransferLayer{}, false, err
	}

	ss, err := clvm.Decode[SingletonStruct](ctx.Allocator, p.Args[0])
	if err != nil {
		return RoyaltyTransferLayer{}, false, driver.NonStandard("royalty transfer", err)
	}

	royaltyPH, err := ctx.Bytes32(p.Args[1])
	if err != nil {
		return RoyaltyTransferLayer{}, false, driver.NonStandard("royalty transfer", err)
	}

	bps, err := ctx.Uint64(p.Args[2])
	if err != nil || bps > 10_000 {
		return RoyaltyTransferLayer{}, false, driver.NonStandard("royalty transfer", err)
	}

	return RoyaltyTransferLayer{LauncherID: ss.LauncherID, RoyaltyPuzzleHash: royaltyPH, RoyaltyBasisPoints: uint16(bps)}, true, nil
}

// =============================================================================

// NftInfo is everything that determines an NFT's puzzle hash.
type NftInfo struct {
	LauncherID         clvm.Bytes32
	Metadata           []byte
	MetadataUpdaterPH  clvm.Bytes32
	CurrentOwner       *clvm.Bytes32
	RoyaltyPuzzleHash  clvm.Bytes32
	RoyaltyBasisPoints uint16
	P2PuzzleHash       clvm.Bytes32
}

// Nft is a live NFT coin.
type Nft struct {
	Coin  database.Coin
	Proof database.Proof
	Info  NftInfo
}

// InnerLayers builds the state and ownership layers around the p2 puzzle.
func (info NftInfo) InnerLayers(ctx *driver.SpendContext, p2 driver.Layer) (driver.Layer, error) {
	metadata, err := ctx.Deserialize(info.Metadata)
	if err != nil {
		return nil, fmt.Errorf("nft metadata: %w", err)
	}

	ownership := NftOwnershipLayer{
		CurrentOwner: info.CurrentOwner,
		TransferProgram: RoyaltyTransferLayer{
			LauncherID:         info.LauncherID,
			RoyaltyPuzzleHash:  info.RoyaltyPuzzleHash,
			RoyaltyBasisPoints: info.RoyaltyBasisPoints,
		},
		InnerPuzzle: p2,
	}

	return NftStateLayer{Metadata: metadata, MetadataUpdaterPH: info.MetadataUpdaterPH, InnerPuzzle: ownership}, nil
}

// InnerPuzzleHash returns the singleton inner puzzle hash of the NFT
// without building the puzzle.
func (info NftInfo) InnerPuzzleHash(lib puzzles.Library) (clvm.Bytes32, error) {
	a := clvm.NewAllocator()
	metadata, err := a.Deserialize(info.Metadata)
	if err != nil {
		return clvm.Bytes32{}, fmt.Errorf("nft metadata: %w", err)
	}

	royaltyMod := lib.MustHash(puzzles.NftRoyaltyTransfer)
	transfer := clvm.CurryTreeHash(royaltyMod,
		NewSingletonStruct(lib, info.LauncherID).Hash(),
		clvm.TreeHashAtom(info.RoyaltyPuzzleHash[:]),
		clvm.TreeHashAtom(clvm.EncodeUint64(uint64(info.RoyaltyBasisPoints))),
	)

	owner := clvm.TreeHashAtom(nil)
	if info.CurrentOwner != nil {
		owner = clvm.TreeHashAtom(info.CurrentOwner[:])
	}

	ownershipMod := lib.MustHash(puzzles.NftOwnershipLayer)
	ownership := clvm.CurryTreeHash(ownershipMod, clvm.TreeHashAtom(ownershipMod[:]), owner, transfer, info.P2PuzzleHash)

	stateMod := lib.MustHash(puzzles.NftStateLayer)
	return clvm.CurryTreeHash(stateMod, clvm.TreeHashAtom(stateMod[:]), a.TreeHash(metadata), clvm.TreeHashAtom(info.MetadataUpdaterPH[:]), ownership), nil
}

// Spend wraps the p2 spend in the NFT layers and the singleton. The new
// owner and metadata are reported by the caller through the child info.
func (nft Nft) Spend(ctx *driver.SpendContext, p2 driver.Spend) error {
	inner, err := nft.Info.InnerLayers(ctx, driver.ParsePuzzle(ctx.Allocator, p2.Puzzle))
	if err != nil {
		return err
	}

	puzzle, err := inner.ConstructPuzzle(ctx)
	if err != nil {
		return err
	}

	// Both layers wrap their inner solution in a one item list.
	solution := ctx.List(ctx.List(p2.Solution))

	innerPH := ctx.TreeHash(puzzle)
	s := Singleton{Coin: nft.Coin, LauncherID: nft.Info.LauncherID, Proof: nft.Proof, InnerPuzzleHash: innerPH}

	return s.Spend(ctx, driver.NewSpend(puzzle, solution))
}

// Child returns the NFT recreated with the child info.
func (nft Nft) Child(ctx *driver.SpendContext, info NftInfo) (Nft, error) {
	parentInner, err := nft.Info.InnerPuzzleHash(ctx.Library())
	if err != nil {
		return Nft{}, err
	}

	childInner, err := info.InnerPuzzleHash(ctx.Library())
	if err != nil {
		return Nft{}, err
	}

	s := Singleton{Coin: nft.Coin, LauncherID: nft.Info.LauncherID, Proof: nft.Proof, InnerPuzzleHash: parentInner}
	child := s.Child(ctx.Library(), childInner, nft.Coin.Amount)

	return Nft{Coin: child.Coin, Proof: child.Proof, Info: info}, nil
}

// MintNft launches an NFT from the parent coin. It returns the eve NFT and
// the conditions the parent must emit. The launcher id is filled into the
// info.
func MintNft(ctx *driver.SpendContext, parentCoinID clvm.Bytes32, info NftInfo) (Nft, driver.Conditions, error) {
	launcher, create := NewLauncher(ctx.Library(), parentCoinID, 1)
	info.LauncherID = launcher.Coin.CoinID()

	innerPH, err := info.InnerPuzzleHash(ctx.Library())
	if err != nil {
		return Nft{}, nil, err
	}

	eve, assert, err := launcher.Spend(ctx, innerPH, clvm.Nil)
	if err != nil {
		return Nft{}, nil, err
	}

	ctx.Event("layers: mint nft: launcher[%s]", info.LauncherID)

	return Nft{Coin: eve.Coin, Proof: eve.Proof, Info: info}, driver.Conditions{create, assert}, nil
}
