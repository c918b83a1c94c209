package spends

import (
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// SingletonSpends is the pending spend of one NFT or DID. The singleton is
// recreated to the destination, or to its current p2 puzzle hash when no
// destination is set, unless it is melted.
type SingletonSpends[A any] struct {
	Asset       A
	Kind        *SpendKind
	Destination *clvm.Bytes32
	Memos       [][]byte
	Melt        bool
	Transfer    *driver.TransferNft
	Metadata    []byte
}

// finishNft emits the recreation of the NFT and spends it. It returns the
// child, or false when the NFT is melted.
func finishNft(ctx *driver.SpendContext, ss *SingletonSpends[layers.Nft], f SpendFunc) (layers.Nft, bool, error) {
	nft := ss.Asset
	info := nft.Info

	if err := ss.recreate(&info.P2PuzzleHash, nft.Coin.Amount); err != nil {
		return layers.Nft{}, false, err
	}

	if ss.Transfer != nil {
		if err := ss.Kind.addConditions(*ss.Transfer); err != nil {
			return layers.Nft{}, false, err
		}
		info.CurrentOwner = ss.Transfer.LauncherID
	}

	p2, err := f(ctx, nft.Info.P2PuzzleHash, ss.Kind)
	if err != nil {
		return layers.Nft{}, false, err
	}

	if err := nft.Spend(ctx, p2); err != nil {
		return layers.Nft{}, false, err
	}

	if ss.Melt {
		return layers.Nft{}, false, nil
	}

	child, err := nft.Child(ctx, info)
	if err != nil {
		return layers.Nft{}, false, err
	}

	return child, true, nil
}

// finishDid emits the recreation of the DID and spends it. It returns the
// child, or false when the DID is melted.
func finishDid(ctx *driver.SpendContext, ss *SingletonSpends[layers.Did], f SpendFunc) (layers.Did, bool, error) {
	did := ss.Asset
	info := did.Info

	if ss.Metadata != nil {
		info.Metadata = ss.Metadata
	}

	if err := ss.recreate(&info.P2PuzzleHash, did.Coin.Amount); err != nil {
		return layers.Did{}, false, err
	}

	p2, err := f(ctx, did.Info.P2PuzzleHash, ss.Kind)
	if err != nil {
		return layers.Did{}, false, err
	}

	if err := did.Spend(ctx, p2); err != nil {
		return layers.Did{}, false, err
	}

	if ss.Melt {
		return layers.Did{}, false, nil
	}

	child, err := did.Child(ctx.Library(), info)
	if err != nil {
		return layers.Did{}, false, err
	}

	return child, true, nil
}

// recreate emits the condition that recreates the singleton, or melts it.
// The p2 puzzle hash is updated to the destination.
func (ss *SingletonSpends[A]) recreate(p2PuzzleHash *clvm.Bytes32, amount uint64) error {
	if ss.Melt {
		return ss.Kind.addConditions(driver.MeltSingleton{})
	}

	if ss.Destination != nil {
		*p2PuzzleHash = *ss.Destination
	}

	memos := ss.Memos
	if memos == nil {
		memos = driver.Hint(*p2PuzzleHash)
	}

	if !ss.Kind.allows(*p2PuzzleHash, amount) {
		return ErrCannotEmitConditions
	}
	ss.Kind.addOutput(*p2PuzzleHash, amount, memos)

	return nil
}
