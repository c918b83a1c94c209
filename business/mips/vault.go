package mips

import (
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Vault is a singleton whose inner puzzle is the custody puzzle of an
// authority tree.
type Vault struct {
	Coin        database.Coin
	Proof       database.Proof
	LauncherID  clvm.Bytes32
	CustodyHash clvm.Bytes32
}

// MintVault launches a vault with the custody hash from the parent coin.
// The returned conditions must be emitted by the parent.
func MintVault(ctx *driver.SpendContext, parentCoinID clvm.Bytes32, custodyHash clvm.Bytes32, memos clvm.NodePtr) (Vault, driver.Conditions, error) {
	launcher, create := layers.NewLauncher(ctx.Library(), parentCoinID, 1)

	eve, assert, err := launcher.Spend(ctx, custodyHash, memos)
	if err != nil {
		return Vault{}, nil, err
	}

	v := Vault{
		Coin:        eve.Coin,
		Proof:       eve.Proof,
		LauncherID:  eve.LauncherID,
		CustodyHash: custodyHash,
	}

	ctx.Event("mips: mint vault: launcher[%s] custody[%s]", v.LauncherID, custodyHash)

	return v, driver.Conditions{create, assert}, nil
}

// Spend resolves the authority tree and spends the vault coin with it.
func (v Vault) Spend(ctx *driver.SpendContext, ms *MipsSpend) error {
	inner, err := ms.Spend(ctx, v.CustodyHash)
	if err != nil {
		return err
	}

	return v.singleton().Spend(ctx, inner)
}

// Child returns the vault the coin recreates with the new custody hash.
// Rekeying is a spend whose delegated puzzle creates the child with a
// different custody hash.
func (v Vault) Child(lib puzzles.Library, custodyHash clvm.Bytes32, amount uint64) Vault {
	child := v.singleton().Child(lib, custodyHash, amount)

	return Vault{
		Coin:        child.Coin,
		Proof:       child.Proof,
		LauncherID:  child.LauncherID,
		CustodyHash: custodyHash,
	}
}

func (v Vault) singleton() layers.Singleton {
	return layers.Singleton{
		Coin:            v.Coin,
		LauncherID:      v.LauncherID,
		Proof:           v.Proof,
		InnerPuzzleHash: v.CustodyHash,
	}
}
