package database

import (
	"crypto/sha256"
	"fmt"

	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Coin is an unspent output identified by its parent, the hash of the
// puzzle that locks it and its amount.
type Coin struct {
	ParentCoinInfo clvm.Bytes32 `json:"parent_coin_info"`
	PuzzleHash     clvm.Bytes32 `json:"puzzle_hash"`
	Amount         uint64       `json:"amount"`
}

// NewCoin constructs a coin.
func NewCoin(parentCoinInfo clvm.Bytes32, puzzleHash clvm.Bytes32, amount uint64) Coin {
	return Coin{
		ParentCoinInfo: parentCoinInfo,
		PuzzleHash:     puzzleHash,
		Amount:         amount,
	}
}

// CoinID returns sha256(parent || puzzle hash || amount) with the amount
// in its minimal CLVM integer encoding.
func (c Coin) CoinID() clvm.Bytes32 {
	h := sha256.New()
	h.Write(c.ParentCoinInfo[:])
	h.Write(c.PuzzleHash[:])
	h.Write(clvm.EncodeUint64(c.Amount))

	var id clvm.Bytes32
	h.Sum(id[:0])
	return id
}

// Child returns the coin this coin creates with a CREATE_COIN condition.
func (c Coin) Child(puzzleHash clvm.Bytes32, amount uint64) Coin {
	return NewCoin(c.CoinID(), puzzleHash, amount)
}

// String implements the fmt.Stringer interface.
func (c Coin) String() string {
	return fmt.Sprintf("%s:%s:%d", c.CoinID(), c.PuzzleHash, c.Amount)
}

// ToClvm encodes the coin as (parent puzzle_hash amount).
func (c Coin) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.List(a.NewBytes32(c.ParentCoinInfo), a.NewBytes32(c.PuzzleHash), a.NewUint64(c.Amount)), nil
}

// FromClvm decodes a coin encoded as (parent puzzle_hash amount).
func (Coin) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (Coin, error) {
	items, err := a.ListItems(n)
	if err != nil {
		return Coin{}, fmt.Errorf("coin: %w", err)
	}

	if len(items) != 3 {
		return Coin{}, fmt.Errorf("coin: %d items: %w", len(items), clvm.ErrPairExpected)
	}

	parent, err := a.Bytes32(items[0])
	if err != nil {
		return Coin{}, fmt.Errorf("coin parent: %w", err)
	}

	ph, err := a.Bytes32(items[1])
	if err != nil {
		return Coin{}, fmt.Errorf("coin puzzle hash: %w", err)
	}

	amount, err := a.Uint64(items[2])
	if err != nil {
		return Coin{}, fmt.Errorf("coin amount: %w", err)
	}

	return NewCoin(parent, ph, amount), nil
}

// =============================================================================

// CoinSpend is the reveal and solution that spends one coin. It is the
// unit handed to the node and to peers.
type CoinSpend struct {
	Coin         Coin          `json:"coin"`
	PuzzleReveal hexutil.Bytes `json:"puzzle_reveal"`
	Solution     hexutil.Bytes `json:"solution"`
}

// NewCoinSpend constructs a coin spend.
func NewCoinSpend(coin Coin, puzzleReveal []byte, solution []byte) CoinSpend {
	return CoinSpend{
		Coin:         coin,
		PuzzleReveal: puzzleReveal,
		Solution:     solution,
	}
}

// CoinState tracks when a coin was created and spent.
type CoinState struct {
	Coin          Coin    `json:"coin"`
	CreatedHeight *uint32 `json:"created_height"`
	SpentHeight   *uint32 `json:"spent_height"`
}

// Spent reports if the coin has been spent.
func (cs CoinState) Spent() bool {
	return cs.SpentHeight != nil
}

// =============================================================================

// LineageProof proves a singleton's parent without replaying the chain.
type LineageProof struct {
	ParentParentCoinInfo  clvm.Bytes32 `json:"parent_parent_coin_info"`
	ParentInnerPuzzleHash clvm.Bytes32 `json:"parent_inner_puzzle_hash"`
	ParentAmount          uint64       `json:"parent_amount"`
}

// EveProof is the lineage proof of the first singleton after its launcher.
type EveProof struct {
	ParentParentCoinInfo clvm.Bytes32 `json:"parent_parent_coin_info"`
	ParentAmount         uint64       `json:"parent_amount"`
}

// Proof is either a lineage proof or an eve proof.
type Proof struct {
	Lineage *LineageProof `json:"lineage,omitempty"`
	Eve     *EveProof     `json:"eve,omitempty"`
}

// LineageOf wraps a lineage proof.
func LineageOf(lp LineageProof) Proof {
	return Proof{Lineage: &lp}
}

// EveOf wraps an eve proof.
func EveOf(ep EveProof) Proof {
	return Proof{Eve: &ep}
}

// ToClvm encodes a lineage proof as (parent_parent inner_ph amount) and an
// eve proof as (parent_parent amount).
func (p Proof) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	switch {
	case p.Lineage != nil:
		lp := p.Lineage
		return a.List(a.NewBytes32(lp.ParentParentCoinInfo), a.NewBytes32(lp.ParentInnerPuzzleHash), a.NewUint64(lp.ParentAmount)), nil

	case p.Eve != nil:
		return a.List(a.NewBytes32(p.Eve.ParentParentCoinInfo), a.NewUint64(p.Eve.ParentAmount)), nil
	}

	return clvm.Nil, fmt.Errorf("proof: empty")
}

// FromClvm decodes either proof shape based on its length.
func (Proof) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (Proof, error) {
	items, err := a.ListItems(n)
	if err != nil {
		return Proof{}, fmt.Errorf("proof: %w", err)
	}

	switch len(items) {
	case 3:
		parent, err := a.Bytes32(items[0])
		if err != nil {
			return Proof{}, err
		}
		inner, err := a.Bytes32(items[1])
		if err != nil {
			return Proof{}, err
		}
		amount, err := a.Uint64(items[2])
		if err != nil {
			return Proof{}, err
		}
		return LineageOf(LineageProof{ParentParentCoinInfo: parent, ParentInnerPuzzleHash: inner, ParentAmount: amount}), nil

	case 2:
		parent, err := a.Bytes32(items[0])
		if err != nil {
			return Proof{}, err
		}
		amount, err := a.Uint64(items[1])
		if err != nil {
			return Proof{}, err
		}
		return EveOf(EveProof{ParentParentCoinInfo: parent, ParentAmount: amount}), nil
	}

	return Proof{}, fmt.Errorf("proof: %d items: %w", len(items), clvm.ErrWrongAtomLength)
}
