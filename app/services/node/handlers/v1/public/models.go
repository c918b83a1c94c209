package public

import (
	"github.com/ardanlabs/puzzlekit/business/core/program"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/ardanlabs/puzzlekit/foundation/validate"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type programRequest struct {
	Program  string `json:"program" validate:"required"`
	Backrefs bool   `json:"backrefs"`
}

// Validate checks the data in the model is considered clean.
func (r programRequest) Validate() error {
	return validate.Check(r)
}

type treeHash struct {
	TreeHash clvm.Bytes32 `json:"tree_hash"`
}

type curryRequest struct {
	Mod  string   `json:"mod" validate:"required"`
	Args []string `json:"args"`
}

// Validate checks the data in the model is considered clean.
func (r curryRequest) Validate() error {
	return validate.Check(r)
}

type proofRequest struct {
	Leaves []clvm.Bytes32 `json:"leaves" validate:"required,min=1"`
	Leaf   clvm.Bytes32   `json:"leaf"`
}

// Validate checks the data in the model is considered clean.
func (r proofRequest) Validate() error {
	return validate.Check(r)
}

type member struct {
	Kind      string        `json:"kind" validate:"required"`
	PublicKey hexutil.Bytes `json:"public_key"`
	Hash      clvm.Bytes32  `json:"hash"`
}

type vaultRequest struct {
	Required        int      `json:"required" validate:"gte=1"`
	Members         []member `json:"members" validate:"required,min=1,dive"`
	TimelockSeconds uint64   `json:"timelock_seconds"`
	NoSideEffects   bool     `json:"no_side_effects"`
}

// Validate checks the data in the model is considered clean.
func (r vaultRequest) Validate() error {
	return validate.Check(r)
}

func (r vaultRequest) toCustody() program.Custody {
	c := program.Custody{
		Required:        r.Required,
		Members:         make([]program.Member, len(r.Members)),
		TimelockSeconds: r.TimelockSeconds,
		NoSideEffects:   r.NoSideEffects,
	}
	for i, m := range r.Members {
		c.Members[i] = program.Member{Kind: m.Kind, PublicKey: m.PublicKey, Hash: m.Hash}
	}
	return c
}

type vaultHash struct {
	CustodyHash clvm.Bytes32 `json:"custody_hash"`
}

type coin struct {
	CoinID     clvm.Bytes32 `json:"coin_id"`
	Parent     clvm.Bytes32 `json:"parent_coin_info"`
	PuzzleHash clvm.Bytes32 `json:"puzzle_hash"`
	Owner      string       `json:"owner"`
	Amount     uint64       `json:"amount"`
}

type coins struct {
	PuzzleHash clvm.Bytes32 `json:"puzzle_hash"`
	Owner      string       `json:"owner"`
	Balance    uint64       `json:"balance"`
	Coins      []coin       `json:"coins"`
}

type balance struct {
	Name       string       `json:"name"`
	PuzzleHash clvm.Bytes32 `json:"puzzle_hash"`
	Balance    uint64       `json:"balance"`
}

type sendRequest struct {
	From   string   `json:"from" validate:"required"`
	To     string   `json:"to" validate:"required"`
	Amount uint64   `json:"amount" validate:"gt=0"`
	Fee    uint64   `json:"fee"`
	Memos  []string `json:"memos"`
	Commit bool     `json:"commit"`
}

// Validate checks the data in the model is considered clean.
func (r sendRequest) Validate() error {
	return validate.Check(r)
}

type sendResponse struct {
	Selected   []coin               `json:"selected"`
	CoinSpends []database.CoinSpend `json:"coin_spends"`
	Additions  []coin               `json:"additions"`
	Fee        uint64               `json:"fee"`
	Height     uint32               `json:"height,omitempty"`
}
