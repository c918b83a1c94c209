package driver

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Opcode identifies a condition.
type Opcode int64

// Set of condition opcodes.
const (
	OpUpdateNftMetadata           Opcode = -24
	OpTransferNft                 Opcode = -10
	OpRemark                      Opcode = 1
	OpAggSigUnsafe                Opcode = 49
	OpAggSigMe                    Opcode = 50
	OpCreateCoin                  Opcode = 51
	OpReserveFee                  Opcode = 52
	OpCreateCoinAnnouncement      Opcode = 60
	OpAssertCoinAnnouncement      Opcode = 61
	OpCreatePuzzleAnnouncement    Opcode = 62
	OpAssertPuzzleAnnouncement    Opcode = 63
	OpAssertConcurrentSpend       Opcode = 64
	OpAssertConcurrentPuzzle      Opcode = 65
	OpSendMessage                 Opcode = 66
	OpReceiveMessage              Opcode = 67
	OpAssertMyCoinID              Opcode = 70
	OpAssertMyParentID            Opcode = 71
	OpAssertMyPuzzleHash          Opcode = 72
	OpAssertMyAmount              Opcode = 73
	OpAssertSecondsRelative       Opcode = 80
	OpAssertSecondsAbsolute       Opcode = 81
	OpAssertHeightRelative        Opcode = 82
	OpAssertHeightAbsolute        Opcode = 83
	OpAssertBeforeSecondsAbsolute Opcode = 85
)

// MeltAmount is the magic CREATE_COIN amount that melts a singleton or
// runs a CAT TAIL.
const MeltAmount int64 = -113

// ErrBadCondition is returned when a condition's arguments are malformed.
var ErrBadCondition = errors.New("malformed condition")

// Condition interface represents a typed condition output by a puzzle.
type Condition interface {
	Encoder
	Opcode() Opcode
}

// Conditions is an ordered list of conditions.
type Conditions []Condition

// With returns the list with the conditions appended.
func (cs Conditions) With(conds ...Condition) Conditions {
	return append(cs, conds...)
}

// ToClvm encodes the conditions as a list.
func (cs Conditions) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	nodes := make([]clvm.NodePtr, len(cs))
	for i, c := range cs {
		n, err := c.ToClvm(a)
		if err != nil {
			return clvm.Nil, fmt.Errorf("condition %d: %w", i, err)
		}
		nodes[i] = n
	}

	return a.List(nodes...), nil
}

// CreateCoins returns every CREATE_COIN in the list.
func (cs Conditions) CreateCoins() []CreateCoin {
	var out []CreateCoin
	for _, c := range cs {
		if cc, ok := c.(CreateCoin); ok {
			out = append(out, cc)
		}
	}
	return out
}

// =============================================================================

// CreateCoin creates a child coin. A nil Memos omits the memo list.
type CreateCoin struct {
	PuzzleHash clvm.Bytes32
	Amount     uint64
	Memos      [][]byte
}

// NewCreateCoin constructs a CREATE_COIN hinted with the memos.
func NewCreateCoin(puzzleHash clvm.Bytes32, amount uint64, memos ...[]byte) CreateCoin {
	return CreateCoin{PuzzleHash: puzzleHash, Amount: amount, Memos: memos}
}

// Hint returns a memo list that hints the puzzle hash.
func Hint(puzzleHash clvm.Bytes32) [][]byte {
	return [][]byte{puzzleHash[:]}
}

// Opcode implements the Condition interface.
func (c CreateCoin) Opcode() Opcode { return OpCreateCoin }

// ToClvm implements the Condition interface.
func (c CreateCoin) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	items := []clvm.NodePtr{op(a, OpCreateCoin), a.NewBytes32(c.PuzzleHash), a.NewUint64(c.Amount)}
	if c.Memos != nil {
		memos := make([]clvm.NodePtr, len(c.Memos))
		for i, m := range c.Memos {
			memos[i] = a.NewAtom(m)
		}
		items = append(items, a.List(memos...))
	}
	return a.List(items...), nil
}

// MeltSingleton destroys a singleton by creating a coin with the melt
// amount.
type MeltSingleton struct{}

// Opcode implements the Condition interface.
func (MeltSingleton) Opcode() Opcode { return OpCreateCoin }

// ToClvm implements the Condition interface.
func (MeltSingleton) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.List(op(a, OpCreateCoin), clvm.Nil, a.NewInt64(MeltAmount)), nil
}

// RunCatTail runs a TAIL program to issue or melt CAT supply.
type RunCatTail struct {
	Program  clvm.NodePtr
	Solution clvm.NodePtr
}

// Opcode implements the Condition interface.
func (RunCatTail) Opcode() Opcode { return OpCreateCoin }

// ToClvm implements the Condition interface.
func (c RunCatTail) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.List(op(a, OpCreateCoin), clvm.Nil, a.NewInt64(MeltAmount), c.Program, c.Solution), nil
}

// ReserveFee leaves the amount to the farmer.
type ReserveFee struct {
	Amount uint64
}

// Opcode implements the Condition interface.
func (ReserveFee) Opcode() Opcode { return OpReserveFee }

// ToClvm implements the Condition interface.
func (c ReserveFee) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.List(op(a, OpReserveFee), a.NewUint64(c.Amount)), nil
}

// Remark carries arbitrary data the consensus ignores.
type Remark struct {
	Rest clvm.NodePtr
}

// Opcode implements the Condition interface.
func (Remark) Opcode() Opcode { return OpRemark }

// ToClvm implements the Condition interface.
func (c Remark) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.NewPair(op(a, OpRemark), c.Rest), nil
}

// AggSig requires a BLS signature of the message. Me binds it to the coin.
type AggSig struct {
	Me        bool
	PublicKey []byte
	Message   []byte
}

// Opcode implements the Condition interface.
func (c AggSig) Opcode() Opcode {
	if c.Me {
		return OpAggSigMe
	}
	return OpAggSigUnsafe
}

// ToClvm implements the Condition interface.
func (c AggSig) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.List(op(a, c.Opcode()), a.NewAtom(c.PublicKey), a.NewAtom(c.Message)), nil
}

// Announcement creates a coin or puzzle announcement.
type Announcement struct {
	Puzzle  bool
	Message []byte
}

// Opcode implements the Condition interface.
func (c Announcement) Opcode() Opcode {
	if c.Puzzle {
		return OpCreatePuzzleAnnouncement
	}
	return OpCreateCoinAnnouncement
}

// ToClvm implements the Condition interface.
func (c Announcement) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.List(op(a, c.Opcode()), a.NewAtom(c.Message)), nil
}

// Assert is a condition whose single argument is a 32 byte hash, such as
// ASSERT_PUZZLE_ANNOUNCEMENT or ASSERT_MY_COIN_ID.
type Assert struct {
	Code Opcode
	Hash clvm.Bytes32
}

// AssertPuzzleAnnouncement asserts sha256(puzzle_hash || message) was
// announced.
func AssertPuzzleAnnouncement(id clvm.Bytes32) Assert {
	return Assert{Code: OpAssertPuzzleAnnouncement, Hash: id}
}

// AssertConcurrentSpend asserts the coin is spent in the same block.
func AssertConcurrentSpend(coinID clvm.Bytes32) Assert {
	return Assert{Code: OpAssertConcurrentSpend, Hash: coinID}
}

// AssertMyCoinID asserts the id of the coin being spent.
func AssertMyCoinID(coinID clvm.Bytes32) Assert {
	return Assert{Code: OpAssertMyCoinID, Hash: coinID}
}

// Opcode implements the Condition interface.
func (c Assert) Opcode() Opcode { return c.Code }

// ToClvm implements the Condition interface.
func (c Assert) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.List(op(a, c.Code), a.NewBytes32(c.Hash)), nil
}

// Timelock is a condition whose single argument is a time or height, such
// as ASSERT_SECONDS_RELATIVE or ASSERT_MY_AMOUNT.
type Timelock struct {
	Code  Opcode
	Value uint64
}

// AssertSecondsRelative asserts the coin is at least this many seconds old.
func AssertSecondsRelative(seconds uint64) Timelock {
	return Timelock{Code: OpAssertSecondsRelative, Value: seconds}
}

// AssertHeightRelative asserts the coin is at least this many blocks old.
func AssertHeightRelative(height uint32) Timelock {
	return Timelock{Code: OpAssertHeightRelative, Value: uint64(height)}
}

// AssertBeforeSecondsAbsolute asserts the block timestamp is before the
// value.
func AssertBeforeSecondsAbsolute(seconds uint64) Timelock {
	return Timelock{Code: OpAssertBeforeSecondsAbsolute, Value: seconds}
}

// Opcode implements the Condition interface.
func (c Timelock) Opcode() Opcode { return c.Code }

// ToClvm implements the Condition interface.
func (c Timelock) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.List(op(a, c.Code), a.NewUint64(c.Value)), nil
}

// Message sends or receives a message between spends. Mode packs the
// sender and receiver commitment bits.
type Message struct {
	Receive bool
	Mode    uint8
	Message []byte
	Data    []clvm.NodePtr
}

// Opcode implements the Condition interface.
func (c Message) Opcode() Opcode {
	if c.Receive {
		return OpReceiveMessage
	}
	return OpSendMessage
}

// ToClvm implements the Condition interface.
func (c Message) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	items := []clvm.NodePtr{op(a, c.Opcode()), a.NewUint64(uint64(c.Mode)), a.NewAtom(c.Message)}
	return a.List(append(items, c.Data...)...), nil
}

// TradePrice is a payment an NFT transfer owes royalties on.
type TradePrice struct {
	Amount     uint64
	PuzzleHash clvm.Bytes32
}

// TransferNft changes the owner of an NFT with an ownership layer. A nil
// LauncherID removes the owner.
type TransferNft struct {
	LauncherID      *clvm.Bytes32
	TradePrices     []TradePrice
	InnerPuzzleHash *clvm.Bytes32
}

// Opcode implements the Condition interface.
func (TransferNft) Opcode() Opcode { return OpTransferNft }

// ToClvm implements the Condition interface.
func (c TransferNft) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	prices := make([]clvm.NodePtr, len(c.TradePrices))
	for i, tp := range c.TradePrices {
		prices[i] = a.List(a.NewUint64(tp.Amount), a.NewBytes32(tp.PuzzleHash))
	}

	return a.List(op(a, OpTransferNft), optionalHash(a, c.LauncherID), a.List(prices...), optionalHash(a, c.InnerPuzzleHash)), nil
}

// UpdateNftMetadata runs the metadata updater of an NFT state layer.
type UpdateNftMetadata struct {
	UpdaterPuzzle   clvm.NodePtr
	UpdaterSolution clvm.NodePtr
}

// Opcode implements the Condition interface.
func (UpdateNftMetadata) Opcode() Opcode { return OpUpdateNftMetadata }

// ToClvm implements the Condition interface.
func (c UpdateNftMetadata) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.List(op(a, OpUpdateNftMetadata), c.UpdaterPuzzle, c.UpdaterSolution), nil
}

// Other is a condition this package does not type.
type Other struct {
	Code Opcode
	Node clvm.NodePtr
}

// Opcode implements the Condition interface.
func (c Other) Opcode() Opcode { return c.Code }

// ToClvm implements the Condition interface.
func (c Other) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return c.Node, nil
}

// =============================================================================

// ParseConditions decodes a list of conditions. Conditions with unknown
// opcodes are kept as Other.
func ParseConditions(a *clvm.Allocator, n clvm.NodePtr) (Conditions, error) {
	items, err := a.ListItems(n)
	if err != nil {
		return nil, fmt.Errorf("conditions: %w", err)
	}

	conds := make(Conditions, 0, len(items))
	for i, item := range items {
		c, err := ParseCondition(a, item)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		conds = append(conds, c)
	}

	return conds, nil
}

// ParseCondition decodes a single condition.
func ParseCondition(a *clvm.Allocator, n clvm.NodePtr) (Condition, error) {
	first, rest, ok := a.Pair(n)
	if !ok {
		return nil, fmt.Errorf("condition: %w", clvm.ErrPairExpected)
	}

	code, err := a.Int64(first)
	if err != nil {
		return Other{Node: n}, nil
	}
	opcode := Opcode(code)

	if opcode == OpRemark {
		return Remark{Rest: rest}, nil
	}

	args, err := a.ListItems(rest)
	if err != nil {
		return nil, fmt.Errorf("condition %d: %w", opcode, err)
	}

	switch opcode {
	case OpCreateCoin:
		return parseCreateCoin(a, args)

	case OpReserveFee:
		v, err := uintArg(a, args, 0)
		return ReserveFee{Amount: v}, err

	case OpAggSigMe, OpAggSigUnsafe:
		if len(args) < 2 {
			return nil, fmt.Errorf("agg sig: %w", ErrBadCondition)
		}
		pk, err := a.Atom(args[0])
		if err != nil {
			return nil, err
		}
		msg, err := a.Atom(args[1])
		if err != nil {
			return nil, err
		}
		return AggSig{Me: opcode == OpAggSigMe, PublicKey: clone(pk), Message: clone(msg)}, nil

	case OpCreateCoinAnnouncement, OpCreatePuzzleAnnouncement:
		if len(args) < 1 {
			return nil, fmt.Errorf("announcement: %w", ErrBadCondition)
		}
		msg, err := a.Atom(args[0])
		if err != nil {
			return nil, err
		}
		return Announcement{Puzzle: opcode == OpCreatePuzzleAnnouncement, Message: clone(msg)}, nil

	case OpAssertCoinAnnouncement, OpAssertPuzzleAnnouncement, OpAssertConcurrentSpend,
		OpAssertConcurrentPuzzle, OpAssertMyCoinID, OpAssertMyParentID, OpAssertMyPuzzleHash:
		if len(args) < 1 {
			return nil, fmt.Errorf("assert %d: %w", opcode, ErrBadCondition)
		}
		h, err := a.Bytes32(args[0])
		if err != nil {
			return nil, err
		}
		return Assert{Code: opcode, Hash: h}, nil

	case OpAssertMyAmount, OpAssertSecondsRelative, OpAssertSecondsAbsolute,
		OpAssertHeightRelative, OpAssertHeightAbsolute, OpAssertBeforeSecondsAbsolute:
		v, err := uintArg(a, args, 0)
		return Timelock{Code: opcode, Value: v}, err

	case OpSendMessage, OpReceiveMessage:
		if len(args) < 2 {
			return nil, fmt.Errorf("message: %w", ErrBadCondition)
		}
		mode, err := a.Uint8(args[0])
		if err != nil {
			return nil, err
		}
		msg, err := a.Atom(args[1])
		if err != nil {
			return nil, err
		}
		return Message{Receive: opcode == OpReceiveMessage, Mode: mode, Message: clone(msg), Data: args[2:]}, nil

	case OpTransferNft:
		return parseTransferNft(a, args)

	case OpUpdateNftMetadata:
		if len(args) < 2 {
			return nil, fmt.Errorf("update nft metadata: %w", ErrBadCondition)
		}
		return UpdateNftMetadata{UpdaterPuzzle: args[0], UpdaterSolution: args[1]}, nil
	}

	return Other{Code: opcode, Node: n}, nil
}

func parseCreateCoin(a *clvm.Allocator, args []clvm.NodePtr) (Condition, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("create coin: %w", ErrBadCondition)
	}

	amount, err := a.Atom(args[1])
	if err != nil {
		return nil, err
	}

	if bytes.Equal(amount, clvm.EncodeInt64(MeltAmount)) {
		if len(args) >= 4 {
			return RunCatTail{Program: args[2], Solution: args[3]}, nil
		}
		return MeltSingleton{}, nil
	}

	ph, err := a.Bytes32(args[0])
	if err != nil {
		return nil, fmt.Errorf("create coin puzzle hash: %w", err)
	}

	v, err := a.Uint64(args[1])
	if err != nil {
		return nil, fmt.Errorf("create coin amount: %w", err)
	}

	cc := CreateCoin{PuzzleHash: ph, Amount: v}
	if len(args) > 2 {
		memos, err := a.ListItems(args[2])
		if err != nil {
			return nil, fmt.Errorf("create coin memos: %w", err)
		}
		cc.Memos = make([][]byte, 0, len(memos))
		for _, m := range memos {
			b, err := a.Atom(m)
			if err != nil {
				return nil, fmt.Errorf("create coin memo: %w", err)
			}
			cc.Memos = append(cc.Memos, clone(b))
		}
	}

	return cc, nil
}

func parseTransferNft(a *clvm.Allocator, args []clvm.NodePtr) (Condition, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("transfer nft: %w", ErrBadCondition)
	}

	var c TransferNft
	var err error

	if c.LauncherID, err = parseOptionalHash(a, args[0]); err != nil {
		return nil, err
	}

	prices, err := a.ListItems(args[1])
	if err != nil {
		return nil, err
	}
	for _, p := range prices {
		items, err := a.ListItems(p)
		if err != nil || len(items) != 2 {
			return nil, fmt.Errorf("trade price: %w", ErrBadCondition)
		}
		amount, err := a.Uint64(items[0])
		if err != nil {
			return nil, err
		}
		ph, err := a.Bytes32(items[1])
		if err != nil {
			return nil, err
		}
		c.TradePrices = append(c.TradePrices, TradePrice{Amount: amount, PuzzleHash: ph})
	}

	if c.InnerPuzzleHash, err = parseOptionalHash(a, args[2]); err != nil {
		return nil, err
	}

	return c, nil
}

// =============================================================================

func op(a *clvm.Allocator, code Opcode) clvm.NodePtr {
	return a.NewInt64(int64(code))
}

func uintArg(a *clvm.Allocator, args []clvm.NodePtr, i int) (uint64, error) {
	if len(args) <= i {
		return 0, ErrBadCondition
	}
	return a.Uint64(args[i])
}

func optionalHash(a *clvm.Allocator, h *clvm.Bytes32) clvm.NodePtr {
	if h == nil {
		return clvm.Nil
	}
	return a.NewBytes32(*h)
}

func parseOptionalHash(a *clvm.Allocator, n clvm.NodePtr) (*clvm.Bytes32, error) {
	if a.IsNil(n) {
		return nil, nil
	}

	h, err := a.Bytes32(n)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
