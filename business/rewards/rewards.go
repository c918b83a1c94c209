// Package rewards implements the reward distributor: a singleton that pays
// a stream of incentives out to entries in proportion to their shares. The
// state math here mirrors the actions of the on chain state machine so
// drivers can predict the next state and the amounts each action moves.
package rewards

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/actionlayer"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/business/registry"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/holiman/uint256"
)

// Set of error variables for the distributor state machine.
var (
	ErrUpdateTime        = errors.New("update time is before the last update")
	ErrNotSynced         = errors.New("distributor is not synced to the epoch end")
	ErrEpochEnded        = errors.New("epoch has ended")
	ErrWrongEpoch        = errors.New("reward slot is not for this epoch")
	ErrBelowThreshold    = errors.New("payout is below the threshold")
	ErrInsufficientFunds = errors.New("reserves do not cover the amount")
	ErrNoShares          = errors.New("entry has no shares")
	ErrUnknownEntry      = errors.New("entry is not in the distributor")
)

// Nonces of the slots the distributor creates.
const (
	RewardSlotNonce     = 1
	CommitmentSlotNonce = 2
	EntrySlotNonce      = 3
)

// BasisPoints is the denominator of fee and withdrawal shares.
const BasisPoints = 10_000

// =============================================================================

// Constants are the curried parameters of a distributor.
type Constants struct {
	LauncherID          clvm.Bytes32
	ManagerLauncherID   clvm.Bytes32
	FeePayoutPuzzleHash clvm.Bytes32
	EpochSeconds        uint64
	MaxSecondsOffset    uint64
	PayoutThreshold     uint64
	FeeBps              uint64
	WithdrawalShareBps  uint64
	ReserveAssetID      clvm.Bytes32
}

// Reserve returns the CAT reserve that backs the distributor.
func (c Constants) Reserve() actionlayer.Reserve {
	return actionlayer.Reserve{AssetID: c.ReserveAssetID, LauncherID: c.LauncherID}
}

// fee returns the fee bps of an amount, floored.
func (c Constants) fee(amount uint64) uint64 {
	return mulDiv(amount, c.FeeBps, BasisPoints)
}

// ActionHashes returns the puzzle hashes of the distributor actions in
// merkle tree order.
func ActionHashes(lib puzzles.Library, c Constants) []clvm.Bytes32 {
	u := func(v uint64) clvm.Bytes32 { return clvm.TreeHashAtom(clvm.EncodeUint64(v)) }
	b := func(v clvm.Bytes32) clvm.Bytes32 { return clvm.TreeHashAtom(v[:]) }

	rewardSlot := registry.SlotFirstCurryHash(lib, c.LauncherID, RewardSlotNonce)
	entrySlot := registry.SlotFirstCurryHash(lib, c.LauncherID, EntrySlotNonce)

	return []clvm.Bytes32{
		clvm.CurryTreeHash(lib.MustHash(puzzles.RewardDistributorIncentives), b(c.FeePayoutPuzzleHash), u(c.FeeBps)),
		clvm.CurryTreeHash(lib.MustHash(puzzles.RewardDistributorPayout), b(entrySlot), u(c.PayoutThreshold)),
		clvm.CurryTreeHash(lib.MustHash(puzzles.RewardDistributorNewEpoch), b(rewardSlot), b(c.FeePayoutPuzzleHash), u(c.FeeBps), u(c.EpochSeconds)),
		lib.MustHash(puzzles.RewardDistributorSync),
		clvm.CurryTreeHash(lib.MustHash(puzzles.RewardDistributorWithdraw), b(rewardSlot), u(c.WithdrawalShareBps)),
		clvm.CurryTreeHash(lib.MustHash(puzzles.RewardDistributorAddEntry), b(entrySlot), b(c.ManagerLauncherID), u(c.MaxSecondsOffset)),
		clvm.CurryTreeHash(lib.MustHash(puzzles.RewardDistributorRemoveEntry), b(entrySlot), b(c.ManagerLauncherID), u(c.MaxSecondsOffset)),
	}
}

// Layer returns the action layer of a distributor in the state. The
// reserve finalizer recreates the reserve with the total reserves of the
// new state, the first element of the state.
func Layer(lib puzzles.Library, c Constants, state State) (actionlayer.ActionLayer[State], error) {
	fin := c.Reserve().Finalizer(lib, actionlayer.DefaultReserveAmountProgram, c.LauncherID)
	return actionlayer.New(ActionHashes(lib, c), state, fin)
}

// =============================================================================

// RoundRewardInfo tracks the rewards of the running epoch. CumulativePayout
// is what one share has earned since launch and RemainingRewards is what
// is left to stream until the epoch end.
type RoundRewardInfo struct {
	CumulativePayout uint64
	RemainingRewards uint64
}

// RoundTimeInfo tracks the time of the last sync and the epoch end.
type RoundTimeInfo struct {
	LastUpdate uint64
	EpochEnd   uint64
}

// State is the distributor state the actions thread through.
type State struct {
	TotalReserves uint64
	ActiveShares  uint64
	Reward        RoundRewardInfo
	Time          RoundTimeInfo
}

// Initial returns the state of a distributor whose first epoch starts at
// the time.
func Initial(firstEpochStart uint64) State {
	return State{Time: RoundTimeInfo{LastUpdate: firstEpochStart, EpochEnd: firstEpochStart}}
}

// ReserveAmount returns the amount the reserve with the index must hold.
func (s State) ReserveAmount(index uint64) uint64 {
	if index != 0 {
		return 0
	}
	return s.TotalReserves
}

// ToClvm implements the clvm.Value interface. The state is the list
// (total_reserves active_shares (cumulative . remaining) (last . end)).
func (s State) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.List(
		a.NewUint64(s.TotalReserves),
		a.NewUint64(s.ActiveShares),
		a.Cons(a.NewUint64(s.Reward.CumulativePayout), a.NewUint64(s.Reward.RemainingRewards)),
		a.Cons(a.NewUint64(s.Time.LastUpdate), a.NewUint64(s.Time.EpochEnd)),
	), nil
}

// FromClvm implements the clvm.Value interface.
func (State) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (State, error) {
	items, err := a.ListItems(n)
	if err != nil {
		return State{}, err
	}
	if len(items) != 4 {
		return State{}, fmt.Errorf("state items[%d]: %w", len(items), clvm.ErrPairExpected)
	}

	var s State
	if s.TotalReserves, err = a.Uint64(items[0]); err != nil {
		return State{}, err
	}
	if s.ActiveShares, err = a.Uint64(items[1]); err != nil {
		return State{}, err
	}
	if s.Reward.CumulativePayout, s.Reward.RemainingRewards, err = uint64Pair(a, items[2]); err != nil {
		return State{}, err
	}
	if s.Time.LastUpdate, s.Time.EpochEnd, err = uint64Pair(a, items[3]); err != nil {
		return State{}, err
	}

	return s, nil
}

// =============================================================================

// Sync streams the rewards of the epoch up to the update time. Each active
// share earns the floored quotient of the pro rata rewards, the remainder
// stays in the remaining rewards. An update time past the epoch end syncs
// to the epoch end.
func (s State) Sync(updateTime uint64) (State, error) {
	if updateTime < s.Time.LastUpdate {
		return State{}, fmt.Errorf("update[%d] last[%d]: %w", updateTime, s.Time.LastUpdate, ErrUpdateTime)
	}
	if updateTime > s.Time.EpochEnd {
		updateTime = s.Time.EpochEnd
	}

	elapsed := updateTime - s.Time.LastUpdate
	span := s.Time.EpochEnd - s.Time.LastUpdate

	if s.ActiveShares > 0 && elapsed > 0 {
		// delta = remaining * elapsed / (span * shares)
		num := new(uint256.Int).Mul(uint256.NewInt(s.Reward.RemainingRewards), uint256.NewInt(elapsed))
		den := new(uint256.Int).Mul(uint256.NewInt(span), uint256.NewInt(s.ActiveShares))
		delta := num.Div(num, den).Uint64()

		s.Reward.CumulativePayout += delta
		s.Reward.RemainingRewards -= delta * s.ActiveShares
	}

	s.Time.LastUpdate = updateTime
	return s, nil
}

// AddIncentives adds rewards to the running epoch. The fee is paid out of
// the amount and the rest enters the reserves. It returns the fee.
func (s State) AddIncentives(c Constants, amount uint64) (State, uint64, error) {
	if s.Time.LastUpdate >= s.Time.EpochEnd {
		return State{}, 0, fmt.Errorf("last[%d] end[%d]: %w", s.Time.LastUpdate, s.Time.EpochEnd, ErrEpochEnded)
	}

	fee := c.fee(amount)
	s.Reward.RemainingRewards += amount - fee
	s.TotalReserves += amount - fee

	return s, fee, nil
}

// CommitIncentives adds rewards to a future epoch. The amount enters the
// reserves now and the reward slot of the epoch carries it until the epoch
// starts.
func (s State) CommitIncentives(slot RewardSlotValue, amount uint64) (State, RewardSlotValue, error) {
	if slot.EpochStart < s.Time.EpochEnd {
		return State{}, RewardSlotValue{}, fmt.Errorf("epoch[%d] end[%d]: %w", slot.EpochStart, s.Time.EpochEnd, ErrWrongEpoch)
	}

	s.TotalReserves += amount
	slot.Rewards += amount

	return s, slot, nil
}

// WithdrawIncentives takes back the withdrawal share of a commitment to a
// future epoch. It returns the amount withdrawn.
func (s State) WithdrawIncentives(c Constants, slot RewardSlotValue, committed uint64) (State, RewardSlotValue, uint64, error) {
	if slot.EpochStart < s.Time.EpochEnd {
		return State{}, RewardSlotValue{}, 0, fmt.Errorf("epoch[%d] end[%d]: %w", slot.EpochStart, s.Time.EpochEnd, ErrWrongEpoch)
	}

	withdrawn := mulDiv(committed, c.WithdrawalShareBps, BasisPoints)
	if withdrawn > slot.Rewards {
		return State{}, RewardSlotValue{}, 0, fmt.Errorf("withdraw[%d] rewards[%d]: %w", withdrawn, slot.Rewards, ErrInsufficientFunds)
	}

	s.TotalReserves -= withdrawn
	slot.Rewards -= withdrawn

	return s, slot, withdrawn, nil
}

// NewEpoch starts the next epoch once the distributor is synced to the end
// of the running one. The rewards committed to the epoch less the fee join
// the remaining rewards. It returns the fee.
func (s State) NewEpoch(c Constants, slot RewardSlotValue) (State, uint64, error) {
	if s.Time.LastUpdate != s.Time.EpochEnd {
		return State{}, 0, fmt.Errorf("last[%d] end[%d]: %w", s.Time.LastUpdate, s.Time.EpochEnd, ErrNotSynced)
	}
	if slot.EpochStart != s.Time.EpochEnd {
		return State{}, 0, fmt.Errorf("epoch[%d] end[%d]: %w", slot.EpochStart, s.Time.EpochEnd, ErrWrongEpoch)
	}

	fee := c.fee(slot.Rewards)
	s.Reward.RemainingRewards += slot.Rewards - fee
	s.TotalReserves -= fee
	s.Time.EpochEnd += c.EpochSeconds

	return s, fee, nil
}

// AddEntry adds shares for the payout puzzle hash. The entry starts earning
// from the current cumulative payout.
func (s State) AddEntry(payoutPuzzleHash clvm.Bytes32, shares uint64) (State, EntrySlotValue, error) {
	if shares == 0 {
		return State{}, EntrySlotValue{}, ErrNoShares
	}

	s.ActiveShares += shares
	entry := EntrySlotValue{
		PayoutPuzzleHash:        payoutPuzzleHash,
		InitialCumulativePayout: s.Reward.CumulativePayout,
		Shares:                  shares,
	}

	return s, entry, nil
}

// RemoveEntry removes the entry and pays out what it earned. It returns the
// payout amount.
func (s State) RemoveEntry(entry EntrySlotValue) (State, uint64, error) {
	if entry.Shares > s.ActiveShares {
		return State{}, 0, fmt.Errorf("shares[%d] active[%d]: %w", entry.Shares, s.ActiveShares, ErrUnknownEntry)
	}

	amount, err := s.owed(entry)
	if err != nil {
		return State{}, 0, err
	}

	s.TotalReserves -= amount
	s.ActiveShares -= entry.Shares

	return s, amount, nil
}

// InitiatePayout pays the entry what it earned since its last payout and
// returns the entry restarted at the current cumulative payout.
func (s State) InitiatePayout(c Constants, entry EntrySlotValue) (State, EntrySlotValue, uint64, error) {
	amount, err := s.owed(entry)
	if err != nil {
		return State{}, EntrySlotValue{}, 0, err
	}

	if amount < c.PayoutThreshold {
		return State{}, EntrySlotValue{}, 0, fmt.Errorf("payout[%d] threshold[%d]: %w", amount, c.PayoutThreshold, ErrBelowThreshold)
	}

	s.TotalReserves -= amount
	entry.InitialCumulativePayout = s.Reward.CumulativePayout

	return s, entry, amount, nil
}

// Owed returns what the entry earned since its last payout.
func (s State) Owed(entry EntrySlotValue) (uint64, error) {
	return s.owed(entry)
}

func (s State) owed(entry EntrySlotValue) (uint64, error) {
	if entry.InitialCumulativePayout > s.Reward.CumulativePayout {
		return 0, fmt.Errorf("initial[%d] cumulative[%d]: %w", entry.InitialCumulativePayout, s.Reward.CumulativePayout, ErrUnknownEntry)
	}

	amount, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(entry.Shares), uint256.NewInt(s.Reward.CumulativePayout-entry.InitialCumulativePayout))
	if overflow || !amount.IsUint64() {
		return 0, fmt.Errorf("shares[%d]: %w", entry.Shares, clvm.ErrTooLarge)
	}

	if amount.Uint64() > s.TotalReserves {
		return 0, fmt.Errorf("owed[%d] reserves[%d]: %w", amount.Uint64(), s.TotalReserves, ErrInsufficientFunds)
	}

	return amount.Uint64(), nil
}

// =============================================================================

// EntrySlotValue is the slot of an entry: who gets paid, for how many
// shares, and the cumulative payout at the last payout.
type EntrySlotValue struct {
	PayoutPuzzleHash        clvm.Bytes32
	InitialCumulativePayout uint64
	Shares                  uint64
}

// ToClvm implements the clvm.Value interface.
func (v EntrySlotValue) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.Cons(a.NewBytes32(v.PayoutPuzzleHash), a.Cons(a.NewUint64(v.InitialCumulativePayout), a.NewUint64(v.Shares))), nil
}

// FromClvm implements the clvm.Value interface.
func (EntrySlotValue) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (EntrySlotValue, error) {
	first, rest, ok := a.Pair(n)
	if !ok {
		return EntrySlotValue{}, clvm.ErrPairExpected
	}

	var v EntrySlotValue
	var err error
	if v.PayoutPuzzleHash, err = a.Bytes32(first); err != nil {
		return EntrySlotValue{}, err
	}
	if v.InitialCumulativePayout, v.Shares, err = uint64Pair(a, rest); err != nil {
		return EntrySlotValue{}, err
	}

	return v, nil
}

// RewardSlotValue is the slot of an epoch: the rewards committed to it.
type RewardSlotValue struct {
	EpochStart           uint64
	NextEpochInitialized bool
	Rewards              uint64
}

// ToClvm implements the clvm.Value interface.
func (v RewardSlotValue) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.Cons(a.NewUint64(v.EpochStart), a.Cons(a.NewBool(v.NextEpochInitialized), a.NewUint64(v.Rewards))), nil
}

// FromClvm implements the clvm.Value interface.
func (RewardSlotValue) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (RewardSlotValue, error) {
	first, rest, ok := a.Pair(n)
	if !ok {
		return RewardSlotValue{}, clvm.ErrPairExpected
	}
	flag, rewards, ok := a.Pair(rest)
	if !ok {
		return RewardSlotValue{}, clvm.ErrPairExpected
	}

	var v RewardSlotValue
	var err error
	if v.EpochStart, err = a.Uint64(first); err != nil {
		return RewardSlotValue{}, err
	}
	if v.NextEpochInitialized, err = a.Bool(flag); err != nil {
		return RewardSlotValue{}, err
	}
	if v.Rewards, err = a.Uint64(rewards); err != nil {
		return RewardSlotValue{}, err
	}

	return v, nil
}

// =============================================================================

func uint64Pair(a *clvm.Allocator, n clvm.NodePtr) (uint64, uint64, error) {
	first, rest, ok := a.Pair(n)
	if !ok {
		return 0, 0, clvm.ErrPairExpected
	}

	x, err := a.Uint64(first)
	if err != nil {
		return 0, 0, err
	}
	y, err := a.Uint64(rest)
	if err != nil {
		return 0, 0, err
	}

	return x, y, nil
}

// mulDiv returns x*y/d floored without intermediate overflow.
func mulDiv(x uint64, y uint64, d uint64) uint64 {
	v := new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(y))
	return v.Div(v, uint256.NewInt(d)).Uint64()
}
