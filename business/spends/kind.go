package spends

import (
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// output identifies a created coin among the siblings of one parent.
type output struct {
	puzzleHash clvm.Bytes32
	amount     uint64
}

// SpendKind describes how a coin is spent. A conditions kind emits any
// condition its owner signs. A settlement kind can only pay out
// notarized payments.
type SpendKind struct {
	settlement bool
	conditions driver.Conditions
	payments   []layers.NotarizedPayment
	outputs    map[output]struct{}
}

// NewConditionsKind constructs a kind that emits arbitrary conditions.
func NewConditionsKind() *SpendKind {
	return &SpendKind{outputs: make(map[output]struct{})}
}

// NewSettlementKind constructs a kind that pays out notarized payments.
func NewSettlementKind() *SpendKind {
	return &SpendKind{settlement: true, outputs: make(map[output]struct{})}
}

// KindFor picks the kind for a coin owned by the p2 puzzle hash.
func KindFor(lib puzzles.Library, p2PuzzleHash clvm.Bytes32) *SpendKind {
	if p2PuzzleHash == lib.MustHash(puzzles.SettlementPayment) {
		return NewSettlementKind()
	}
	return NewConditionsKind()
}

// IsSettlement reports whether the kind only pays out notarized payments.
func (k *SpendKind) IsSettlement() bool {
	return k.settlement
}

// Conditions returns the conditions of a conditions kind.
func (k *SpendKind) Conditions() driver.Conditions {
	return k.conditions
}

// Payments returns the notarized payments of a settlement kind.
func (k *SpendKind) Payments() []layers.NotarizedPayment {
	return k.payments
}

// IsEmpty reports whether the kind has nothing to emit yet.
func (k *SpendKind) IsEmpty() bool {
	return len(k.conditions) == 0 && len(k.payments) == 0
}

// allows reports whether the coin can still create the output. Two
// children with the same puzzle hash and amount would have the same id.
func (k *SpendKind) allows(puzzleHash clvm.Bytes32, amount uint64) bool {
	_, exists := k.outputs[output{puzzleHash, amount}]
	return !exists
}

// addOutput records a created coin. A settlement kind pays it as part of
// the unbound notarized payment.
func (k *SpendKind) addOutput(puzzleHash clvm.Bytes32, amount uint64, memos [][]byte) {
	k.outputs[output{puzzleHash, amount}] = struct{}{}

	if !k.settlement {
		k.conditions = append(k.conditions, driver.NewCreateCoin(puzzleHash, amount, memos...))
		return
	}

	p := layers.Payment{PuzzleHash: puzzleHash, Amount: amount, Memos: memos}
	for i := range k.payments {
		if k.payments[i].Nonce.IsZero() {
			k.payments[i].Payments = append(k.payments[i].Payments, p)
			return
		}
	}
	k.payments = append(k.payments, layers.NotarizedPayment{Payments: []layers.Payment{p}})
}

// addConditions appends conditions to a conditions kind.
func (k *SpendKind) addConditions(conds ...driver.Condition) error {
	if k.settlement {
		return ErrCannotEmitConditions
	}

	for _, cond := range conds {
		if cc, ok := cond.(driver.CreateCoin); ok {
			k.outputs[output{cc.PuzzleHash, cc.Amount}] = struct{}{}
		}
	}

	k.conditions = append(k.conditions, conds...)
	return nil
}

// addNotarizedPayment appends a notarized payment to a settlement kind.
func (k *SpendKind) addNotarizedPayment(np layers.NotarizedPayment) {
	for _, p := range np.Payments {
		k.outputs[output{p.PuzzleHash, p.Amount}] = struct{}{}
	}
	k.payments = append(k.payments, np)
}

// createdCoins returns the puzzle hash and amount of every coin the kind
// creates.
func (k *SpendKind) createdCoins() []driver.CreateCoin {
	if !k.settlement {
		return k.conditions.CreateCoins()
	}

	var out []driver.CreateCoin
	for _, np := range k.payments {
		for _, p := range np.Payments {
			out = append(out, driver.NewCreateCoin(p.PuzzleHash, p.Amount, p.Memos...))
		}
	}
	return out
}
