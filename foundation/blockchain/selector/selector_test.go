package selector_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/selector"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/davecgh/go-spew/spew"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func coins(amounts ...uint64) []database.Coin {
	out := make([]database.Coin, len(amounts))
	for i, amount := range amounts {
		var parent clvm.Bytes32
		parent[0] = byte(i + 1)
		out[i] = database.NewCoin(parent, clvm.Bytes32{}, amount)
	}
	return out
}

func amounts(cs []database.Coin) []uint64 {
	out := make([]uint64, len(cs))
	for i, c := range cs {
		out[i] = c.Amount
	}
	return out
}

func equal(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSelect(t *testing.T) {
	type test struct {
		name     string
		strategy string
		coins    []database.Coin
		amount   uint64
		exp      []uint64
	}

	tt := []test{
		{name: "exact coin", strategy: selector.StrategyKnapsack, coins: coins(10, 5, 3), amount: 5, exp: []uint64{5}},
		{name: "all smaller coins", strategy: selector.StrategyKnapsack, coins: coins(20, 4, 3, 2), amount: 9, exp: []uint64{4, 3, 2}},
		{name: "single larger coin", strategy: selector.StrategyKnapsack, coins: coins(20, 12, 3), amount: 11, exp: []uint64{12}},
		{name: "knapsack exact", strategy: selector.StrategyKnapsack, coins: coins(8, 6, 4, 3, 1), amount: 7},
		{name: "largest first", strategy: selector.StrategyLargest, coins: coins(1, 7, 4), amount: 9, exp: []uint64{7, 4}},
		{name: "smallest above", strategy: selector.StrategySmallest, coins: coins(50, 10, 12, 3), amount: 11, exp: []uint64{12}},
		{name: "smallest falls back", strategy: selector.StrategySmallest, coins: coins(5, 4, 3), amount: 8, exp: []uint64{5, 4}},
	}

	t.Log("Given the need to select coins that cover an amount.")
	{
		for testID, test := range tt {
			t.Logf("\tTest %d:\tWhen selecting %d with %s: %s.", testID, test.amount, test.strategy, test.name)
			{
				fn, err := selector.Retrieve(test.strategy)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to retrieve the strategy: %v", failed, testID, err)
				}

				got, err := fn(test.coins, test.amount)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to select coins: %v", failed, testID, err)
				}

				if test.exp == nil {
					if selector.Sum(got) != test.amount {
						t.Fatalf("\t%s\tTest %d:\tShould select coins that add up to the amount: %v", failed, testID, amounts(got))
					}
					t.Logf("\t%s\tTest %d:\tShould select coins that add up to the amount.", success, testID)
					continue
				}

				if !equal(amounts(got), test.exp) {
					t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, spew.Sdump(amounts(got)))
					t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, spew.Sdump(test.exp))
					t.Fatalf("\t%s\tTest %d:\tShould select the expected coins.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould select the expected coins.", success, testID)

				if selector.Sum(got) < test.amount {
					t.Fatalf("\t%s\tTest %d:\tShould cover the amount.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould cover the amount.", success, testID)
			}
		}
	}
}

func TestSelectDeterministic(t *testing.T) {
	t.Log("Given the need for knapsack selection to be repeatable.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen selecting twice from the same coins.", testID)
		{
			cs := coins(97, 83, 71, 61, 53, 47, 41, 37, 31, 29, 23, 19, 17, 13, 11, 7, 5, 3, 2)

			fn, err := selector.Retrieve(selector.StrategyKnapsack)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to retrieve the strategy: %v", failed, testID, err)
			}

			first, err := fn(cs, 150)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to select coins: %v", failed, testID, err)
			}

			second, err := fn(cs, 150)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to select coins again: %v", failed, testID, err)
			}

			if !equal(amounts(first), amounts(second)) {
				t.Fatalf("\t%s\tTest %d:\tShould select the same coins: %v %v", failed, testID, amounts(first), amounts(second))
			}
			t.Logf("\t%s\tTest %d:\tShould select the same coins.", success, testID)

			if selector.Sum(first) < 150 {
				t.Fatalf("\t%s\tTest %d:\tShould cover the amount: %d", failed, testID, selector.Sum(first))
			}
			t.Logf("\t%s\tTest %d:\tShould cover the amount.", success, testID)
		}
	}
}

func TestSelectErrors(t *testing.T) {
	t.Log("Given the need to reject selections that cannot succeed.")
	{
		fn, err := selector.Retrieve(selector.StrategyKnapsack)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to retrieve the strategy: %v", failed, err)
		}

		testID := 0
		t.Logf("\tTest %d:\tWhen selecting from no coins.", testID)
		{
			if _, err := fn(nil, 1); !errors.Is(err, selector.ErrNoSpendableCoins) {
				t.Fatalf("\t%s\tTest %d:\tShould fail with no spendable coins: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fail with no spendable coins.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the balance is too small.", testID)
		{
			if _, err := fn(coins(1, 2), 4); !errors.Is(err, selector.ErrInsufficientBalance) {
				t.Fatalf("\t%s\tTest %d:\tShould fail with insufficient balance: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fail with insufficient balance.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen asking for an unknown strategy.", testID)
		{
			if _, err := selector.Retrieve("random"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail to retrieve the strategy.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail to retrieve the strategy.", success, testID)
		}
	}
}
