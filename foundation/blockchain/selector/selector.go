// Package selector provides different coin selecting algorithms.
package selector

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyKnapsack = "knapsack"
	StrategyLargest  = "largest"
	StrategySmallest = "smallest"
)

// MaxCoins is the most coins a strategy selects for one amount.
const MaxCoins = 500

// Set of error variables for selecting coins.
var (
	ErrNoSpendableCoins    = errors.New("no spendable coins")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrExceededMaxCoins    = errors.New("exceeded max coins")
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyKnapsack: knapsackSelect,
	StrategyLargest:  largestSelect,
	StrategySmallest: smallestSelect,
}

// Func defines a function that takes the spendable coins of a wallet and
// selects coins that add up to at least the amount. The coins passed in are
// not modified.
type Func func(coins []database.Coin, amount uint64) ([]database.Coin, error)

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// Sum returns the total amount of the coins.
func Sum(coins []database.Coin) uint64 {
	var total uint64
	for _, c := range coins {
		total += c.Amount
	}
	return total
}

// =============================================================================

// prepare checks the coins can cover the amount and returns a copy sorted
// by amount in descending order.
func prepare(coins []database.Coin, amount uint64) ([]database.Coin, error) {
	if len(coins) == 0 {
		return nil, ErrNoSpendableCoins
	}

	if total := Sum(coins); total < amount {
		return nil, fmt.Errorf("balance[%d] amount[%d]: %w", total, amount, ErrInsufficientBalance)
	}

	sorted := slices.Clone(coins)
	slices.SortStableFunc(sorted, func(a, b database.Coin) int {
		switch {
		case a.Amount > b.Amount:
			return -1
		case a.Amount < b.Amount:
			return 1
		}
		return 0
	})

	return sorted, nil
}

// smallestCoinAbove returns the smallest coin of at least the amount from
// coins sorted in descending order.
func smallestCoinAbove(sorted []database.Coin, amount uint64) (database.Coin, bool) {
	if len(sorted) == 0 || sorted[0].Amount < amount {
		return database.Coin{}, false
	}

	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].Amount >= amount {
			return sorted[i], true
		}
	}

	return database.Coin{}, false
}

// sumLargestCoins takes coins from the largest down until the amount is
// reached.
func sumLargestCoins(sorted []database.Coin, amount uint64) []database.Coin {
	var selected []database.Coin
	var total uint64

	for _, c := range sorted {
		selected = append(selected, c)
		total += c.Amount
		if total >= amount {
			break
		}
	}

	return selected
}

// largestSelect takes the largest coins until the amount is reached.
var largestSelect = func(coins []database.Coin, amount uint64) ([]database.Coin, error) {
	sorted, err := prepare(coins, amount)
	if err != nil {
		return nil, err
	}

	selected := sumLargestCoins(sorted, amount)
	if len(selected) > MaxCoins {
		return nil, ErrExceededMaxCoins
	}

	return selected, nil
}

// smallestSelect takes the smallest single coin that covers the amount,
// falling back to the largest coins.
var smallestSelect = func(coins []database.Coin, amount uint64) ([]database.Coin, error) {
	sorted, err := prepare(coins, amount)
	if err != nil {
		return nil, err
	}

	if c, ok := smallestCoinAbove(sorted, amount); ok {
		return []database.Coin{c}, nil
	}

	return largestSelect(coins, amount)
}
