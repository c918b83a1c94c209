package selector

import (
	"math"
	"math/rand/v2"

	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
)

// knapsackRounds is how many random selections are tried.
const knapsackRounds = 1000

// knapsackSelect prefers an exact match, then a combination of smaller
// coins found by a randomized knapsack search, then the smallest coin
// above the amount. The search is seeded so the same coins always select
// the same way.
var knapsackSelect = func(coins []database.Coin, amount uint64) ([]database.Coin, error) {
	sorted, err := prepare(coins, amount)
	if err != nil {
		return nil, err
	}

	for _, c := range sorted {
		if c.Amount == amount {
			return []database.Coin{c}, nil
		}
	}

	var smaller []database.Coin
	var smallerSum uint64
	for _, c := range sorted {
		if c.Amount < amount {
			smaller = append(smaller, c)
			smallerSum += c.Amount
		}
	}

	switch {
	case smallerSum == amount && len(smaller) < MaxCoins && amount != 0:
		return smaller, nil

	case smallerSum < amount:
		c, _ := smallestCoinAbove(sorted, amount)
		return []database.Coin{c}, nil
	}

	rng := rand.New(rand.NewChaCha8([32]byte{}))
	if selected, ok := knapsack(rng, sorted, amount, math.MaxUint64); ok {
		return selected, nil
	}

	selected := sumLargestCoins(sorted, amount)
	if len(selected) <= MaxCoins {
		return selected, nil
	}

	if c, ok := smallestCoinAbove(sorted, amount); ok {
		return []database.Coin{c}, nil
	}

	return nil, ErrExceededMaxCoins
}

// knapsack randomly includes coins in a first pass and adds the rest in a
// second pass, remembering the smallest total above the amount. An exact
// total ends the search.
func knapsack(rng *rand.Rand, sorted []database.Coin, amount uint64, maxAmount uint64) ([]database.Coin, bool) {
	bestSum := maxAmount
	var best []bool

	for range knapsackRounds {
		selected := make([]bool, len(sorted))
		var count int
		var sum uint64
		reached := false

		for pass := 0; pass < 2 && !reached; pass++ {
			for i, c := range sorted {
				include := (pass == 0 && rng.IntN(2) == 1) || (pass == 1 && !selected[i])
				if !include {
					continue
				}

				if count > MaxCoins {
					break
				}

				selected[i] = true
				count++
				sum += c.Amount

				if sum == amount {
					return pick(sorted, selected), true
				}

				if sum > amount {
					reached = true
					if sum < bestSum {
						bestSum = sum
						best = append([]bool(nil), selected...)

						selected[i] = false
						count--
						sum -= c.Amount
					}
				}
			}
		}
	}

	if best == nil {
		return nil, false
	}
	return pick(sorted, best), true
}

func pick(sorted []database.Coin, selected []bool) []database.Coin {
	var out []database.Coin
	for i, c := range sorted {
		if selected[i] {
			out = append(out, c)
		}
	}
	return out
}
