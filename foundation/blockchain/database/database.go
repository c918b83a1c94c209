// Package database maintains the set of coins the node knows about, which
// of them are spent, and delegates persistence to a Storage.
package database

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Set of error variables for the coin database.
var (
	ErrNotFound     = errors.New("coin state not found")
	ErrAlreadySpent = errors.New("coin already spent")
	ErrDuplicate    = errors.New("coin already exists")
)

// Storage interface represents the behavior required to be implemented by any
// package providing support for persisting coin states.
type Storage interface {
	Write(state CoinState) error
	Get(coinID clvm.Bytes32) (CoinState, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the stored coin states.
type Iterator interface {
	Next() (CoinState, error)
	Done() bool
}

// =============================================================================

// Database manages the coin states known to the node.
type Database struct {
	mu sync.RWMutex

	coins        map[clvm.Bytes32]CoinState
	byPuzzleHash map[clvm.Bytes32]map[clvm.Bytes32]struct{}
	peak         uint32

	storage   Storage
	evHandler func(v string, args ...any)
}

// New constructs a database and loads every coin state held by the storage.
func New(storage Storage, evHandler func(v string, args ...any)) (*Database, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	db := Database{
		coins:        make(map[clvm.Bytes32]CoinState),
		byPuzzleHash: make(map[clvm.Bytes32]map[clvm.Bytes32]struct{}),
		storage:      storage,
		evHandler:    ev,
	}

	// Read all the coin states the storage holds.
	iter := storage.ForEach()
	for state, err := iter.Next(); !iter.Done(); state, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		db.index(state)
	}

	ev("database: loaded coins[%d] peak[%d]", len(db.coins), db.peak)

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.storage.Close()
}

// Reset removes every coin state.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.storage.Reset(); err != nil {
		return err
	}

	db.coins = make(map[clvm.Bytes32]CoinState)
	db.byPuzzleHash = make(map[clvm.Bytes32]map[clvm.Bytes32]struct{})
	db.peak = 0

	return nil
}

// AddCoin records a newly created coin at the specified height.
func (db *Database) AddCoin(coin Coin, height uint32) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.addCoin(coin, height)
}

// ApplySpends marks the spent coins and records the coins they created.
// Every spent coin must be known and unspent, otherwise nothing changes.
func (db *Database) ApplySpends(height uint32, spends []CoinSpend, additions []Coin) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	// Validate the whole batch before mutating anything.
	removals := make(map[clvm.Bytes32]struct{}, len(spends))
	for _, cs := range spends {
		id := cs.Coin.CoinID()

		if _, exists := removals[id]; exists {
			return fmt.Errorf("coin %s spent twice in batch: %w", id, ErrAlreadySpent)
		}
		removals[id] = struct{}{}

		if _, ephemeral := containsCoin(additions, id); ephemeral {
			continue
		}

		state, exists := db.coins[id]
		if !exists {
			return fmt.Errorf("coin %s: %w", id, ErrNotFound)
		}
		if state.Spent() {
			return fmt.Errorf("coin %s: %w", id, ErrAlreadySpent)
		}
	}

	for _, coin := range additions {
		if err := db.addCoin(coin, height); err != nil {
			return err
		}
	}

	for _, cs := range spends {
		id := cs.Coin.CoinID()

		state := db.coins[id]
		h := height
		state.SpentHeight = &h

		if err := db.storage.Write(state); err != nil {
			return err
		}
		db.coins[id] = state
	}

	if height > db.peak {
		db.peak = height
	}

	db.evHandler("database: applied spends[%d] additions[%d] height[%d]", len(spends), len(additions), height)

	return nil
}

// CoinState returns the state of a coin.
func (db *Database) CoinState(coinID clvm.Bytes32) (CoinState, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	state, exists := db.coins[coinID]
	if !exists {
		return CoinState{}, ErrNotFound
	}

	return state, nil
}

// UnspentCoins returns the unspent coins locked by a puzzle hash, largest
// amount first.
func (db *Database) UnspentCoins(puzzleHash clvm.Bytes32) []Coin {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var coins []Coin
	for id := range db.byPuzzleHash[puzzleHash] {
		if state := db.coins[id]; !state.Spent() {
			coins = append(coins, state.Coin)
		}
	}

	sort.Slice(coins, func(i, j int) bool {
		if coins[i].Amount != coins[j].Amount {
			return coins[i].Amount > coins[j].Amount
		}
		return coins[i].CoinID().Compare(coins[j].CoinID()) < 0
	})

	return coins
}

// Balance sums the unspent coins locked by a puzzle hash.
func (db *Database) Balance(puzzleHash clvm.Bytes32) uint64 {
	var total uint64
	for _, coin := range db.UnspentCoins(puzzleHash) {
		total += coin.Amount
	}
	return total
}

// Peak returns the highest height seen.
func (db *Database) Peak() uint32 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.peak
}

// =============================================================================

func (db *Database) addCoin(coin Coin, height uint32) error {
	id := coin.CoinID()
	if _, exists := db.coins[id]; exists {
		return fmt.Errorf("coin %s: %w", id, ErrDuplicate)
	}

	h := height
	state := CoinState{Coin: coin, CreatedHeight: &h}

	if err := db.storage.Write(state); err != nil {
		return err
	}

	db.index(state)
	return nil
}

func (db *Database) index(state CoinState) {
	id := state.Coin.CoinID()
	db.coins[id] = state

	set, exists := db.byPuzzleHash[state.Coin.PuzzleHash]
	if !exists {
		set = make(map[clvm.Bytes32]struct{})
		db.byPuzzleHash[state.Coin.PuzzleHash] = set
	}
	set[id] = struct{}{}

	for _, h := range []*uint32{state.CreatedHeight, state.SpentHeight} {
		if h != nil && *h > db.peak {
			db.peak = *h
		}
	}
}

func containsCoin(coins []Coin, id clvm.Bytes32) (Coin, bool) {
	for _, c := range coins {
		if c.CoinID() == id {
			return c, true
		}
	}
	return Coin{}, false
}
