// Package memory implements the ability to read and write coin states to
// memory using a map.
package memory

import (
	"sync"

	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Memory represents the storage implementation for reading and storing
// coin states in memory. This implements the database.Storage interface.
type Memory struct {
	mu     sync.RWMutex
	order  []clvm.Bytes32
	states map[clvm.Bytes32]database.CoinState
}

// New constructs a Memory value for use.
func New() (*Memory, error) {
	return &Memory{states: make(map[clvm.Bytes32]database.CoinState)}, nil
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write stores the coin state, replacing any previous state for the coin.
func (m *Memory) Write(state database.CoinState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := state.Coin.CoinID()
	if _, exists := m.states[id]; !exists {
		m.order = append(m.order, id)
	}
	m.states[id] = state

	return nil
}

// Get returns the state of the specified coin.
func (m *Memory) Get(coinID clvm.Bytes32) (database.CoinState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.states[coinID]
	if !exists {
		return database.CoinState{}, database.ErrNotFound
	}

	return state, nil
}

// ForEach returns an iterator to walk through the coin states in the
// order they were first written.
func (m *Memory) ForEach() database.Iterator {
	return &memoryIterator{storage: m}
}

// Reset will clear out every coin state.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order = nil
	m.states = make(map[clvm.Bytes32]database.CoinState)
	return nil
}

// =============================================================================

// memoryIterator represents the iteration implementation for walking
// through the stored coin states. This implements the database
// Iterator interface.
type memoryIterator struct {
	storage *Memory // Access to the storage API.
	current int     // Current position in the write order.
	eoc     bool    // Represents the iterator is at the end of the states.
}

// Next retrieves the next coin state.
func (mi *memoryIterator) Next() (database.CoinState, error) {
	mi.storage.mu.RLock()
	defer mi.storage.mu.RUnlock()

	if mi.eoc || mi.current >= len(mi.storage.order) {
		mi.eoc = true
		return database.CoinState{}, nil
	}

	state := mi.storage.states[mi.storage.order[mi.current]]
	mi.current++

	return state, nil
}

// Done returns the end of states value.
func (mi *memoryIterator) Done() bool {
	return mi.eoc
}
