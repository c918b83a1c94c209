// Package leveldb implements the ability to read and write coin states to
// disk using LevelDB, keyed by coin id.
package leveldb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// keyPrefix namespaces coin state records inside the database.
var keyPrefix = []byte("coin/")

// LevelDB represents the storage implementation for reading and storing
// coin states on disk. This implements the database.Storage interface.
type LevelDB struct {
	dbPath string
	conn   *leveldb.DB
}

// New opens or creates a LevelDB database at the specified path.
func New(dbPath string) (*LevelDB, error) {
	conn, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", dbPath, err)
	}

	return &LevelDB{dbPath: dbPath, conn: conn}, nil
}

// Close safely closes the LevelDB connection.
func (l *LevelDB) Close() error {
	return l.conn.Close()
}

// Write stores the coin state as JSON under its coin id.
func (l *LevelDB) Write(state database.CoinState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	id := state.Coin.CoinID()
	return l.conn.Put(key(id), data, nil)
}

// Get returns the state of the specified coin.
func (l *LevelDB) Get(coinID clvm.Bytes32) (database.CoinState, error) {
	data, err := l.conn.Get(key(coinID), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return database.CoinState{}, database.ErrNotFound
		}
		return database.CoinState{}, err
	}

	var state database.CoinState
	if err := json.Unmarshal(data, &state); err != nil {
		return database.CoinState{}, err
	}

	return state, nil
}

// ForEach returns an iterator to walk through every stored coin state in
// key order.
func (l *LevelDB) ForEach() database.Iterator {
	return &levelIterator{iter: l.conn.NewIterator(util.BytesPrefix(keyPrefix), nil)}
}

// Reset closes the database, removes its files and opens a fresh one.
func (l *LevelDB) Reset() error {
	if err := l.conn.Close(); err != nil {
		return err
	}

	if err := os.RemoveAll(l.dbPath); err != nil {
		return err
	}

	conn, err := leveldb.OpenFile(l.dbPath, nil)
	if err != nil {
		return err
	}
	l.conn = conn

	return nil
}

func key(id clvm.Bytes32) []byte {
	return append(append([]byte(nil), keyPrefix...), id[:]...)
}

// =============================================================================

// levelIterator walks the LevelDB iterator. This implements the database
// Iterator interface.
type levelIterator struct {
	iter iterator.Iterator
	eoc  bool
}

// Next retrieves the next coin state.
func (li *levelIterator) Next() (database.CoinState, error) {
	if li.eoc {
		return database.CoinState{}, nil
	}

	if !li.iter.Next() {
		li.eoc = true
		li.iter.Release()
		return database.CoinState{}, li.iter.Error()
	}

	var state database.CoinState
	if err := json.Unmarshal(li.iter.Value(), &state); err != nil {
		return database.CoinState{}, err
	}

	return state, nil
}

// Done returns the end of states value.
func (li *levelIterator) Done() bool {
	return li.eoc
}
