// Package nameservice reads a folder of K1 keys and creates a name service
// lookup from the puzzle hashes the keys own to the key names.
package nameservice

import (
	"crypto/ecdsa"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/puzzlekit/foundation/blockchain/signature"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/ethereum/go-ethereum/crypto"
)

// HashFunc returns the puzzle hash a compressed public key owns.
type HashFunc func(publicKey []byte) clvm.Bytes32

// Entry is one key of the ring.
type Entry struct {
	Name       string
	PrivateKey *ecdsa.PrivateKey
	PublicKey  []byte
	PuzzleHash clvm.Bytes32
}

// NameService maintains a map of puzzle hashes for name lookup.
type NameService struct {
	entries map[clvm.Bytes32]Entry
	names   map[string]clvm.Bytes32
}

// New constructs a name service with the .ecdsa keys found under root.
func New(root string, hash HashFunc) (*NameService, error) {
	ns := NameService{
		entries: make(map[clvm.Bytes32]Entry),
		names:   make(map[string]clvm.Bytes32),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != ".ecdsa" {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("loading %s: %w", fileName, err)
		}

		ns.add(strings.TrimSuffix(path.Base(fileName), ".ecdsa"), privateKey, hash)
		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

func (ns *NameService) add(name string, privateKey *ecdsa.PrivateKey, hash HashFunc) {
	pub := signature.K1PublicKey(privateKey)
	e := Entry{
		Name:       name,
		PrivateKey: privateKey,
		PublicKey:  pub,
		PuzzleHash: hash(pub),
	}

	ns.entries[e.PuzzleHash] = e
	ns.names[name] = e.PuzzleHash
}

// Lookup returns the name for the specified puzzle hash, or the puzzle
// hash itself when it is not in the ring.
func (ns *NameService) Lookup(puzzleHash clvm.Bytes32) string {
	e, exists := ns.entries[puzzleHash]
	if !exists {
		return puzzleHash.Hex()
	}
	return e.Name
}

// ByName returns the entry with the name.
func (ns *NameService) ByName(name string) (Entry, bool) {
	ph, exists := ns.names[name]
	if !exists {
		return Entry{}, false
	}
	return ns.entries[ph], true
}

// ByPuzzleHash returns the entry that owns the puzzle hash.
func (ns *NameService) ByPuzzleHash(puzzleHash clvm.Bytes32) (Entry, bool) {
	e, exists := ns.entries[puzzleHash]
	return e, exists
}

// Keys returns the public keys keyed by the puzzle hash they own.
func (ns *NameService) Keys() map[clvm.Bytes32][]byte {
	keys := make(map[clvm.Bytes32][]byte, len(ns.entries))
	for ph, e := range ns.entries {
		keys[ph] = e.PublicKey
	}
	return keys
}

// Copy returns a copy of the map of puzzle hashes and names.
func (ns *NameService) Copy() map[clvm.Bytes32]string {
	cpy := make(map[clvm.Bytes32]string, len(ns.entries))
	for ph, e := range ns.entries {
		cpy[ph] = e.Name
	}
	return cpy
}
