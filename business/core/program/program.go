// Package program provides the puzzle utilities shared by the node and the
// command line tooling. Programs come in and go out as hex.
package program

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ardanlabs/puzzlekit/business/mips"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/merkle"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Set of error variables for the program utilities.
var (
	ErrNotCurried  = errors.New("program is not curried")
	ErrNoLeaves    = errors.New("no leaves")
	ErrLeafMissing = errors.New("leaf is not in the tree")
)

// TreeHash returns the tree hash of a serialized program.
func TreeHash(program string) (clvm.Bytes32, error) {
	a := clvm.NewAllocator()

	n, err := a.DeserializeHex(program)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	return a.TreeHash(n), nil
}

// Curried is a program with its arguments bound.
type Curried struct {
	Program  hexutil.Bytes `json:"program"`
	TreeHash clvm.Bytes32  `json:"tree_hash"`
}

// Curry binds the serialized arguments to the mod.
func Curry(mod string, args []string) (Curried, error) {
	a := clvm.NewAllocator()

	m, err := a.DeserializeHex(mod)
	if err != nil {
		return Curried{}, fmt.Errorf("mod: %w", err)
	}

	nodes := make([]clvm.NodePtr, len(args))
	for i, arg := range args {
		if nodes[i], err = a.DeserializeHex(arg); err != nil {
			return Curried{}, fmt.Errorf("arg %d: %w", i, err)
		}
	}

	n := a.Curry(m, nodes...)

	b, err := a.Serialize(n)
	if err != nil {
		return Curried{}, err
	}

	return Curried{Program: b, TreeHash: a.TreeHash(n)}, nil
}

// Uncurried is a curried program split into its mod and arguments.
type Uncurried struct {
	Mod     hexutil.Bytes   `json:"mod"`
	ModHash clvm.Bytes32    `json:"mod_hash"`
	Args    []hexutil.Bytes `json:"args"`
}

// Uncurry splits a curried program.
func Uncurry(program string) (Uncurried, error) {
	a := clvm.NewAllocator()

	n, err := a.DeserializeHex(program)
	if err != nil {
		return Uncurried{}, err
	}

	mod, args, ok := a.Uncurry(n)
	if !ok {
		return Uncurried{}, ErrNotCurried
	}

	m, err := a.Serialize(mod)
	if err != nil {
		return Uncurried{}, err
	}

	u := Uncurried{
		Mod:     m,
		ModHash: a.TreeHash(mod),
		Args:    make([]hexutil.Bytes, len(args)),
	}

	for i, arg := range args {
		if u.Args[i], err = a.Serialize(arg); err != nil {
			return Uncurried{}, err
		}
	}

	return u, nil
}

// Serialize re-encodes a program. With backrefs set, repeated subtrees are
// replaced by back references when that is shorter.
func Serialize(program string, backrefs bool) ([]byte, error) {
	a := clvm.NewAllocator()

	n, err := a.DeserializeHex(program)
	if err != nil {
		return nil, err
	}

	if backrefs {
		return a.SerializeBackrefs(n)
	}
	return a.Serialize(n)
}

// =============================================================================

// MerkleProof is the inclusion proof of a leaf in the tree of a list of
// 32 byte leaves.
type MerkleProof struct {
	Root   clvm.Bytes32    `json:"root"`
	Leaf   clvm.Bytes32    `json:"leaf"`
	Path   uint32          `json:"path"`
	Hashes []hexutil.Bytes `json:"hashes"`
	Clvm   hexutil.Bytes   `json:"clvm"`
}

// Proof builds the tree of the leaves and proves the leaf.
func Proof(leaves []clvm.Bytes32, leaf clvm.Bytes32) (MerkleProof, error) {
	if len(leaves) == 0 {
		return MerkleProof{}, ErrNoLeaves
	}

	tree := merkle.NewHashTree(leaves)

	p, ok := merkle.ProofOf(tree, leaf)
	if !ok {
		return MerkleProof{}, fmt.Errorf("leaf[%s]: %w", leaf, ErrLeafMissing)
	}

	a := clvm.NewAllocator()
	n, err := p.ToClvm(a)
	if err != nil {
		return MerkleProof{}, err
	}

	b, err := a.Serialize(n)
	if err != nil {
		return MerkleProof{}, err
	}

	mp := MerkleProof{
		Root:   tree.Root32(),
		Leaf:   leaf,
		Path:   p.Path,
		Hashes: make([]hexutil.Bytes, len(p.Hashes)),
		Clvm:   b,
	}
	for i, h := range p.Hashes {
		mp.Hashes[i] = h
	}

	return mp, nil
}

// =============================================================================

// Member describes one member of a vault custody. Hash carries the
// genesis challenge, launcher id or puzzle hash the kind needs.
type Member struct {
	Kind      string        `json:"kind"`
	PublicKey hexutil.Bytes `json:"public_key,omitempty"`
	Hash      clvm.Bytes32  `json:"hash,omitempty"`
}

// Custody describes a vault custody tree of one level.
type Custody struct {
	Required        int      `json:"required"`
	Members         []Member `json:"members"`
	TimelockSeconds uint64   `json:"timelock_seconds,omitempty"`
	NoSideEffects   bool     `json:"no_side_effects,omitempty"`
}

// VaultHash returns the custody hash of the described custody.
func VaultHash(lib puzzles.Library, c Custody) (clvm.Bytes32, error) {
	custody := mips.Custody{
		Required: c.Required,
		Members:  make([]mips.Member, len(c.Members)),
	}

	for i, m := range c.Members {
		kind, err := mips.ParseMemberKind(strings.ToLower(m.Kind))
		if err != nil {
			return clvm.Bytes32{}, fmt.Errorf("member %d: %w", i, err)
		}

		if custody.Members[i], err = mips.NewMember(kind, m.PublicKey, m.Hash); err != nil {
			return clvm.Bytes32{}, fmt.Errorf("member %d: %w", i, err)
		}
	}

	if c.TimelockSeconds > 0 {
		custody.Restrictions = append(custody.Restrictions, mips.TimelockRestriction(lib, c.TimelockSeconds))
	}
	if c.NoSideEffects {
		custody.Restrictions = append(custody.Restrictions, mips.PreventVaultSideEffectsRestrictions(lib)...)
	}

	return custody.Hash(lib)
}
