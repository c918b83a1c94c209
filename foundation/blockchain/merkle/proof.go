package merkle

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Proof is the inclusion proof consumed by on-chain puzzles. Hashes run
// from the leaf up to the root and bit i of Path is set when the node at
// depth i is a right child.
type Proof struct {
	Path   uint32
	Hashes [][]byte
}

// Root recombines the proof with the leaf data and returns the root it
// commits to.
func (p Proof) Root(leaf []byte, hashStrategy func() hash.Hash) []byte {
	sum := func(prefix byte, parts ...[]byte) []byte {
		h := hashStrategy()
		h.Write([]byte{prefix})
		for _, part := range parts {
			h.Write(part)
		}
		return h.Sum(nil)
	}

	current := sum(leafPrefix, leaf)
	for i, sibling := range p.Hashes {
		if p.Path>>i&1 == 1 {
			current = sum(nodePrefix, sibling, current)
			continue
		}
		current = sum(nodePrefix, current, sibling)
	}

	return current
}

// Verify reports whether the proof links the leaf to the sha256 root.
func (p Proof) Verify(leaf clvm.Bytes32, root clvm.Bytes32) bool {
	return bytes.Equal(p.Root(leaf[:], sha256.New), root[:])
}

// ToClvm encodes the proof as (path . hashes).
func (p Proof) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	hashes := make([]clvm.NodePtr, len(p.Hashes))
	for i, h := range p.Hashes {
		hashes[i] = a.NewAtom(h)
	}

	return a.NewPair(a.NewUint64(uint64(p.Path)), a.List(hashes...)), nil
}

// FromClvm decodes a proof encoded as (path . hashes).
func (Proof) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (Proof, error) {
	first, rest, ok := a.Pair(n)
	if !ok {
		return Proof{}, fmt.Errorf("merkle proof: %w", clvm.ErrPairExpected)
	}

	path, err := a.Uint32(first)
	if err != nil {
		return Proof{}, fmt.Errorf("merkle proof path: %w", err)
	}

	items, err := a.ListItems(rest)
	if err != nil {
		return Proof{}, fmt.Errorf("merkle proof hashes: %w", err)
	}

	p := Proof{Path: path, Hashes: make([][]byte, len(items))}
	for i, item := range items {
		h, err := a.Atom(item)
		if err != nil {
			return Proof{}, fmt.Errorf("merkle proof hash %d: %w", i, err)
		}
		p.Hashes[i] = append([]byte(nil), h...)
	}

	return p, nil
}

// Equal compares two proofs.
func (p Proof) Equal(o Proof) bool {
	if p.Path != o.Path || len(p.Hashes) != len(o.Hashes) {
		return false
	}

	for i := range p.Hashes {
		if !bytes.Equal(p.Hashes[i], o.Hashes[i]) {
			return false
		}
	}

	return true
}

// =============================================================================

// Leaf adapts a 32 byte hash, such as a puzzle hash, to the Hashable
// interface.
type Leaf clvm.Bytes32

// Hash implements the Hashable interface.
func (l Leaf) Hash() ([]byte, error) {
	return l[:], nil
}

// Equals implements the Hashable interface.
func (l Leaf) Equals(other Leaf) bool {
	return l == other
}

// NewHashTree builds a sha256 tree over a list of 32 byte leaves.
func NewHashTree(leaves []clvm.Bytes32) *Tree[Leaf] {
	values := make([]Leaf, len(leaves))
	for i, l := range leaves {
		values[i] = Leaf(l)
	}

	// Leaf hashing never fails so neither does construction.
	t, _ := NewTree(values)
	return t
}

// ProofOf returns the proof for a leaf hash, reporting false when the
// hash is not a leaf of the tree.
func ProofOf(t *Tree[Leaf], leaf clvm.Bytes32) (Proof, bool) {
	p, err := t.Proof(Leaf(leaf))
	if err != nil {
		return Proof{}, false
	}
	return p, true
}
