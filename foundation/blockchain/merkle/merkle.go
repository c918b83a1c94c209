// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle provides the binary merkle tree used by puzzles that gate
// a spend on proving membership of a leaf, such as the action layer and
// the m of n vault members.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"

	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Domain separation prefixes, the same ones used by CLVM tree hashing.
const (
	leafPrefix byte = 1
	nodePrefix byte = 2
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint. Leaves are split in half with
// the extra leaf going left, so the shape matches what on-chain puzzles
// expect when they recombine a proof.
type Tree[T Hashable[T]] struct {
	Root         *Node[T]
	Leafs        []*Node[T]
	MerkleRoot   []byte
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using sha256
// when constructing a new tree.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface. A tree with no
// values has a root of all zero bytes.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate constructs the leafs and nodes of the tree from the specified
// data. If the tree has been generated previously, the tree is re-generated
// from scratch.
func (t *Tree[T]) Generate(values []T) error {
	if len(values) == 0 {
		t.Root = nil
		t.Leafs = nil
		t.MerkleRoot = make([]byte, t.hashStrategy().Size())
		return nil
	}

	leafs := make([]*Node[T], 0, len(values))
	for _, value := range values {
		data, err := value.Hash()
		if err != nil {
			return err
		}

		leafs = append(leafs, &Node[T]{
			Hash:  t.sum(leafPrefix, data),
			Value: value,
			leaf:  true,
			Tree:  t,
		})
	}

	t.Root = buildIntermediate(leafs, t)
	t.Leafs = leafs
	t.MerkleRoot = t.Root.Hash

	return nil
}

// Rebuild is a helper function that will rebuild the tree reusing only the
// data that it currently holds in the leaves.
func (t *Tree[T]) Rebuild() error {
	return t.Generate(t.Values())
}

// Proof returns the proof for the last leaf that equals data. Hashes are
// ordered from the leaf up to the root and bit i of the path is set when
// the node at depth i, counting up from the leaf, is a right child.
func (t *Tree[T]) Proof(data T) (Proof, error) {
	for i := len(t.Leafs) - 1; i >= 0; i-- {
		node := t.Leafs[i]
		if !node.Value.Equals(data) {
			continue
		}

		var proof Proof
		for parent := node.Parent; parent != nil; parent = parent.Parent {
			if parent.Right == node {
				proof.Path |= 1 << len(proof.Hashes)
				proof.Hashes = append(proof.Hashes, parent.Left.Hash)
			} else {
				proof.Hashes = append(proof.Hashes, parent.Right.Hash)
			}
			node = parent
		}

		return proof, nil
	}

	return Proof{}, errors.New("unable to find data in tree")
}

// Verify validates the hashes at each level of the tree and returns an
// error if the recomputed root does not match the stored root.
func (t *Tree[T]) Verify() error {
	if t.Root == nil {
		return nil
	}

	calculatedMerkleRoot, err := t.Root.verify()
	if err != nil {
		return err
	}

	if !bytes.Equal(t.MerkleRoot, calculatedMerkleRoot) {
		return errors.New("root hash invalid")
	}

	return nil
}

// VerifyData indicates whether a given piece of data is in the tree by
// recombining its proof against the root.
func (t *Tree[T]) VerifyData(data T) error {
	proof, err := t.Proof(data)
	if err != nil {
		return err
	}

	leaf, err := data.Hash()
	if err != nil {
		return err
	}

	root := proof.Root(leaf, t.hashStrategy)
	if !bytes.Equal(root, t.MerkleRoot) {
		return errors.New("merkle root is not equivalent to the merkle root calculated on the critical path")
	}

	return nil
}

// Values returns a slice of the values stored in the tree.
func (t *Tree[T]) Values() []T {
	values := make([]T, 0, len(t.Leafs))
	for _, leaf := range t.Leafs {
		values = append(values, leaf.Value)
	}

	return values
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.MerkleRoot)
}

// Root32 returns the merkle root as a 32 byte hash. Trees built with a
// shorter hash strategy are zero padded on the right.
func (t *Tree[T]) Root32() clvm.Bytes32 {
	var root clvm.Bytes32
	copy(root[:], t.MerkleRoot)
	return root
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree[T]) String() string {
	s := ""

	for _, l := range t.Leafs {
		s += fmt.Sprint(l)
		s += "\n"
	}

	return s
}

// MarshalText implements the TextMarshaler interface and produces a panic
// if anyone tries to marshal the Merkle tree. Use the Values function to
// return a slice that can be marshaled.
func (t *Tree[T]) MarshalText() (text []byte, err error) {
	panic("do not marshal the merkle tree, use Values")
}

func (t *Tree[T]) sum(prefix byte, parts ...[]byte) []byte {
	h := t.hashStrategy()
	h.Write([]byte{prefix})
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. It stores pointers to its
// immediate relationships, a hash, the data if it is a leaf, and other metadata.
type Node[T Hashable[T]] struct {
	Tree   *Tree[T]
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   []byte
	Value  T
	leaf   bool
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node[T]) verify() ([]byte, error) {
	if n.leaf {
		data, err := n.Value.Hash()
		if err != nil {
			return nil, err
		}
		return n.Tree.sum(leafPrefix, data), nil
	}

	leftBytes, err := n.Left.verify()
	if err != nil {
		return nil, err
	}

	rightBytes, err := n.Right.verify()
	if err != nil {
		return nil, err
	}

	return n.Tree.sum(nodePrefix, leftBytes, rightBytes), nil
}

// String returns a string representation of the node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %x %v", n.leaf, n.Hash, n.Value)
}

// =============================================================================

// buildIntermediate splits the leaves at (n+1)/2 and joins the two halves
// under a new parent, returning the root of the subtree.
func buildIntermediate[T Hashable[T]](nl []*Node[T], t *Tree[T]) *Node[T] {
	if len(nl) == 1 {
		return nl[0]
	}

	mid := (len(nl) + 1) >> 1
	left := buildIntermediate(nl[:mid], t)
	right := buildIntermediate(nl[mid:], t)

	n := Node[T]{
		Left:  left,
		Right: right,
		Hash:  t.sum(nodePrefix, left.Hash, right.Hash),
		Tree:  t,
	}

	left.Parent = &n
	right.Parent = &n

	return &n
}
