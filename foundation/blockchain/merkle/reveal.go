// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

package merkle

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// ErrBadReveal is returned when a partial reveal does not have the shape
// of a merkle tree.
var ErrBadReveal = errors.New("malformed partial reveal")

// Reveal builds the partial tree reveal puzzles use to prove that a subset
// of leaves belongs to a root without listing every leaf. The tree has the
// same shape as NewHashTree. A leaf the reveal function accepts is replaced
// by the node it returns, which must be a pair whose first element is nil.
// Every subtree without a revealed leaf collapses into the atom of its hash.
func Reveal(a *clvm.Allocator, leaves []clvm.Bytes32, reveal func(i int) (clvm.NodePtr, bool)) clvm.NodePtr {
	if len(leaves) == 0 {
		return clvm.Nil
	}

	node, _, _ := buildReveal(a, leaves, 0, reveal)
	return node
}

func buildReveal(a *clvm.Allocator, leaves []clvm.Bytes32, offset int, reveal func(i int) (clvm.NodePtr, bool)) (clvm.NodePtr, clvm.Bytes32, bool) {
	if len(leaves) == 1 {
		if n, ok := reveal(offset); ok {
			return n, clvm.Bytes32{}, false
		}

		hash := sum(leafPrefix, leaves[0][:])
		return a.NewBytes32(hash), hash, true
	}

	mid := (len(leaves) + 1) >> 1
	left, lHash, lHidden := buildReveal(a, leaves[:mid], offset, reveal)
	right, rHash, rHidden := buildReveal(a, leaves[mid:], offset+mid, reveal)

	if lHidden && rHidden {
		hash := sum(nodePrefix, lHash[:], rHash[:])
		return a.NewBytes32(hash), hash, true
	}

	return a.NewPair(left, right), clvm.Bytes32{}, false
}

// RevealRoot recombines a partial reveal into the root it commits to. The
// leaf function is called for every revealed leaf and returns the leaf
// data, which is hashed with the leaf prefix.
func RevealRoot(a *clvm.Allocator, node clvm.NodePtr, leaf func(n clvm.NodePtr) (clvm.Bytes32, error)) (clvm.Bytes32, error) {
	first, rest, ok := a.Pair(node)
	if !ok {
		hash, err := a.Bytes32(node)
		if err != nil {
			return clvm.Bytes32{}, fmt.Errorf("%w: %w", ErrBadReveal, err)
		}
		return hash, nil
	}

	if a.IsNil(first) {
		data, err := leaf(node)
		if err != nil {
			return clvm.Bytes32{}, err
		}
		return sum(leafPrefix, data[:]), nil
	}

	left, err := RevealRoot(a, first, leaf)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	right, err := RevealRoot(a, rest, leaf)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	return sum(nodePrefix, left[:], right[:]), nil
}

// RevealedLeaves returns the revealed leaves of a partial reveal from left
// to right.
func RevealedLeaves(a *clvm.Allocator, node clvm.NodePtr) []clvm.NodePtr {
	first, rest, ok := a.Pair(node)
	if !ok {
		return nil
	}

	if a.IsNil(first) {
		return []clvm.NodePtr{node}
	}

	return append(RevealedLeaves(a, first), RevealedLeaves(a, rest)...)
}

func sum(prefix byte, parts ...[]byte) clvm.Bytes32 {
	h := sha256.New()
	h.Write([]byte{prefix})
	for _, p := range parts {
		h.Write(p)
	}

	var out clvm.Bytes32
	h.Sum(out[:0])
	return out
}
