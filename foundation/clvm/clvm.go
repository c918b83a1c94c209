// Package clvm provides the arena used to build, inspect, and identify
// CLVM programs. Nodes are handles into an Allocator and are never freed
// individually, the whole arena is dropped when the work is done.
package clvm

import (
	"bytes"
	"fmt"
)

// NodePtr is a handle to an atom or a pair living inside an Allocator.
// The high bit marks a pair, the remaining bits index the atom or pair
// tables.
type NodePtr uint32

const pairFlag NodePtr = 1 << 31

// Nil is the empty atom and One is the atom 0x01. Every Allocator
// reserves these two handles.
const (
	Nil NodePtr = 0
	One NodePtr = 1
)

// IsPair reports if the handle references a pair.
func (n NodePtr) IsPair() bool {
	return n&pairFlag != 0
}

func (n NodePtr) index() int {
	return int(n &^ pairFlag)
}

// =============================================================================

// SExp is the decoded view of a node.
type SExp struct {
	Pair  bool
	First NodePtr
	Rest  NodePtr
	Atom  []byte
}

type span struct {
	start uint32
	end   uint32
}

type pair struct {
	first NodePtr
	rest  NodePtr
}

// Allocator owns every node created for a program or a transaction.
// An Allocator is not safe for concurrent use.
type Allocator struct {
	heap      []byte
	atoms     []span
	pairs     []pair
	hashCache map[NodePtr]Bytes32
}

// NewAllocator constructs an arena with the Nil and One atoms reserved.
func NewAllocator() *Allocator {
	a := Allocator{
		heap:      make([]byte, 0, 1024),
		atoms:     make([]span, 0, 256),
		pairs:     make([]pair, 0, 256),
		hashCache: make(map[NodePtr]Bytes32),
	}

	a.NewAtom(nil)
	a.NewAtom([]byte{1})

	return &a
}

// NewAtom copies the bytes into the arena and returns a handle to them.
func (a *Allocator) NewAtom(b []byte) NodePtr {
	switch {
	case len(b) == 0 && len(a.atoms) > 0:
		return Nil
	case len(b) == 1 && b[0] == 1 && len(a.atoms) > 1:
		return One
	}

	start := uint32(len(a.heap))
	a.heap = append(a.heap, b...)
	a.atoms = append(a.atoms, span{start: start, end: uint32(len(a.heap))})

	return NodePtr(len(a.atoms) - 1)
}

// NewPair creates the pair (first . rest).
func (a *Allocator) NewPair(first NodePtr, rest NodePtr) NodePtr {
	a.pairs = append(a.pairs, pair{first: first, rest: rest})
	return NodePtr(len(a.pairs)-1) | pairFlag
}

// NewString stores the UTF-8 bytes of s as an atom.
func (a *Allocator) NewString(s string) NodePtr {
	return a.NewAtom([]byte(s))
}

// NewBytes32 stores a 32 byte hash as an atom.
func (a *Allocator) NewBytes32(b Bytes32) NodePtr {
	return a.NewAtom(b[:])
}

// NewBool stores true as One and false as Nil.
func (a *Allocator) NewBool(v bool) NodePtr {
	if v {
		return One
	}
	return Nil
}

// SExp decodes the node behind the handle.
func (a *Allocator) SExp(n NodePtr) SExp {
	if n.IsPair() {
		p := a.pairs[n.index()]
		return SExp{Pair: true, First: p.first, Rest: p.rest}
	}

	s := a.atoms[n.index()]
	return SExp{Atom: a.heap[s.start:s.end:s.end]}
}

// Atom returns the bytes of an atom. The slice must not be modified.
func (a *Allocator) Atom(n NodePtr) ([]byte, error) {
	if n.IsPair() {
		return nil, fmt.Errorf("atom: %w", ErrAtomExpected)
	}

	s := a.atoms[n.index()]
	return a.heap[s.start:s.end:s.end], nil
}

// AtomLen returns the length of an atom, or -1 for a pair.
func (a *Allocator) AtomLen(n NodePtr) int {
	if n.IsPair() {
		return -1
	}

	s := a.atoms[n.index()]
	return int(s.end - s.start)
}

// Pair returns the two halves of a pair.
func (a *Allocator) Pair(n NodePtr) (NodePtr, NodePtr, bool) {
	if !n.IsPair() {
		return Nil, Nil, false
	}

	p := a.pairs[n.index()]
	return p.first, p.rest, true
}

// First returns the left half of a pair.
func (a *Allocator) First(n NodePtr) (NodePtr, error) {
	first, _, ok := a.Pair(n)
	if !ok {
		return Nil, fmt.Errorf("first: %w", ErrPairExpected)
	}
	return first, nil
}

// Rest returns the right half of a pair.
func (a *Allocator) Rest(n NodePtr) (NodePtr, error) {
	_, rest, ok := a.Pair(n)
	if !ok {
		return Nil, fmt.Errorf("rest: %w", ErrPairExpected)
	}
	return rest, nil
}

// IsNil reports if the node is the empty atom.
func (a *Allocator) IsNil(n NodePtr) bool {
	return !n.IsPair() && a.AtomLen(n) == 0
}

// Equal compares two nodes structurally.
func (a *Allocator) Equal(x NodePtr, y NodePtr) bool {
	type item struct{ x, y NodePtr }
	stack := []item{{x, y}}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if it.x == it.y {
			continue
		}

		if it.x.IsPair() != it.y.IsPair() {
			return false
		}

		if !it.x.IsPair() {
			xb, _ := a.Atom(it.x)
			yb, _ := a.Atom(it.y)
			if !bytes.Equal(xb, yb) {
				return false
			}
			continue
		}

		xf, xr, _ := a.Pair(it.x)
		yf, yr, _ := a.Pair(it.y)
		stack = append(stack, item{xr, yr}, item{xf, yf})
	}

	return true
}

// Counts returns the number of atoms and pairs held by the arena.
func (a *Allocator) Counts() (atoms int, pairs int) {
	return len(a.atoms), len(a.pairs)
}

// =============================================================================
// List helpers.

// Cons is an alias for NewPair that reads better in list code.
func (a *Allocator) Cons(first NodePtr, rest NodePtr) NodePtr {
	return a.NewPair(first, rest)
}

// List builds a proper nil-terminated list from the items.
func (a *Allocator) List(items ...NodePtr) NodePtr {
	return a.ListWithRest(Nil, items...)
}

// ListWithRest builds a list whose final rest is the specified node.
func (a *Allocator) ListWithRest(rest NodePtr, items ...NodePtr) NodePtr {
	out := rest
	for i := len(items) - 1; i >= 0; i-- {
		out = a.NewPair(items[i], out)
	}
	return out
}

// Quote builds (q . n).
func (a *Allocator) Quote(n NodePtr) NodePtr {
	return a.NewPair(One, n)
}

// ListItems walks a proper list and returns its items. A list that does
// not end in the empty atom is rejected.
func (a *Allocator) ListItems(n NodePtr) ([]NodePtr, error) {
	var items []NodePtr

	for {
		first, rest, ok := a.Pair(n)
		if !ok {
			break
		}
		items = append(items, first)
		n = rest
	}

	if !a.IsNil(n) {
		return nil, fmt.Errorf("list terminator: %w", ErrExpectedNil)
	}

	return items, nil
}

// Items destructures a list into exactly count leading items plus the
// remaining tail.
func (a *Allocator) Items(n NodePtr, count int) ([]NodePtr, NodePtr, error) {
	items := make([]NodePtr, 0, count)

	for i := 0; i < count; i++ {
		first, rest, ok := a.Pair(n)
		if !ok {
			return nil, Nil, fmt.Errorf("item %d: %w", i, ErrPairExpected)
		}
		items = append(items, first)
		n = rest
	}

	return items, n, nil
}

// Bytes32 reads a 32 byte atom.
func (a *Allocator) Bytes32(n NodePtr) (Bytes32, error) {
	b, err := a.Atom(n)
	if err != nil {
		return Bytes32{}, err
	}

	if len(b) != 32 {
		return Bytes32{}, fmt.Errorf("bytes32: length %d: %w", len(b), ErrWrongAtomLength)
	}

	return Bytes32(b), nil
}

// Bool reads an atom as a boolean, empty is false and 0x01 is true.
func (a *Allocator) Bool(n NodePtr) (bool, error) {
	b, err := a.Atom(n)
	if err != nil {
		return false, err
	}

	switch {
	case len(b) == 0:
		return false, nil
	case len(b) == 1 && b[0] == 1:
		return true, nil
	}

	return false, fmt.Errorf("bool: %x: %w", b, ErrWrongAtomLength)
}
