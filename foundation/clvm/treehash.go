package clvm

import "crypto/sha256"

// Domain separation prefixes for tree hashing.
const (
	atomPrefix byte = 1
	pairPrefix byte = 2
)

// Precomputed tree hashes of the two reserved atoms.
var (
	NilHash = TreeHashAtom(nil)
	OneHash = TreeHashAtom([]byte{1})
)

// TreeHashAtom hashes an atom as sha256(0x01 || atom).
func TreeHashAtom(b []byte) Bytes32 {
	h := sha256.New()
	h.Write([]byte{atomPrefix})
	h.Write(b)

	var out Bytes32
	h.Sum(out[:0])
	return out
}

// TreeHashPair hashes a pair as sha256(0x02 || first || rest).
func TreeHashPair(first Bytes32, rest Bytes32) Bytes32 {
	h := sha256.New()
	h.Write([]byte{pairPrefix})
	h.Write(first[:])
	h.Write(rest[:])

	var out Bytes32
	h.Sum(out[:0])
	return out
}

// TreeHash computes the content hash of a node. Nodes never change once
// allocated so results are cached for the life of the arena.
func (a *Allocator) TreeHash(n NodePtr) Bytes32 {
	if h, exists := a.hashCache[n]; exists {
		return h
	}

	type frame struct {
		node     NodePtr
		expanded bool
	}

	stack := []frame{{node: n}}
	for len(stack) > 0 {
		top := len(stack) - 1
		f := stack[top]

		if _, exists := a.hashCache[f.node]; exists {
			stack = stack[:top]
			continue
		}

		if !f.node.IsPair() {
			atom, _ := a.Atom(f.node)
			a.hashCache[f.node] = TreeHashAtom(atom)
			stack = stack[:top]
			continue
		}

		first, rest, _ := a.Pair(f.node)

		if f.expanded {
			a.hashCache[f.node] = TreeHashPair(a.hashCache[first], a.hashCache[rest])
			stack = stack[:top]
			continue
		}

		stack[top].expanded = true
		stack = append(stack, frame{node: rest}, frame{node: first})
	}

	return a.hashCache[n]
}
