package clvm

// SerializeBackrefs encodes a node using back references wherever an
// identical subtree that was already written can be addressed by a path
// shorter than its own encoding. The output decodes with
// DeserializeBackrefs to a structurally identical tree.
func (a *Allocator) SerializeBackrefs(n NodePtr) ([]byte, error) {
	e := backrefEncoder{
		a:       a,
		lengths: make(map[NodePtr]int),
		seen:    make(map[Bytes32]struct{}),
	}
	return e.encode(n)
}

type backrefEncoder struct {
	a       *Allocator
	lengths map[NodePtr]int
	seen    map[Bytes32]struct{}

	// stack mirrors the decoder's value stack, most recent value last.
	stack []NodePtr
}

func (e *backrefEncoder) encode(root NodePtr) ([]byte, error) {
	var out []byte

	ops := []decodeOp{opParse}
	pending := []NodePtr{root}

	// parents holds the pair each pending opPair rebuilds.
	var parents []NodePtr

	for len(pending) > 0 {
		node := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		ops = ops[:len(ops)-1]

		hash := e.a.TreeHash(node)
		size := e.serializedLength(node)

		if path, ok := e.findPath(hash, size); ok {
			out = append(out, backrefMarker)

			var err error
			if out, err = appendAtom(out, path); err != nil {
				return nil, err
			}
			e.stack = append(e.stack, node)

		} else if first, rest, isPair := e.a.Pair(node); isPair {
			out = append(out, consMarker)
			pending = append(pending, rest, first)
			ops = append(ops, opPair, opParse, opParse)
			parents = append(parents, node)

		} else {
			atom, _ := e.a.Atom(node)

			var err error
			if out, err = appendAtom(out, atom); err != nil {
				return nil, err
			}
			e.stack = append(e.stack, node)
			e.seen[hash] = struct{}{}
		}

		for len(ops) > 0 && ops[len(ops)-1] == opPair {
			ops = ops[:len(ops)-1]

			p := parents[len(parents)-1]
			parents = parents[:len(parents)-1]

			e.stack = append(e.stack[:len(e.stack)-2], p)
			e.seen[e.a.TreeHash(p)] = struct{}{}
		}
	}

	return out, nil
}

// findPath searches the modeled stack for a subtree with the specified
// hash and returns the encoded path when it is cheaper than writing the
// subtree out again.
func (e *backrefEncoder) findPath(hash Bytes32, size int) ([]byte, bool) {
	if _, exists := e.seen[hash]; !exists || size <= 2 {
		return nil, false
	}

	type candidate struct {
		node  NodePtr
		steps []byte
	}

	var best []byte
	bestCost := size

	for j := 0; j < len(e.stack); j++ {

		// Reaching stack element j costs j rest steps and one first step.
		if pathCost(j+1) >= bestCost {
			break
		}

		base := make([]byte, j+1)
		for i := 0; i < j; i++ {
			base[i] = 1
		}

		queue := []candidate{{node: e.stack[len(e.stack)-1-j], steps: base}}
		for len(queue) > 0 {
			c := queue[0]
			queue = queue[1:]

			cost := pathCost(len(c.steps))
			if cost >= bestCost {
				break
			}

			if e.a.TreeHash(c.node) == hash {
				best = encodePath(c.steps)
				bestCost = cost
				break
			}

			if first, rest, ok := e.a.Pair(c.node); ok {
				left := append(append([]byte(nil), c.steps...), 0)
				right := append(append([]byte(nil), c.steps...), 1)
				queue = append(queue, candidate{first, left}, candidate{rest, right})
			}
		}
	}

	return best, best != nil
}

// pathCost is the encoded size of a back reference with the specified
// number of steps, including the marker byte.
func pathCost(steps int) int {
	size := (steps + 1 + 7) / 8
	if size == 1 && steps < 7 {
		return 2
	}
	if size < 0x40 {
		return 2 + size
	}
	return 3 + size
}

// encodePath packs steps into a big endian atom, the first step in the
// least significant bit and a terminating bit above the last step.
func encodePath(steps []byte) []byte {
	bits := len(steps) + 1
	out := make([]byte, (bits+7)/8)

	set := func(i int) {
		out[len(out)-1-i/8] |= 1 << (i % 8)
	}

	for i, s := range steps {
		if s == 1 {
			set(i)
		}
	}
	set(len(steps))

	return out
}

func (e *backrefEncoder) serializedLength(n NodePtr) int {
	if l, exists := e.lengths[n]; exists {
		return l
	}

	var l int
	if first, rest, ok := e.a.Pair(n); ok {
		l = 1 + e.serializedLength(first) + e.serializedLength(rest)
	} else {
		atom, _ := e.a.Atom(n)
		l = atomEncodedLen(atom)
	}

	e.lengths[n] = l
	return l
}
