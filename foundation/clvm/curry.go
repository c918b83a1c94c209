package clvm

// Operator atoms used by the curry encoding.
var (
	opApply = []byte{2}
	opQuote = []byte{1}
	opCons  = []byte{4}
)

var (
	applyHash = TreeHashAtom(opApply)
	consHash  = TreeHashAtom(opCons)
)

// Curry binds leading arguments to a program, producing
// (a (q . program) (c (q . arg1) (c (q . arg2) ... 1))).
func (a *Allocator) Curry(program NodePtr, args ...NodePtr) NodePtr {
	apply := a.NewAtom(opApply)
	cons := a.NewAtom(opCons)

	env := One
	for i := len(args) - 1; i >= 0; i-- {
		env = a.List(cons, a.Quote(args[i]), env)
	}

	return a.List(apply, a.Quote(program), env)
}

// Uncurry recovers the program and arguments from a curried tree. A node
// that is not a curry returns false, it is a probe and not an error.
func (a *Allocator) Uncurry(n NodePtr) (NodePtr, []NodePtr, bool) {
	items, rest, err := a.Items(n, 3)
	if err != nil || !a.IsNil(rest) {
		return Nil, nil, false
	}

	if !a.atomIs(items[0], opApply) {
		return Nil, nil, false
	}

	program, ok := a.unquote(items[1])
	if !ok {
		return Nil, nil, false
	}

	var args []NodePtr
	env := items[2]

	for {
		if a.atomIs(env, opQuote) {
			break
		}

		parts, tail, err := a.Items(env, 3)
		if err != nil || !a.IsNil(tail) || !a.atomIs(parts[0], opCons) {
			return Nil, nil, false
		}

		arg, ok := a.unquote(parts[1])
		if !ok {
			return Nil, nil, false
		}

		args = append(args, arg)
		env = parts[2]
	}

	return program, args, true
}

// CurryTreeHash computes the tree hash of a curried program from the
// hash of the program and the hashes of the arguments, without touching
// an arena.
func CurryTreeHash(modHash Bytes32, argHashes ...Bytes32) Bytes32 {
	env := OneHash
	for i := len(argHashes) - 1; i >= 0; i-- {
		quoted := TreeHashPair(OneHash, argHashes[i])
		env = TreeHashPair(consHash, TreeHashPair(quoted, TreeHashPair(env, NilHash)))
	}

	quoted := TreeHashPair(OneHash, modHash)
	return TreeHashPair(applyHash, TreeHashPair(quoted, TreeHashPair(env, NilHash)))
}

func (a *Allocator) unquote(n NodePtr) (NodePtr, bool) {
	first, rest, ok := a.Pair(n)
	if !ok || !a.atomIs(first, opQuote) {
		return Nil, false
	}
	return rest, true
}

func (a *Allocator) atomIs(n NodePtr, want []byte) bool {
	b, err := a.Atom(n)
	if err != nil || len(b) != len(want) {
		return false
	}
	for i := range b {
		if b[i] != want[i] {
			return false
		}
	}
	return true
}
