package drivertest

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Operators understood by the interpreter.
const (
	opQuote  = 0x01
	opApply  = 0x02
	opIf     = 0x03
	opCons   = 0x04
	opFirst  = 0x05
	opRest   = 0x06
	opListp  = 0x07
	opRaise  = 0x08
	opEq     = 0x09
	opGtS    = 0x0a
	opSha256 = 0x0b
	opSubstr = 0x0c
	opStrlen = 0x0d
	opConcat = 0x0e
	opAdd    = 0x10
	opSub    = 0x11
	opMul    = 0x12
	opDiv    = 0x13
	opDivmod = 0x14
	opGt     = 0x15
	opAsh    = 0x16
	opLsh    = 0x17
	opLogand = 0x18
	opLogior = 0x19
	opLogxor = 0x1a
	opLognot = 0x1b
	opNot    = 0x20
	opAny    = 0x21
	opAll    = 0x22
	opCoinID = 0x30
)

// Costs charged by the interpreter. They follow the shape of the consensus
// cost table without matching it exactly.
const (
	costApply    = 90
	costQuote    = 20
	costPath     = 40
	costOperator = 100
	costPerByte  = 2
	costPerArg   = 50
)

// errBudget signals the run went over its budget.
var errBudget = errors.New("cost budget exhausted")

// interpreter reduces CLVM programs in an arena. Applications of programs
// registered with the runner call the Go function instead of the bytes.
type interpreter struct {
	a      *clvm.Allocator
	runner *Runner
	budget uint64
	cost   uint64
	hashes map[clvm.NodePtr]clvm.Bytes32
}

func (in *interpreter) charge(c uint64) error {
	in.cost += c
	if in.cost > in.budget {
		return errBudget
	}
	return nil
}

func (in *interpreter) raise(format string, args ...any) error {
	return Raise(format, args...)
}

// eval reduces the program against the environment.
func (in *interpreter) eval(program clvm.NodePtr, env clvm.NodePtr) (clvm.NodePtr, error) {
	op, rest, ok := in.a.Pair(program)
	if !ok {
		if err := in.charge(costPath); err != nil {
			return clvm.Nil, err
		}
		return in.path(program, env)
	}

	opAtom, err := in.a.Atom(op)
	if err != nil {
		return clvm.Nil, in.raise("in ((X)...) syntax X must be lone atom")
	}

	if len(opAtom) == 1 && opAtom[0] == opQuote {
		if err := in.charge(costQuote); err != nil {
			return clvm.Nil, err
		}
		return rest, nil
	}

	items, err := in.a.ListItems(rest)
	if err != nil {
		return clvm.Nil, in.raise("bad operand list")
	}

	args := make([]clvm.NodePtr, len(items))
	for i, item := range items {
		if args[i], err = in.eval(item, env); err != nil {
			return clvm.Nil, err
		}
	}

	if len(opAtom) == 1 && opAtom[0] == opApply {
		if len(args) != 2 {
			return clvm.Nil, in.raise("apply takes exactly 2 parameters")
		}
		if err := in.charge(costApply); err != nil {
			return clvm.Nil, err
		}
		return in.apply(args[0], args[1])
	}

	if err := in.charge(costOperator + costPerArg*uint64(len(args))); err != nil {
		return clvm.Nil, err
	}

	return in.operator(opAtom, args)
}

// apply runs the program with the environment. A program whose tree hash,
// or the tree hash of the mod it curries, is registered runs in Go.
func (in *interpreter) apply(program clvm.NodePtr, env clvm.NodePtr) (clvm.NodePtr, error) {
	if p, args, ok := in.registered(program); ok {
		return p(in.a, args, env)
	}

	return in.eval(program, env)
}

func (in *interpreter) registered(program clvm.NodePtr) (Program, []clvm.NodePtr, bool) {
	if len(in.runner.programs) == 0 {
		return nil, nil, false
	}

	var args []clvm.NodePtr
	n := program
	for {
		if p, exists := in.runner.programs[in.treeHash(n)]; exists {
			return p, args, true
		}

		mod, curried, ok := in.a.Uncurry(n)
		if !ok {
			return nil, nil, false
		}
		args = append(curried, args...)
		n = mod
	}
}

func (in *interpreter) treeHash(n clvm.NodePtr) clvm.Bytes32 {
	if h, exists := in.hashes[n]; exists {
		return h
	}

	h := in.a.TreeHash(n)
	in.hashes[n] = h
	return h
}

// path walks the environment. The bits of the atom are read from the least
// significant end and the highest set bit ends the walk.
func (in *interpreter) path(p clvm.NodePtr, env clvm.NodePtr) (clvm.NodePtr, error) {
	b, _ := in.a.Atom(p)
	if len(b) == 0 {
		return clvm.Nil, nil
	}

	v := new(big.Int).SetBytes(b)
	if v.Sign() == 0 {
		return clvm.Nil, nil
	}

	n := env
	for i := 0; i < v.BitLen()-1; i++ {
		first, rest, ok := in.a.Pair(n)
		if !ok {
			return clvm.Nil, in.raise("path into atom")
		}

		if v.Bit(i) == 0 {
			n = first
			continue
		}
		n = rest
	}

	return n, nil
}

// =============================================================================

func (in *interpreter) operator(op []byte, args []clvm.NodePtr) (clvm.NodePtr, error) {
	if len(op) != 1 {
		return clvm.Nil, in.raise("unimplemented operator %x", op)
	}

	a := in.a

	switch op[0] {
	case opIf:
		if len(args) != 3 {
			return clvm.Nil, in.raise("i takes exactly 3 arguments")
		}
		if a.IsNil(args[0]) {
			return args[2], nil
		}
		return args[1], nil

	case opCons:
		if len(args) != 2 {
			return clvm.Nil, in.raise("c takes exactly 2 arguments")
		}
		return a.Cons(args[0], args[1]), nil

	case opFirst, opRest:
		if len(args) != 1 {
			return clvm.Nil, in.raise("f and r take exactly 1 argument")
		}
		first, rest, ok := a.Pair(args[0])
		if !ok {
			return clvm.Nil, in.raise("first or rest of non-cons")
		}
		if op[0] == opFirst {
			return first, nil
		}
		return rest, nil

	case opListp:
		if len(args) != 1 {
			return clvm.Nil, in.raise("l takes exactly 1 argument")
		}
		return a.NewBool(args[0].IsPair()), nil

	case opRaise:
		return clvm.Nil, in.raise("clvm raise %s", in.describe(a.List(args...)))

	case opEq:
		x, y, err := in.atoms2(args, "=")
		if err != nil {
			return clvm.Nil, err
		}
		return a.NewBool(bytes.Equal(x, y)), nil

	case opGtS:
		x, y, err := in.atoms2(args, ">s")
		if err != nil {
			return clvm.Nil, err
		}
		return a.NewBool(bytes.Compare(x, y) > 0), nil

	case opSha256:
		h := sha256.New()
		for _, arg := range args {
			b, err := in.atom(arg, "sha256")
			if err != nil {
				return clvm.Nil, err
			}
			if err := in.charge(costPerByte * uint64(len(b))); err != nil {
				return clvm.Nil, err
			}
			h.Write(b)
		}
		return a.NewAtom(h.Sum(nil)), nil

	case opSubstr:
		return in.substr(args)

	case opStrlen:
		if len(args) != 1 {
			return clvm.Nil, in.raise("strlen takes exactly 1 argument")
		}
		b, err := in.atom(args[0], "strlen")
		if err != nil {
			return clvm.Nil, err
		}
		return a.NewUint64(uint64(len(b))), nil

	case opConcat:
		var out []byte
		for _, arg := range args {
			b, err := in.atom(arg, "concat")
			if err != nil {
				return clvm.Nil, err
			}
			out = append(out, b...)
		}
		if err := in.charge(costPerByte * uint64(len(out))); err != nil {
			return clvm.Nil, err
		}
		return a.NewAtom(out), nil

	case opAdd, opSub, opMul, opLogand, opLogior, opLogxor:
		return in.fold(op[0], args)

	case opDiv, opDivmod:
		x, y, err := in.integers2(args, "/")
		if err != nil {
			return clvm.Nil, err
		}
		if y.Sign() == 0 {
			return clvm.Nil, in.raise("div with 0")
		}
		q, m := floorDivMod(x, y)
		if op[0] == opDiv {
			return a.NewBigInt(q), nil
		}
		return a.Cons(a.NewBigInt(q), a.NewBigInt(m)), nil

	case opGt:
		x, y, err := in.integers2(args, ">")
		if err != nil {
			return clvm.Nil, err
		}
		return a.NewBool(x.Cmp(y) > 0), nil

	case opAsh, opLsh:
		return in.shift(op[0], args)

	case opLognot:
		if len(args) != 1 {
			return clvm.Nil, in.raise("lognot takes exactly 1 argument")
		}
		x, err := in.integer(args[0], "lognot")
		if err != nil {
			return clvm.Nil, err
		}
		return a.NewBigInt(new(big.Int).Not(x)), nil

	case opNot:
		if len(args) != 1 {
			return clvm.Nil, in.raise("not takes exactly 1 argument")
		}
		return a.NewBool(a.IsNil(args[0])), nil

	case opAny:
		for _, arg := range args {
			if !a.IsNil(arg) {
				return a.NewBool(true), nil
			}
		}
		return a.NewBool(false), nil

	case opAll:
		for _, arg := range args {
			if a.IsNil(arg) {
				return a.NewBool(false), nil
			}
		}
		return a.NewBool(true), nil

	case opCoinID:
		return in.coinID(args)
	}

	return clvm.Nil, in.raise("unimplemented operator %x", op)
}

func (in *interpreter) atom(n clvm.NodePtr, op string) ([]byte, error) {
	b, err := in.a.Atom(n)
	if err != nil {
		return nil, in.raise("%s on list", op)
	}
	return b, nil
}

func (in *interpreter) atoms2(args []clvm.NodePtr, op string) ([]byte, []byte, error) {
	if len(args) != 2 {
		return nil, nil, in.raise("%s takes exactly 2 arguments", op)
	}

	x, err := in.atom(args[0], op)
	if err != nil {
		return nil, nil, err
	}

	y, err := in.atom(args[1], op)
	if err != nil {
		return nil, nil, err
	}

	return x, y, nil
}

func (in *interpreter) integer(n clvm.NodePtr, op string) (*big.Int, error) {
	b, err := in.atom(n, op)
	if err != nil {
		return nil, err
	}
	return clvm.DecodeInt(b), nil
}

func (in *interpreter) integers2(args []clvm.NodePtr, op string) (*big.Int, *big.Int, error) {
	if len(args) != 2 {
		return nil, nil, in.raise("%s takes exactly 2 arguments", op)
	}

	x, err := in.integer(args[0], op)
	if err != nil {
		return nil, nil, err
	}

	y, err := in.integer(args[1], op)
	if err != nil {
		return nil, nil, err
	}

	return x, y, nil
}

func (in *interpreter) fold(op byte, args []clvm.NodePtr) (clvm.NodePtr, error) {
	var acc *big.Int
	switch op {
	case opMul:
		acc = big.NewInt(1)
	case opLogand:
		acc = big.NewInt(-1)
	default:
		acc = new(big.Int)
	}

	for i, arg := range args {
		v, err := in.integer(arg, "arithmetic")
		if err != nil {
			return clvm.Nil, err
		}

		switch op {
		case opAdd:
			acc.Add(acc, v)
		case opSub:
			if i == 0 {
				acc.Set(v)
				continue
			}
			acc.Sub(acc, v)
		case opMul:
			acc.Mul(acc, v)
		case opLogand:
			acc.And(acc, v)
		case opLogior:
			acc.Or(acc, v)
		case opLogxor:
			acc.Xor(acc, v)
		}
	}

	return in.a.NewBigInt(acc), nil
}

func (in *interpreter) shift(op byte, args []clvm.NodePtr) (clvm.NodePtr, error) {
	if len(args) != 2 {
		return clvm.Nil, in.raise("shift takes exactly 2 arguments")
	}

	b, err := in.atom(args[0], "shift")
	if err != nil {
		return clvm.Nil, err
	}

	n, err := in.integer(args[1], "shift")
	if err != nil {
		return clvm.Nil, err
	}
	if n.CmpAbs(big.NewInt(65535)) > 0 {
		return clvm.Nil, in.raise("shift too large")
	}
	s := n.Int64()

	// ash shifts the signed value, lsh the unsigned bytes.
	v := clvm.DecodeInt(b)
	if op == opLsh {
		v = new(big.Int).SetBytes(b)
	}

	if s >= 0 {
		v.Lsh(v, uint(s))
	} else {
		v.Rsh(v, uint(-s))
	}

	return in.a.NewBigInt(v), nil
}

func (in *interpreter) substr(args []clvm.NodePtr) (clvm.NodePtr, error) {
	if len(args) != 2 && len(args) != 3 {
		return clvm.Nil, in.raise("substr takes exactly 2 or 3 arguments")
	}

	b, err := in.atom(args[0], "substr")
	if err != nil {
		return clvm.Nil, err
	}

	start, err := in.integer(args[1], "substr")
	if err != nil {
		return clvm.Nil, err
	}

	end := big.NewInt(int64(len(b)))
	if len(args) == 3 {
		if end, err = in.integer(args[2], "substr"); err != nil {
			return clvm.Nil, err
		}
	}

	if start.Sign() < 0 || end.Cmp(big.NewInt(int64(len(b)))) > 0 || end.Cmp(start) < 0 {
		return clvm.Nil, in.raise("invalid indices for substr")
	}

	return in.a.NewAtom(b[start.Int64():end.Int64()]), nil
}

func (in *interpreter) coinID(args []clvm.NodePtr) (clvm.NodePtr, error) {
	if len(args) != 3 {
		return clvm.Nil, in.raise("coinid takes exactly 3 arguments")
	}

	parent, err := in.atom(args[0], "coinid")
	if err != nil || len(parent) != 32 {
		return clvm.Nil, in.raise("coinid: invalid parent coin id (must be 32 bytes)")
	}

	puzzleHash, err := in.atom(args[1], "coinid")
	if err != nil || len(puzzleHash) != 32 {
		return clvm.Nil, in.raise("coinid: invalid puzzle hash (must be 32 bytes)")
	}

	amount, err := in.atom(args[2], "coinid")
	if err != nil || (len(amount) > 0 && amount[0]&0x80 != 0) {
		return clvm.Nil, in.raise("coinid: invalid amount (may not be negative)")
	}

	h := sha256.New()
	h.Write(parent)
	h.Write(puzzleHash)
	h.Write(amount)

	return in.a.NewAtom(h.Sum(nil)), nil
}

func (in *interpreter) describe(n clvm.NodePtr) string {
	b, err := in.a.Serialize(n)
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%x", b)
}

// floorDivMod divides rounding toward negative infinity.
func floorDivMod(x *big.Int, y *big.Int) (*big.Int, *big.Int) {
	q, m := new(big.Int).QuoRem(x, y, new(big.Int))
	if m.Sign() != 0 && m.Sign() != y.Sign() {
		q.Sub(q, big.NewInt(1))
		m.Add(m, y)
	}
	return q, m
}

// interpret runs the puzzle against the solution within the budget.
func (r *Runner) interpret(a *clvm.Allocator, puzzle clvm.NodePtr, solution clvm.NodePtr, budget uint64) (clvm.NodePtr, uint64, error) {
	in := interpreter{
		a:      a,
		runner: r,
		budget: budget,
		hashes: make(map[clvm.NodePtr]clvm.Bytes32),
	}

	out, err := in.apply(puzzle, solution)
	if err != nil {
		if errors.Is(err, errBudget) {
			return clvm.Nil, in.cost, fmt.Errorf("cost[%d] max[%d]: %w", in.cost, budget, driver.ErrCostExceeded)
		}
		return clvm.Nil, in.cost, err
	}

	return out, in.cost, nil
}
