package clvm

import "fmt"

// Markers used by the binary encoding.
const (
	consMarker    byte = 0xff
	backrefMarker byte = 0xfe
	nilMarker     byte = 0x80
)

// Serialize encodes a node in the canonical binary format.
func (a *Allocator) Serialize(n NodePtr) ([]byte, error) {
	var out []byte
	stack := []NodePtr{n}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if first, rest, ok := a.Pair(node); ok {
			out = append(out, consMarker)
			stack = append(stack, rest, first)
			continue
		}

		atom, _ := a.Atom(node)

		var err error
		if out, err = appendAtom(out, atom); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Deserialize decodes the canonical binary format. Back references are
// rejected, use DeserializeBackrefs for compressed input.
func (a *Allocator) Deserialize(b []byte) (NodePtr, error) {
	d := decoder{a: a, buf: b}
	return d.decode(false)
}

// DeserializeBackrefs decodes the binary format including 0xfe back
// references.
func (a *Allocator) DeserializeBackrefs(b []byte) (NodePtr, error) {
	d := decoder{a: a, buf: b}
	return d.decode(true)
}

// =============================================================================

func appendAtom(dst []byte, b []byte) ([]byte, error) {
	n := uint64(len(b))

	switch {
	case n == 0:
		return append(dst, nilMarker), nil
	case n == 1 && b[0] <= 0x7f:
		return append(dst, b[0]), nil
	case n < 0x40:
		dst = append(dst, 0x80|byte(n))
	case n < 0x2000:
		dst = append(dst, 0xc0|byte(n>>8), byte(n))
	case n < 0x100000:
		dst = append(dst, 0xe0|byte(n>>16), byte(n>>8), byte(n))
	case n < 0x8000000:
		dst = append(dst, 0xf0|byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	case n < 0x400000000:
		dst = append(dst, 0xf8|byte(n>>32), byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	default:
		return nil, fmt.Errorf("atom length %d: %w", n, ErrAtomTooLong)
	}

	return append(dst, b...), nil
}

func atomEncodedLen(b []byte) int {
	n := len(b)

	switch {
	case n == 0:
		return 1
	case n == 1 && b[0] <= 0x7f:
		return 1
	case n < 0x40:
		return 1 + n
	case n < 0x2000:
		return 2 + n
	case n < 0x100000:
		return 3 + n
	case n < 0x8000000:
		return 4 + n
	}
	return 5 + n
}

// =============================================================================

type decoder struct {
	a   *Allocator
	buf []byte
	pos int
}

type decodeOp uint8

const (
	opParse decodeOp = iota
	opPair
)

func (d *decoder) decode(backrefs bool) (NodePtr, error) {
	var values []NodePtr
	ops := []decodeOp{opParse}

	for len(ops) > 0 {
		op := ops[len(ops)-1]
		ops = ops[:len(ops)-1]

		if op == opPair {
			rest := values[len(values)-1]
			first := values[len(values)-2]
			values = append(values[:len(values)-2], d.a.NewPair(first, rest))
			continue
		}

		b, err := d.readByte()
		if err != nil {
			return Nil, err
		}

		switch b {
		case consMarker:
			ops = append(ops, opPair, opParse, opParse)

		case backrefMarker:
			if !backrefs {
				return Nil, fmt.Errorf("offset %d: %w", d.pos-1, ErrBackReference)
			}

			first, err := d.readByte()
			if err != nil {
				return Nil, err
			}

			path, err := d.readAtom(first)
			if err != nil {
				return Nil, err
			}

			node, err := d.traverse(values, path)
			if err != nil {
				return Nil, err
			}
			values = append(values, node)

		default:
			atom, err := d.readAtom(b)
			if err != nil {
				return Nil, err
			}
			values = append(values, d.a.NewAtom(atom))
		}
	}

	if d.pos != len(d.buf) {
		return Nil, fmt.Errorf("offset %d: %w", d.pos, ErrTrailingBytes)
	}

	return values[0], nil
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, ErrUnexpectedEOF
	}

	b := d.buf[d.pos]
	d.pos++

	return b, nil
}

func (d *decoder) readN(n uint64) ([]byte, error) {
	if n > uint64(len(d.buf)-d.pos) {
		return nil, ErrUnexpectedEOF
	}

	b := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)

	return b, nil
}

func (d *decoder) readAtom(first byte) ([]byte, error) {
	if first == nilMarker {
		return nil, nil
	}

	if first <= 0x7f {
		return []byte{first}, nil
	}

	var prefix int
	for mask := byte(0x80); first&mask != 0; mask >>= 1 {
		prefix++
	}

	if prefix > 5 {
		return nil, fmt.Errorf("length prefix %#x: %w", first, ErrBadEncoding)
	}

	size := uint64(first & (0xff >> (prefix + 1)))

	extra, err := d.readN(uint64(prefix - 1))
	if err != nil {
		return nil, err
	}

	for _, b := range extra {
		size = size<<8 | uint64(b)
	}

	return d.readN(size)
}

// traverse follows a path through the stack of parsed values, which the
// path addresses as a list with the most recent value first. Bits are
// consumed from the least significant end, 0 selects first and 1 selects
// rest, and the highest set bit terminates the path.
func (d *decoder) traverse(values []NodePtr, path []byte) (NodePtr, error) {
	start := 0
	for start < len(path) && path[start] == 0 {
		start++
	}

	if start == len(path) {
		return Nil, nil
	}

	endMask := byte(0x80)
	for path[start]&endMask == 0 {
		endMask >>= 1
	}

	// The cursor is either a position in the virtual stack list or a
	// real node once the path descends into a value.
	listPos := 0
	inList := true
	node := Nil

	idx := len(path) - 1
	mask := byte(0x01)

	for idx > start || mask < endMask {
		right := path[idx]&mask != 0

		switch {
		case inList:
			if listPos >= len(values) {
				return Nil, fmt.Errorf("path past end of stack: %w", ErrInvalidPath)
			}
			if right {
				listPos++
				break
			}
			node = values[len(values)-1-listPos]
			inList = false

		default:
			first, rest, ok := d.a.Pair(node)
			if !ok {
				return Nil, fmt.Errorf("path into atom: %w", ErrInvalidPath)
			}
			if right {
				node = rest
			} else {
				node = first
			}
		}

		if mask == 0x80 {
			mask = 0x01
			idx--
		} else {
			mask <<= 1
		}
	}

	if inList {
		suffix := make([]NodePtr, 0, len(values)-listPos)
		for i := len(values) - 1 - listPos; i >= 0; i-- {
			suffix = append(suffix, values[i])
		}
		return d.a.List(suffix...), nil
	}

	return node, nil
}
