package mips

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// ErrEmptyCustody is returned when a custody has no members.
var ErrEmptyCustody = errors.New("custody has no members")

// NewMember constructs a member of the kind. The public key is used by
// the signing kinds. The hash is the genesis challenge for passkeys, the
// launcher id for singletons, and the puzzle hash for fixed and custom
// members.
func NewMember(kind MemberKind, publicKey []byte, hash clvm.Bytes32) (Member, error) {
	switch kind {
	case K1, K1PuzzleAssert:
		return K1Member(publicKey, kind.FastForward()), nil
	case R1, R1PuzzleAssert:
		return R1Member(publicKey, kind.FastForward()), nil
	case Passkey, PasskeyPuzzleAssert:
		return PasskeyMember(hash, publicKey, kind.FastForward()), nil
	case Bls:
		return BlsMember(publicKey), nil
	case SingletonMember:
		return SingletonAuthority(hash), nil
	case FixedPuzzle:
		return FixedPuzzleAuthority(hash), nil
	case Custom:
		return CustomMember(hash), nil
	}

	return Member{}, fmt.Errorf("kind[%d]: %w", kind, ErrUnknownMember)
}

// Custody is a one level custody tree: Required of the Members must
// authorize, and the Restrictions apply at the root. A single member is
// the root itself.
type Custody struct {
	Required     int
	Members      []Member
	Restrictions []Restriction
}

// Hash returns the custody hash a vault is curried with.
func (c Custody) Hash(lib puzzles.Library) (clvm.Bytes32, error) {
	root := MemberConfig{}.WithRestrictions(c.Restrictions...)

	switch len(c.Members) {
	case 0:
		return clvm.Bytes32{}, ErrEmptyCustody

	case 1:
		if c.Required > 1 {
			return clvm.Bytes32{}, ErrInvalidThreshold
		}
		return CustodyHash(lib, root, c.Members[0])
	}

	items := make([]clvm.Bytes32, len(c.Members))
	for i, m := range c.Members {
		inner, err := m.InnerPuzzleHash(lib)
		if err != nil {
			return clvm.Bytes32{}, fmt.Errorf("member %d: %w", i, err)
		}
		items[i] = MemberPuzzleHash(lib, MemberConfig{}, inner)
	}

	m, err := NewMofN(c.Required, items)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	return MemberPuzzleHash(lib, root.Root(), m.InnerPuzzleHash(lib)), nil
}
