// Package mips implements the vault authority tree: members that supply
// authorization, restrictions that constrain it, and M of N combinators
// that compose members into a single content addressed custody hash.
package mips

import (
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// MemberKind identifies the puzzle a member authorizes with.
type MemberKind uint8

// Set of member kinds.
const (
	K1 MemberKind = iota + 1
	K1PuzzleAssert
	R1
	R1PuzzleAssert
	Passkey
	PasskeyPuzzleAssert
	Bls
	SingletonMember
	FixedPuzzle
	Custom
)

var memberKindNames = map[MemberKind]string{
	K1:                  "k1",
	K1PuzzleAssert:      "k1_puzzle_assert",
	R1:                  "r1",
	R1PuzzleAssert:      "r1_puzzle_assert",
	Passkey:             "passkey",
	PasskeyPuzzleAssert: "passkey_puzzle_assert",
	Bls:                 "bls",
	SingletonMember:     "singleton",
	FixedPuzzle:         "fixed_puzzle",
	Custom:              "custom",
}

// String implements the fmt.Stringer interface.
func (k MemberKind) String() string {
	if s, exists := memberKindNames[k]; exists {
		return s
	}
	return "unknown"
}

// ParseMemberKind returns the kind with the specified name.
func ParseMemberKind(s string) (MemberKind, error) {
	for k, name := range memberKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("member kind %q: %w", s, ErrUnknownMember)
}

// FastForward reports whether the member binds its signature to the puzzle
// hash of the coin instead of its coin id.
func (k MemberKind) FastForward() bool {
	return k == K1PuzzleAssert || k == R1PuzzleAssert || k == PasskeyPuzzleAssert
}

// =============================================================================

// Member is the authority a leaf of the tree delegates to. Which fields are
// used depends on the kind.
type Member struct {
	Kind             MemberKind
	PublicKey        []byte
	GenesisChallenge clvm.Bytes32
	LauncherID       clvm.Bytes32
	PuzzleHash       clvm.Bytes32
}

// K1Member constructs a secp256k1 member from its compressed public key.
func K1Member(publicKey []byte, fastForward bool) Member {
	if fastForward {
		return Member{Kind: K1PuzzleAssert, PublicKey: publicKey}
	}
	return Member{Kind: K1, PublicKey: publicKey}
}

// R1Member constructs a secp256r1 member from its compressed public key.
func R1Member(publicKey []byte, fastForward bool) Member {
	if fastForward {
		return Member{Kind: R1PuzzleAssert, PublicKey: publicKey}
	}
	return Member{Kind: R1, PublicKey: publicKey}
}

// PasskeyMember constructs a passkey member for the network with the
// genesis challenge.
func PasskeyMember(genesisChallenge clvm.Bytes32, publicKey []byte, fastForward bool) Member {
	kind := Passkey
	if fastForward {
		kind = PasskeyPuzzleAssert
	}
	return Member{Kind: kind, PublicKey: publicKey, GenesisChallenge: genesisChallenge}
}

// BlsMember constructs a member whose signature is aggregated with the
// transaction.
func BlsMember(publicKey []byte) Member {
	return Member{Kind: Bls, PublicKey: publicKey}
}

// SingletonAuthority constructs a member that delegates to the singleton
// with the launcher id.
func SingletonAuthority(launcherID clvm.Bytes32) Member {
	return Member{Kind: SingletonMember, LauncherID: launcherID}
}

// FixedPuzzleAuthority constructs a member that only lets the puzzle with
// the hash spend.
func FixedPuzzleAuthority(puzzleHash clvm.Bytes32) Member {
	return Member{Kind: FixedPuzzle, PuzzleHash: puzzleHash}
}

// CustomMember constructs a member from the hash of an arbitrary puzzle.
func CustomMember(puzzleHash clvm.Bytes32) Member {
	return Member{Kind: Custom, PuzzleHash: puzzleHash}
}

// puzzleName maps the member kind to its program.
func (m Member) puzzleName() (puzzles.Name, error) {
	switch m.Kind {
	case K1:
		return puzzles.K1Member, nil
	case K1PuzzleAssert:
		return puzzles.K1MemberPuzzleAssert, nil
	case R1:
		return puzzles.R1Member, nil
	case R1PuzzleAssert:
		return puzzles.R1MemberPuzzleAssert, nil
	case Passkey:
		return puzzles.PasskeyMember, nil
	case PasskeyPuzzleAssert:
		return puzzles.PasskeyMemberPuzzleAssert, nil
	case Bls:
		return puzzles.BlsMember, nil
	case SingletonMember:
		return puzzles.SingletonMember, nil
	case FixedPuzzle:
		return puzzles.FixedPuzzleMember, nil
	}
	return "", fmt.Errorf("member kind %s: %w", m.Kind, ErrUnknownMember)
}

// InnerPuzzleHash returns the hash of the member puzzle before any nonce
// or restriction is applied.
func (m Member) InnerPuzzleHash(lib puzzles.Library) (clvm.Bytes32, error) {
	if m.Kind == Custom {
		return m.PuzzleHash, nil
	}

	name, err := m.puzzleName()
	if err != nil {
		return clvm.Bytes32{}, err
	}
	mod := lib.MustHash(name)

	switch m.Kind {
	case Passkey, PasskeyPuzzleAssert:
		return clvm.CurryTreeHash(mod, atomHash(m.GenesisChallenge[:]), atomHash(m.PublicKey)), nil
	case SingletonMember:
		return clvm.CurryTreeHash(mod, layers.NewSingletonStruct(lib, m.LauncherID).Hash()), nil
	case FixedPuzzle:
		return clvm.CurryTreeHash(mod, atomHash(m.PuzzleHash[:])), nil
	}

	return clvm.CurryTreeHash(mod, atomHash(m.PublicKey)), nil
}

// Puzzle builds the member puzzle before any nonce or restriction is
// applied. Custom members have no puzzle to build.
func (m Member) Puzzle(ctx *driver.SpendContext) (clvm.NodePtr, error) {
	name, err := m.puzzleName()
	if err != nil {
		return clvm.Nil, err
	}

	switch m.Kind {
	case Passkey, PasskeyPuzzleAssert:
		return ctx.Curry(name, ctx.NewBytes32(m.GenesisChallenge), ctx.NewAtom(m.PublicKey))
	case SingletonMember:
		ss, err := ctx.Alloc(layers.NewSingletonStruct(ctx.Library(), m.LauncherID))
		if err != nil {
			return clvm.Nil, err
		}
		return ctx.Curry(name, ss)
	case FixedPuzzle:
		return ctx.Curry(name, ctx.NewBytes32(m.PuzzleHash))
	}

	return ctx.Curry(name, ctx.NewAtom(m.PublicKey))
}

// =============================================================================

// MemberConfig is the position dependent configuration of a node in the
// tree: the nonce that tells apart identical members, the restrictions
// that apply to it, and whether it is the root.
type MemberConfig struct {
	Nonce        uint64
	Restrictions []Restriction
	TopLevel     bool
}

// WithRestrictions returns a copy of the config with the restrictions
// appended.
func (cfg MemberConfig) WithRestrictions(restrictions ...Restriction) MemberConfig {
	cfg.Restrictions = append(append([]Restriction(nil), cfg.Restrictions...), restrictions...)
	return cfg
}

// Root returns a copy of the config marked as the root of the tree.
func (cfg MemberConfig) Root() MemberConfig {
	cfg.TopLevel = true
	return cfg
}

// MemberPuzzleHash returns the puzzle hash of a node of the tree whose
// inner puzzle has the specified hash. It is a pure function of its
// inputs so equal configurations hash equally however they were built.
func MemberPuzzleHash(lib puzzles.Library, cfg MemberConfig, innerPuzzleHash clvm.Bytes32) clvm.Bytes32 {
	h := innerPuzzleHash

	if len(cfg.Restrictions) > 0 {
		var memberValidators, delegatedValidators, wrappers []clvm.Bytes32
		for _, r := range cfg.Restrictions {
			switch r.Kind {
			case MemberCondition:
				memberValidators = append(memberValidators, r.PuzzleHash)
			case DelegatedPuzzleHash:
				delegatedValidators = append(delegatedValidators, r.PuzzleHash)
			case DelegatedPuzzleWrapper:
				wrappers = append(wrappers, r.PuzzleHash)
			}
		}

		if len(wrappers) > 0 {
			delegatedValidators = append(delegatedValidators, enforceWrappersHash(lib, wrappers))
		}

		h = clvm.CurryTreeHash(lib.MustHash(puzzles.Restrictions), listHash(memberValidators), listHash(delegatedValidators), h)
	}

	if cfg.TopLevel {
		h = clvm.CurryTreeHash(lib.MustHash(puzzles.DelegatedFeeder), h)
	}

	return clvm.CurryTreeHash(lib.MustHash(puzzles.IndexWrapper), atomHash(clvm.EncodeUint64(cfg.Nonce)), h)
}

// CustodyHash returns the puzzle hash of a member used as the root of the
// tree.
func CustodyHash(lib puzzles.Library, cfg MemberConfig, m Member) (clvm.Bytes32, error) {
	inner, err := m.InnerPuzzleHash(lib)
	if err != nil {
		return clvm.Bytes32{}, err
	}
	return MemberPuzzleHash(lib, cfg.Root(), inner), nil
}
