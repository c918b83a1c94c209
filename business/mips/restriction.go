package mips

import (
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// RestrictionKind says where a restriction plugs into a member.
type RestrictionKind uint8

// Set of restriction kinds.
const (
	// MemberCondition validators see the conditions the member outputs.
	MemberCondition RestrictionKind = iota + 1

	// DelegatedPuzzleHash validators see the hash of the delegated puzzle.
	DelegatedPuzzleHash

	// DelegatedPuzzleWrapper restrictions wrap the delegated puzzle and
	// are enforced by the wrapper validator the member carries.
	DelegatedPuzzleWrapper
)

// String implements the fmt.Stringer interface.
func (k RestrictionKind) String() string {
	switch k {
	case MemberCondition:
		return "member_condition"
	case DelegatedPuzzleHash:
		return "delegated_puzzle_hash"
	case DelegatedPuzzleWrapper:
		return "delegated_puzzle_wrapper"
	}
	return "unknown"
}

// Restriction is a restriction a member is configured with: its kind and
// the hash of its puzzle.
type Restriction struct {
	Kind       RestrictionKind
	PuzzleHash clvm.Bytes32
}

// Condition opcodes the vault side effect restriction prevents.
const (
	opCreateCoinAnnouncement   = 60
	opCreatePuzzleAnnouncement = 62
	opSendMessage              = 66
	opReceiveMessage           = 67
)

// TimelockRestriction requires the member to assert the seconds passed
// since the coin was created.
func TimelockRestriction(lib puzzles.Library, seconds uint64) Restriction {
	return Restriction{
		Kind:       MemberCondition,
		PuzzleHash: clvm.CurryTreeHash(lib.MustHash(puzzles.Timelock), atomHash(clvm.EncodeUint64(seconds))),
	}
}

// Force1of2Restriction forces the delegated puzzle to recreate the vault
// as a 1 of 2 whose left side is fixed and whose right side is a member
// with the nonce and validator lists.
func Force1of2Restriction(lib puzzles.Library, leftSideSubtreeHash clvm.Bytes32, nonce uint64, memberValidatorListHash clvm.Bytes32, delegatedValidatorListHash clvm.Bytes32) Restriction {
	return Restriction{
		Kind: DelegatedPuzzleWrapper,
		PuzzleHash: clvm.CurryTreeHash(lib.MustHash(puzzles.Force1of2RestrictedVariable),
			atomHash(leftSideSubtreeHash[:]),
			atomHash(clvm.EncodeUint64(nonce)),
			atomHash(memberValidatorListHash[:]),
			atomHash(delegatedValidatorListHash[:]),
		),
	}
}

// PreventConditionOpcodeRestriction prevents the delegated puzzle from
// emitting conditions with the opcode.
func PreventConditionOpcodeRestriction(lib puzzles.Library, opcode uint16) Restriction {
	return Restriction{
		Kind:       DelegatedPuzzleWrapper,
		PuzzleHash: clvm.CurryTreeHash(lib.MustHash(puzzles.PreventConditionOpcode), atomHash(clvm.EncodeUint64(uint64(opcode)))),
	}
}

// PreventMultipleCreateCoinsRestriction prevents the delegated puzzle from
// creating more than one coin.
func PreventMultipleCreateCoinsRestriction(lib puzzles.Library) Restriction {
	return Restriction{
		Kind:       DelegatedPuzzleWrapper,
		PuzzleHash: lib.MustHash(puzzles.PreventMultipleCreateCoins),
	}
}

// PreventVaultSideEffectsRestrictions keeps the delegated puzzle from
// announcing, messaging, or creating more than the vault child.
func PreventVaultSideEffectsRestrictions(lib puzzles.Library) []Restriction {
	return []Restriction{
		PreventConditionOpcodeRestriction(lib, opCreateCoinAnnouncement),
		PreventConditionOpcodeRestriction(lib, opCreatePuzzleAnnouncement),
		PreventConditionOpcodeRestriction(lib, opSendMessage),
		PreventConditionOpcodeRestriction(lib, opReceiveMessage),
		PreventMultipleCreateCoinsRestriction(lib),
	}
}

// WrappedDelegatedPuzzleHash returns the hash of the delegated puzzle once
// every wrapper restriction has wrapped it, the first restriction being
// the outermost wrapper.
func WrappedDelegatedPuzzleHash(lib puzzles.Library, restrictions []Restriction, delegatedPuzzleHash clvm.Bytes32) clvm.Bytes32 {
	h := delegatedPuzzleHash
	for i := len(restrictions) - 1; i >= 0; i-- {
		if restrictions[i].Kind != DelegatedPuzzleWrapper {
			continue
		}
		h = clvm.CurryTreeHash(lib.MustHash(puzzles.AddDelegatedPuzzleWrapper), restrictions[i].PuzzleHash, h)
	}

	return h
}

// =============================================================================

// enforceWrappersHash returns the hash of the validator that checks the
// delegated puzzle is wrapped by the wrappers, outermost first.
func enforceWrappersHash(lib puzzles.Library, wrappers []clvm.Bytes32) clvm.Bytes32 {
	items := make([]clvm.Bytes32, len(wrappers))
	for i, w := range wrappers {
		items[i] = atomHash(w[:])
	}

	quoted := quotedModHash(lib.MustHash(puzzles.AddDelegatedPuzzleWrapper))
	return clvm.CurryTreeHash(lib.MustHash(puzzles.EnforceDelegatedPuzzleWrappers), atomHash(quoted[:]), listHash(items))
}

// enforceWrappers builds the validator that checks the delegated puzzle is
// wrapped by the wrappers, outermost first.
func enforceWrappers(ctx *driver.SpendContext, wrappers []clvm.Bytes32) (clvm.NodePtr, error) {
	items := make([]clvm.NodePtr, len(wrappers))
	for i, w := range wrappers {
		items[i] = ctx.NewBytes32(w)
	}

	quoted := quotedModHash(ctx.Library().MustHash(puzzles.AddDelegatedPuzzleWrapper))
	return ctx.Curry(puzzles.EnforceDelegatedPuzzleWrappers, ctx.NewBytes32(quoted), ctx.List(items...))
}

// quotedModHash returns the tree hash of (q . mod_hash), which is what the
// wrapper enforcer curries the wrapper mod into.
func quotedModHash(modHash clvm.Bytes32) clvm.Bytes32 {
	return clvm.TreeHashPair(clvm.TreeHashAtom([]byte{1}), clvm.TreeHashAtom(modHash[:]))
}

// atomHash returns the tree hash of an atom.
func atomHash(b []byte) clvm.Bytes32 {
	return clvm.TreeHashAtom(b)
}

// listHash returns the tree hash of a list whose items have the hashes.
func listHash(items []clvm.Bytes32) clvm.Bytes32 {
	h := clvm.TreeHashAtom(nil)
	for i := len(items) - 1; i >= 0; i-- {
		h = clvm.TreeHashPair(items[i], h)
	}
	return h
}
