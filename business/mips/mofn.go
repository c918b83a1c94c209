package mips

import (
	"slices"

	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/merkle"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// MofN requires Required of the Items to authorize a spend. Items are the
// member puzzle hashes of the children and are kept sorted ascending.
type MofN struct {
	Required int
	Items    []clvm.Bytes32
}

// NewMofN constructs an M of N node over the child hashes. The order the
// hashes are passed in does not affect the puzzle hash.
func NewMofN(required int, items []clvm.Bytes32) (MofN, error) {
	if required < 1 || required > len(items) {
		return MofN{}, ErrInvalidThreshold
	}

	sorted := slices.Clone(items)
	slices.SortFunc(sorted, clvm.Bytes32.Compare)

	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return MofN{}, ErrDuplicateMember
		}
	}

	return MofN{Required: required, Items: sorted}, nil
}

// InnerPuzzleHash returns the hash of the combinator puzzle. One of N and
// M of N commit to the merkle root of the items, N of N lists them.
func (m MofN) InnerPuzzleHash(lib puzzles.Library) clvm.Bytes32 {
	switch m.Required {
	case 1:
		root := merkle.NewHashTree(m.Items).Root32()
		return clvm.CurryTreeHash(lib.MustHash(puzzles.OneOfN), atomHash(root[:]))

	case len(m.Items):
		return clvm.CurryTreeHash(lib.MustHash(puzzles.NofN), listHash(m.Items))

	default:
		root := merkle.NewHashTree(m.Items).Root32()
		return clvm.CurryTreeHash(lib.MustHash(puzzles.MofN), atomHash(clvm.EncodeUint64(uint64(m.Required))), atomHash(root[:]))
	}
}

// Contains reports whether the hash is one of the items.
func (m MofN) Contains(item clvm.Bytes32) bool {
	_, found := slices.BinarySearchFunc(m.Items, item, clvm.Bytes32.Compare)
	return found
}
