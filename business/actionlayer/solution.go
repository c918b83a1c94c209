package actionlayer

import (
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/merkle"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// firstSelector selects the first puzzle of the puzzles list. Every
// following puzzle is selected by next*2+1.
const firstSelector = 2

// Solution is what the spender supplies to run a sequence of actions.
// ActionHashes is the full whitelist the merkle root commits to, in the
// order it was built with.
type Solution struct {
	ActionHashes      []clvm.Bytes32
	Actions           []driver.Spend
	FinalizerSolution clvm.NodePtr
}

// ParsedSolution is a decoded action layer solution. Selectors, Proofs and
// Actions are in the order the actions run. An action that repeats a
// puzzle shares the proof of its first appearance.
type ParsedSolution struct {
	Puzzles           []clvm.NodePtr
	Selectors         []uint32
	Proofs            []merkle.Proof
	Actions           []driver.Spend
	FinalizerSolution clvm.NodePtr
}

// ConstructSolution implements the driver.SolutionLayer interface. The
// solution is (puzzles selectors_and_proofs solutions finalizer_solution).
// Each distinct action puzzle is listed once and picked by its selector.
// The selector entries run from the last action to the first and only the
// first entry of a selector carries its merkle proof.
func (l ActionLayer[S]) ConstructSolution(ctx *driver.SpendContext, sol Solution) (clvm.NodePtr, error) {
	if len(sol.ActionHashes) == 0 {
		return clvm.Nil, ErrNoActions
	}

	tree := merkle.NewHashTree(sol.ActionHashes)
	if root := tree.Root32(); root != l.MerkleRoot {
		return clvm.Nil, fmt.Errorf("whitelist root[%s] layer root[%s]: %w", root, l.MerkleRoot, driver.ErrInvalidMerkleProof)
	}

	type selected struct {
		selector uint32
		proof    merkle.Proof
	}

	bySelector := make(map[clvm.Bytes32]selected)
	next := uint32(firstSelector)

	var puzzles []clvm.NodePtr
	picks := make([]selected, len(sol.Actions))
	solutions := make([]clvm.NodePtr, len(sol.Actions))

	for i, action := range sol.Actions {
		h := ctx.TreeHash(action.Puzzle)

		pick, exists := bySelector[h]
		if !exists {
			proof, ok := merkle.ProofOf(tree, h)
			if !ok {
				return clvm.Nil, fmt.Errorf("action[%d] puzzle[%s]: %w", i, h, ErrUnknownAction)
			}

			pick = selected{selector: next, proof: proof}
			bySelector[h] = pick
			puzzles = append(puzzles, action.Puzzle)
			next = next*2 + 1
		}

		picks[i] = pick
		solutions[i] = action.Solution
	}

	proven := make(map[uint32]bool)
	entries := make([]clvm.NodePtr, 0, len(picks))
	for i := len(picks) - 1; i >= 0; i-- {
		pick := picks[i]

		proof := clvm.Nil
		if !proven[pick.selector] {
			n, err := pick.proof.ToClvm(ctx.Allocator)
			if err != nil {
				return clvm.Nil, err
			}
			proof = n
			proven[pick.selector] = true
		}

		entries = append(entries, ctx.Cons(ctx.NewUint64(uint64(pick.selector)), proof))
	}

	return ctx.List(ctx.List(puzzles...), ctx.List(entries...), ctx.List(solutions...), sol.FinalizerSolution), nil
}

// ParseSolution decodes an action layer solution and resolves every
// selector to its puzzle and proof.
func ParseSolution(a *clvm.Allocator, n clvm.NodePtr) (ParsedSolution, error) {
	items, _, err := a.Items(n, 4)
	if err != nil {
		return ParsedSolution{}, driver.NonStandard("action layer solution", err)
	}

	puzzles, err := a.ListItems(items[0])
	if err != nil {
		return ParsedSolution{}, driver.NonStandard("action layer puzzles", err)
	}

	entries, err := a.ListItems(items[1])
	if err != nil {
		return ParsedSolution{}, driver.NonStandard("action layer selectors", err)
	}

	solutions, err := a.ListItems(items[2])
	if err != nil {
		return ParsedSolution{}, driver.NonStandard("action layer solutions", err)
	}

	if len(entries) != len(solutions) {
		return ParsedSolution{}, driver.NonStandard("action layer solution", fmt.Errorf("selectors[%d] solutions[%d]", len(entries), len(solutions)))
	}

	count := len(entries)
	ps := ParsedSolution{
		Puzzles:           puzzles,
		Selectors:         make([]uint32, count),
		Proofs:            make([]merkle.Proof, count),
		Actions:           make([]driver.Spend, count),
		FinalizerSolution: items[3],
	}

	proofs := make(map[uint32]merkle.Proof)
	for i, entry := range entries {
		selNode, proofNode, ok := a.Pair(entry)
		if !ok {
			return ParsedSolution{}, driver.NonStandard("action layer selector", clvm.ErrPairExpected)
		}

		sel, err := a.Uint32(selNode)
		if err != nil {
			return ParsedSolution{}, driver.NonStandard("action layer selector", err)
		}

		idx, err := selectorIndex(sel)
		if err != nil || idx >= len(puzzles) {
			return ParsedSolution{}, fmt.Errorf("selector[%d]: %w", sel, ErrBadSelector)
		}

		proof, proven := proofs[sel]
		switch {
		case !a.IsNil(proofNode):
			if proof, err = clvm.Decode[merkle.Proof](a, proofNode); err != nil {
				return ParsedSolution{}, fmt.Errorf("selector[%d]: %w: %w", sel, driver.ErrInvalidMerkleProof, err)
			}
			proofs[sel] = proof

		case !proven:
			return ParsedSolution{}, fmt.Errorf("selector[%d] not proven: %w", sel, driver.ErrInvalidMerkleProof)
		}

		// Entries run from the last action to the first.
		at := count - 1 - i
		ps.Selectors[at] = sel
		ps.Proofs[at] = proof
		ps.Actions[at] = driver.NewSpend(puzzles[idx], solutions[at])
	}

	return ps, nil
}

// Verify checks that the proof of every action links its puzzle hash to
// the merkle root.
func (ps ParsedSolution) Verify(a *clvm.Allocator, root clvm.Bytes32) error {
	checked := make(map[uint32]bool)

	for i, action := range ps.Actions {
		sel := ps.Selectors[i]
		if checked[sel] {
			continue
		}

		h := a.TreeHash(action.Puzzle)
		if !ps.Proofs[i].Verify(h, root) {
			return fmt.Errorf("action[%d] selector[%d] puzzle[%s]: %w", i, sel, h, driver.ErrInvalidMerkleProof)
		}
		checked[sel] = true
	}

	return nil
}

// selectorIndex returns the index into the puzzles list a selector points
// at. Only selectors of the 2, 5, 11, 23 sequence are valid.
func selectorIndex(sel uint32) (int, error) {
	idx := 0
	for s := uint32(firstSelector); s != sel; s = s*2 + 1 {
		if s > sel/2 {
			return 0, ErrBadSelector
		}
		idx++
	}

	return idx, nil
}

var (
	_ driver.Parser[ActionLayer[clvm.Raw]]  = Parse[clvm.Raw]
	_ driver.SolutionParser[ParsedSolution] = ParseSolution
)
