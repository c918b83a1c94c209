package mips

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/merkle"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/signature"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Set of error variables for building authority spends.
var (
	ErrMissingSubpathSpend            = errors.New("missing subpath spend")
	ErrInvalidSubpathSpendCount       = errors.New("invalid subpath spend count")
	ErrDelegatedPuzzleWrapperConflict = errors.New("delegated puzzle wrapper conflict")
	ErrUnknownMember                  = errors.New("unknown member kind")
	ErrInvalidThreshold               = errors.New("invalid threshold")
	ErrDuplicateMember                = errors.New("duplicate member")
	ErrChallengeMismatch              = errors.New("passkey challenge mismatch")
)

// node is a registered node of the tree: a concrete member spend or an
// M of N over other nodes.
type node struct {
	cfg   MemberConfig
	spend driver.Spend
	mofn  *MofN
}

// MipsSpend collects the spends of the members that participate and the
// restrictions they are subject to, then resolves them into the spend of
// the custody puzzle. Members are keyed by their member puzzle hash and
// restrictions by their puzzle hash.
type MipsSpend struct {
	Coin      database.Coin
	Delegated driver.Spend

	signedHash   clvm.Bytes32
	members      map[clvm.Bytes32]node
	restrictions map[clvm.Bytes32]driver.Spend
}

// NewMipsSpend constructs the spend of the coin that runs the delegated
// spend. The wrappers are the delegated puzzle wrapper restrictions the
// root path applies, outermost first, so members sign the wrapped hash.
func NewMipsSpend(ctx *driver.SpendContext, coin database.Coin, delegated driver.Spend, wrappers ...Restriction) *MipsSpend {
	return &MipsSpend{
		Coin:         coin,
		Delegated:    delegated,
		signedHash:   WrappedDelegatedPuzzleHash(ctx.Library(), wrappers, ctx.TreeHash(delegated.Puzzle)),
		members:      make(map[clvm.Bytes32]node),
		restrictions: make(map[clvm.Bytes32]driver.Spend),
	}
}

// Message returns the message members sign. Fast forward members bind to
// the puzzle hash of the coin, the others to its coin id.
func (ms *MipsSpend) Message(fastForward bool) [32]byte {
	if fastForward {
		return signature.Message(ms.signedHash, ms.Coin.PuzzleHash)
	}
	return signature.Message(ms.signedHash, ms.Coin.CoinID())
}

// =============================================================================

// AddMofN registers an M of N node over the child member hashes and
// returns its member puzzle hash.
func (ms *MipsSpend) AddMofN(lib puzzles.Library, cfg MemberConfig, required int, items []clvm.Bytes32) (clvm.Bytes32, error) {
	m, err := NewMofN(required, items)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	hash := MemberPuzzleHash(lib, cfg, m.InnerPuzzleHash(lib))
	ms.members[hash] = node{cfg: cfg, mofn: &m}

	return hash, nil
}

// AddK1 verifies the secp256k1 signature and registers the member.
func (ms *MipsSpend) AddK1(ctx *driver.SpendContext, cfg MemberConfig, publicKey []byte, sig []byte, fastForward bool) (clvm.Bytes32, error) {
	if err := signature.VerifyK1(publicKey, ms.Message(fastForward), sig); err != nil {
		return clvm.Bytes32{}, fmt.Errorf("k1 member: %w", err)
	}

	return ms.addSigned(ctx, cfg, K1Member(publicKey, fastForward), sig)
}

// AddR1 verifies the secp256r1 signature and registers the member.
func (ms *MipsSpend) AddR1(ctx *driver.SpendContext, cfg MemberConfig, publicKey []byte, sig []byte, fastForward bool) (clvm.Bytes32, error) {
	if err := signature.VerifyR1(publicKey, ms.Message(fastForward), sig); err != nil {
		return clvm.Bytes32{}, fmt.Errorf("r1 member: %w", err)
	}

	return ms.addSigned(ctx, cfg, R1Member(publicKey, fastForward), sig)
}

// PasskeyAssertion is what a browser returns for a passkey signature.
type PasskeyAssertion struct {
	AuthenticatorData []byte
	ClientDataJSON    []byte
	ChallengeIndex    int
	Signature         []byte
}

// AddPasskey verifies the assertion and registers the passkey member. The
// client data must carry the challenge for the message at the index.
func (ms *MipsSpend) AddPasskey(ctx *driver.SpendContext, cfg MemberConfig, genesisChallenge clvm.Bytes32, publicKey []byte, pa PasskeyAssertion, fastForward bool) (clvm.Bytes32, error) {
	challenge := signature.PasskeyChallenge(ms.Message(fastForward))
	if pa.ChallengeIndex < 0 || pa.ChallengeIndex > len(pa.ClientDataJSON) || !bytes.HasPrefix(pa.ClientDataJSON[pa.ChallengeIndex:], []byte(challenge)) {
		return clvm.Bytes32{}, ErrChallengeMismatch
	}

	msg := signature.PasskeyMessage(pa.AuthenticatorData, pa.ClientDataJSON)
	if err := signature.VerifyR1(publicKey, msg, pa.Signature); err != nil {
		return clvm.Bytes32{}, fmt.Errorf("passkey member: %w", err)
	}

	m := PasskeyMember(genesisChallenge, publicKey, fastForward)
	puzzle, err := m.Puzzle(ctx)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	solution := ctx.List(
		ctx.NewAtom(pa.AuthenticatorData),
		ctx.NewAtom(pa.ClientDataJSON),
		ctx.NewUint64(uint64(pa.ChallengeIndex)),
		ctx.NewAtom(pa.Signature),
		ctx.NewBytes32(ms.binding(fastForward)),
	)

	return ms.addLeaf(ctx, cfg, puzzle, solution)
}

// AddBls registers a BLS member. Its signature is aggregated with the
// transaction so the solution is empty.
func (ms *MipsSpend) AddBls(ctx *driver.SpendContext, cfg MemberConfig, publicKey []byte) (clvm.Bytes32, error) {
	puzzle, err := BlsMember(publicKey).Puzzle(ctx)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	return ms.addLeaf(ctx, cfg, puzzle, clvm.Nil)
}

// AddSingleton registers a member that delegates to a singleton. The
// singleton must send the delegated puzzle hash as a message in the same
// transaction.
func (ms *MipsSpend) AddSingleton(ctx *driver.SpendContext, cfg MemberConfig, launcherID clvm.Bytes32, singletonInnerPuzzleHash clvm.Bytes32, singletonAmount uint64) (clvm.Bytes32, error) {
	puzzle, err := SingletonAuthority(launcherID).Puzzle(ctx)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	solution := ctx.List(ctx.NewBytes32(singletonInnerPuzzleHash), ctx.NewUint64(singletonAmount))
	return ms.addLeaf(ctx, cfg, puzzle, solution)
}

// AddFixedPuzzle registers a member that only authorizes the delegated
// puzzle with the hash.
func (ms *MipsSpend) AddFixedPuzzle(ctx *driver.SpendContext, cfg MemberConfig, puzzleHash clvm.Bytes32) (clvm.Bytes32, error) {
	puzzle, err := FixedPuzzleAuthority(puzzleHash).Puzzle(ctx)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	return ms.addLeaf(ctx, cfg, puzzle, clvm.Nil)
}

// AddCustom registers an arbitrary member spend.
func (ms *MipsSpend) AddCustom(ctx *driver.SpendContext, cfg MemberConfig, spend driver.Spend) (clvm.Bytes32, error) {
	return ms.addLeaf(ctx, cfg, spend.Puzzle, spend.Solution)
}

func (ms *MipsSpend) addSigned(ctx *driver.SpendContext, cfg MemberConfig, m Member, sig []byte) (clvm.Bytes32, error) {
	puzzle, err := m.Puzzle(ctx)
	if err != nil {
		return clvm.Bytes32{}, err
	}

	solution := ctx.List(ctx.NewBytes32(ms.binding(m.Kind.FastForward())), ctx.NewAtom(sig))
	return ms.addLeaf(ctx, cfg, puzzle, solution)
}

func (ms *MipsSpend) addLeaf(ctx *driver.SpendContext, cfg MemberConfig, puzzle clvm.NodePtr, solution clvm.NodePtr) (clvm.Bytes32, error) {
	hash := MemberPuzzleHash(ctx.Library(), cfg, ctx.TreeHash(puzzle))
	ms.members[hash] = node{cfg: cfg, spend: driver.NewSpend(puzzle, solution)}

	ctx.Event("mips: member: hash[%s] nonce[%d] restrictions[%d]", hash, cfg.Nonce, len(cfg.Restrictions))

	return hash, nil
}

func (ms *MipsSpend) binding(fastForward bool) clvm.Bytes32 {
	if fastForward {
		return ms.Coin.PuzzleHash
	}
	return ms.Coin.CoinID()
}

// =============================================================================

// AddTimelock registers the spend of a timelock restriction.
func (ms *MipsSpend) AddTimelock(ctx *driver.SpendContext, seconds uint64) error {
	puzzle, err := ctx.Curry(puzzles.Timelock, ctx.NewUint64(seconds))
	if err != nil {
		return err
	}

	return ms.addRestriction(ctx, TimelockRestriction(ctx.Library(), seconds), puzzle, clvm.Nil)
}

// AddForce1of2 registers the spend of a force 1 of 2 restriction that
// recreates the vault with the new right side member.
func (ms *MipsSpend) AddForce1of2(ctx *driver.SpendContext, leftSideSubtreeHash clvm.Bytes32, nonce uint64, memberValidatorListHash clvm.Bytes32, delegatedValidatorListHash clvm.Bytes32, newRightSideMemberHash clvm.Bytes32) error {
	puzzle, err := ctx.Curry(puzzles.Force1of2RestrictedVariable,
		ctx.NewBytes32(leftSideSubtreeHash),
		ctx.NewUint64(nonce),
		ctx.NewBytes32(memberValidatorListHash),
		ctx.NewBytes32(delegatedValidatorListHash),
	)
	if err != nil {
		return err
	}

	r := Force1of2Restriction(ctx.Library(), leftSideSubtreeHash, nonce, memberValidatorListHash, delegatedValidatorListHash)
	return ms.addRestriction(ctx, r, puzzle, ctx.List(ctx.NewBytes32(newRightSideMemberHash)))
}

// AddPreventConditionOpcode registers the spend of a restriction that
// prevents the opcode.
func (ms *MipsSpend) AddPreventConditionOpcode(ctx *driver.SpendContext, opcode uint16) error {
	puzzle, err := ctx.Curry(puzzles.PreventConditionOpcode, ctx.NewUint64(uint64(opcode)))
	if err != nil {
		return err
	}

	return ms.addRestriction(ctx, PreventConditionOpcodeRestriction(ctx.Library(), opcode), puzzle, clvm.Nil)
}

// AddPreventMultipleCreateCoins registers the spend of a restriction that
// prevents more than one created coin.
func (ms *MipsSpend) AddPreventMultipleCreateCoins(ctx *driver.SpendContext) error {
	puzzle, err := ctx.Puzzle(puzzles.PreventMultipleCreateCoins)
	if err != nil {
		return err
	}

	return ms.addRestriction(ctx, PreventMultipleCreateCoinsRestriction(ctx.Library()), puzzle, clvm.Nil)
}

// AddPreventVaultSideEffects registers the spends of every restriction in
// PreventVaultSideEffectsRestrictions.
func (ms *MipsSpend) AddPreventVaultSideEffects(ctx *driver.SpendContext) error {
	for _, op := range []uint16{opCreateCoinAnnouncement, opCreatePuzzleAnnouncement, opSendMessage, opReceiveMessage} {
		if err := ms.AddPreventConditionOpcode(ctx, op); err != nil {
			return err
		}
	}

	return ms.AddPreventMultipleCreateCoins(ctx)
}

// AddRestrictionSpend registers the spend of an arbitrary restriction.
func (ms *MipsSpend) AddRestrictionSpend(ctx *driver.SpendContext, spend driver.Spend) {
	ms.restrictions[ctx.TreeHash(spend.Puzzle)] = spend
}

func (ms *MipsSpend) addRestriction(ctx *driver.SpendContext, r Restriction, puzzle clvm.NodePtr, solution clvm.NodePtr) error {
	if h := ctx.TreeHash(puzzle); h != r.PuzzleHash {
		return fmt.Errorf("restriction %s: hash[%s] exp[%s]: %w", r.Kind, h, r.PuzzleHash, driver.ErrNonStandardLayer)
	}

	ms.restrictions[r.PuzzleHash] = driver.NewSpend(puzzle, solution)
	return nil
}

// =============================================================================

// Spend resolves the tree under the custody hash into the spend of the
// custody puzzle. Every node the resolution reaches must be registered.
func (ms *MipsSpend) Spend(ctx *driver.SpendContext, custodyHash clvm.Bytes32) (driver.Spend, error) {
	var wrappers []clvm.Bytes32

	spend, err := ms.resolve(ctx, custodyHash, &wrappers, true)
	if err != nil {
		return driver.Spend{}, err
	}

	ctx.Event("mips: spend: coin[%s] custody[%s] wrappers[%d]", ms.Coin.CoinID(), custodyHash, len(wrappers))

	return spend, nil
}

func (ms *MipsSpend) resolve(ctx *driver.SpendContext, hash clvm.Bytes32, wrappers *[]clvm.Bytes32, topLevel bool) (driver.Spend, error) {
	n, exists := ms.members[hash]
	if !exists {
		return driver.Spend{}, fmt.Errorf("member %s: %w", hash, ErrMissingSubpathSpend)
	}

	result := n.spend
	if n.mofn != nil {
		var err error
		if result, err = ms.resolveMofN(ctx, *n.mofn, wrappers); err != nil {
			return driver.Spend{}, err
		}
	}

	if len(n.cfg.Restrictions) > 0 {
		var err error
		if result, err = ms.restrict(ctx, n.cfg.Restrictions, result, wrappers); err != nil {
			return driver.Spend{}, err
		}
	}

	if topLevel {
		puzzle, err := ctx.Curry(puzzles.DelegatedFeeder, result.Puzzle)
		if err != nil {
			return driver.Spend{}, err
		}

		delegated := ms.Delegated
		for i := len(*wrappers) - 1; i >= 0; i-- {
			w, exists := ms.restrictions[(*wrappers)[i]]
			if !exists {
				return driver.Spend{}, fmt.Errorf("wrapper %s: %w", (*wrappers)[i], ErrMissingSubpathSpend)
			}

			wrapped, err := ctx.Curry(puzzles.AddDelegatedPuzzleWrapper, w.Puzzle, delegated.Puzzle)
			if err != nil {
				return driver.Spend{}, err
			}
			delegated = driver.NewSpend(wrapped, ctx.List(w.Solution, delegated.Solution))
		}

		result = driver.NewSpend(puzzle, ctx.List(delegated.Puzzle, delegated.Solution, result.Solution))
	}

	puzzle, err := ctx.Curry(puzzles.IndexWrapper, ctx.NewUint64(n.cfg.Nonce), result.Puzzle)
	if err != nil {
		return driver.Spend{}, err
	}

	return driver.NewSpend(puzzle, result.Solution), nil
}

// restrict wraps the spend in the restrictions puzzle, recording the
// wrapper restrictions on the shared stack. Every path that applies
// wrappers must agree on the stack.
func (ms *MipsSpend) restrict(ctx *driver.SpendContext, restrictions []Restriction, inner driver.Spend, wrappers *[]clvm.Bytes32) (driver.Spend, error) {
	var memberValidators, memberSolutions []clvm.NodePtr
	var delegatedValidators, delegatedSolutions []clvm.NodePtr
	var local []clvm.Bytes32

	for _, r := range restrictions {
		if r.Kind == DelegatedPuzzleWrapper {
			local = append(local, r.PuzzleHash)
			continue
		}

		rs, exists := ms.restrictions[r.PuzzleHash]
		if !exists {
			return driver.Spend{}, fmt.Errorf("restriction %s: %w", r.PuzzleHash, ErrMissingSubpathSpend)
		}

		switch r.Kind {
		case MemberCondition:
			memberValidators = append(memberValidators, rs.Puzzle)
			memberSolutions = append(memberSolutions, rs.Solution)
		case DelegatedPuzzleHash:
			delegatedValidators = append(delegatedValidators, rs.Puzzle)
			delegatedSolutions = append(delegatedSolutions, rs.Solution)
		}
	}

	for i, w := range local {
		switch {
		case i >= len(*wrappers):
			*wrappers = append(*wrappers, w)
		case (*wrappers)[i] != w:
			return driver.Spend{}, ErrDelegatedPuzzleWrapperConflict
		}
	}

	if len(local) > 0 {
		enforcer, err := enforceWrappers(ctx, local)
		if err != nil {
			return driver.Spend{}, err
		}
		delegatedValidators = append(delegatedValidators, enforcer)
		delegatedSolutions = append(delegatedSolutions, ctx.List(ctx.NewBytes32(ctx.TreeHash(ms.Delegated.Puzzle))))
	}

	puzzle, err := ctx.Curry(puzzles.Restrictions, ctx.List(memberValidators...), ctx.List(delegatedValidators...), inner.Puzzle)
	if err != nil {
		return driver.Spend{}, err
	}

	solution := ctx.List(ctx.List(memberSolutions...), ctx.List(delegatedSolutions...), inner.Solution)

	return driver.NewSpend(puzzle, solution), nil
}

// resolveMofN resolves the children of an M of N node. One of N proves the
// first registered child, N of N needs every child, and M of N reveals the
// registered children and hides the rest.
func (ms *MipsSpend) resolveMofN(ctx *driver.SpendContext, m MofN, wrappers *[]clvm.Bytes32) (driver.Spend, error) {
	switch m.Required {
	case 1:
		for _, item := range m.Items {
			if _, exists := ms.members[item]; !exists {
				continue
			}

			child, err := ms.resolve(ctx, item, wrappers, false)
			if err != nil {
				return driver.Spend{}, err
			}

			tree := merkle.NewHashTree(m.Items)
			proof, ok := merkle.ProofOf(tree, item)
			if !ok {
				return driver.Spend{}, fmt.Errorf("member %s: %w", item, ErrMissingSubpathSpend)
			}

			proofNode, err := ctx.Alloc(proof)
			if err != nil {
				return driver.Spend{}, err
			}

			puzzle, err := ctx.Curry(puzzles.OneOfN, ctx.NewBytes32(tree.Root32()))
			if err != nil {
				return driver.Spend{}, err
			}

			return driver.NewSpend(puzzle, ctx.List(proofNode, child.Puzzle, child.Solution)), nil
		}

		return driver.Spend{}, fmt.Errorf("1 of %d: %w", len(m.Items), ErrMissingSubpathSpend)

	case len(m.Items):
		puzzleNodes := make([]clvm.NodePtr, len(m.Items))
		solutions := make([]clvm.NodePtr, len(m.Items))

		for i, item := range m.Items {
			child, err := ms.resolve(ctx, item, wrappers, false)
			if err != nil {
				return driver.Spend{}, err
			}
			puzzleNodes[i] = child.Puzzle
			solutions[i] = child.Solution
		}

		puzzle, err := ctx.Curry(puzzles.NofN, ctx.List(puzzleNodes...))
		if err != nil {
			return driver.Spend{}, err
		}

		return driver.NewSpend(puzzle, ctx.List(ctx.List(solutions...))), nil

	default:
		children := make(map[int]driver.Spend)
		for i, item := range m.Items {
			if _, exists := ms.members[item]; !exists {
				continue
			}

			child, err := ms.resolve(ctx, item, wrappers, false)
			if err != nil {
				return driver.Spend{}, err
			}
			children[i] = child
		}

		if len(children) < m.Required {
			return driver.Spend{}, fmt.Errorf("%d of %d: have %d: %w", m.Required, len(m.Items), len(children), ErrInvalidSubpathSpendCount)
		}

		proof := merkle.Reveal(ctx.Allocator, m.Items, func(i int) (clvm.NodePtr, bool) {
			child, exists := children[i]
			if !exists {
				return clvm.Nil, false
			}
			return ctx.Cons(clvm.Nil, ctx.Cons(child.Puzzle, child.Solution)), true
		})

		root := merkle.NewHashTree(m.Items).Root32()
		puzzle, err := ctx.Curry(puzzles.MofN, ctx.NewUint64(uint64(m.Required)), ctx.NewBytes32(root))
		if err != nil {
			return driver.Spend{}, err
		}

		return driver.NewSpend(puzzle, ctx.List(proof)), nil
	}
}
