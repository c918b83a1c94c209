package mips_test

import (
	"crypto/ecdsa"
	"errors"
	"strings"
	"testing"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/mips"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/signature"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func filled(b byte) clvm.Bytes32 {
	var h clvm.Bytes32
	for i := range h {
		h[i] = b
	}
	return h
}

func newContext() *driver.SpendContext {
	return driver.New(driver.Config{Library: puzzles.Default().WithStandIns()})
}

type user struct {
	key  *ecdsa.PrivateKey
	pub  []byte
	hash clvm.Bytes32
}

func newUser(t *testing.T, lib puzzles.Library) user {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}

	pub := signature.K1PublicKey(key)
	inner, err := mips.K1Member(pub, false).InnerPuzzleHash(lib)
	if err != nil {
		t.Fatalf("Should be able to hash the member: %s", err)
	}

	return user{key: key, pub: pub, hash: mips.MemberPuzzleHash(lib, mips.MemberConfig{}, inner)}
}

func (u user) sign(t *testing.T, ctx *driver.SpendContext, ms *mips.MipsSpend) {
	sig, err := signature.SignK1(ms.Message(false), u.key)
	if err != nil {
		t.Fatalf("Should be able to sign: %s", err)
	}

	h, err := ms.AddK1(ctx, mips.MemberConfig{}, u.pub, sig, false)
	if err != nil {
		t.Fatalf("Should be able to add the signer: %s", err)
	}
	if h != u.hash {
		t.Fatalf("Should register the signer under its member hash: got %s exp %s", h, u.hash)
	}
}

func custody(t *testing.T, lib puzzles.Library, required int, items ...clvm.Bytes32) clvm.Bytes32 {
	m, err := mips.NewMofN(required, items)
	if err != nil {
		t.Fatalf("Should be able to build %d of %d: %s", required, len(items), err)
	}
	return mips.MemberPuzzleHash(lib, mips.MemberConfig{}.Root(), m.InnerPuzzleHash(lib))
}

// =============================================================================

func Test_MemberHash(t *testing.T) {
	t.Log("Given the need to content address authority trees.")
	{
		lib := puzzles.Default().WithStandIns()
		a, b, c := filled(1), filled(2), filled(3)

		testID := 0
		t.Logf("\tTest %d:\tWhen building the same M of N in different orders.", testID)
		{
			m1, err1 := mips.NewMofN(2, []clvm.Bytes32{c, a, b})
			m2, err2 := mips.NewMofN(2, []clvm.Bytes32{b, c, a})
			if err1 != nil || err2 != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the nodes: %v %v", failed, testID, err1, err2)
			}

			if m1.InnerPuzzleHash(lib) != m2.InnerPuzzleHash(lib) {
				t.Logf("\t\tTest %d:\tgot: %s", testID, spew.Sdump(m1.Items))
				t.Logf("\t\tTest %d:\texp: %s", testID, spew.Sdump(m2.Items))
				t.Fatalf("\t%s\tTest %d:\tShould hash the same regardless of order.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould hash the same regardless of order.", success, testID)

			if !m1.Contains(b) || m1.Contains(filled(4)) {
				t.Fatalf("\t%s\tTest %d:\tShould know its items.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould know its items.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the threshold picks the combinator.", testID)
		{
			items := []clvm.Bytes32{a, b, c}
			seen := make(map[clvm.Bytes32]int)
			for required := 1; required <= 3; required++ {
				m, err := mips.NewMofN(required, items)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to build %d of 3: %v", failed, testID, required, err)
				}
				seen[m.InnerPuzzleHash(lib)] = required
			}

			if len(seen) != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould hash every threshold differently.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould hash every threshold differently.", success, testID)

			if _, err := mips.NewMofN(4, items); !errors.Is(err, mips.ErrInvalidThreshold) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a threshold above the count: %v", failed, testID, err)
			}
			if _, err := mips.NewMofN(1, []clvm.Bytes32{a, a}); !errors.Is(err, mips.ErrDuplicateMember) {
				t.Fatalf("\t%s\tTest %d:\tShould reject duplicate members: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject invalid nodes.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the configuration changes.", testID)
		{
			base := mips.MemberPuzzleHash(lib, mips.MemberConfig{}, a)

			configs := []mips.MemberConfig{
				{Nonce: 1},
				{TopLevel: true},
				{Restrictions: []mips.Restriction{mips.TimelockRestriction(lib, 100)}},
				{Restrictions: mips.PreventVaultSideEffectsRestrictions(lib)},
			}

			for i, cfg := range configs {
				if mips.MemberPuzzleHash(lib, cfg, a) == base {
					t.Fatalf("\t%s\tTest %d:\tShould change the hash for config %d.", failed, testID, i)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould change the hash with every setting.", success, testID)

			again := mips.MemberPuzzleHash(lib, mips.MemberConfig{}.WithRestrictions(mips.TimelockRestriction(lib, 100)), a)
			if again != mips.MemberPuzzleHash(lib, configs[2], a) {
				t.Fatalf("\t%s\tTest %d:\tShould hash equal configs equally.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould hash equal configs equally.", success, testID)
		}
	}
}

func Test_Rekey(t *testing.T) {
	t.Log("Given the need to rekey a vault from 1 of 2 to 2 of 3.")
	{
		ctx := newContext()
		lib := ctx.Library()

		u1, u2, u3 := newUser(t, lib), newUser(t, lib), newUser(t, lib)
		custody1 := custody(t, lib, 1, u1.hash, u2.hash)
		custody2 := custody(t, lib, 2, u1.hash, u2.hash, u3.hash)

		vault, conds, err := mips.MintVault(ctx, filled(7), custody1, clvm.Nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mint the vault: %v", failed, err)
		}
		if len(conds) != 2 || vault.Coin.PuzzleHash != layers.SingletonPuzzleHash(lib, vault.LauncherID, custody1) {
			t.Fatalf("\t%s\tShould mint the vault with the custody hash: %s", failed, spew.Sdump(vault))
		}
		t.Logf("\t%s\tShould be able to mint the vault.", success)

		testID := 0
		t.Logf("\tTest %d:\tWhen user1 alone rekeys the 1 of 2.", testID)
		{
			delegated, err := ctx.DelegatedSpend(driver.Conditions{driver.NewCreateCoin(custody2, 1)})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the delegated spend: %v", failed, testID, err)
			}

			ms := mips.NewMipsSpend(ctx, vault.Coin, delegated)
			u1.sign(t, ctx, ms)

			root, err := ms.AddMofN(lib, mips.MemberConfig{}.Root(), 1, []clvm.Bytes32{u1.hash, u2.hash})
			if err != nil || root != custody1 {
				t.Fatalf("\t%s\tTest %d:\tShould register the root under the custody hash: %v", failed, testID, err)
			}

			pending := ctx.Pending()
			if err := vault.Spend(ctx, ms); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to spend the vault: %v", failed, testID, err)
			}
			if ctx.Pending() != pending+1 {
				t.Fatalf("\t%s\tTest %d:\tShould record the vault spend.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to spend the vault.", success, testID)
		}

		vault = vault.Child(lib, custody2, 1)
		if vault.Coin.PuzzleHash != layers.SingletonPuzzleHash(lib, vault.LauncherID, custody2) {
			t.Fatalf("\t%s\tShould derive the rekeyed child.", failed)
		}
		t.Logf("\t%s\tShould derive the rekeyed child.", success)

		spendWith := func(signers ...user) error {
			delegated, err := ctx.DelegatedSpend(driver.Conditions{driver.NewCreateCoin(filled(8), 1)})
			if err != nil {
				return err
			}

			ms := mips.NewMipsSpend(ctx, vault.Coin, delegated)
			for _, u := range signers {
				u.sign(t, ctx, ms)
			}

			if _, err := ms.AddMofN(lib, mips.MemberConfig{}.Root(), 2, []clvm.Bytes32{u1.hash, u2.hash, u3.hash}); err != nil {
				return err
			}

			return vault.Spend(ctx, ms)
		}

		testID++
		t.Logf("\tTest %d:\tWhen user1 alone spends the 2 of 3.", testID)
		{
			if err := spendWith(u1); !errors.Is(err, mips.ErrInvalidSubpathSpendCount) {
				t.Fatalf("\t%s\tTest %d:\tShould fail to authorize with one signer: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fail to authorize with one signer.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen user1 and user2 spend the 2 of 3.", testID)
		{
			if err := spendWith(u1, u2); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould authorize with two signers: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould authorize with two signers.", success, testID)
		}
	}
}

func Test_FastForward(t *testing.T) {
	t.Log("Given the need to bind signatures to a coin or to its puzzle.")
	{
		ctx := newContext()
		lib := ctx.Library()

		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("Should be able to generate a key: %s", err)
		}
		pub := signature.K1PublicKey(key)

		delegated, err := ctx.DelegatedSpend(driver.Conditions{driver.NewCreateCoin(filled(5), 1)})
		if err != nil {
			t.Fatalf("Should be able to build the delegated spend: %s", err)
		}

		coin := database.NewCoin(filled(1), filled(2), 1)
		descendant := database.NewCoin(filled(3), filled(2), 1)

		testID := 0
		t.Logf("\tTest %d:\tWhen signing for the puzzle hash.", testID)
		{
			ms := mips.NewMipsSpend(ctx, coin, delegated)
			sig, err := signature.SignK1(ms.Message(true), key)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to sign: %v", failed, testID, err)
			}

			if _, err := ms.AddK1(ctx, mips.MemberConfig{}, pub, sig, false); !errors.Is(err, signature.ErrInvalidSignature) {
				t.Fatalf("\t%s\tTest %d:\tShould not accept it as a coin id signature: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not accept it as a coin id signature.", success, testID)

			later := mips.NewMipsSpend(ctx, descendant, delegated)
			if _, err := later.AddK1(ctx, mips.MemberConfig{}, pub, sig, true); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept it for a descendant with the same puzzle: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould accept it for a descendant with the same puzzle.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen signing for the coin id.", testID)
		{
			ms := mips.NewMipsSpend(ctx, coin, delegated)
			sig, err := signature.SignK1(ms.Message(false), key)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to sign: %v", failed, testID, err)
			}

			later := mips.NewMipsSpend(ctx, descendant, delegated)
			if _, err := later.AddK1(ctx, mips.MemberConfig{}, pub, sig, false); !errors.Is(err, signature.ErrInvalidSignature) {
				t.Fatalf("\t%s\tTest %d:\tShould not replay on another coin: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not replay on another coin.", success, testID)

			h1, _ := mips.K1Member(pub, false).InnerPuzzleHash(lib)
			h2, _ := mips.K1Member(pub, true).InnerPuzzleHash(lib)
			if h1 == h2 {
				t.Fatalf("\t%s\tTest %d:\tShould use a different puzzle per binding.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould use a different puzzle per binding.", success, testID)
		}
	}
}

func Test_Passkey(t *testing.T) {
	t.Log("Given the need to authorize with a passkey.")
	{
		ctx := newContext()
		lib := ctx.Library()

		key, err := signature.GenerateR1()
		if err != nil {
			t.Fatalf("Should be able to generate a key: %s", err)
		}
		pub := signature.R1PublicKey(key)

		delegated, err := ctx.DelegatedSpend(driver.Conditions{driver.NewCreateCoin(filled(5), 1)})
		if err != nil {
			t.Fatalf("Should be able to build the delegated spend: %s", err)
		}

		coin := database.NewCoin(filled(1), filled(2), 1)
		ms := mips.NewMipsSpend(ctx, coin, delegated)

		challenge := signature.PasskeyChallenge(ms.Message(false))
		client := `{"type":"webauthn.get","challenge":"` + challenge + `","origin":"http://localhost:3000"}`
		authData := []byte{0x49, 0x96, 0x0d, 0xe5, 0x88}

		sig, err := signature.SignR1(signature.PasskeyMessage(authData, []byte(client)), key)
		if err != nil {
			t.Fatalf("Should be able to sign: %s", err)
		}

		pa := mips.PasskeyAssertion{
			AuthenticatorData: authData,
			ClientDataJSON:    []byte(client),
			ChallengeIndex:    strings.Index(client, challenge),
			Signature:         sig,
		}

		testID := 0
		t.Logf("\tTest %d:\tWhen the client data carries the challenge.", testID)
		{
			h, err := ms.AddPasskey(ctx, mips.MemberConfig{}, filled(9), pub, pa, false)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept the assertion: %v", failed, testID, err)
			}

			inner, _ := mips.PasskeyMember(filled(9), pub, false).InnerPuzzleHash(lib)
			if h != mips.MemberPuzzleHash(lib, mips.MemberConfig{}, inner) {
				t.Fatalf("\t%s\tTest %d:\tShould register the member under its hash.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the assertion.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the challenge index is wrong.", testID)
		{
			bad := pa
			bad.ChallengeIndex--

			if _, err := ms.AddPasskey(ctx, mips.MemberConfig{}, filled(9), pub, bad, false); !errors.Is(err, mips.ErrChallengeMismatch) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the assertion: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the assertion.", success, testID)
		}
	}
}

func Test_Restrictions(t *testing.T) {
	t.Log("Given the need to constrain members with restrictions.")
	{
		ctx := newContext()
		lib := ctx.Library()

		delegated, err := ctx.DelegatedSpend(driver.Conditions{driver.NewCreateCoin(filled(5), 1)})
		if err != nil {
			t.Fatalf("Should be able to build the delegated spend: %s", err)
		}
		coin := database.NewCoin(filled(1), filled(2), 1)

		testID := 0
		t.Logf("\tTest %d:\tWhen a timelock guards the root.", testID)
		{
			cfg := mips.MemberConfig{}.Root().WithRestrictions(mips.TimelockRestriction(lib, 3600))

			ms := mips.NewMipsSpend(ctx, coin, delegated)
			root, err := ms.AddFixedPuzzle(ctx, cfg, filled(6))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the member: %v", failed, testID, err)
			}

			if _, err := ms.Spend(ctx, root); !errors.Is(err, mips.ErrMissingSubpathSpend) {
				t.Fatalf("\t%s\tTest %d:\tShould need the timelock spend: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould need the timelock spend.", success, testID)

			if err := ms.AddTimelock(ctx, 3600); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the timelock: %v", failed, testID, err)
			}

			spend, err := ms.Spend(ctx, root)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to spend: %v", failed, testID, err)
			}
			if got := ctx.TreeHash(spend.Puzzle); got != root {
				t.Logf("\t\tTest %d:\tgot: %s", testID, got)
				t.Logf("\t\tTest %d:\texp: %s", testID, root)
				t.Fatalf("\t%s\tTest %d:\tShould build the puzzle the hash commits to.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould build the puzzle the hash commits to.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen side effects are prevented.", testID)
		{
			restrictions := mips.PreventVaultSideEffectsRestrictions(lib)
			cfg := mips.MemberConfig{}.Root().WithRestrictions(restrictions...)

			ms := mips.NewMipsSpend(ctx, coin, delegated, restrictions...)
			root, err := ms.AddFixedPuzzle(ctx, cfg, filled(6))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the member: %v", failed, testID, err)
			}
			if err := ms.AddPreventVaultSideEffects(ctx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the wrappers: %v", failed, testID, err)
			}

			spend, err := ms.Spend(ctx, root)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to spend: %v", failed, testID, err)
			}
			if ctx.TreeHash(spend.Puzzle) != root {
				t.Fatalf("\t%s\tTest %d:\tShould build the puzzle the hash commits to.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould build the puzzle the hash commits to.", success, testID)

			items, err := ctx.ListItems(spend.Solution)
			if err != nil || len(items) != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould feed the delegated spend: %v", failed, testID, err)
			}

			wrapped := mips.WrappedDelegatedPuzzleHash(lib, restrictions, ctx.TreeHash(delegated.Puzzle))
			if ctx.TreeHash(items[0]) != wrapped {
				t.Fatalf("\t%s\tTest %d:\tShould feed the wrapped delegated puzzle.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould feed the wrapped delegated puzzle.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen two paths disagree on the wrappers.", testID)
		{
			ms := mips.NewMipsSpend(ctx, coin, delegated)

			a, err := ms.AddFixedPuzzle(ctx, mips.MemberConfig{}.WithRestrictions(mips.PreventMultipleCreateCoinsRestriction(lib)), filled(6))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the member: %v", failed, testID, err)
			}
			b, err := ms.AddFixedPuzzle(ctx, mips.MemberConfig{}.WithRestrictions(mips.PreventConditionOpcodeRestriction(lib, 60)), filled(7))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the member: %v", failed, testID, err)
			}

			if err := ms.AddPreventMultipleCreateCoins(ctx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the wrapper: %v", failed, testID, err)
			}
			if err := ms.AddPreventConditionOpcode(ctx, 60); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the wrapper: %v", failed, testID, err)
			}

			root, err := ms.AddMofN(lib, mips.MemberConfig{}.Root(), 2, []clvm.Bytes32{a, b})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add the root: %v", failed, testID, err)
			}

			if _, err := ms.Spend(ctx, root); !errors.Is(err, mips.ErrDelegatedPuzzleWrapperConflict) {
				t.Fatalf("\t%s\tTest %d:\tShould report the conflict: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report the conflict.", success, testID)
		}
	}
}

func Test_Custody(t *testing.T) {
	t.Log("Given the need to hash a vault custody from its members.")
	{
		lib := puzzles.Default().WithStandIns()
		alice, bob := newUser(t, lib), newUser(t, lib)

		testID := 0
		t.Logf("\tTest %d:\tWhen hashing one of two K1 members.", testID)
		{
			c := mips.Custody{
				Required: 1,
				Members:  []mips.Member{mips.K1Member(alice.pub, false), mips.K1Member(bob.pub, false)},
			}

			got, err := c.Hash(lib)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to hash the custody: %v", failed, testID, err)
			}

			if exp := custody(t, lib, 1, alice.hash, bob.hash); got != exp {
				t.Fatalf("\t%s\tTest %d:\tShould match the tree built by hand: got %s exp %s", failed, testID, got, exp)
			}
			t.Logf("\t%s\tTest %d:\tShould match the tree built by hand.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen hashing a single member.", testID)
		{
			m, err := mips.NewMember(mips.K1, alice.pub, clvm.Bytes32{})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the member: %v", failed, testID, err)
			}

			got, err := mips.Custody{Members: []mips.Member{m}}.Hash(lib)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to hash the custody: %v", failed, testID, err)
			}

			exp, err := mips.CustodyHash(lib, mips.MemberConfig{}, mips.K1Member(alice.pub, false))
			if err != nil || got != exp {
				t.Fatalf("\t%s\tTest %d:\tShould make the member the root: got %s exp %s %v", failed, testID, got, exp, err)
			}
			t.Logf("\t%s\tTest %d:\tShould make the member the root.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the custody is invalid.", testID)
		{
			if _, err := (mips.Custody{Required: 1}).Hash(lib); !errors.Is(err, mips.ErrEmptyCustody) {
				t.Fatalf("\t%s\tTest %d:\tShould reject an empty custody: %v", failed, testID, err)
			}

			two := mips.Custody{Required: 3, Members: []mips.Member{mips.K1Member(alice.pub, false), mips.K1Member(bob.pub, false)}}
			if _, err := two.Hash(lib); !errors.Is(err, mips.ErrInvalidThreshold) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a threshold above the count: %v", failed, testID, err)
			}

			if _, err := mips.NewMember(mips.MemberKind(99), nil, clvm.Bytes32{}); !errors.Is(err, mips.ErrUnknownMember) {
				t.Fatalf("\t%s\tTest %d:\tShould reject an unknown kind: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject invalid custodies.", success, testID)
		}
	}
}
