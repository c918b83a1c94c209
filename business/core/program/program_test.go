package program_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/puzzlekit/business/core/program"
	"github.com/ardanlabs/puzzlekit/business/mips"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/merkle"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/signature"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common/hexutil"
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

func Test_CurryUncurry(t *testing.T) {
	t.Log("Given the need to bind and split program arguments.")
	{
		const mod = "ff10ff02ff0580"

		testID := 0
		t.Logf("\tTest %d:\tWhen currying two arguments into a mod.", testID)
		{
			curried, err := program.Curry(mod, []string{"05", "0x8400000001"})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to curry: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to curry.", success, testID)

			hash, err := program.TreeHash(curried.Program.String())
			if err != nil || hash != curried.TreeHash {
				t.Fatalf("\t%s\tTest %d:\tShould report the tree hash of the program: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report the tree hash of the program.", success, testID)

			modHash, _ := program.TreeHash(mod)
			argHashes := []clvm.Bytes32{clvm.TreeHashAtom([]byte{5}), clvm.TreeHashAtom([]byte{0, 0, 0, 1})}
			if exp := clvm.CurryTreeHash(modHash, argHashes...); exp != curried.TreeHash {
				t.Fatalf("\t%s\tTest %d:\tShould match the curried tree hash: got %s exp %s", failed, testID, curried.TreeHash, exp)
			}
			t.Logf("\t%s\tTest %d:\tShould match the curried tree hash.", success, testID)

			u, err := program.Uncurry(curried.Program.String())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to uncurry: %v", failed, testID, err)
			}

			if u.ModHash != modHash || len(u.Args) != 2 || hexutil.Encode(u.Args[1]) != "0x8400000001" {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, spew.Sdump(u))
				t.Fatalf("\t%s\tTest %d:\tShould recover the mod and arguments.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould recover the mod and arguments.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen uncurrying a program that is not curried.", testID)
		{
			if _, err := program.Uncurry(mod); !errors.Is(err, program.ErrNotCurried) {
				t.Fatalf("\t%s\tTest %d:\tShould fail as not curried: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fail as not curried.", success, testID)

			if _, err := program.TreeHash("ff01"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail on a truncated program.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail on a truncated program.", success, testID)
		}
	}
}

func Test_SerializeBackrefs(t *testing.T) {
	t.Log("Given the need to compress programs with repeated subtrees.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a long atom repeats.", testID)
		{
			a := clvm.NewAllocator()
			atom := a.NewAtom([]byte("a repeated atom long enough to reference"))
			b, err := a.Serialize(a.List(atom, atom, atom))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to serialize: %v", failed, testID, err)
			}

			compressed, err := program.Serialize(hexutil.Encode(b), true)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to compress: %v", failed, testID, err)
			}

			if len(compressed) >= len(b) {
				t.Fatalf("\t%s\tTest %d:\tShould be shorter: %d >= %d", failed, testID, len(compressed), len(b))
			}
			t.Logf("\t%s\tTest %d:\tShould be shorter.", success, testID)

			plain, err := program.Serialize(hexutil.Encode(compressed), false)
			if err != nil || hexutil.Encode(plain) != hexutil.Encode(b) {
				t.Fatalf("\t%s\tTest %d:\tShould expand back to the original: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould expand back to the original.", success, testID)
		}
	}
}

func Test_Proof(t *testing.T) {
	t.Log("Given the need to prove a leaf is in a list.")
	{
		leaves := []clvm.Bytes32{filled(1), filled(2), filled(3), filled(4), filled(5)}

		testID := 0
		t.Logf("\tTest %d:\tWhen proving every leaf.", testID)
		{
			for _, leaf := range leaves {
				mp, err := program.Proof(leaves, leaf)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to prove %s: %v", failed, testID, leaf, err)
				}

				p := merkle.Proof{Path: mp.Path}
				for _, h := range mp.Hashes {
					p.Hashes = append(p.Hashes, h)
				}

				if !p.Verify(leaf, mp.Root) {
					t.Fatalf("\t%s\tTest %d:\tShould verify the proof of %s.", failed, testID, leaf)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould verify every proof.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the leaf is missing.", testID)
		{
			if _, err := program.Proof(leaves, filled(9)); !errors.Is(err, program.ErrLeafMissing) {
				t.Fatalf("\t%s\tTest %d:\tShould fail as missing: %v", failed, testID, err)
			}
			if _, err := program.Proof(nil, filled(1)); !errors.Is(err, program.ErrNoLeaves) {
				t.Fatalf("\t%s\tTest %d:\tShould fail with no leaves: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject missing leaves.", success, testID)
		}
	}
}

func Test_VaultHash(t *testing.T) {
	t.Log("Given the need to hash a described vault custody.")
	{
		lib := puzzles.Default().WithStandIns()

		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
		}
		pub := signature.K1PublicKey(key)

		testID := 0
		t.Logf("\tTest %d:\tWhen describing a single K1 member.", testID)
		{
			got, err := program.VaultHash(lib, program.Custody{Required: 1, Members: []program.Member{{Kind: "K1", PublicKey: pub}}})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to hash the custody: %v", failed, testID, err)
			}

			exp, _ := mips.CustodyHash(lib, mips.MemberConfig{}, mips.K1Member(pub, false))
			if got != exp {
				t.Fatalf("\t%s\tTest %d:\tShould match the member custody hash: got %s exp %s", failed, testID, got, exp)
			}
			t.Logf("\t%s\tTest %d:\tShould match the member custody hash.", success, testID)

			locked, err := program.VaultHash(lib, program.Custody{Required: 1, TimelockSeconds: 60, Members: []program.Member{{Kind: "k1", PublicKey: pub}}})
			if err != nil || locked == got {
				t.Fatalf("\t%s\tTest %d:\tShould change the hash with a timelock: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould change the hash with a timelock.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen describing an unknown member kind.", testID)
		{
			_, err := program.VaultHash(lib, program.Custody{Required: 1, Members: []program.Member{{Kind: "ed25519", PublicKey: pub}}})
			if !errors.Is(err, mips.ErrUnknownMember) {
				t.Fatalf("\t%s\tTest %d:\tShould fail as unknown: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fail as unknown.", success, testID)
		}
	}
}
