// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.

package merkle_test

import (
	"crypto/md5"
	"crypto/sha256"
	"testing"

	"github.com/ardanlabs/puzzlekit/foundation/blockchain/merkle"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Data hashes a string so trees can be built over arbitrary content.
type Data struct {
	x string
}

// Hash hashes the values using sha256.
func (d Data) Hash() ([]byte, error) {
	h := sha256.Sum256([]byte(d.x))
	return h[:], nil
}

// Equals tests for equality of two piece of data.
func (d Data) Equals(other Data) bool {
	return d.x == other.x
}

func filled(b byte) clvm.Bytes32 {
	var h clvm.Bytes32
	for i := range h {
		h[i] = b
	}
	return h
}

var table = []struct {
	testCaseId int
	leaves     int
	root       string
	proofs     map[byte]struct {
		path   uint32
		hashes []string
	}
}{
	{
		testCaseId: 0,
		leaves:     0,
		root:       "0x0000000000000000000000000000000000000000000000000000000000000000",
	},
	{
		testCaseId: 1,
		leaves:     1,
		root:       "0xce041765675ad4d93378e20bd3a7d0d97ddcf3385fb6341581b21d4bc9e3e69e",
	},
	{
		testCaseId: 2,
		leaves:     2,
		root:       "0x00f2e7e0bc3ee77f0b5aa330406f69bfbd5c2e3b8a4338dba49f64bb3f0247c4",
		proofs: map[byte]struct {
			path   uint32
			hashes []string
		}{
			1: {0, []string{"0xf1386fff8b06ac98d347997ff5d0abad3b977514b1b7cfe0689f45f3f1393497"}},
			2: {1, []string{"0xce041765675ad4d93378e20bd3a7d0d97ddcf3385fb6341581b21d4bc9e3e69e"}},
		},
	},
	{
		testCaseId: 3,
		leaves:     3,
		root:       "0xadb439d3868b9273de8753e20a62a8e6d9ff6cfb43b189337a23df0690c7f55b",
		proofs: map[byte]struct {
			path   uint32
			hashes []string
		}{
			2: {1, []string{"0xce041765675ad4d93378e20bd3a7d0d97ddcf3385fb6341581b21d4bc9e3e69e", "0x131c41585fc6b26c2cf8ea6fc61be03c3c4e3facb3f7e70ec69ea094b17dc3e1"}},
			3: {1, []string{"0x00f2e7e0bc3ee77f0b5aa330406f69bfbd5c2e3b8a4338dba49f64bb3f0247c4"}},
		},
	},
	{
		testCaseId: 4,
		leaves:     7,
		root:       "0x1c4b11429685dd0a516282981bb3e12c13596e846f67af1da080b9134cdea4c6",
		proofs: map[byte]struct {
			path   uint32
			hashes []string
		}{
			5: {4, []string{"0x0684e189ecc12eb7472925a5b16ec60d10a476a59545452f58fcca994433a4f7", "0xd3907c0247e7e98b72338a00d87244248df71eb313589da290d45adfba44e6d2", "0x7eb919730e38f305365791a43adddeea0fc275371aac8c7b08983937beeb956f"}},
			7: {3, []string{"0x3831644ba5da8ec5f16d32ef7c0a318cfec302245fac118321a5da9f43efbf94", "0x7eb919730e38f305365791a43adddeea0fc275371aac8c7b08983937beeb956f"}},
		},
	},
	{
		testCaseId: 5,
		leaves:     8,
		root:       "0x3023a77c57dd4c0f84fe2d9b42252e483a9974482b6d4d5fbf0e3d405a46f436",
		proofs: map[byte]struct {
			path   uint32
			hashes []string
		}{
			8: {7, []string{"0xd3907c0247e7e98b72338a00d87244248df71eb313589da290d45adfba44e6d2", "0x3831644ba5da8ec5f16d32ef7c0a318cfec302245fac118321a5da9f43efbf94", "0x7eb919730e38f305365791a43adddeea0fc275371aac8c7b08983937beeb956f"}},
		},
	},
}

// =============================================================================

func Test_MerkleRoot(t *testing.T) {
	for _, tt := range table {
		var leaves []clvm.Bytes32
		for i := 1; i <= tt.leaves; i++ {
			leaves = append(leaves, filled(byte(i)))
		}

		tree := merkle.NewHashTree(leaves)
		if tree.RootHex() != tt.root {
			t.Errorf("[case:%d] error: expected root %s got %s", tt.testCaseId, tt.root, tree.RootHex())
		}

		if err := tree.Verify(); err != nil {
			t.Errorf("[case:%d] error: unexpected verify error: %v", tt.testCaseId, err)
		}
	}
}

func Test_Proofs(t *testing.T) {
	for _, tt := range table {
		var leaves []clvm.Bytes32
		for i := 1; i <= tt.leaves; i++ {
			leaves = append(leaves, filled(byte(i)))
		}

		tree := merkle.NewHashTree(leaves)

		for leaf, exp := range tt.proofs {
			proof, ok := merkle.ProofOf(tree, filled(leaf))
			if !ok {
				t.Fatalf("[case:%d] error: missing proof for leaf %d", tt.testCaseId, leaf)
			}

			if proof.Path != exp.path || len(proof.Hashes) != len(exp.hashes) {
				t.Fatalf("[case:%d] error: leaf %d expected path %d got %d", tt.testCaseId, leaf, exp.path, proof.Path)
			}

			for i, h := range exp.hashes {
				if got := clvm.Bytes32(proof.Hashes[i]).Hex(); got != h {
					t.Errorf("[case:%d] error: leaf %d hash %d expected %s got %s", tt.testCaseId, leaf, i, h, got)
				}
			}
		}

		for _, leaf := range leaves {
			proof, _ := merkle.ProofOf(tree, leaf)
			if !proof.Verify(leaf, tree.Root32()) {
				t.Errorf("[case:%d] error: proof for %s does not recombine to the root", tt.testCaseId, leaf)
			}

			if err := tree.VerifyData(merkle.Leaf(leaf)); err != nil {
				t.Errorf("[case:%d] error: unexpected verify data error: %v", tt.testCaseId, err)
			}
		}
	}
}

func Test_NonMemberProof(t *testing.T) {
	leaves := []clvm.Bytes32{filled(1), filled(2), filled(3), filled(4), filled(5)}
	tree := merkle.NewHashTree(leaves)

	if _, ok := merkle.ProofOf(tree, filled(9)); ok {
		t.Fatalf("Should not get a proof for a non member.")
	}

	for _, leaf := range leaves {
		proof, _ := merkle.ProofOf(tree, leaf)
		if proof.Verify(filled(9), tree.Root32()) {
			t.Fatalf("Should not recombine a member proof with a non member leaf.")
		}

		tampered := proof
		tampered.Path ^= 1
		if len(tampered.Hashes) > 0 && tampered.Verify(leaf, tree.Root32()) {
			t.Fatalf("Should not recombine a proof with a flipped path bit.")
		}
	}
}

func Test_DuplicateLeafProof(t *testing.T) {

	// The tree splits as ((1 2) 1) so the last copy hangs off the root.
	leaves := []clvm.Bytes32{filled(1), filled(2), filled(1)}
	tree := merkle.NewHashTree(leaves)

	proof, ok := merkle.ProofOf(tree, filled(1))
	if !ok {
		t.Fatalf("Should get a proof for a duplicated leaf.")
	}

	if proof.Path != 1 || len(proof.Hashes) != 1 {
		t.Fatalf("Should prove the last copy of the leaf, got path %d with %d hashes.", proof.Path, len(proof.Hashes))
	}

	if !proof.Verify(filled(1), tree.Root32()) {
		t.Fatalf("Should recombine the duplicate leaf proof to the root.")
	}
}

func Test_ProofClvm(t *testing.T) {
	tree := merkle.NewHashTree([]clvm.Bytes32{filled(1), filled(2), filled(3)})
	proof, _ := merkle.ProofOf(tree, filled(3))

	a := clvm.NewAllocator()
	n, err := proof.ToClvm(a)
	if err != nil {
		t.Fatalf("Should be able to encode the proof: %s", err)
	}

	back, err := clvm.Decode[merkle.Proof](a, n)
	if err != nil {
		t.Fatalf("Should be able to decode the proof: %s", err)
	}

	if !back.Equal(proof) {
		t.Logf("got: %+v", back)
		t.Logf("exp: %+v", proof)
		t.Fatalf("Should get back the same proof.")
	}
}

func Test_NewTreeWithHashingStrategy(t *testing.T) {
	data := []Data{{x: "Hello"}, {x: "Hi"}, {x: "Hey"}, {x: "Hola"}}

	tree, err := merkle.NewTree(data, merkle.WithHashStrategy[Data](md5.New))
	if err != nil {
		t.Fatalf("Should be able to build the tree: %s", err)
	}

	if len(tree.MerkleRoot) != md5.Size {
		t.Fatalf("Should get a root the size of the strategy: %d", len(tree.MerkleRoot))
	}

	for _, d := range data {
		if err := tree.VerifyData(d); err != nil {
			t.Fatalf("Should verify %q: %s", d.x, err)
		}
	}

	if err := tree.VerifyData(Data{x: "Bye"}); err == nil {
		t.Fatalf("Should not verify data outside the tree.")
	}

	if len(tree.Values()) != len(data) {
		t.Fatalf("Should get back every value: %d", len(tree.Values()))
	}

	before := tree.RootHex()
	if err := tree.Rebuild(); err != nil || tree.RootHex() != before {
		t.Fatalf("Should get the same root after a rebuild: %v", err)
	}
}

func Test_Reveal(t *testing.T) {
	leaves := []clvm.Bytes32{filled(1), filled(2), filled(3), filled(4), filled(5)}
	tree := merkle.NewHashTree(leaves)

	for _, picks := range [][]int{{0}, {4}, {1, 3}, {0, 1, 2, 3, 4}, {}} {
		a := clvm.NewAllocator()

		selected := make(map[int]bool)
		for _, i := range picks {
			selected[i] = true
		}

		reveal := merkle.Reveal(a, leaves, func(i int) (clvm.NodePtr, bool) {
			if !selected[i] {
				return clvm.Nil, false
			}
			return a.NewPair(clvm.Nil, a.NewBytes32(leaves[i])), true
		})

		root, err := merkle.RevealRoot(a, reveal, func(n clvm.NodePtr) (clvm.Bytes32, error) {
			_, rest, _ := a.Pair(n)
			return a.Bytes32(rest)
		})
		if err != nil {
			t.Fatalf("Should be able to recombine the reveal for %v: %s", picks, err)
		}

		if root != tree.Root32() {
			t.Logf("got: %s", root)
			t.Logf("exp: %s", tree.Root32())
			t.Fatalf("Should recombine the reveal for %v into the tree root.", picks)
		}

		if got := len(merkle.RevealedLeaves(a, reveal)); got != len(picks) {
			t.Fatalf("Should find %d revealed leaves for %v, got %d.", len(picks), picks, got)
		}
	}

	a := clvm.NewAllocator()
	if _, err := merkle.RevealRoot(a, a.NewString("short"), nil); err == nil {
		t.Fatalf("Should reject a hidden node that is not a hash.")
	}
}
