package wallet_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/puzzlekit/business/core/wallet"
	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/selector"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/ardanlabs/puzzlekit/foundation/nameservice"
	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newWallet(t *testing.T) (*wallet.Wallet, *database.Database, *nameservice.NameService) {
	lib := puzzles.Default().WithStandIns()

	dir := t.TempDir()
	for _, name := range []string{"bill", "kate"} {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("Should be able to generate a key: %s", err)
		}
		if err := crypto.SaveECDSA(filepath.Join(dir, name+".ecdsa"), key); err != nil {
			t.Fatalf("Should be able to save the key: %s", err)
		}
	}

	ns, err := nameservice.New(dir, func(pub []byte) clvm.Bytes32 { return layers.StandardPuzzleHash(lib, pub) })
	if err != nil {
		t.Fatalf("Should be able to load the key ring: %s", err)
	}

	store, err := memory.New()
	if err != nil {
		t.Fatalf("Should be able to construct the store: %s", err)
	}

	db, err := database.New(store, nil)
	if err != nil {
		t.Fatalf("Should be able to construct the database: %s", err)
	}

	w, err := wallet.New(wallet.Config{Library: lib, Store: db, Keys: ns})
	if err != nil {
		t.Fatalf("Should be able to construct the wallet: %s", err)
	}

	return w, db, ns
}

func Test_PlanAndCommit(t *testing.T) {
	t.Log("Given the need to pay another key from stored coins.")
	{
		w, db, ns := newWallet(t)
		bill, _ := ns.ByName("bill")
		kate, _ := ns.ByName("kate")

		var parent clvm.Bytes32
		parent[0] = 1
		if err := db.AddCoin(database.NewCoin(parent, bill.PuzzleHash, 100), 1); err != nil {
			t.Fatalf("\t%s\tShould be able to add a coin: %v", failed, err)
		}

		testID := 0
		t.Logf("\tTest %d:\tWhen planning a send of 30 with a fee of 5.", testID)
		{
			plan, err := w.Plan(wallet.Send{From: "bill", To: kate.PuzzleHash, Amount: 30, Fee: 5})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to plan the send: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to plan the send.", success, testID)

			if len(plan.CoinSpends) != 1 || plan.Fee != 5 {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, spew.Sdump(plan))
				t.Fatalf("\t%s\tTest %d:\tShould spend one coin with the fee.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould spend one coin with the fee.", success, testID)

			var toKate, toBill uint64
			for _, c := range plan.Additions {
				switch c.PuzzleHash {
				case kate.PuzzleHash:
					toKate += c.Amount
				case bill.PuzzleHash:
					toBill += c.Amount
				}
			}
			if toKate != 30 || toBill != 65 {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, spew.Sdump(plan.Additions))
				t.Fatalf("\t%s\tTest %d:\tShould pay 30 and return 65 in change.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould pay 30 and return 65 in change.", success, testID)

			if db.Balance(bill.PuzzleHash) != 100 {
				t.Fatalf("\t%s\tTest %d:\tShould not change the store before commit.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not change the store before commit.", success, testID)

			height, err := w.Commit(plan)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to commit the plan: %v", failed, testID, err)
			}
			if height != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould commit above the peak: %d", failed, testID, height)
			}
			t.Logf("\t%s\tTest %d:\tShould commit above the peak.", success, testID)

			_, billBalance, err := w.Balance("bill")
			if err != nil || billBalance != 65 || db.Balance(kate.PuzzleHash) != 30 {
				t.Fatalf("\t%s\tTest %d:\tShould update balances: %d %d %v", failed, testID, billBalance, db.Balance(kate.PuzzleHash), err)
			}
			t.Logf("\t%s\tTest %d:\tShould update balances.", success, testID)

			if _, err := w.Commit(plan); !errors.Is(err, database.ErrAlreadySpent) {
				t.Fatalf("\t%s\tTest %d:\tShould refuse to commit the plan twice: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse to commit the plan twice.", success, testID)
		}
	}
}

func Test_PlanErrors(t *testing.T) {
	t.Log("Given the need to reject sends that cannot be planned.")
	{
		w, db, ns := newWallet(t)
		bill, _ := ns.ByName("bill")
		kate, _ := ns.ByName("kate")

		var parent clvm.Bytes32
		parent[0] = 2
		if err := db.AddCoin(database.NewCoin(parent, bill.PuzzleHash, 10), 1); err != nil {
			t.Fatalf("\t%s\tShould be able to add a coin: %v", failed, err)
		}

		type test struct {
			name string
			send wallet.Send
			err  error
		}

		tt := []test{
			{name: "unknown sender", send: wallet.Send{From: "jill", To: kate.PuzzleHash, Amount: 1}, err: wallet.ErrUnknownName},
			{name: "zero amount", send: wallet.Send{From: "bill", To: kate.PuzzleHash}, err: wallet.ErrZeroAmount},
			{name: "insufficient balance", send: wallet.Send{From: "bill", To: kate.PuzzleHash, Amount: 10, Fee: 1}, err: selector.ErrInsufficientBalance},
			{name: "no coins", send: wallet.Send{From: "kate", To: bill.PuzzleHash, Amount: 1}, err: selector.ErrNoSpendableCoins},
		}

		for testID, test := range tt {
			t.Logf("\tTest %d:\tWhen planning with %s.", testID, test.name)
			{
				if _, err := w.Plan(test.send); !errors.Is(err, test.err) {
					t.Fatalf("\t%s\tTest %d:\tShould fail with %v: %v", failed, testID, test.err, err)
				}
				t.Logf("\t%s\tTest %d:\tShould fail with %v.", success, testID, test.err)
			}
		}
	}
}

func Test_Resolve(t *testing.T) {
	t.Log("Given the need to address keys by name or puzzle hash.")
	{
		w, _, ns := newWallet(t)
		kate, _ := ns.ByName("kate")

		testID := 0
		t.Logf("\tTest %d:\tWhen resolving a name and a hex puzzle hash.", testID)
		{
			byName, err := w.Resolve("kate")
			if err != nil || byName != kate.PuzzleHash {
				t.Fatalf("\t%s\tTest %d:\tShould resolve the name: %v", failed, testID, err)
			}

			byHash, err := w.Resolve(kate.PuzzleHash.Hex())
			if err != nil || byHash != kate.PuzzleHash {
				t.Fatalf("\t%s\tTest %d:\tShould parse the hash: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould resolve both forms.", success, testID)

			if w.Lookup(kate.PuzzleHash) != "kate" {
				t.Fatalf("\t%s\tTest %d:\tShould look the name back up.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould look the name back up.", success, testID)

			if _, err := w.Resolve("jill"); !errors.Is(err, wallet.ErrUnknownName) {
				t.Fatalf("\t%s\tTest %d:\tShould fail on an unknown name: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould fail on an unknown name.", success, testID)
		}
	}
}
