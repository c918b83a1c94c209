package driver_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/driver/drivertest"
	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/database"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/davecgh/go-spew/spew"
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

// =============================================================================

func Test_ParsePuzzle(t *testing.T) {
	t.Log("Given the need to recognize curried puzzles.")
	{
		ctx := driver.New(driver.Config{Library: puzzles.Default()})

		testID := 0
		t.Logf("\tTest %d:\tWhen currying a library puzzle.", testID)
		{
			n, err := ctx.Curry(puzzles.Slot, ctx.NewBytes32(filled(1)), ctx.NewUint64(7))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to curry the puzzle: %v", failed, testID, err)
			}

			p := driver.ParsePuzzle(ctx.Allocator, n)
			if !p.Curried || !p.Is(ctx, puzzles.Slot) || len(p.Args) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould recognize the slot puzzle: %+v", failed, testID, p)
			}
			t.Logf("\t%s\tTest %d:\tShould recognize the slot puzzle.", success, testID)

			launcher := filled(1)
			exp := clvm.CurryTreeHash(ctx.Library().MustHash(puzzles.Slot), clvm.TreeHashAtom(launcher[:]), clvm.TreeHashAtom([]byte{7}))
			if p.Hash != exp {
				t.Fatalf("\t%s\tTest %d:\tShould hash like the curried tree hash.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould hash like the curried tree hash.", success, testID)

			if ok, err := p.Expect(ctx, puzzles.Slot, 3); ok || !errors.Is(err, driver.ErrNonStandardLayer) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the wrong argument count: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the wrong argument count.", success, testID)

			if ok, err := p.Expect(ctx, puzzles.ActionLayer, 2); ok || err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould not match another puzzle: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould not match another puzzle.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen parsing a puzzle that is not curried.", testID)
		{
			n := ctx.Quote(ctx.NewString("hello"))
			p := driver.ParsePuzzle(ctx.Allocator, n)
			if p.Curried || p.ModHash != p.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould treat the puzzle as its own mod.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould treat the puzzle as its own mod.", success, testID)
		}
	}
}

func Test_SpendAccumulation(t *testing.T) {
	t.Log("Given the need to accumulate coin spends.")
	{
		var events []string
		ctx := driver.New(driver.Config{
			Library:   puzzles.Default(),
			EvHandler: func(v string, args ...any) { events = append(events, v) },
		})

		spend, err := ctx.DelegatedSpend(driver.Conditions{driver.NewCreateCoin(filled(2), 1)})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to build a delegated spend: %v", failed, err)
		}
		ph := ctx.TreeHash(spend.Puzzle)

		testID := 0
		t.Logf("\tTest %d:\tWhen spending a coin with the matching puzzle.", testID)
		{
			coin := database.NewCoin(filled(1), ph, 1)
			if err := ctx.Spend(coin, spend); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept the spend: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the spend.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen spending a coin with another puzzle hash.", testID)
		{
			coin := database.NewCoin(filled(1), filled(3), 1)
			if err := ctx.Spend(coin, spend); !errors.Is(err, driver.ErrNonStandardLayer) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the spend: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the spend.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen taking the accumulated spends.", testID)
		{
			spends := ctx.Take()
			if len(spends) != 1 || ctx.Pending() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould drain exactly one spend, got %d.", failed, testID, len(spends))
			}
			t.Logf("\t%s\tTest %d:\tShould drain exactly one spend.", success, testID)

			a := clvm.NewAllocator()
			n, err := a.Deserialize(spends[0].PuzzleReveal)
			if err != nil || a.TreeHash(n) != ph {
				t.Fatalf("\t%s\tTest %d:\tShould serialize the puzzle reveal: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould serialize the puzzle reveal.", success, testID)

			if len(events) == 0 {
				t.Fatalf("\t%s\tTest %d:\tShould raise events.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould raise events.", success, testID)
		}
	}
}

func Test_Run(t *testing.T) {
	t.Log("Given the need to run puzzles through an external runner.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen no runner is configured.", testID)
		{
			ctx := driver.New(driver.Config{Library: puzzles.Default()})
			if _, err := ctx.Run(clvm.Nil, clvm.Nil); !errors.Is(err, driver.ErrMissingRunner) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrMissingRunner: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrMissingRunner.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the cost ceiling is lower than the run.", testID)
		{
			ctx := driver.New(driver.Config{Library: puzzles.Default(), Runner: drivertest.NewRunner(), MaxCost: 10})
			if _, err := ctx.Run(ctx.Quote(clvm.Nil), clvm.Nil); !errors.Is(err, driver.ErrCostExceeded) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrCostExceeded: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrCostExceeded.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the puzzle raises.", testID)
		{
			runner := drivertest.NewRunner()
			runner.Handle(puzzles.Default().MustHash(puzzles.NonceWrapper), func(a *clvm.Allocator, args []clvm.NodePtr, solution clvm.NodePtr) (clvm.NodePtr, error) {
				return clvm.Nil, drivertest.Raise("clvm raise (x)")
			})

			ctx := driver.New(driver.Config{Library: puzzles.Default(), Runner: runner})
			puzzle, err := ctx.Curry(puzzles.NonceWrapper, ctx.NewUint64(1), clvm.Nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to curry: %v", failed, testID, err)
			}

			_, err = ctx.Run(puzzle, clvm.Nil)
			var re *driver.RunError
			if !errors.As(err, &re) || re.Message != "clvm raise (x)" {
				t.Fatalf("\t%s\tTest %d:\tShould surface the message verbatim: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould surface the message verbatim.", success, testID)
		}
	}
}

func Test_Conditions(t *testing.T) {
	t.Log("Given the need to encode and parse conditions.")
	{
		a := clvm.NewAllocator()
		launcher := filled(9)

		conds := driver.Conditions{
			driver.NewCreateCoin(filled(1), 5),
			driver.NewCreateCoin(filled(2), 3, driver.Hint(filled(2))...),
			driver.ReserveFee{Amount: 7},
			driver.Remark{Rest: a.List(a.NewString("note"))},
			driver.AggSig{Me: true, PublicKey: []byte{1, 2}, Message: []byte{3}},
			driver.Announcement{Puzzle: true, Message: []byte("hi")},
			driver.AssertPuzzleAnnouncement(filled(4)),
			driver.AssertConcurrentSpend(filled(5)),
			driver.AssertMyCoinID(filled(6)),
			driver.AssertSecondsRelative(60),
			driver.AssertHeightRelative(10),
			driver.AssertBeforeSecondsAbsolute(1_700_000_000),
			driver.Message{Mode: 0x17, Message: []byte("m"), Data: []clvm.NodePtr{a.NewBytes32(filled(7))}},
			driver.MeltSingleton{},
			driver.RunCatTail{Program: a.Quote(clvm.Nil), Solution: clvm.Nil},
			driver.TransferNft{LauncherID: &launcher, TradePrices: []driver.TradePrice{{Amount: 10, PuzzleHash: filled(8)}}},
			driver.UpdateNftMetadata{UpdaterPuzzle: a.Quote(clvm.Nil), UpdaterSolution: clvm.Nil},
		}

		testID := 0
		t.Logf("\tTest %d:\tWhen parsing an encoded list.", testID)
		{
			n, err := conds.ToClvm(a)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to encode: %v", failed, testID, err)
			}

			got, err := driver.ParseConditions(a, n)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to parse: %v", failed, testID, err)
			}

			if !reflect.DeepEqual(got, conds) {
				t.Logf("\t\tgot: %s", spew.Sdump(got))
				t.Logf("\t\texp: %s", spew.Sdump(conds))
				t.Fatalf("\t%s\tTest %d:\tShould get back the same conditions.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the same conditions.", success, testID)

			if ccs := got.CreateCoins(); len(ccs) != 2 || ccs[1].Amount != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould find the created coins.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould find the created coins.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen parsing malformed conditions.", testID)
		{
			bad := a.List(a.List(a.NewUint64(51), a.NewString("short"), a.NewUint64(1)))
			if _, err := driver.ParseConditions(a, bad); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a short puzzle hash.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a short puzzle hash.", success, testID)

			unknown := a.List(a.List(a.NewUint64(99), a.NewUint64(1)))
			got, err := driver.ParseConditions(a, unknown)
			if err != nil || got[0].Opcode() != 99 {
				t.Fatalf("\t%s\tTest %d:\tShould keep unknown conditions: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould keep unknown conditions.", success, testID)
		}
	}
}
