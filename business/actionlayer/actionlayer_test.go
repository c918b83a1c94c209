package actionlayer_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ardanlabs/puzzlekit/business/actionlayer"
	"github.com/ardanlabs/puzzlekit/business/driver"
	"github.com/ardanlabs/puzzlekit/business/driver/drivertest"
	"github.com/ardanlabs/puzzlekit/business/layers"
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

// counter is a state holding one number.
type counter struct {
	Value uint64
}

func (c counter) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.NewUint64(c.Value), nil
}

func (counter) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (counter, error) {
	v, err := a.Uint64(n)
	return counter{Value: v}, err
}

// pool is a state whose first element is the reserve amount.
type pool struct {
	Reserve  uint64
	Deposits uint64
}

func (p pool) ToClvm(a *clvm.Allocator) (clvm.NodePtr, error) {
	return a.Cons(a.NewUint64(p.Reserve), a.NewUint64(p.Deposits)), nil
}

func (pool) FromClvm(a *clvm.Allocator, n clvm.NodePtr) (pool, error) {
	first, rest, ok := a.Pair(n)
	if !ok {
		return pool{}, clvm.ErrPairExpected
	}

	reserve, err := a.Uint64(first)
	if err != nil {
		return pool{}, err
	}

	deposits, err := a.Uint64(rest)
	if err != nil {
		return pool{}, err
	}

	return pool{Reserve: reserve, Deposits: deposits}, nil
}

// harness holds a context and the test actions. Every action reads
// ((ephemeral . state) solution) and returns ((ephemeral . state) . ()).
type harness struct {
	ctx    *driver.SpendContext
	runner *drivertest.Runner
	add    clvm.NodePtr
	double clvm.NodePtr
	pay    clvm.NodePtr
	slot   clvm.NodePtr
}

func newHarness() *harness {
	runner := drivertest.NewRunner()
	ctx := driver.New(driver.Config{Library: puzzles.Default().WithStandIns(), Runner: runner})

	h := harness{
		ctx:    ctx,
		runner: runner,
		add:    ctx.Quote(ctx.NewString("test/add")),
		double: ctx.Quote(ctx.NewString("test/double")),
		pay:    ctx.Quote(ctx.NewString("test/pay")),
		slot:   ctx.Quote(ctx.NewString("test/slot")),
	}

	thread := func(a *clvm.Allocator, solution clvm.NodePtr, next func(state clvm.NodePtr) (clvm.NodePtr, clvm.NodePtr, error)) (clvm.NodePtr, error) {
		threaded, err := a.First(solution)
		if err != nil {
			return clvm.Nil, err
		}
		ephemeral, state, ok := a.Pair(threaded)
		if !ok {
			return clvm.Nil, drivertest.Raise("state is not a pair")
		}

		state, conds, err := next(state)
		if err != nil {
			return clvm.Nil, err
		}

		return a.Cons(a.Cons(ephemeral, state), conds), nil
	}

	runner.Handle(ctx.TreeHash(h.add), func(a *clvm.Allocator, args []clvm.NodePtr, solution clvm.NodePtr) (clvm.NodePtr, error) {
		return thread(a, solution, func(state clvm.NodePtr) (clvm.NodePtr, clvm.NodePtr, error) {
			n, _ := a.Uint64(args[0])
			v, _ := a.Uint64(state)
			return a.NewUint64(v + n), clvm.Nil, nil
		})
	})

	runner.Handle(ctx.TreeHash(h.double), func(a *clvm.Allocator, args []clvm.NodePtr, solution clvm.NodePtr) (clvm.NodePtr, error) {
		return thread(a, solution, func(state clvm.NodePtr) (clvm.NodePtr, clvm.NodePtr, error) {
			v, _ := a.Uint64(state)
			return a.NewUint64(v * 2), clvm.Nil, nil
		})
	})

	runner.Handle(ctx.TreeHash(h.pay), func(a *clvm.Allocator, args []clvm.NodePtr, solution clvm.NodePtr) (clvm.NodePtr, error) {
		return thread(a, solution, func(state clvm.NodePtr) (clvm.NodePtr, clvm.NodePtr, error) {
			p, err := clvm.Decode[pool](a, state)
			if err != nil {
				return clvm.Nil, clvm.Nil, err
			}
			n, _ := a.Uint64(args[0])

			next, _ := pool{Reserve: p.Reserve + n, Deposits: p.Deposits + 1}.ToClvm(a)
			return next, clvm.Nil, nil
		})
	})

	// slot creates the slot coin with the curried puzzle hash and spends the
	// slot with the solution's puzzle hash, when there is one.
	runner.Handle(ctx.TreeHash(h.slot), func(a *clvm.Allocator, args []clvm.NodePtr, solution clvm.NodePtr) (clvm.NodePtr, error) {
		return thread(a, solution, func(state clvm.NodePtr) (clvm.NodePtr, clvm.NodePtr, error) {
			conds := []clvm.NodePtr{a.List(a.NewInt64(int64(driver.OpCreateCoin)), args[0], clvm.Nil)}

			items, _, err := a.Items(solution, 2)
			if err == nil && !a.IsNil(items[1]) {
				conds = append(conds, a.List(a.NewInt64(int64(driver.OpSendMessage)), a.NewUint64(18), clvm.Nil, items[1]))
			}

			return state, a.List(conds...), nil
		})
	})

	return &h
}

func (h *harness) curried(mod clvm.NodePtr, n uint64) clvm.NodePtr {
	return h.ctx.Allocator.Curry(mod, h.ctx.NewUint64(n))
}

func (h *harness) action(mod clvm.NodePtr, n uint64) driver.Spend {
	if mod == h.double {
		return driver.NewSpend(mod, clvm.Nil)
	}
	return driver.NewSpend(h.curried(mod, n), clvm.Nil)
}

// =============================================================================

func Test_ActionOrder(t *testing.T) {
	t.Log("Given the need to thread state through actions in order.")
	{
		h := newHarness()
		ctx := h.ctx

		whitelist := []clvm.Bytes32{
			ctx.TreeHash(h.curried(h.add, 1)),
			ctx.TreeHash(h.curried(h.add, 2)),
			ctx.TreeHash(h.double),
		}

		layer, err := actionlayer.New(whitelist, counter{Value: 1}, actionlayer.DefaultFinalizer{Hint: filled(9)})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the layer: %v", failed, err)
		}

		run := func(actions ...driver.Spend) (actionlayer.Output[counter], error) {
			sol, err := layer.ConstructSolution(ctx, actionlayer.Solution{ActionHashes: whitelist, Actions: actions})
			if err != nil {
				return actionlayer.Output[counter]{}, err
			}
			return layer.Execute(ctx, sol)
		}

		tests := []struct {
			name    string
			actions []driver.Spend
			exp     uint64
		}{
			{"add then double", []driver.Spend{h.action(h.add, 1), h.action(h.double, 0)}, 4},
			{"double then add", []driver.Spend{h.action(h.double, 0), h.action(h.add, 1)}, 3},
			{"add one then two", []driver.Spend{h.action(h.add, 1), h.action(h.add, 2)}, 4},
			{"add two then one", []driver.Spend{h.action(h.add, 2), h.action(h.add, 1)}, 4},
			{"same action twice", []driver.Spend{h.action(h.add, 1), h.action(h.double, 0), h.action(h.add, 1)}, 5},
		}

		for testID, tt := range tests {
			t.Logf("\tTest %d:\tWhen running %s.", testID, tt.name)
			{
				out, err := run(tt.actions...)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould run the actions: %v", failed, testID, err)
				}

				if out.State.Value != tt.exp {
					t.Fatalf("\t%s\tTest %d:\tShould end with state %d, got %d.", failed, testID, tt.exp, out.State.Value)
				}
				t.Logf("\t%s\tTest %d:\tShould end with state %d.", success, testID, tt.exp)
			}
		}
	}
}

func Test_MerkleRoot(t *testing.T) {
	t.Log("Given the need to keep the whitelist fixed across the lineage.")
	{
		h := newHarness()
		ctx := h.ctx

		whitelist := []clvm.Bytes32{ctx.TreeHash(h.curried(h.add, 1)), ctx.TreeHash(h.double)}
		layer, err := actionlayer.New(whitelist, counter{Value: 7}, actionlayer.DefaultFinalizer{Hint: filled(9)})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the layer: %v", failed, err)
		}

		testID := 0
		t.Logf("\tTest %d:\tWhen parsing a constructed layer.", testID)
		{
			n, err := layer.ConstructPuzzle(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould construct the puzzle: %v", failed, testID, err)
			}

			got, ok, err := actionlayer.Parse[counter](ctx, driver.ParsePuzzle(ctx.Allocator, n))
			if err != nil || !ok || got.MerkleRoot != layer.MerkleRoot || got.State != layer.State || got.Finalizer != layer.Finalizer {
				t.Fatalf("\t%s\tTest %d:\tShould parse the same layer: %v\n%s", failed, testID, err, spew.Sdump(got))
			}
			t.Logf("\t%s\tTest %d:\tShould parse the same layer.", success, testID)

			ph, err := layer.PuzzleHash(ctx.Library())
			if err != nil || ph != ctx.TreeHash(n) {
				t.Fatalf("\t%s\tTest %d:\tShould hash like the constructed puzzle: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould hash like the constructed puzzle.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen spending the layer several times.", testID)
		{
			current := layer
			for i := range 3 {
				sol, err := current.ConstructSolution(ctx, actionlayer.Solution{ActionHashes: whitelist, Actions: []driver.Spend{h.action(h.add, 1), h.action(h.double, 0)}})
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould construct solution %d: %v", failed, testID, i, err)
				}

				out, err := current.Execute(ctx, sol)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould execute spend %d: %v", failed, testID, i, err)
				}

				next := current.WithState(out.State)
				exp, _ := next.PuzzleHash(ctx.Library())

				creates := out.Conditions.CreateCoins()
				if len(creates) != 1 || creates[0].PuzzleHash != exp || creates[0].Amount != 1 {
					t.Fatalf("\t%s\tTest %d:\tShould recreate the coin on spend %d: %s", failed, testID, i, spew.Sdump(creates))
				}

				n, _ := next.ConstructPuzzle(ctx)
				parsed, _, err := actionlayer.Parse[counter](ctx, driver.ParsePuzzle(ctx.Allocator, n))
				if err != nil || parsed.MerkleRoot != layer.MerkleRoot {
					t.Fatalf("\t%s\tTest %d:\tShould keep the merkle root on spend %d: %v", failed, testID, i, err)
				}

				current = next
			}
			t.Logf("\t%s\tTest %d:\tShould keep the merkle root on every spend.", success, testID)

			if current.State.Value != 70 {
				t.Fatalf("\t%s\tTest %d:\tShould end with state 70, got %d.", failed, testID, current.State.Value)
			}
			t.Logf("\t%s\tTest %d:\tShould end with state 70.", success, testID)
		}
	}
}

func Test_UnprovableAction(t *testing.T) {
	t.Log("Given the need to reject actions that are not whitelisted.")
	{
		h := newHarness()
		ctx := h.ctx

		whitelist := []clvm.Bytes32{ctx.TreeHash(h.curried(h.add, 1)), ctx.TreeHash(h.double)}
		layer, err := actionlayer.New(whitelist, counter{Value: 1}, actionlayer.DefaultFinalizer{Hint: filled(9)})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the layer: %v", failed, err)
		}

		testID := 0
		t.Logf("\tTest %d:\tWhen building a solution with an unknown action.", testID)
		{
			_, err := layer.ConstructSolution(ctx, actionlayer.Solution{ActionHashes: whitelist, Actions: []driver.Spend{h.action(h.add, 5)}})
			if !errors.Is(err, actionlayer.ErrUnknownAction) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrUnknownAction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrUnknownAction.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen running a solution built for another whitelist.", testID)
		{
			other := []clvm.Bytes32{ctx.TreeHash(h.curried(h.add, 5)), ctx.TreeHash(h.double)}
			otherLayer, _ := actionlayer.New(other, counter{Value: 1}, actionlayer.DefaultFinalizer{Hint: filled(9)})

			sol, err := otherLayer.ConstructSolution(ctx, actionlayer.Solution{ActionHashes: other, Actions: []driver.Spend{h.action(h.add, 5)}})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould build the foreign solution: %v", failed, testID, err)
			}

			if _, err := layer.Execute(ctx, sol); !errors.Is(err, driver.ErrInvalidMerkleProof) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrInvalidMerkleProof: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrInvalidMerkleProof.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the whitelist does not match the root.", testID)
		{
			_, err := layer.ConstructSolution(ctx, actionlayer.Solution{ActionHashes: whitelist[:1], Actions: []driver.Spend{h.action(h.add, 1)}})
			if !errors.Is(err, driver.ErrInvalidMerkleProof) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrInvalidMerkleProof: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrInvalidMerkleProof.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a selector is not part of the sequence.", testID)
		{
			sol := ctx.List(ctx.List(h.double), ctx.List(ctx.Cons(ctx.NewUint64(4), clvm.Nil)), ctx.List(clvm.Nil), clvm.Nil)
			if _, err := actionlayer.ParseSolution(ctx.Allocator, sol); !errors.Is(err, actionlayer.ErrBadSelector) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrBadSelector: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrBadSelector.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a selector is used before its proof.", testID)
		{
			sol, err := layer.ConstructSolution(ctx, actionlayer.Solution{ActionHashes: whitelist, Actions: []driver.Spend{h.action(h.double, 0), h.action(h.double, 0)}})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould build the solution: %v", failed, testID, err)
			}

			ps, err := actionlayer.ParseSolution(ctx.Allocator, sol)
			if err != nil || len(ps.Actions) != 2 || ps.Selectors[0] != 2 || ps.Selectors[1] != 2 || !ps.Proofs[0].Equal(ps.Proofs[1]) {
				t.Fatalf("\t%s\tTest %d:\tShould share the proof between repeats: %v\n%s", failed, testID, err, spew.Sdump(ps.Selectors))
			}
			t.Logf("\t%s\tTest %d:\tShould share the proof between repeats.", success, testID)

			// Swap the entries so the unproven repeat comes first.
			items, _ := ctx.ListItems(sol)
			entries, _ := ctx.ListItems(items[1])
			swapped := ctx.List(items[0], ctx.List(entries[1], entries[0]), items[2], items[3])

			if _, err := actionlayer.ParseSolution(ctx.Allocator, swapped); !errors.Is(err, driver.ErrInvalidMerkleProof) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrInvalidMerkleProof: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrInvalidMerkleProof.", success, testID)
		}
	}
}

func Test_Registry(t *testing.T) {
	t.Log("Given the need to mirror a registry spend off chain.")
	{
		h := newHarness()
		ctx := h.ctx
		lib := ctx.Library()
		launcherID := filled(1)

		testID := 0
		t.Logf("\tTest %d:\tWhen the pending spend matches the puzzle.", testID)
		{
			whitelist := []clvm.Bytes32{ctx.TreeHash(h.curried(h.add, 2)), ctx.TreeHash(h.double)}
			layer, _ := actionlayer.New(whitelist, counter{Value: 1}, actionlayer.DefaultFinalizer{Hint: launcherID})
			innerPH, _ := layer.PuzzleHash(lib)

			coin := database.NewCoin(filled(2), layers.SingletonPuzzleHash(lib, launcherID, innerPH), 1)
			reg := actionlayer.NewRegistry(coin, database.EveOf(database.EveProof{ParentParentCoinInfo: filled(3), ParentAmount: 1}), launcherID, layer, whitelist, nil)

			reg.Insert(actionlayer.Step[counter]{Spend: h.action(h.add, 2), State: counter{Value: 3}})
			reg.Insert(actionlayer.Step[counter]{Spend: h.action(h.double, 0), State: counter{Value: 6}})

			if reg.State().Value != 6 {
				t.Fatalf("\t%s\tTest %d:\tShould expose the latest state.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould expose the latest state.", success, testID)

			child, err := reg.Finish(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould finish the spend: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould finish the spend.", success, testID)

			if child.Coin.ParentCoinInfo != coin.CoinID() || child.Layer.State.Value != 6 || len(child.Pending.Actions) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould recreate the registry: %s", failed, testID, spew.Sdump(child))
			}
			t.Logf("\t%s\tTest %d:\tShould recreate the registry.", success, testID)

			if spends := ctx.Take(); len(spends) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould record one spend, got %d.", failed, testID, len(spends))
			}
			t.Logf("\t%s\tTest %d:\tShould record one spend.", success, testID)

			child.Insert(actionlayer.Step[counter]{Spend: h.action(h.add, 2), State: counter{Value: 9}})
			if _, err := child.Finish(ctx); !errors.Is(err, actionlayer.ErrPendingMismatch) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrPendingMismatch for a wrong mirror: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrPendingMismatch for a wrong mirror.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the registry holds a reserve.", testID)
		{
			assetID := filled(4)
			reserve := actionlayer.NewReserve(lib, filled(5), nil, assetID, launcherID, 0, 100)

			whitelist := []clvm.Bytes32{ctx.TreeHash(h.curried(h.pay, 10)), ctx.TreeHash(h.double)}
			layer, _ := actionlayer.New(whitelist, pool{Reserve: 100}, reserve.Finalizer(lib, nil, launcherID))
			innerPH, _ := layer.PuzzleHash(lib)

			coin := database.NewCoin(filled(6), layers.SingletonPuzzleHash(lib, launcherID, innerPH), 1)
			reg := actionlayer.NewRegistry(coin, database.EveOf(database.EveProof{ParentParentCoinInfo: filled(3), ParentAmount: 1}), launcherID, layer, whitelist, &reserve)

			reg.Insert(actionlayer.Step[pool]{Spend: h.action(h.pay, 10), State: pool{Reserve: 110, Deposits: 1}, ReserveDelta: 10})

			child, err := reg.Finish(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould finish the spend: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould finish the spend.", success, testID)

			if child.Reserve == nil || child.Reserve.Coin.Amount != 110 || child.Reserve.Coin.ParentCoinInfo != reserve.Coin.CoinID() {
				t.Fatalf("\t%s\tTest %d:\tShould recreate the reserve with the new amount: %s", failed, testID, spew.Sdump(child.Reserve))
			}
			t.Logf("\t%s\tTest %d:\tShould recreate the reserve with the new amount.", success, testID)

			if spends := ctx.Take(); len(spends) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould spend the registry and the reserve, got %d.", failed, testID, len(spends))
			}
			t.Logf("\t%s\tTest %d:\tShould spend the registry and the reserve.", success, testID)
		}
	}
}

func Test_RegistryCheck(t *testing.T) {
	t.Log("Given the need to compare a registry spend with the puzzle output.")
	{
		lib := puzzles.Default().WithStandIns()
		launcherID := filled(1)

		testID := 0
		t.Logf("\tTest %d:\tWhen the context has no runner.", testID)
		{
			var events []string
			ctx := driver.New(driver.Config{Library: lib, EvHandler: func(v string, args ...any) {
				events = append(events, fmt.Sprintf(v, args...))
			}})

			add := ctx.Allocator.Curry(ctx.Quote(ctx.NewString("test/add")), ctx.NewUint64(2))
			whitelist := []clvm.Bytes32{ctx.TreeHash(add)}
			layer, _ := actionlayer.New(whitelist, counter{Value: 1}, actionlayer.DefaultFinalizer{Hint: launcherID})
			innerPH, _ := layer.PuzzleHash(lib)

			coin := database.NewCoin(filled(2), layers.SingletonPuzzleHash(lib, launcherID, innerPH), 1)
			reg := actionlayer.NewRegistry(coin, database.EveOf(database.EveProof{ParentParentCoinInfo: filled(3), ParentAmount: 1}), launcherID, layer, whitelist, nil)
			reg.Insert(actionlayer.Step[counter]{Spend: driver.NewSpend(add, clvm.Nil), State: counter{Value: 3}})

			if _, err := reg.Finish(ctx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould finish the spend: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould finish the spend.", success, testID)

			var unchecked bool
			for _, ev := range events {
				if strings.Contains(ev, "unchecked: no runner") {
					unchecked = true
				}
			}
			if !unchecked {
				t.Fatalf("\t%s\tTest %d:\tShould raise an event for the unchecked spend: %s", failed, testID, spew.Sdump(events))
			}
			t.Logf("\t%s\tTest %d:\tShould raise an event for the unchecked spend.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the actions create and spend slots.", testID)
		{
			h := newHarness()
			ctx := h.ctx

			created, spent := filled(0x21), filled(0x22)
			action := driver.NewSpend(ctx.Allocator.Curry(h.slot, ctx.NewBytes32(created)), ctx.NewBytes32(spent))

			whitelist := []clvm.Bytes32{ctx.TreeHash(action.Puzzle)}
			layer, _ := actionlayer.New(whitelist, counter{Value: 1}, actionlayer.DefaultFinalizer{Hint: launcherID})
			innerPH, _ := layer.PuzzleHash(lib)

			coin := database.NewCoin(filled(2), layers.SingletonPuzzleHash(lib, launcherID, innerPH), 1)
			reg := actionlayer.NewRegistry(coin, database.EveOf(database.EveProof{ParentParentCoinInfo: filled(3), ParentAmount: 1}), launcherID, layer, whitelist, nil)
			reg.SlotPuzzleHash = func(valueHash clvm.Bytes32) clvm.Bytes32 { return valueHash }

			reg.Insert(actionlayer.Step[counter]{Spend: action, State: counter{Value: 1}, CreatedSlots: []clvm.Bytes32{created}, SpentSlots: []clvm.Bytes32{spent}})

			child, err := reg.Finish(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould finish the spend: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould finish the spend.", success, testID)

			if child.SlotPuzzleHash == nil {
				t.Fatalf("\t%s\tTest %d:\tShould carry the slot puzzle hash to the child.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould carry the slot puzzle hash to the child.", success, testID)

			tests := []struct {
				name    string
				created []clvm.Bytes32
				spent   []clvm.Bytes32
			}{
				{"wrong created slot", []clvm.Bytes32{filled(0x23)}, []clvm.Bytes32{spent}},
				{"missing spent slot", []clvm.Bytes32{created}, nil},
				{"extra created slot", []clvm.Bytes32{created, created}, []clvm.Bytes32{spent}},
			}

			for _, tt := range tests {
				next := *child
				next.Pending = actionlayer.PendingSpend[counter]{LatestState: child.Layer.State}
				next.Insert(actionlayer.Step[counter]{Spend: action, State: counter{Value: 1}, CreatedSlots: tt.created, SpentSlots: tt.spent})

				if _, err := next.Finish(ctx); !errors.Is(err, actionlayer.ErrPendingMismatch) {
					t.Fatalf("\t%s\tTest %d:\tShould get ErrPendingMismatch for a %s: %v", failed, testID, tt.name, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrPendingMismatch for every wrong slot.", success, testID)
		}
	}
}

func Test_PuzzleBytes(t *testing.T) {
	t.Log("Given the need to run the layer and finalizer puzzles.")
	{
		const (
			addHex = "ff04ffff04ff09ffff10ff0dff028080ffff04ffff04ffff0101ffff04ff02ff808080ff808080"
			mulHex = "ff04ffff04ff09ffff12ff0dff028080ff8080"
			payHex = "ff04ffff04ff09ffff04ffff10ff15ff0280ffff10ff1dffff0101808080ffff04ffff04ffff0101ffff04ff02ff808080ffff04ffff04ffff0101ffff04ffff10ff02ffff016480ff808080ffff04ffff04ffff0181d6ffff04ffff0101ffff04ff02ff80808080ffff04ffff04ffff0181d6ffff04ffff0102ffff04ff02ff80808080ff808080808080"
		)

		lib := puzzles.Default().WithStandIns()

		program := func(ctx *driver.SpendContext, s string, n uint64) clvm.NodePtr {
			mod, err := ctx.DeserializeHex(s)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to decode the action: %v", failed, err)
			}
			return ctx.Allocator.Curry(mod, ctx.NewUint64(n))
		}

		remark := func(ctx *driver.SpendContext, n uint64) clvm.NodePtr {
			return ctx.List(ctx.NewInt64(int64(driver.OpRemark)), ctx.NewUint64(n))
		}

		testID := 0
		t.Logf("\tTest %d:\tWhen the default finalizer recreates the coin.", testID)
		{
			ctx := driver.New(driver.Config{Library: lib, Runner: drivertest.NewRunner()})

			add4, mul10, add1 := program(ctx, addHex, 4), program(ctx, mulHex, 10), program(ctx, addHex, 1)
			whitelist := []clvm.Bytes32{ctx.TreeHash(add4), ctx.TreeHash(mul10), ctx.TreeHash(add1)}

			layer, _ := actionlayer.New(whitelist, counter{Value: 3}, actionlayer.DefaultFinalizer{Hint: filled(9)})
			puzzle, _ := layer.ConstructPuzzle(ctx)

			actions := []driver.Spend{
				driver.NewSpend(add4, clvm.Nil),
				driver.NewSpend(mul10, clvm.Nil),
				driver.NewSpend(add4, clvm.Nil),
				driver.NewSpend(add1, clvm.Nil),
			}
			sol, err := layer.ConstructSolution(ctx, actionlayer.Solution{ActionHashes: whitelist, Actions: actions})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould build the solution: %v", failed, testID, err)
			}

			out, err := ctx.Run(puzzle, sol)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould run the layer puzzle: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould run the layer puzzle.", success, testID)

			childPH, _ := layer.WithState(counter{Value: 75}).PuzzleHash(lib)
			if childPH != clvm.MustParseBytes32("e02e443bd4d7731065059fd16448e61c0998e96a1fc373f998d568486d5bb1e3") {
				t.Fatalf("\t%s\tTest %d:\tShould hash the child layer: %s", failed, testID, childPH)
			}

			exp := ctx.List(
				ctx.List(ctx.NewInt64(int64(driver.OpCreateCoin)), ctx.NewBytes32(childPH), ctx.NewUint64(1), ctx.List(ctx.NewBytes32(filled(9)))),
				remark(ctx, 1),
				remark(ctx, 4),
				remark(ctx, 4),
			)
			if ctx.TreeHash(out) != ctx.TreeHash(exp) {
				got, _ := driver.ParseConditions(ctx.Allocator, out)
				t.Fatalf("\t%s\tTest %d:\tShould recreate the coin and emit the last action first: %s", failed, testID, spew.Sdump(got))
			}
			t.Logf("\t%s\tTest %d:\tShould recreate the coin and emit the last action first.", success, testID)

			mirror, err := layer.Execute(ctx, sol)
			if err != nil || mirror.State.Value != 75 {
				t.Fatalf("\t%s\tTest %d:\tShould execute to state 75: %v %d", failed, testID, err, mirror.State.Value)
			}

			node, _ := mirror.Conditions.ToClvm(ctx.Allocator)
			if ctx.TreeHash(node) != ctx.TreeHash(out) {
				t.Fatalf("\t%s\tTest %d:\tShould execute to the puzzle output: %s", failed, testID, spew.Sdump(mirror.Conditions))
			}
			t.Logf("\t%s\tTest %d:\tShould execute to the puzzle output.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the reserve finalizer approves the reserve spend.", testID)
		{
			ctx := driver.New(driver.Config{Library: lib, Runner: drivertest.NewRunner()})

			pay10, pay5 := program(ctx, payHex, 10), program(ctx, payHex, 5)
			whitelist := []clvm.Bytes32{ctx.TreeHash(pay10), ctx.TreeHash(pay5)}

			f := actionlayer.ReserveFinalizer{ReserveFullPuzzleHash: filled(7), ReserveInnerPuzzleHash: filled(8), Hint: filled(1)}
			layer, _ := actionlayer.New(whitelist, pool{Reserve: 100}, f)
			puzzle, _ := layer.ConstructPuzzle(ctx)

			sol, err := layer.ConstructSolution(ctx, actionlayer.Solution{
				ActionHashes:      whitelist,
				Actions:           []driver.Spend{driver.NewSpend(pay10, clvm.Nil), driver.NewSpend(pay5, clvm.Nil)},
				FinalizerSolution: ctx.List(ctx.NewBytes32(filled(5))),
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould build the solution: %v", failed, testID, err)
			}

			out, err := ctx.Run(puzzle, sol)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould run the layer puzzle: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould run the layer puzzle.", success, testID)

			childPH, _ := layer.WithState(pool{Reserve: 115, Deposits: 2}).PuzzleHash(lib)
			if childPH != clvm.MustParseBytes32("2faad688aade4e08a0866ac71f51495ab0e688c0f36e775c14ecaef838d06688") {
				t.Fatalf("\t%s\tTest %d:\tShould hash the child layer: %s", failed, testID, childPH)
			}

			reserveConds := []clvm.NodePtr{
				ctx.List(ctx.NewUint64(2), ctx.NewUint64(10)),
				ctx.List(ctx.NewUint64(1), ctx.NewUint64(10)),
				ctx.List(ctx.NewUint64(2), ctx.NewUint64(5)),
				ctx.List(ctx.NewUint64(1), ctx.NewUint64(5)),
			}
			delegated := f.DelegatedPuzzle(ctx, 115, reserveConds)
			if ctx.TreeHash(delegated) != clvm.MustParseBytes32("a47ab0fda3a2c0875a9c7ff888d9f7a17ee0b4430b8a3e4f20b911bd4a84e0b1") {
				t.Fatalf("\t%s\tTest %d:\tShould hash the delegated puzzle: %s", failed, testID, ctx.TreeHash(delegated))
			}

			reserveID := database.NewCoin(filled(5), filled(7), 100).CoinID()
			if reserveID != clvm.MustParseBytes32("e52ba91bb77cca45b8b8cd94f247ac7892302fbf096b9500d96963bd90cbe374") {
				t.Fatalf("\t%s\tTest %d:\tShould hash the reserve coin: %s", failed, testID, reserveID)
			}

			message, _ := actionlayer.ReserveMessage(ctx, delegated, reserveID).ToClvm(ctx.Allocator)
			exp := ctx.List(
				ctx.List(ctx.NewInt64(int64(driver.OpCreateCoin)), ctx.NewBytes32(childPH), ctx.NewUint64(1), ctx.List(ctx.NewBytes32(filled(1)))),
				message,
				remark(ctx, 110),
				remark(ctx, 10),
				remark(ctx, 105),
				remark(ctx, 5),
			)
			if ctx.TreeHash(out) != ctx.TreeHash(exp) {
				got, _ := driver.ParseConditions(ctx.Allocator, out)
				t.Fatalf("\t%s\tTest %d:\tShould approve the reserve and reverse each action: %s", failed, testID, spew.Sdump(got))
			}
			t.Logf("\t%s\tTest %d:\tShould approve the reserve and reverse each action.", success, testID)

			mirror, err := layer.Execute(ctx, sol)
			if err != nil || mirror.State != (pool{Reserve: 115, Deposits: 2}) {
				t.Fatalf("\t%s\tTest %d:\tShould execute to the new pool: %v %s", failed, testID, err, spew.Sdump(mirror.State))
			}

			node, _ := mirror.Conditions.ToClvm(ctx.Allocator)
			if ctx.TreeHash(node) != ctx.TreeHash(out) {
				t.Fatalf("\t%s\tTest %d:\tShould execute to the puzzle output: %s", failed, testID, spew.Sdump(mirror.Conditions))
			}
			t.Logf("\t%s\tTest %d:\tShould execute to the puzzle output.", success, testID)
		}
	}
}

func Test_HashIn(t *testing.T) {
	t.Log("Given the need to hash a layer whose state lives in the arena.")
	{
		ctx := driver.New(driver.Config{Library: puzzles.Default().WithStandIns()})

		testID := 0
		t.Logf("\tTest %d:\tWhen the state is a raw node.", testID)
		{
			state := clvm.Raw(ctx.List(ctx.NewUint64(5), ctx.NewString("raw state")))
			layer, _ := actionlayer.New([]clvm.Bytes32{filled(1), filled(2)}, state, actionlayer.DefaultFinalizer{Hint: filled(9)})

			n, err := layer.ConstructPuzzle(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould construct the puzzle: %v", failed, testID, err)
			}

			ph, err := layer.HashIn(ctx)
			if err != nil || ph != ctx.TreeHash(n) {
				t.Fatalf("\t%s\tTest %d:\tShould hash like the constructed puzzle: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould hash like the constructed puzzle.", success, testID)
		}
	}
}
