package puzzles_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_DefaultHashes(t *testing.T) {
	tests := []struct {
		name puzzles.Name
		size int
		hash string
	}{
		{puzzles.ActionLayer, 670, "2ad6e558c952fb62de6428fb8d627bcd21ddf37aa8aabb43a8620d98e922a163"},
		{puzzles.DefaultFinalizer, 617, "34b1f957ca3ba935921c32625cd432316ae71344977d96b4ffc5243c7d08d781"},
		{puzzles.ReserveFinalizer, 884, "d277207ecea05d2b6a3874ef3bf5831cd224527eedab8c000a03b5511fb511de"},
		{puzzles.Slot, 359, "27de4bb4bc5c6881c08e7e57288e2b855d934fd6f03ef6d8657e15a35e8f96f8"},
		{puzzles.PrecommitLayer, 469, "10efe1dab105ef4780345baa2442196a26944040b12c0167375d79aaec89e33f"},
		{puzzles.CatalogRegister, 1564, "e044233b38e8f12c8a93ce4a1443f4a67fd89b9e3c53ce2bb6195b6fca3e4d9e"},
		{puzzles.CatalogRefund, 914, "7073bdb00158fb9cfbac3b6121760bc052d1b099f28deebf61c60ea688b13319"},
		{puzzles.XchandlesRegister, 1567, "faba8d7baabdf69289369a7d55331bf2a0b594b6aeb70f3d872e52b123d187e6"},
		{puzzles.XchandlesRefund, 1057, "02fd6f79996cb4a5adade14b7e0ef6239f49f1c657b68094c09583b2200b89e0"},
		{puzzles.XchandlesExpire, 1303, "d97f49ef4bd91aa3ebd5501240f625f8ad5f499cdf4b252e2c8e3d2c2ad99d23"},
		{puzzles.XchandlesExtend, 959, "479da4ab9f1072c233008912d6b88d9a2474f1c52b07e73176b5ba316e26bfcd"},
		{puzzles.XchandlesUpdate, 824, "66824757990b68234d4540b28ea8442bfdb2e875952222f002ea93cd6f8d93cb"},
		{puzzles.XchandlesOracle, 571, "1ba03341b929f37687610644f24a0cd36cb6ef019dc7289a0c2172d61482c23c"},
		{puzzles.XchandlesFactorPricing, 475, "a7edc890e6c256e4e729e826e7b45ad0616ec8d431e4e051ee68ddf4cae868bb"},
		{puzzles.XchandlesExponentialPremium, 333, "b54c0f4b73e63e78470366bd4006ca629d94f36c8ea58abacf8cc1cbb7724907"},
		{puzzles.DelegatedStateAction, 387, "145e54a297466100f202690d58bded6074834e2ae8cd4dfbcf66e33bb8b77c05"},
		{puzzles.UniquenessPrelauncher, 59, "851c3d39cef84cfd9449afcaeff5f50d1be9371d8b7d6057ac318bec553a1a9f"},
		{puzzles.DefaultCatMaker, 283, "0370e9c0343398cbe3487fb93d4aa24357005cdd67894e1cbae14772e778a75a"},
		{puzzles.AnyMetadataUpdater, 23, "9f28d55242a3bd2b3661c38ba8647392c26bb86594050ea6d33aad1725ca3eea"},
		{puzzles.P2DelegatedBySingleton, 382, "25fbd0d4586ff8266eb8b0fc4768b7714394d87f87824b0124fc10806ba87bb5"},
		{puzzles.OptionContract, 862, "5a084d1786fc0fe43c30bc5fc0233cc1a791cfde3a25580a9ca4883878f0ba63"},
		{puzzles.Restrictions, 204, "a28d59d39f964a93159c986b1914694f6f2f1c9901178f91e8b0ba4045980eef"},
		{puzzles.DelegatedFeeder, 203, "9db33d93853179903d4dd272a00345ee6630dc94907dbcdd96368df6931060fd"},
		{puzzles.PasskeyMember, 1424, "2877c080c18a408111ec86b108da56dd667f968ce38f87623ca084934127059c"},
		{puzzles.NonceWrapper, 7, "847d971ef523417d555ea9854b1612837155d34d453298defcd310774305f657"},
		{puzzles.RewardDistributorSync, 308, "9e2707ff8a4f5b52feb763a80c5c23073e588172c6220b4146f72b484c064546"},
		{puzzles.RewardDistributorIncentives, 261, "eb999158d98d1013b072b7443acca10a1bdfef2eab824ea25f0d71e2e30cec7e"},
		{puzzles.RewardDistributorNewEpoch, 839, "ac01b2b3c3c137fa08662cf51e7eb28a238de85dbb8759050f39ef3dc461bfb9"},
		{puzzles.RewardDistributorAddEntry, 581, "2674326f7f9fd76a08980466edec6b26b4a20e98d4c56a82d1938500835cde60"},
		{puzzles.RewardDistributorRemoveEntry, 671, "4cb611d7003037ead2cf96a08989f0f063db05dfc548fc68cee23fbcd6887bed"},
		{puzzles.RewardDistributorPayout, 724, "ae41bf077dfbfdb93069d841dac67f8856a5637e45cefc9e1ecd00e0025266a9"},
		{puzzles.RewardDistributorWithdraw, 805, "bb70077a60a28a4e262b286af3253ac52f977e1f9413b142a2efd83044a041f0"},
	}

	t.Log("Given the need to carry the published puzzle programs.")
	{
		lib := puzzles.Default()

		for testID, tt := range tests {
			t.Logf("\tTest %d:\tWhen loading %s.", testID, tt.name)
			{
				program, err := lib.Program(tt.name)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould carry the program: %v", failed, testID, err)
				}
				if len(program) != tt.size {
					t.Fatalf("\t%s\tTest %d:\tShould carry %d bytes, got %d.", failed, testID, tt.size, len(program))
				}
				t.Logf("\t%s\tTest %d:\tShould carry the program.", success, testID)

				exp := clvm.MustParseBytes32(tt.hash)
				if got := lib.MustHash(tt.name); got != exp {
					t.Logf("\t\tgot: %s", got)
					t.Logf("\t\texp: %s", exp)
					t.Fatalf("\t%s\tTest %d:\tShould hash to the published value.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould hash to the published value.", success, testID)

				if name, ok := lib.Lookup(exp); !ok || name != tt.name {
					t.Fatalf("\t%s\tTest %d:\tShould find the puzzle by hash.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould find the puzzle by hash.", success, testID)
			}
		}
	}
}

func Test_LibraryOverrides(t *testing.T) {
	t.Log("Given the need to supply puzzles published elsewhere.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen asking for an external puzzle.", testID)
		{
			lib := puzzles.Default()
			if _, err := lib.Program(puzzles.Singleton); !errors.Is(err, puzzles.ErrUnknownPuzzle) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrUnknownPuzzle, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrUnknownPuzzle.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen replacing a program with With.", testID)
		{
			lib := puzzles.Default()
			next, err := lib.With(puzzles.Singleton, []byte{0xff, 0x01, 0x82, 0x01, 0x02})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept a valid program: %v", failed, testID, err)
			}
			if lib.Has(puzzles.Singleton) {
				t.Fatalf("\t%s\tTest %d:\tShould leave the original library untouched.", failed, testID)
			}
			if !next.Has(puzzles.Singleton) {
				t.Fatalf("\t%s\tTest %d:\tShould carry the new program.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould return a modified copy.", success, testID)

			if _, err := lib.With(puzzles.Singleton, []byte{0xff, 0x01}); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a truncated program.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a truncated program.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen loading programs from a directory.", testID)
		{
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, string(puzzles.Cat)+".hex"), []byte("ff0180\n"), 0600); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould write the program file: %v", failed, testID, err)
			}

			lib, err := puzzles.Load(dir)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould load the directory: %v", failed, testID, err)
			}

			a := clvm.NewAllocator()
			exp := a.TreeHash(a.Quote(clvm.Nil))
			if got := lib.MustHash(puzzles.Cat); got != exp {
				t.Fatalf("\t%s\tTest %d:\tShould hash the loaded program, got %s.", failed, testID, got)
			}
			if !lib.Has(puzzles.ActionLayer) {
				t.Fatalf("\t%s\tTest %d:\tShould keep the embedded programs.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould overlay the embedded programs.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen filling external puzzles with stand ins.", testID)
		{
			lib := puzzles.Default().WithStandIns()

			seen := make(map[clvm.Bytes32]puzzles.Name)
			for _, name := range puzzles.External {
				hash, err := lib.Hash(name)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould carry %s: %v", failed, testID, name, err)
				}
				if other, exists := seen[hash]; exists {
					t.Fatalf("\t%s\tTest %d:\tShould give %s and %s distinct hashes.", failed, testID, name, other)
				}
				seen[hash] = name
			}
			t.Logf("\t%s\tTest %d:\tShould carry a distinct program for every external puzzle.", success, testID)
		}
	}
}
