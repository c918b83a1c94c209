// Package puzzles maintains the immutable library of puzzle programs that
// the drivers curry, hash and reveal.
package puzzles

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ardanlabs/puzzlekit/foundation/clvm"
)

// ErrUnknownPuzzle is returned when a program is requested that the library
// does not carry.
var ErrUnknownPuzzle = errors.New("unknown puzzle")

//go:embed hex/*.hex
var embedded embed.FS

// Name identifies a puzzle program inside a library.
type Name string

// Set of puzzles embedded in the default library.
const (
	ActionLayer                  Name = "action_layer"
	DefaultFinalizer             Name = "default_finalizer"
	ReserveFinalizer             Name = "reserve_finalizer"
	Slot                         Name = "slot"
	PrecommitLayer               Name = "precommit_layer"
	CatalogRegister              Name = "catalog_register"
	CatalogRefund                Name = "catalog_refund"
	XchandlesRegister            Name = "xchandles_register"
	XchandlesRefund              Name = "xchandles_refund"
	XchandlesExpire              Name = "xchandles_expire"
	XchandlesExtend              Name = "xchandles_extend"
	XchandlesUpdate              Name = "xchandles_update"
	XchandlesOracle              Name = "xchandles_oracle"
	XchandlesFactorPricing       Name = "xchandles_factor_pricing"
	XchandlesExponentialPremium  Name = "xchandles_exponential_premium"
	DelegatedStateAction         Name = "delegated_state_action"
	UniquenessPrelauncher        Name = "uniqueness_prelauncher"
	DefaultCatMaker              Name = "default_cat_maker"
	AnyMetadataUpdater           Name = "any_metadata_updater"
	P2DelegatedBySingleton       Name = "p2_delegated_by_singleton"
	OptionContract               Name = "option_contract"
	Restrictions                 Name = "restrictions"
	DelegatedFeeder              Name = "delegated_feeder"
	PasskeyMember                Name = "passkey_member"
	NonceWrapper                 Name = "nonce_wrapper"
	RewardDistributorSync        Name = "reward_distributor_sync"
	RewardDistributorIncentives  Name = "reward_distributor_add_incentives"
	RewardDistributorNewEpoch    Name = "reward_distributor_new_epoch"
	RewardDistributorAddEntry    Name = "reward_distributor_add_entry"
	RewardDistributorRemoveEntry Name = "reward_distributor_remove_entry"
	RewardDistributorPayout      Name = "reward_distributor_initiate_payout"
	RewardDistributorWithdraw    Name = "reward_distributor_withdraw_incentives"
)

// Set of puzzles the drivers understand but that must be supplied through
// Load or With, since they are published outside this module.
const (
	Singleton                      Name = "singleton_top_layer_v1_1"
	SingletonLauncher              Name = "singleton_launcher"
	Cat                            Name = "cat_v2"
	GenesisByCoinID                Name = "genesis_by_coin_id"
	NftStateLayer                  Name = "nft_state_layer"
	NftOwnershipLayer              Name = "nft_ownership_layer"
	NftRoyaltyTransfer             Name = "nft_ownership_transfer_program_one_way_claim_with_royalties"
	DidInnerPuzzle                 Name = "did_innerpuz"
	Standard                       Name = "p2_delegated_puzzle_or_hidden_puzzle"
	SettlementPayment              Name = "settlement_payment"
	IndexWrapper                   Name = "index_wrapper"
	OneOfN                         Name = "1_of_n"
	MofN                           Name = "m_of_n"
	NofN                           Name = "n_of_n"
	K1Member                       Name = "secp256k1_member"
	K1MemberPuzzleAssert           Name = "secp256k1_member_puzzle_assert"
	R1Member                       Name = "secp256r1_member"
	R1MemberPuzzleAssert           Name = "secp256r1_member_puzzle_assert"
	PasskeyMemberPuzzleAssert      Name = "passkey_member_puzzle_assert"
	BlsMember                      Name = "bls_member"
	SingletonMember                Name = "singleton_member"
	FixedPuzzleMember              Name = "fixed_puzzle_member"
	Timelock                       Name = "timelock"
	PreventConditionOpcode         Name = "prevent_condition_opcode"
	PreventMultipleCreateCoins     Name = "prevent_multiple_create_coins"
	EnforceDelegatedPuzzleWrappers Name = "enforce_delegated_puzzle_wrappers"
	AddDelegatedPuzzleWrapper      Name = "add_delegated_puzzle_wrapper"
	Force1of2RestrictedVariable    Name = "force_1_of_2_restricted_variable"
	AugmentedCondition             Name = "augmented_condition"
)

// External lists the puzzles that are not embedded.
var External = []Name{
	Singleton, SingletonLauncher, Cat, GenesisByCoinID, NftStateLayer,
	NftOwnershipLayer, NftRoyaltyTransfer, DidInnerPuzzle, Standard,
	SettlementPayment, IndexWrapper, OneOfN, MofN, NofN, K1Member,
	K1MemberPuzzleAssert, R1Member, R1MemberPuzzleAssert,
	PasskeyMemberPuzzleAssert, BlsMember, SingletonMember, FixedPuzzleMember,
	Timelock, PreventConditionOpcode, PreventMultipleCreateCoins,
	EnforceDelegatedPuzzleWrappers, AddDelegatedPuzzleWrapper,
	Force1of2RestrictedVariable, AugmentedCondition,
}

// =============================================================================

// Library is an immutable set of named puzzle programs and their tree hashes.
// Every method that changes the set returns a new Library.
type Library struct {
	programs map[Name][]byte
	hashes   map[Name]clvm.Bytes32
}

// Default returns the library of embedded puzzles.
func Default() Library {
	lib := Library{
		programs: make(map[Name][]byte),
		hashes:   make(map[Name]clvm.Bytes32),
	}

	entries, err := embedded.ReadDir("hex")
	if err != nil {
		panic(err)
	}

	for _, entry := range entries {
		content, err := embedded.ReadFile("hex/" + entry.Name())
		if err != nil {
			panic(err)
		}

		name := Name(strings.TrimSuffix(entry.Name(), ".hex"))
		if err := lib.set(name, string(content)); err != nil {
			panic(fmt.Sprintf("embedded puzzle %s: %s", name, err))
		}
	}

	return lib
}

// Load returns the default library overlaid with every <name>.hex file found
// in the specified directory.
func Load(dir string) (Library, error) {
	lib := Default()
	if dir == "" {
		return lib, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.hex"))
	if err != nil {
		return Library{}, err
	}

	lib = lib.clone()
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return Library{}, err
		}

		name := Name(strings.TrimSuffix(filepath.Base(file), ".hex"))
		if err := lib.set(name, string(content)); err != nil {
			return Library{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	return lib, nil
}

// With returns a copy of the library with the named program replaced.
func (lib Library) With(name Name, program []byte) (Library, error) {
	a := clvm.NewAllocator()
	node, err := a.Deserialize(program)
	if err != nil {
		return Library{}, fmt.Errorf("puzzle %s: %w", name, err)
	}

	cp := lib.clone()
	cp.programs[name] = append([]byte(nil), program...)
	cp.hashes[name] = a.TreeHash(node)

	return cp, nil
}

// WithStandIns returns a copy of the library that carries a distinct
// placeholder program for every external puzzle that is missing. The
// placeholders let puzzle trees be built, hashed and parsed offline, but
// their hashes do not match any published puzzle.
func (lib Library) WithStandIns() Library {
	cp := lib.clone()
	for _, name := range External {
		if _, exists := cp.programs[name]; exists {
			continue
		}

		a := clvm.NewAllocator()
		node := a.Quote(a.NewString("puzzlekit/" + string(name)))
		program, err := a.Serialize(node)
		if err != nil {
			panic(err)
		}

		cp.programs[name] = program
		cp.hashes[name] = a.TreeHash(node)
	}

	return cp
}

// Program returns the serialized program for the named puzzle.
func (lib Library) Program(name Name) ([]byte, error) {
	program, exists := lib.programs[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPuzzle, name)
	}

	return program, nil
}

// Hash returns the tree hash of the named puzzle.
func (lib Library) Hash(name Name) (clvm.Bytes32, error) {
	hash, exists := lib.hashes[name]
	if !exists {
		return clvm.Bytes32{}, fmt.Errorf("%w: %s", ErrUnknownPuzzle, name)
	}

	return hash, nil
}

// MustHash returns the tree hash of the named puzzle and panics when the
// library does not carry it.
func (lib Library) MustHash(name Name) clvm.Bytes32 {
	hash, err := lib.Hash(name)
	if err != nil {
		panic(err)
	}

	return hash
}

// Has reports whether the library carries the named puzzle.
func (lib Library) Has(name Name) bool {
	_, exists := lib.programs[name]
	return exists
}

// Names returns the names of every puzzle in the library in sorted order.
func (lib Library) Names() []Name {
	names := make([]Name, 0, len(lib.programs))
	for name := range lib.programs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	return names
}

// Lookup returns the name of the puzzle with the specified tree hash.
func (lib Library) Lookup(hash clvm.Bytes32) (Name, bool) {
	for name, h := range lib.hashes {
		if h == hash {
			return name, true
		}
	}

	return "", false
}

// =============================================================================

func (lib Library) clone() Library {
	cp := Library{
		programs: make(map[Name][]byte, len(lib.programs)),
		hashes:   make(map[Name]clvm.Bytes32, len(lib.hashes)),
	}
	for k, v := range lib.programs {
		cp.programs[k] = v
	}
	for k, v := range lib.hashes {
		cp.hashes[k] = v
	}

	return cp
}

func (lib Library) set(name Name, hexProgram string) error {
	program, err := clvm.DecodeHex(strings.TrimSpace(hexProgram))
	if err != nil {
		return err
	}

	a := clvm.NewAllocator()
	node, err := a.Deserialize(program)
	if err != nil {
		return err
	}

	lib.programs[name] = program
	lib.hashes[name] = a.TreeHash(node)

	return nil
}
