package cmd

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/puzzlekit/business/core/program"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/spf13/cobra"
)

var (
	required      int
	members       []string
	timelock      uint64
	noSideEffects bool
)

// vaultHashCmd represents the vault-hash command
var vaultHashCmd = &cobra.Command{
	Use:   "vault-hash",
	Short: "Print the custody hash of a vault",
	Long: `Print the custody hash of a vault.

Members are given as kind:value. The value is the public key for the
k1, r1 and bls kinds, the launcher id for singleton, and the puzzle hash
for fixed_puzzle and custom. Passkeys take kind:challenge:key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := library()
		if err != nil {
			return err
		}

		c := program.Custody{
			Required:        required,
			TimelockSeconds: timelock,
			NoSideEffects:   noSideEffects,
		}
		for _, m := range members {
			member, err := parseMember(m)
			if err != nil {
				return err
			}
			c.Members = append(c.Members, member)
		}

		hash, err := program.VaultHash(lib, c)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"custody_hash": hash})
	},
}

func init() {
	rootCmd.AddCommand(vaultHashCmd)
	vaultHashCmd.Flags().IntVarP(&required, "required", "r", 1, "Members required to authorize.")
	vaultHashCmd.Flags().StringArrayVarP(&members, "member", "m", nil, "Member as kind:value, may be repeated.")
	vaultHashCmd.Flags().Uint64VarP(&timelock, "timelock", "t", 0, "Relative seconds every spend must wait.")
	vaultHashCmd.Flags().BoolVar(&noSideEffects, "no-side-effects", false, "Prevent the vault from creating side effects.")
}

func parseMember(s string) (program.Member, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return program.Member{}, fmt.Errorf("member %q: expected kind:value", s)
	}

	kind := strings.ToLower(parts[0])
	m := program.Member{Kind: kind}

	switch {
	case strings.HasPrefix(kind, "passkey"):
		if len(parts) != 3 {
			return program.Member{}, fmt.Errorf("member %q: expected kind:challenge:key", s)
		}
		hash, err := clvm.ParseBytes32(parts[1])
		if err != nil {
			return program.Member{}, fmt.Errorf("member %q: %w", s, err)
		}
		key, err := clvm.DecodeHex(parts[2])
		if err != nil {
			return program.Member{}, fmt.Errorf("member %q: %w", s, err)
		}
		m.Hash, m.PublicKey = hash, key

	case kind == "singleton" || kind == "fixed_puzzle" || kind == "custom":
		hash, err := clvm.ParseBytes32(parts[1])
		if err != nil {
			return program.Member{}, fmt.Errorf("member %q: %w", s, err)
		}
		m.Hash = hash

	default:
		key, err := clvm.DecodeHex(parts[1])
		if err != nil {
			return program.Member{}, fmt.Errorf("member %q: %w", s, err)
		}
		m.PublicKey = key
	}

	return m, nil
}
