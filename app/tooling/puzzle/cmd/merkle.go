package cmd

import (
	"fmt"

	"github.com/ardanlabs/puzzlekit/business/core/program"
	"github.com/ardanlabs/puzzlekit/foundation/clvm"
	"github.com/spf13/cobra"
)

var leaves []string

// merkleCmd represents the merkle command
var merkleCmd = &cobra.Command{
	Use:   "merkle <leaf>",
	Short: "Prove a leaf is part of the tree of a list of leaves",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		leaf, err := clvm.ParseBytes32(args[0])
		if err != nil {
			return fmt.Errorf("leaf: %w", err)
		}

		hashes := make([]clvm.Bytes32, len(leaves))
		for i, l := range leaves {
			if hashes[i], err = clvm.ParseBytes32(l); err != nil {
				return fmt.Errorf("leaf %d: %w", i, err)
			}
		}

		mp, err := program.Proof(hashes, leaf)
		if err != nil {
			return err
		}
		return printJSON(cmd, mp)
	},
}

func init() {
	rootCmd.AddCommand(merkleCmd)
	merkleCmd.Flags().StringSliceVarP(&leaves, "leaves", "l", nil, "Comma separated list of 32 byte leaves.")
}
