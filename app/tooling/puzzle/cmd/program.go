package cmd

import (
	"github.com/ardanlabs/puzzlekit/business/core/program"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var backrefs bool

// treeHashCmd represents the treehash command
var treeHashCmd = &cobra.Command{
	Use:   "treehash <program>",
	Short: "Print the tree hash of a serialized program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := program.TreeHash(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"tree_hash": hash})
	},
}

// curryCmd represents the curry command
var curryCmd = &cobra.Command{
	Use:   "curry <mod> [arg...]",
	Short: "Bind serialized arguments to a mod",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		curried, err := program.Curry(args[0], args[1:])
		if err != nil {
			return err
		}
		return printJSON(cmd, curried)
	},
}

// uncurryCmd represents the uncurry command
var uncurryCmd = &cobra.Command{
	Use:   "uncurry <program>",
	Short: "Split a curried program into its mod and arguments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := program.Uncurry(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, u)
	},
}

// serializeCmd represents the serialize command
var serializeCmd = &cobra.Command{
	Use:   "serialize <program>",
	Short: "Re-encode a program, optionally with back references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := program.Serialize(args[0], backrefs)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"program": hexutil.Bytes(b), "length": len(b)})
	},
}

func init() {
	rootCmd.AddCommand(treeHashCmd)
	rootCmd.AddCommand(curryCmd)
	rootCmd.AddCommand(uncurryCmd)
	rootCmd.AddCommand(serializeCmd)
	serializeCmd.Flags().BoolVarP(&backrefs, "backrefs", "b", false, "Compress repeated subtrees with back references.")
}
