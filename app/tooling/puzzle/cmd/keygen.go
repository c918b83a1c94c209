package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/puzzlekit/business/layers"
	"github.com/ardanlabs/puzzlekit/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// keygenCmd represents the keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen <name>",
	Short: "Generate a new key pair in the keys folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := library()
		if err != nil {
			return err
		}

		name := strings.TrimSuffix(args[0], keyExtension)
		folder := viper.GetString(keyKeys)
		path := filepath.Join(folder, name+keyExtension)

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("key %q already exists", path)
		}

		if err := os.MkdirAll(folder, 0o755); err != nil {
			return err
		}

		privateKey, err := crypto.GenerateKey()
		if err != nil {
			return err
		}

		if err := crypto.SaveECDSA(path, privateKey); err != nil {
			return err
		}

		pub := signature.K1PublicKey(privateKey)

		return printJSON(cmd, map[string]any{
			"name":        name,
			"file":        path,
			"public_key":  hexutil.Bytes(pub),
			"puzzle_hash": layers.StandardPuzzleHash(lib, pub),
		})
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
