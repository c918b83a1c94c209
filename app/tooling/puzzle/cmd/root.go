// Package cmd contains the puzzle tooling commands.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ardanlabs/puzzlekit/business/puzzles"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Configuration keys. Each is bound to a persistent flag of the same name
// and to an environment variable with the PUZZLEKIT prefix.
const (
	keyPuzzles  = "puzzles"
	keyStandIns = "stand-ins"
	keyKeys     = "keys"
	keyNode     = "node"
)

const keyExtension = ".ecdsa"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "puzzle",
	Short:         "Puzzle program utilities and node client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := Run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

// Run executes the command line in args and writes results to out.
func Run(args []string, out io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String(keyPuzzles, "", "Directory of <name>.hex puzzle overrides.")
	rootCmd.PersistentFlags().Bool(keyStandIns, true, "Use stand-ins for puzzles that are not supplied.")
	rootCmd.PersistentFlags().String(keyKeys, "zblock/keys/", "Directory with the private keys.")
	rootCmd.PersistentFlags().String(keyNode, "http://localhost:8080", "Url of the node.")

	for _, key := range []string{keyPuzzles, keyStandIns, keyKeys, keyNode} {
		viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}
}

// initConfig reads an optional puzzlekit.yaml from the working directory
// and the environment.
func initConfig() {
	viper.SetEnvPrefix("PUZZLEKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("puzzlekit")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
	}
}

// library loads the puzzle library the commands hash against.
func library() (puzzles.Library, error) {
	lib, err := puzzles.Load(viper.GetString(keyPuzzles))
	if err != nil {
		return puzzles.Library{}, err
	}

	if viper.GetBool(keyStandIns) {
		return lib.WithStandIns(), nil
	}

	for _, name := range puzzles.External {
		if !lib.Has(name) {
			return puzzles.Library{}, fmt.Errorf("puzzle %q not supplied, set --%s or --%s", name, keyPuzzles, keyStandIns)
		}
	}

	return lib, nil
}

// printJSON writes v to the command output as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
