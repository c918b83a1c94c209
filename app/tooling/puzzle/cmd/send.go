package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	from   string
	to     string
	amount uint64
	fee    uint64
	memos  []string
	commit bool
)

type sendRequest struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Amount uint64   `json:"amount"`
	Fee    uint64   `json:"fee"`
	Memos  []string `json:"memos,omitempty"`
	Commit bool     `json:"commit"`
}

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Plan a send on the node and optionally commit it",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := sendRequest{
			From:   from,
			To:     to,
			Amount: amount,
			Fee:    fee,
			Memos:  memos,
			Commit: commit,
		}

		data, err := json.Marshal(req)
		if err != nil {
			return err
		}

		resp, err := http.Post(nodeURL("/v1/spends/send"), "application/json", bytes.NewBuffer(data))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		return printResponse(cmd, resp)
	},
}

// balanceCmd represents the balance command
var balanceCmd = &cobra.Command{
	Use:   "balance <name>",
	Short: "Print the balance of a named key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(nodeURL("/v1/balances/" + url.PathEscape(args[0])))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		return printResponse(cmd, resp)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&from, "from", "f", "", "Name of the sending key.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Name or puzzle hash of the recipient.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "v", 0, "Amount to send.")
	sendCmd.Flags().Uint64VarP(&fee, "fee", "c", 0, "Fee to reserve.")
	sendCmd.Flags().StringArrayVarP(&memos, "memo", "m", nil, "Hex memo, may be repeated.")
	sendCmd.Flags().BoolVar(&commit, "commit", false, "Apply the spends to the node's coin store.")
	sendCmd.MarkFlagRequired("from")
	sendCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(balanceCmd)
}

func nodeURL(path string) string {
	return strings.TrimSuffix(viper.GetString(keyNode), "/") + path
}

// printResponse prints a node response, or returns the node's error.
func printResponse(cmd *cobra.Command, resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
			return fmt.Errorf("node: %s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("node: %s", resp.Status)
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return err
	}
	return printJSON(cmd, v)
}
