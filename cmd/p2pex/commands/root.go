package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	policyFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "p2pex",
	Short: "P2P fiat/crypto exchange backend",
	Long: `p2pex unified CLI

Matching engine and escrow order lifecycle for a peer-to-peer
fiat/crypto exchange. Orders live in the escrow contract; this backend
reads snapshots of them, matches requests and mirrors settlement.

Usage:
  go run ./cmd/p2pex [command]

Examples:
  go run ./cmd/p2pex api
  go run ./cmd/p2pex scheduler start
  go run ./cmd/p2pex match --orders orders.json --amount 100 --side buy --requester 0xabc
  go run ./cmd/p2pex transitions
  go run ./cmd/p2pex test-db`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "matching policy YAML (overrides MATCH_POLICY_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
