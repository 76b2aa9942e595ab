package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/internal/lifecycle"
)

var transitionsCmd = &cobra.Command{
	Use:   "transitions",
	Short: "Print the order lifecycle transition table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		table := lifecycle.Table()
		rows := make([][]string, 0, len(table))
		for _, rule := range table {
			rows = append(rows, []string{
				string(rule.Action),
				joinStatuses(rule.From),
				joinStatuses(rule.To),
				string(rule.Actor),
			})
		}

		printHeader(out, "Order Lifecycle")
		printTable(out, []string{"ACTION", "FROM", "TO", "ACTOR"}, rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transitionsCmd)
}

func joinStatuses(statuses []contracts.Status) string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = s.String()
	}
	return strings.Join(names, " | ")
}
