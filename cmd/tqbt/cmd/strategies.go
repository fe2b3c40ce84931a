package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/strategies"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the available strategies and their default params",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDESCRIPTION")
		for _, e := range strategies.List() {
			fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Description)
			if len(e.Defaults) > 0 {
				fmt.Fprintf(tw, "\t  defaults: %s\n", e.Defaults)
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
