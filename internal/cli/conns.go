package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"kestrel/internal/query"
)

var connsCmd = &cobra.Command{
	Use:     "conns",
	Aliases: []string{"connections"},
	Short:   "List live connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		records, err := appInstance.Bridge.GetConnections(ctx)
		if err != nil {
			return fmt.Errorf("failed to list connections: %w", err)
		}

		search, _ := cmd.Flags().GetString("search")
		sortBy, _ := cmd.Flags().GetString("sort")
		desc, _ := cmd.Flags().GetBool("desc")

		order := query.Ascending
		if desc {
			order = query.Descending
		}
		records = query.FilterSort(records, "", strings.Fields(search), query.SortKey(sortBy), order)

		if len(records) == 0 {
			fmt.Println("No connections.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Host", "Process", "Rule", "Chain", "Up", "Down"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)

		for _, r := range records {
			chain := ""
			if len(r.Chains) > 0 {
				chain = r.Chains[0]
			}
			table.Append([]string{
				r.Host,
				r.Process,
				r.Rule,
				chain,
				formatBytes(r.Upload),
				formatBytes(r.Download),
			})
		}
		table.Render()

		fmt.Printf("\n%d connections\n", len(records))
		return nil
	},
}

var connsCloseCmd = &cobra.Command{
	Use:   "close [connection-id]",
	Short: "Close one connection, or all with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		all, _ := cmd.Flags().GetBool("all")
		if all {
			if err := appInstance.Bridge.CloseAllConnections(ctx); err != nil {
				return fmt.Errorf("failed to close connections: %w", err)
			}
			fmt.Println("All connections closed.")
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("please specify a connection id or use --all")
		}
		if err := appInstance.Bridge.CloseConnection(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
		fmt.Println("Connection closed.")
		return nil
	},
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func init() {
	connsCmd.Flags().StringP("search", "s", "", "filter by space-separated keywords")
	connsCmd.Flags().String("sort", "time", "sort key (time, traffic, host, process)")
	connsCmd.Flags().Bool("desc", false, "sort descending")

	connsCloseCmd.Flags().Bool("all", false, "close every live connection")
	connsCmd.AddCommand(connsCloseCmd)

	rootCmd.AddCommand(connsCmd)
}
