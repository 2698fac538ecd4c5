package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"kestrel/internal/bridge"
	"kestrel/internal/delay"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List proxy groups and their nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		groups, err := appInstance.Bridge.GetNodeGroups(ctx)
		if err != nil {
			return fmt.Errorf("failed to list node groups: %w", err)
		}
		if len(groups) == 0 {
			fmt.Println("No proxy groups (engine stopped or profile has none).")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Group", "Type", "Active", "Nodes"})
		table.SetBorder(false)

		for _, g := range groups {
			table.Append([]string{g.Name, g.Type, g.Now, fmt.Sprintf("%d", len(g.Members))})
		}
		table.Render()
		return nil
	},
}

var nodesSelectCmd = &cobra.Command{
	Use:   "select <group> <node>",
	Short: "Switch a group's active node",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		if err := appInstance.Bridge.SelectNode(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to select node: %w", err)
		}
		fmt.Printf("%s -> %s\n", args[0], args[1])
		return nil
	},
}

var nodesTestCmd = &cobra.Command{
	Use:   "test [node...]",
	Short: "Probe node latency",
	Long:  "Probe the given nodes, or every node of a group with --group. DIRECT and REJECT are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		names := args
		if group, _ := cmd.Flags().GetString("group"); group != "" {
			listCtx, cancel := context.WithTimeout(ctx, cliTimeout)
			groups, err := appInstance.Bridge.GetNodeGroups(listCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("failed to list node groups: %w", err)
			}
			for _, g := range groups {
				if g.Name == group {
					names = append(names, g.Members...)
				}
			}
		}
		if len(names) == 0 {
			return fmt.Errorf("please specify node names or --group")
		}

		// Count the probes that will actually run so we know when the
		// incremental results are complete.
		expected := 0
		for _, name := range names {
			if name != bridge.NodeDirect && name != bridge.NodeReject {
				expected++
			}
		}

		done := make(chan delay.Result, expected)
		appInstance.SetOnDelayResult(func(r delay.Result) { done <- r })
		appInstance.Tester.TestAll(ctx, names)

		deadline := time.After(cliTimeout)
		for i := 0; i < expected; i++ {
			select {
			case r := <-done:
				if r.Failed() {
					fmt.Printf("  %-40s timeout\n", r.NodeName)
				} else {
					fmt.Printf("  %-40s %d ms\n", r.NodeName, r.DelayMS)
				}
			case <-deadline:
				return fmt.Errorf("timed out waiting for %d remaining probes", expected-i)
			}
		}
		return nil
	},
}

func init() {
	nodesTestCmd.Flags().StringP("group", "g", "", "test every node in a group")

	nodesCmd.AddCommand(nodesSelectCmd)
	nodesCmd.AddCommand(nodesTestCmd)
	rootCmd.AddCommand(nodesCmd)
}
