package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"kestrel/internal/storage/models"
)

var subCmd = &cobra.Command{
	Use:     "sub",
	Aliases: []string{"subscription"},
	Short:   "Manage node subscriptions",
	Long:    "Add, update, list, and remove remote node-list subscriptions",
}

var subAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a subscription",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		autoUpdate, _ := cmd.Flags().GetBool("auto-update")
		interval, _ := cmd.Flags().GetDuration("interval")

		sub := &models.Subscription{
			Name:           args[0],
			URL:            args[1],
			AutoUpdate:     autoUpdate,
			UpdateInterval: int(interval.Seconds()),
		}
		if err := appInstance.Storage.CreateSubscription(ctx, sub); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		fmt.Printf("Subscription %q added.\n", sub.Name)

		// Fetch immediately so the node list is usable right away.
		result, err := appInstance.SubManager.Update(ctx, sub.ID)
		if err != nil {
			fmt.Printf("Initial fetch failed: %v (retry with `kestrel sub update %s`)\n", err, sub.Name)
			return nil
		}
		fmt.Printf("Fetched %d nodes.\n", result.NodeCount)
		return nil
	},
}

var subListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		subs, err := appInstance.Storage.GetAllSubscriptions(ctx)
		if err != nil {
			return fmt.Errorf("failed to list subscriptions: %w", err)
		}
		if len(subs) == 0 {
			fmt.Println("No subscriptions.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Name", "Nodes", "Auto", "Interval", "Last Updated"})
		table.SetBorder(false)

		for _, sub := range subs {
			auto := "no"
			if sub.AutoUpdate {
				auto = "yes"
			}
			interval := "-"
			if sub.UpdateInterval > 0 {
				interval = (time.Duration(sub.UpdateInterval) * time.Second).String()
			}
			updated := "never"
			if sub.LastUpdated != nil {
				updated = sub.LastUpdated.Format("2006-01-02 15:04")
			}
			table.Append([]string{
				sub.Name,
				fmt.Sprintf("%d", len(sub.NodeURIs)),
				auto,
				interval,
				updated,
			})
		}
		table.Render()
		return nil
	},
}

var subUpdateCmd = &cobra.Command{
	Use:   "update [name]",
	Short: "Update one subscription, or every due one with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if all, _ := cmd.Flags().GetBool("all"); all {
			results, err := appInstance.SubManager.UpdateAllDue(ctx)
			if err != nil {
				return fmt.Errorf("failed to update subscriptions: %w", err)
			}
			if len(results) == 0 {
				fmt.Println("No subscriptions due for update.")
				return nil
			}
			for _, r := range results {
				if r.Err != nil {
					fmt.Printf("  %-24s failed: %v\n", r.Name, r.Err)
				} else {
					fmt.Printf("  %-24s %d nodes\n", r.Name, r.NodeCount)
				}
			}
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("please specify a subscription name or use --all")
		}
		result, err := appInstance.SubManager.UpdateByName(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}
		fmt.Printf("Updated %s: %d nodes.\n", result.Name, result.NodeCount)
		return nil
	},
}

var subRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a subscription",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		sub, err := appInstance.Storage.GetSubscriptionByName(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to find subscription: %w", err)
		}
		if err := appInstance.Storage.DeleteSubscription(ctx, sub.ID); err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		fmt.Printf("Subscription %q removed.\n", sub.Name)
		return nil
	},
}

func init() {
	subAddCmd.Flags().Bool("auto-update", false, "refresh automatically in the background")
	subAddCmd.Flags().Duration("interval", 24*time.Hour, "auto-update interval")

	subUpdateCmd.Flags().Bool("all", false, "update every due subscription")

	subCmd.AddCommand(subAddCmd)
	subCmd.AddCommand(subListCmd)
	subCmd.AddCommand(subUpdateCmd)
	subCmd.AddCommand(subRemoveCmd)
	rootCmd.AddCommand(subCmd)
}
