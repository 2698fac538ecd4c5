package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kestrel/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long:  `Launch the full-screen interactive panel: status dashboard, connections, nodes, and settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func runTUI() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire the UI before the background loops start so the startup
	// reconciliation's first push lands in the program, then run both.
	p := tui.NewProgram(appInstance)
	appInstance.Run(ctx)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
