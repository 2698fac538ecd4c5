package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kestrel/internal/bridge"
	pkgerrors "kestrel/pkg/errors"
)

const cliTimeout = 30 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		status, err := appInstance.Bridge.GetStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to get engine status: %w", err)
		}

		state := "stopped"
		if status.Running {
			state = "running"
		}
		fmt.Printf("Engine:        %s\n", state)
		if status.Running {
			fmt.Printf("Mode:          %s\n", status.Mode)
			if status.Ports.Mixed > 0 {
				fmt.Printf("Mixed port:    %d\n", status.Ports.Mixed)
			} else {
				fmt.Printf("HTTP port:     %d\n", status.Ports.HTTP)
				fmt.Printf("SOCKS port:    %d\n", status.Ports.Socks)
			}
		}
		fmt.Printf("System proxy:  %v\n", status.SystemProxyEnabled)
		fmt.Printf("Enhanced mode: %v\n", status.EnhancedModeEnabled)
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the proxy engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		if err := appInstance.Bridge.Start(ctx); err != nil {
			if pkgerrors.IsElevationRequired(err) {
				return fmt.Errorf("engine start needs elevated privileges: %w", err)
			}
			return fmt.Errorf("failed to start engine: %w", err)
		}
		fmt.Println("Engine started.")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the proxy engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		if err := appInstance.Bridge.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop engine: %w", err)
		}
		fmt.Println("Engine stopped.")
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the proxy engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		if err := appInstance.Bridge.Restart(ctx); err != nil {
			return fmt.Errorf("failed to restart engine: %w", err)
		}
		fmt.Println("Engine restarted.")
		return nil
	},
}

var modeCmd = &cobra.Command{
	Use:       "mode [rule|global|direct]",
	Short:     "Show or set the routing mode",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"rule", "global", "direct"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
		defer cancel()

		if len(args) == 0 {
			mode, err := appInstance.Bridge.GetRunMode(ctx)
			if err != nil {
				return fmt.Errorf("failed to get run mode: %w", err)
			}
			fmt.Println(mode)
			return nil
		}

		mode := bridge.RunMode(args[0])
		if !mode.Valid() {
			return fmt.Errorf("invalid mode %q (want rule, global or direct)", args[0])
		}
		if err := appInstance.Bridge.SetRunMode(ctx, mode); err != nil {
			return fmt.Errorf("failed to set run mode: %w", err)
		}
		fmt.Printf("Mode set to %s.\n", mode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(modeCmd)
}
