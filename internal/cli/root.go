package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kestrel/internal/app"
)

var (
	appInstance *app.App
	version     = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kestrel",
	Short: "Kestrel - control panel for a local proxy engine",
	Long: `Kestrel - control panel for a local proxy engine

  Mirrors the engine's runtime state (status, traffic, connections, nodes)
  and drives it: start/stop, routing mode, node selection, delay testing.

  Quick start:
    kestrel              launch the interactive panel
    kestrel status       one-shot engine status
    kestrel conns        list live connections
    kestrel nodes test   probe node latency`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dbPath, _ := cmd.Flags().GetString("db")
		logLevel, _ := cmd.Flags().GetString("log-level")

		var err error
		appInstance, err = app.New(app.Options{
			ConfigPath: configPath,
			DBPath:     dbPath,
			LogLevel:   logLevel,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if appInstance != nil {
			return appInstance.Close()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand launches the interactive panel.
		return runTUI()
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "", "database path")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Kestrel %s\n", version)
	},
}
