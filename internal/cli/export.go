package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kestrel/internal/metrics"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Serve Prometheus metrics for the engine",
	Long: `Run the monitoring loops headless and expose the mirrored state
(engine status, traffic, connections, node delays) as Prometheus metrics
on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = appInstance.Config.MetricsAddr
		}
		if addr == "" {
			addr = ":9090"
		}

		appInstance.Run(ctx)

		collector := metrics.NewCollector(appInstance.Store, appInstance.Tester)
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(collector))

		server := &http.Server{Addr: addr, Handler: mux}
		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()

		fmt.Printf("Serving metrics on %s/metrics\n", addr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("metrics server failed: %w", err)
		case <-sigCh:
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	exportCmd.Flags().String("addr", "", "listen address (defaults to metrics_addr from config)")
	rootCmd.AddCommand(exportCmd)
}
