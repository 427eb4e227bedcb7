package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	runMetricsAddr string
	runNoWatch     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingest pipeline",
	Long: `Starts the change consumer, the task dispatcher and the crawl scheduler
and runs them until interrupted.

Configured feeds are reloaded whenever the configuration file changes,
unless --no-watch is given.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().BoolVar(&runNoWatch, "no-watch", false, "do not watch the configuration file")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	if runner == nil {
		return errors.New("pipeline not configured")
	}

	cmd.Println("Starting pipeline. Press Ctrl+C to stop.")
	err := runner.Run(commandContext(cmd), RunOptions{
		MetricsAddr: runMetricsAddr,
		WatchConfig: !runNoWatch,
	})
	if err != nil {
		return err
	}
	cmd.Println("Pipeline stopped.")
	return nil
}
