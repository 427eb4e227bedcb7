package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

var (
	tuiRefresh     time.Duration
	tuiRunPipeline bool
)

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive pipeline dashboard",
	Long: `Launch the terminal dashboard for the ingest pipeline.

The dashboard searches the index, shows feed sources with their crawl
health and lists the task queue. Sources and tasks reload on a timer.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Search / Select
  Esc      - Back
  q        - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().DurationVar(&tuiRefresh, "refresh", tui.DefaultRefreshInterval, "reload interval for sources and tasks (0 disables)")
	tuiCmd.Flags().BoolVar(&tuiRunPipeline, "run", false, "run the pipeline in the background while the dashboard is open")
	rootCmd.AddCommand(tuiCmd)
}

// newTUIApp builds the dashboard from the configured services.
func newTUIApp(ctx context.Context) (*tui.App, error) {
	app, err := tui.NewApp(&tui.Ports{
		Tasks:  taskService,
		Crawl:  crawlService,
		Search: searchService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create TUI: %w", err)
	}
	return app.WithContext(ctx).WithRefreshInterval(tuiRefresh), nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	app, err := newTUIApp(ctx)
	if err != nil {
		return err
	}

	if tuiRunPipeline {
		if runner == nil {
			return errors.New("pipeline runner not configured")
		}
		// Log output would tear the alternate screen.
		logger.SetOutput(io.Discard)
		defer logger.SetOutput(os.Stderr)
		done := make(chan error, 1)
		go func() { done <- runner.Run(ctx, RunOptions{WatchConfig: true}) }()
		defer func() {
			cancel()
			if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(os.Stderr, "pipeline stopped: %v\n", err)
			}
		}()
	}

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
