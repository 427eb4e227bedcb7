package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/services"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show pipeline configuration",
	Long: `Shows the effective configuration: values from the configuration file
merged over the built-in defaults.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if configStore == nil {
			return errors.New("config store not configured")
		}
		cmd.Println(configStore.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	cfg := services.LoadPipelineConfig(configStore)

	cmd.Printf("Config file: %s\n", configStore.Path())
	cmd.Println()

	cmd.Println("Dispatcher:")
	cmd.Printf("  Workers:       %d\n", cfg.Dispatcher.Workers)
	cmd.Printf("  Tick:          %s\n", cfg.Dispatcher.TickInterval)
	cmd.Printf("  Max attempts:  %d\n", cfg.Dispatcher.MaxAttempts)
	cmd.Printf("  Backoff:       %s .. %s\n", cfg.Dispatcher.BackoffBase, cfg.Dispatcher.BackoffMax)
	cmd.Printf("  Task timeout:  %s\n", cfg.Dispatcher.TaskTimeout)
	cmd.Println()

	cmd.Println("Consumer:")
	cmd.Printf("  Cursor:        %s\n", cfg.Consumer.CursorName)
	cmd.Printf("  Batch:         %d changes / %s\n", cfg.Consumer.BatchSize, cfg.Consumer.BatchLinger)
	cmd.Println()

	cmd.Println("Crawl:")
	cmd.Printf("  Enabled:       %t\n", cfg.Crawl.Enabled)
	cmd.Printf("  Interval:      %s\n", cfg.Crawl.DefaultInterval)
	cmd.Printf("  Rate:          %.1f req/s\n", cfg.Crawl.RequestsPerSecond)
	cmd.Printf("  Feeds:         %d configured\n", len(cfg.Crawl.Feeds))
	for _, f := range cfg.Crawl.Feeds {
		cmd.Printf("    - %s\n", f.URL)
	}
	cmd.Println()

	cmd.Println("Search:")
	if cfg.Search.URL == "" {
		cmd.Println("  Disabled (set search.url)")
	} else {
		cmd.Printf("  URL:           %s\n", cfg.Search.URL)
		cmd.Printf("  Index:         %s\n", cfg.Search.Index)
	}
	cmd.Println()

	cmd.Println("Store:")
	dataDir := cfg.Store.DataDir
	if dataDir == "" {
		dataDir = "(default)"
	}
	cmd.Printf("  Data dir:      %s\n", dataDir)
	cmd.Printf("  Cursor:        %s\n", cfg.Store.CursorBackend)
	return nil
}
