// Package cli provides the cobra command tree for sercha-ingest.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// version is set at build time.
var version = "dev"

// RunOptions configures the long-running pipeline process.
type RunOptions struct {
	// MetricsAddr serves Prometheus metrics when non-empty.
	MetricsAddr string

	// WatchConfig reloads configured feeds when the config file changes.
	WatchConfig bool
}

// Runner runs the pipeline until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) error
}

// Services holds everything the commands drive.
type Services struct {
	Tasks       driving.TaskService
	Search      driving.SearchService
	Crawl       driving.CrawlService
	Runner      Runner
	ConfigStore driven.ConfigStore
}

var (
	taskService   driving.TaskService
	searchService driving.SearchService
	crawlService  driving.CrawlService
	runner        Runner
	configStore   driven.ConfigStore
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sercha-ingest",
	Short: "Feed ingestion and indexing pipeline",
	Long: `sercha-ingest crawls RSS and Atom feeds into a document store, resolves
conflicting versions of records and keeps a search index in step with
every change.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetServices installs the services commands operate on.
func SetServices(s *Services) {
	taskService = s.Tasks
	searchService = s.Search
	crawlService = s.Crawl
	runner = s.Runner
	configStore = s.ConfigStore
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
