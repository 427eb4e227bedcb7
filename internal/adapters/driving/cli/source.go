package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

var (
	sourceAddName     string
	sourceAddInterval time.Duration
	historyLimit      int
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage feed sources",
}

var sourceAddCmd = &cobra.Command{
	Use:   "add [feed-url]",
	Short: "Add a feed to crawl",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceAdd,
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List feed sources and their schedule",
	Args:  cobra.NoArgs,
	RunE:  runSourceList,
}

var sourceRemoveCmd = &cobra.Command{
	Use:   "remove [source-id]",
	Short: "Stop crawling a feed",
	Long: `Removes a feed source and its crawl schedule.
Records already written from the feed stay in the store.`,
	Args: cobra.ExactArgs(1),
	RunE: runSourceRemove,
}

var sourceHistoryCmd = &cobra.Command{
	Use:   "history [source-id]",
	Short: "Show recent crawls of a feed",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceHistory,
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [source-id]",
	Short: "Crawl feeds now",
	Long: `Polls feeds immediately, outside their schedule.
If a source ID is provided, only that source is crawled.
Otherwise, all enabled sources are crawled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

func init() {
	sourceAddCmd.Flags().StringVar(&sourceAddName, "name", "", "display name")
	sourceAddCmd.Flags().DurationVar(&sourceAddInterval, "interval", 0, "poll interval (default from config)")
	sourceHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of crawls to show")

	sourceCmd.AddCommand(sourceAddCmd)
	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourceRemoveCmd)
	sourceCmd.AddCommand(sourceHistoryCmd)
	rootCmd.AddCommand(sourceCmd)
	rootCmd.AddCommand(crawlCmd)
}

func requireCrawlService() error {
	if crawlService == nil {
		return errors.New("crawl service not configured")
	}
	return nil
}

func runSourceAdd(cmd *cobra.Command, args []string) error {
	if err := requireCrawlService(); err != nil {
		return err
	}

	src, err := crawlService.AddSource(commandContext(cmd), domain.FeedSource{
		URL:      args[0],
		Name:     sourceAddName,
		Interval: sourceAddInterval,
		Enabled:  true,
	})
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}
	cmd.Printf("Added source %s (%s)\n", src.ID, src.URL)
	return nil
}

func runSourceList(cmd *cobra.Command, _ []string) error {
	if err := requireCrawlService(); err != nil {
		return err
	}
	ctx := commandContext(cmd)

	sources, err := crawlService.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	if len(sources) == 0 {
		cmd.Println("No sources configured.")
		return nil
	}
	schedules, err := crawlService.Schedules(ctx)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	bySource := make(map[string]domain.CrawlSchedule, len(schedules))
	for _, s := range schedules {
		bySource[s.SourceID] = s
	}

	cmd.Println("Configured sources:")
	cmd.Println()
	for i := range sources {
		src := &sources[i]
		state := "enabled"
		if !src.Enabled {
			state = "disabled"
		}
		name := src.Name
		if name == "" {
			name = src.URL
		}
		cmd.Printf("  %s [%s]\n", name, state)
		cmd.Printf("      ID:  %s\n", src.ID)
		cmd.Printf("      URL: %s\n", src.URL)
		if sched, ok := bySource[src.ID]; ok {
			if !sched.NextRun.IsZero() && src.Enabled {
				cmd.Printf("      Next crawl: %s\n", sched.NextRun.Local().Format(time.RFC3339))
			}
			if sched.LastError != "" {
				cmd.Printf("      Last error: %s (%d in a row)\n", sched.LastError, sched.ConsecutiveFailures)
			}
		}
		cmd.Println()
	}
	return nil
}

func runSourceRemove(cmd *cobra.Command, args []string) error {
	if err := requireCrawlService(); err != nil {
		return err
	}

	if err := crawlService.RemoveSource(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}
	cmd.Printf("Removed source %s\n", args[0])
	return nil
}

func runSourceHistory(cmd *cobra.Command, args []string) error {
	if err := requireCrawlService(); err != nil {
		return err
	}

	history, err := crawlService.History(commandContext(cmd), args[0], historyLimit)
	if err != nil {
		return fmt.Errorf("history failed: %w", err)
	}
	if len(history) == 0 {
		cmd.Println("No crawls recorded.")
		return nil
	}
	for i := range history {
		printCrawlResult(cmd, &history[i])
	}
	return nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	if err := requireCrawlService(); err != nil {
		return err
	}
	ctx := commandContext(cmd)

	if len(args) > 0 {
		return crawlOne(ctx, cmd, crawlService, args[0])
	}

	sources, err := crawlService.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}
	var errs []error
	for i := range sources {
		if !sources[i].Enabled {
			continue
		}
		if err := crawlOne(ctx, cmd, crawlService, sources[i].ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func crawlOne(ctx context.Context, cmd *cobra.Command, svc driving.CrawlService, id string) error {
	cmd.Printf("Crawling %s...\n", id)
	result, err := svc.CrawlNow(ctx, id)
	if result != nil {
		printCrawlResult(cmd, result)
	}
	if err != nil {
		return fmt.Errorf("crawl %s failed: %w", id, err)
	}
	return nil
}

func printCrawlResult(cmd *cobra.Command, r *domain.CrawlResult) {
	when := r.StartedAt.Local().Format(time.RFC3339)
	switch {
	case !r.Success:
		cmd.Printf("  %s  failed: %s\n", when, r.Error)
	case r.NotModified:
		cmd.Printf("  %s  not modified\n", when)
	default:
		cmd.Printf("  %s  %d items, %d written, %d unchanged\n", when, r.ItemsSeen, r.ItemsWritten, r.ItemsSkipped)
	}
}
