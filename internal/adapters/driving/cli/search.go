package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// snippetLen caps the description shown under each result.
const snippetLen = 120

var (
	searchLimit int
	searchKind  string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed records",
	Long: `Runs a query against the search index and prints matching posts, media
and feeds with their score. Requires search.url to be configured.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchKind, "kind", "", "restrict to post, media or feed")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := domain.SearchOptions{Limit: searchLimit}
	if searchKind != "" {
		opts.Kinds = []domain.RecordKind{domain.RecordKind(searchKind)}
	}

	results, err := searchService.Search(commandContext(cmd), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printResults(cmd, results)
	return nil
}

func printResults(cmd *cobra.Command, results []domain.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	for i := range results {
		doc := &results[i].Document
		title := doc.Title
		if title == "" {
			title = doc.ID
		}

		cmd.Printf("\n  [%d] %s (%.2f)  %s\n", i+1, title, results[i].Score, doc.Kind)
		if doc.FeedTitle != "" && doc.Kind != domain.KindFeed {
			cmd.Printf("      Feed: %s\n", doc.FeedTitle)
		}
		if doc.URL != "" {
			cmd.Printf("      %s\n", doc.URL)
		}
		if s := snippet(doc.Description); s != "" {
			cmd.Printf("      %s\n", s)
		}
	}
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= snippetLen {
		return s
	}
	return s[:snippetLen-3] + "..."
}
