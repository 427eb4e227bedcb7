package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestSourceCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range sourceCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"add", "list", "remove", "history"}, names)
}

func TestSourceAddCmd(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "source", "add", "https://radio.example.org/feed", "--name", "Free Radio", "--interval", "15m")

	require.NoError(t, err)
	assert.Contains(t, out, "Added source")
	require.Len(t, ts.crawl.added, 1)
	assert.Equal(t, "Free Radio", ts.crawl.added[0].Name)
	assert.Equal(t, 15*time.Minute, ts.crawl.added[0].Interval)
	assert.True(t, ts.crawl.added[0].Enabled)
}

func TestSourceAddCmd_Errors(t *testing.T) {
	ts := setupTestServices(t)

	_, err := execute(t, "source", "add")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")

	ts.crawl.err = domain.ErrInvalidInput
	_, err = execute(t, "source", "add", "gopher://x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSourceListCmd(t *testing.T) {
	ts := setupTestServices(t)
	ts.crawl.sources = []domain.FeedSource{
		{ID: "s1", Name: "Free Radio", URL: "https://radio.example.org/feed", Enabled: true},
		{ID: "s2", URL: "https://quiet.example.org/feed"},
	}
	ts.crawl.schedules = []domain.CrawlSchedule{
		{SourceID: "s1", NextRun: t0, LastError: "HTTP 503", ConsecutiveFailures: 2},
	}

	out, err := execute(t, "source", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "Configured sources:")
	assert.Contains(t, out, "Free Radio [enabled]")
	assert.Contains(t, out, "https://quiet.example.org/feed [disabled]")
	assert.Contains(t, out, "Last error: HTTP 503 (2 in a row)")
	assert.Contains(t, out, "Next crawl:")
}

func TestSourceListCmd_Empty(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "source", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No sources configured.")
}

func TestSourceRemoveCmd(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "source", "remove", "s1")

	require.NoError(t, err)
	assert.Contains(t, out, "Removed source s1")
	assert.Equal(t, []string{"s1"}, ts.crawl.removed)
}

func TestSourceHistoryCmd(t *testing.T) {
	ts := setupTestServices(t)
	ts.crawl.history = []domain.CrawlResult{
		{StartedAt: t0, Success: true, ItemsSeen: 5, ItemsWritten: 1, ItemsSkipped: 4},
		{StartedAt: t0, Success: true, NotModified: true},
		{StartedAt: t0, Error: "HTTP 404"},
	}

	out, err := execute(t, "source", "history", "s1")

	require.NoError(t, err)
	assert.Contains(t, out, "5 items, 1 written, 4 unchanged")
	assert.Contains(t, out, "not modified")
	assert.Contains(t, out, "failed: HTTP 404")
}

func TestCrawlCmd_One(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "crawl", "s1")

	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ts.crawl.crawled)
	assert.Contains(t, out, "3 items, 2 written, 1 unchanged")
}

func TestCrawlCmd_AllEnabled(t *testing.T) {
	ts := setupTestServices(t)
	ts.crawl.sources = []domain.FeedSource{
		{ID: "s1", Enabled: true},
		{ID: "s2"},
		{ID: "s3", Enabled: true},
	}

	_, err := execute(t, "crawl")

	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s3"}, ts.crawl.crawled)
}

func TestCrawlCmd_FailureContinues(t *testing.T) {
	ts := setupTestServices(t)
	ts.crawl.sources = []domain.FeedSource{{ID: "s1", Enabled: true}, {ID: "s2", Enabled: true}}
	ts.crawl.crawlErr = errors.New("HTTP 500")

	out, err := execute(t, "crawl")

	require.Error(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ts.crawl.crawled)
	assert.Contains(t, out, "failed: HTTP 500")
}
