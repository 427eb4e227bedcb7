package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type mockTaskService struct {
	submitted []domain.Task
	task      *domain.Task
	tasks     []domain.Task
	stats     domain.QueueStats
	filter    domain.TaskFilter
	err       error
}

func (m *mockTaskService) SubmitTask(_ context.Context, kind domain.TaskKind, target string, payload map[string]string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.submitted = append(m.submitted, domain.Task{Kind: kind, Target: target, Payload: payload})
	return "task-1", nil
}

func (m *mockTaskService) TaskStatus(_ context.Context, _ string) (*domain.Task, error) {
	return m.task, m.err
}

func (m *mockTaskService) CancelTask(_ context.Context, _ string) error {
	return m.err
}

func (m *mockTaskService) TriggerResolve(ctx context.Context, guid domain.GUID) (string, error) {
	return m.SubmitTask(ctx, domain.TaskResolve, string(guid), nil)
}

func (m *mockTaskService) ListTasks(_ context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	m.filter = filter
	return m.tasks, m.err
}

func (m *mockTaskService) QueueStats(_ context.Context) (domain.QueueStats, error) {
	return m.stats, m.err
}

type mockSearchService struct {
	results []domain.SearchResult
	opts    domain.SearchOptions
	err     error
}

func (m *mockSearchService) Search(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.opts = opts
	return m.results, m.err
}

type mockCrawlService struct {
	sources   []domain.FeedSource
	schedules []domain.CrawlSchedule
	history   []domain.CrawlResult
	added     []domain.FeedSource
	crawled   []string
	removed   []string
	crawlErr  error
	err       error
}

func (m *mockCrawlService) AddSource(_ context.Context, src domain.FeedSource) (*domain.FeedSource, error) {
	if m.err != nil {
		return nil, m.err
	}
	src.ID = domain.SourceIDForURL(src.URL)
	m.added = append(m.added, src)
	return &src, nil
}

func (m *mockCrawlService) GetSource(_ context.Context, _ string) (*domain.FeedSource, error) {
	return nil, domain.ErrNotFound
}

func (m *mockCrawlService) ListSources(_ context.Context) ([]domain.FeedSource, error) {
	return m.sources, m.err
}

func (m *mockCrawlService) RemoveSource(_ context.Context, id string) error {
	m.removed = append(m.removed, id)
	return m.err
}

func (m *mockCrawlService) CrawlNow(_ context.Context, id string) (*domain.CrawlResult, error) {
	m.crawled = append(m.crawled, id)
	if m.crawlErr != nil {
		return &domain.CrawlResult{SourceID: id, StartedAt: t0, Error: m.crawlErr.Error()}, m.crawlErr
	}
	return &domain.CrawlResult{SourceID: id, StartedAt: t0, Success: true, ItemsSeen: 3, ItemsWritten: 2, ItemsSkipped: 1}, nil
}

func (m *mockCrawlService) Schedules(_ context.Context) ([]domain.CrawlSchedule, error) {
	return m.schedules, m.err
}

func (m *mockCrawlService) History(_ context.Context, _ string, _ int) ([]domain.CrawlResult, error) {
	return m.history, m.err
}

type mockRunner struct {
	opts RunOptions
	err  error
}

func (m *mockRunner) Run(_ context.Context, opts RunOptions) error {
	m.opts = opts
	return m.err
}

type testServices struct {
	tasks  *mockTaskService
	search *mockSearchService
	crawl  *mockCrawlService
	runner *mockRunner
	config *memory.ConfigStore
}

// setupTestServices installs mocks and restores the previous services and
// flag values on cleanup.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	ts := &testServices{
		tasks:  &mockTaskService{},
		search: &mockSearchService{},
		crawl:  &mockCrawlService{},
		runner: &mockRunner{},
		config: memory.NewConfigStore(),
	}
	SetServices(&Services{
		Tasks:       ts.tasks,
		Search:      ts.search,
		Crawl:       ts.crawl,
		Runner:      ts.runner,
		ConfigStore: ts.config,
	})
	t.Cleanup(func() {
		SetServices(&Services{})
		taskPayload = nil
		taskJSON = false
		taskListStatus, taskListKind, taskListTarget = "", "", ""
		taskListLimit = 20
		searchLimit, searchKind, searchJSON = 10, "", false
		sourceAddName, sourceAddInterval = "", 0
		historyLimit = 10
		runMetricsAddr, runNoWatch = "", false
		tuiRefresh, tuiRunPipeline = tui.DefaultRefreshInterval, false
	})
	return ts
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "task", "resolve", "source", "crawl", "search", "config", "mcp", "tui", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_VerboseFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)
}

func TestSetVersion(t *testing.T) {
	original := version
	defer func() { version = original }()

	SetVersion("")
	assert.Equal(t, original, version)
	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
}

func TestRunCmd(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "run", "--metrics-addr", ":9090", "--no-watch")

	require.NoError(t, err)
	assert.Contains(t, out, "Pipeline stopped.")
	assert.Equal(t, ":9090", ts.runner.opts.MetricsAddr)
	assert.False(t, ts.runner.opts.WatchConfig)
}

func TestRunCmd_NotConfigured(t *testing.T) {
	setupTestServices(t)
	SetServices(&Services{})

	_, err := execute(t, "run")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestConfigCmd_Show(t *testing.T) {
	ts := setupTestServices(t)
	require.NoError(t, ts.config.Set("search.url", "http://localhost:9200"))
	require.NoError(t, ts.config.Set("dispatcher.workers", 8))

	out, err := execute(t, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Workers:       8")
	assert.Contains(t, out, "http://localhost:9200")
	assert.Contains(t, out, "Cursor:        sqlite")
}

func TestConfigCmd_SearchDisabled(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "config")

	require.NoError(t, err)
	assert.Contains(t, out, "Disabled (set search.url)")
}
