package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	opts    domain.SearchOptions
	err     error
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.opts = opts
	return m.results, m.err
}

// mockTaskService is a mock implementation of driving.TaskService.
type mockTaskService struct {
	task      *domain.Task
	tasks     []domain.Task
	stats     domain.QueueStats
	submitted []domain.Task
	cancelled []string
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

func (m *mockTaskService) CancelTask(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.cancelled = append(m.cancelled, id)
	return nil
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

// mockCrawlService is a mock implementation of driving.CrawlService.
type mockCrawlService struct {
	sources   []domain.FeedSource
	schedules []domain.CrawlSchedule
	history   []domain.CrawlResult
	historyID string
	err       error
}

func (m *mockCrawlService) AddSource(_ context.Context, src domain.FeedSource) (*domain.FeedSource, error) {
	return &src, m.err
}

func (m *mockCrawlService) GetSource(_ context.Context, _ string) (*domain.FeedSource, error) {
	if len(m.sources) == 0 {
		return nil, domain.ErrNotFound
	}
	return &m.sources[0], m.err
}

func (m *mockCrawlService) ListSources(_ context.Context) ([]domain.FeedSource, error) {
	return m.sources, m.err
}

func (m *mockCrawlService) RemoveSource(_ context.Context, _ string) error {
	return m.err
}

func (m *mockCrawlService) CrawlNow(_ context.Context, id string) (*domain.CrawlResult, error) {
	return &domain.CrawlResult{SourceID: id, Success: true}, m.err
}

func (m *mockCrawlService) Schedules(_ context.Context) ([]domain.CrawlSchedule, error) {
	return m.schedules, m.err
}

func (m *mockCrawlService) History(_ context.Context, id string, _ int) ([]domain.CrawlResult, error) {
	m.historyID = id
	return m.history, m.err
}
