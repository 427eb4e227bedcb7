package tui

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

type MockTaskService struct {
	Tasks []domain.Task
	Stats domain.QueueStats
	Err   error
}

func (m *MockTaskService) SubmitTask(_ context.Context, _ domain.TaskKind, _ string, _ map[string]string) (string, error) {
	return "task-1", m.Err
}

func (m *MockTaskService) TaskStatus(_ context.Context, _ string) (*domain.Task, error) {
	return nil, domain.ErrNotFound
}

func (m *MockTaskService) CancelTask(_ context.Context, _ string) error {
	return m.Err
}

func (m *MockTaskService) TriggerResolve(_ context.Context, _ domain.GUID) (string, error) {
	return "task-1", m.Err
}

func (m *MockTaskService) ListTasks(_ context.Context, _ domain.TaskFilter) ([]domain.Task, error) {
	return m.Tasks, m.Err
}

func (m *MockTaskService) QueueStats(_ context.Context) (domain.QueueStats, error) {
	return m.Stats, m.Err
}

type MockCrawlService struct {
	Sources []domain.FeedSource
	Err     error
}

func (m *MockCrawlService) AddSource(_ context.Context, src domain.FeedSource) (*domain.FeedSource, error) {
	return &src, m.Err
}

func (m *MockCrawlService) GetSource(_ context.Context, _ string) (*domain.FeedSource, error) {
	return nil, domain.ErrNotFound
}

func (m *MockCrawlService) ListSources(_ context.Context) ([]domain.FeedSource, error) {
	return m.Sources, m.Err
}

func (m *MockCrawlService) RemoveSource(_ context.Context, _ string) error {
	return m.Err
}

func (m *MockCrawlService) CrawlNow(_ context.Context, id string) (*domain.CrawlResult, error) {
	return &domain.CrawlResult{SourceID: id, Success: true}, m.Err
}

func (m *MockCrawlService) Schedules(_ context.Context) ([]domain.CrawlSchedule, error) {
	return nil, m.Err
}

func (m *MockCrawlService) History(_ context.Context, _ string, _ int) ([]domain.CrawlResult, error) {
	return nil, m.Err
}

type MockSearchService struct {
	Results []domain.SearchResult
	Err     error
}

func (m *MockSearchService) Search(_ context.Context, _ string, _ domain.SearchOptions) ([]domain.SearchResult, error) {
	return m.Results, m.Err
}
