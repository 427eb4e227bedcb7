package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure CrawlStore implements the interface.
var _ driven.CrawlStore = (*CrawlStore)(nil)

// CrawlStore is an in-memory implementation of driven.CrawlStore.
type CrawlStore struct {
	mu        sync.RWMutex
	schedules map[string]domain.CrawlSchedule
	history   map[string][]domain.CrawlResult
}

// NewCrawlStore creates a new in-memory crawl store.
func NewCrawlStore() *CrawlStore {
	return &CrawlStore{
		schedules: make(map[string]domain.CrawlSchedule),
		history:   make(map[string][]domain.CrawlResult),
	}
}

// GetSchedule retrieves a schedule by source ID.
func (s *CrawlStore) GetSchedule(_ context.Context, sourceID string) (*domain.CrawlSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.schedules[sourceID]
	if !ok {
		return nil, nil
	}
	return &sched, nil
}

// ListSchedules returns all schedules ordered by source ID.
func (s *CrawlStore) ListSchedules(_ context.Context) ([]domain.CrawlSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CrawlSchedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, sched)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

// SaveSchedule persists a schedule's state.
func (s *CrawlStore) SaveSchedule(_ context.Context, schedule *domain.CrawlSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[schedule.SourceID] = *schedule
	return nil
}

// DeleteSchedule removes a schedule and its history.
func (s *CrawlStore) DeleteSchedule(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedules, sourceID)
	delete(s.history, sourceID)
	return nil
}

// RecordResult logs a crawl result.
func (s *CrawlStore) RecordResult(_ context.Context, result *domain.CrawlResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[result.SourceID] = append(s.history[result.SourceID], *result)
	return nil
}

// GetHistory returns recent results, most recent first.
func (s *CrawlStore) GetHistory(_ context.Context, sourceID string, limit int) ([]domain.CrawlResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.history[sourceID]
	out := make([]domain.CrawlResult, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		out = append(out, results[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// PruneHistory keeps the most recent results per source.
func (s *CrawlStore) PruneHistory(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, results := range s.history {
		if len(results) > keep {
			s.history[id] = append([]domain.CrawlResult(nil), results[len(results)-keep:]...)
		}
	}
	return nil
}
