package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.SourceStore = (*SourceStore)(nil)

// SourceStore keeps feed sources in a map. It mirrors the SQLite store:
// an empty mapping defaults to "rss" and List orders by name.
type SourceStore struct {
	mu      sync.RWMutex
	sources map[string]domain.FeedSource
}

// NewSourceStore creates an empty source store.
func NewSourceStore() *SourceStore {
	return &SourceStore{sources: make(map[string]domain.FeedSource)}
}

// Save inserts or replaces a source.
func (s *SourceStore) Save(_ context.Context, source domain.FeedSource) error {
	if source.ID == "" {
		return fmt.Errorf("%w: source has no id", domain.ErrInvalidInput)
	}
	if source.Mapping == "" {
		source.Mapping = "rss"
	}

	s.mu.Lock()
	s.sources[source.ID] = source
	s.mu.Unlock()
	return nil
}

// Get returns domain.ErrNotFound for unknown IDs.
func (s *SourceStore) Get(_ context.Context, id string) (*domain.FeedSource, error) {
	s.mu.RLock()
	source, ok := s.sources[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	return &source, nil
}

// Delete is a no-op for unknown IDs.
func (s *SourceStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sources, id)
	s.mu.Unlock()
	return nil
}

// List returns every source ordered by name, then ID.
func (s *SourceStore) List(_ context.Context) ([]domain.FeedSource, error) {
	s.mu.RLock()
	out := make([]domain.FeedSource, 0, len(s.sources))
	for _, source := range s.sources {
		out = append(out, source)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
