package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure CursorStore implements the interface.
var _ driven.CursorStore = (*CursorStore)(nil)

// CursorStore is an in-memory implementation of driven.CursorStore.
type CursorStore struct {
	mu      sync.RWMutex
	cursors map[string]domain.ChangeCursor
}

// NewCursorStore creates a new in-memory cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{
		cursors: make(map[string]domain.ChangeCursor),
	}
}

// Load retrieves a cursor by name.
func (s *CursorStore) Load(_ context.Context, name string) (*domain.ChangeCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.cursors[name]
	if !ok {
		return nil, nil
	}
	return &cur, nil
}

// Save stores or updates a cursor.
func (s *CursorStore) Save(_ context.Context, cursor domain.ChangeCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[cursor.Name] = cursor
	return nil
}
