package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure SearchIndex implements the interface.
var _ driven.SearchIndex = (*SearchIndex)(nil)

// SearchIndex is an in-memory implementation of driven.SearchIndex.
// It scores documents by the number of query terms found in their title,
// description and transcript.
type SearchIndex struct {
	mu   sync.RWMutex
	docs map[string]domain.IndexDocument
}

// NewSearchIndex creates an empty in-memory index.
func NewSearchIndex() *SearchIndex {
	return &SearchIndex{docs: make(map[string]domain.IndexDocument)}
}

// EnsureIndex is a no-op.
func (s *SearchIndex) EnsureIndex(_ context.Context) error {
	return nil
}

// Upsert replaces the document with the same ID.
func (s *SearchIndex) Upsert(_ context.Context, doc domain.IndexDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

// Delete removes a document.
func (s *SearchIndex) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

// Get returns the indexed document for id.
func (s *SearchIndex) Get(id string) (domain.IndexDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc, ok
}

// Document implements driven.SearchIndex.
func (s *SearchIndex) Document(_ context.Context, id string) (*domain.IndexDocument, error) {
	doc, ok := s.Get(id)
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// Len returns the number of indexed documents.
func (s *SearchIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Search performs a term-count keyword match.
func (s *SearchIndex) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	terms := strings.Fields(strings.ToLower(query))
	kinds := make(map[domain.RecordKind]bool, len(opts.Kinds))
	for _, k := range opts.Kinds {
		kinds[k] = true
	}

	s.mu.RLock()
	var results []domain.SearchResult
	for _, doc := range s.docs {
		if len(kinds) > 0 && !kinds[doc.Kind] {
			continue
		}
		text := strings.ToLower(doc.Title + " " + doc.Description + " " + doc.Transcript)
		score := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				score++
			}
		}
		if score > 0 {
			results = append(results, domain.SearchResult{Document: doc, Score: float64(score)})
		}
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	if opts.Offset >= len(results) {
		return nil, nil
	}
	results = results[opts.Offset:]
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}
