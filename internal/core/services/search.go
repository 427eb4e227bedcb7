package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// defaultSearchLimit applies when no limit is given.
const defaultSearchLimit = 20

// SearchService provides keyword search over indexed records.
type SearchService struct {
	index driven.SearchIndex
}

// NewSearchService creates a new search service. index may be nil, in
// which case every search fails with domain.ErrSearchUnavailable.
func NewSearchService(index driven.SearchIndex) *SearchService {
	return &SearchService{index: index}
}

// Search performs a keyword search.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if s.index == nil {
		return nil, domain.ErrSearchUnavailable
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	logger.Section("Search")
	logger.Debug("Query: %q (limit %d, offset %d, kinds %v)", query, opts.Limit, opts.Offset, opts.Kinds)

	results, err := s.index.Search(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	logger.Debug("Search returned %d results", len(results))
	return results, nil
}
