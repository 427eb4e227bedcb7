package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// SearchIndex is the search engine holding record projections.
type SearchIndex interface {
	// EnsureIndex creates the index with its mapping if it is missing.
	EnsureIndex(ctx context.Context) error

	// Upsert replaces the document with the same ID wholesale.
	Upsert(ctx context.Context, doc domain.IndexDocument) error

	// Document returns the indexed document for id, or nil when there is
	// none.
	Document(ctx context.Context, id string) (*domain.IndexDocument, error)

	// Delete removes a document. Deleting a missing document succeeds.
	Delete(ctx context.Context, id string) error

	// Search performs a keyword query.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
