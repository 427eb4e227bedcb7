package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// SourceStore persists feed source configurations.
type SourceStore interface {
	// Save stores or updates a source.
	Save(ctx context.Context, source domain.FeedSource) error

	// Get retrieves a source by ID.
	// Returns domain.ErrNotFound if the source does not exist.
	Get(ctx context.Context, id string) (*domain.FeedSource, error)

	// Delete removes a source.
	Delete(ctx context.Context, id string) error

	// List returns all sources.
	List(ctx context.Context) ([]domain.FeedSource, error)
}
