package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// CrawlService manages feed sources and their crawl schedules.
type CrawlService interface {
	// AddSource registers a feed and schedules it.
	AddSource(ctx context.Context, source domain.FeedSource) (*domain.FeedSource, error)

	// GetSource retrieves a source by ID.
	GetSource(ctx context.Context, id string) (*domain.FeedSource, error)

	// ListSources returns all configured sources.
	ListSources(ctx context.Context) ([]domain.FeedSource, error)

	// RemoveSource stops crawling a source. Records already written stay.
	RemoveSource(ctx context.Context, id string) error

	// CrawlNow polls a source immediately, outside its schedule.
	CrawlNow(ctx context.Context, id string) (*domain.CrawlResult, error)

	// Schedules returns the polling state of every source.
	Schedules(ctx context.Context) ([]domain.CrawlSchedule, error)

	// History returns recent crawl results for a source.
	History(ctx context.Context, id string, limit int) ([]domain.CrawlResult, error)
}
