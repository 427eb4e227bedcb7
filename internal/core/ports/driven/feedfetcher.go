package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// FeedFetcher retrieves feed bodies from the network.
type FeedFetcher interface {
	// Fetch performs a conditional GET. A 304 answer returns a result with
	// NotModified set. Failures are returned as *domain.CrawlError.
	Fetch(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error)
}

// FeedMapper turns a fetched feed body into candidate records.
type FeedMapper interface {
	// Map parses body and returns the feed record followed by media and
	// post records. Items that cannot be mapped are reported in skipped
	// without failing the whole feed.
	Map(feedURL string, body []byte, prov domain.Provenance) (records []domain.Record, skipped []error, err error)
}
