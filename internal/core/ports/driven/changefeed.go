package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ChangeFeed exposes the document store's mutation log.
type ChangeFeed interface {
	// Changes returns up to limit changes with Seq greater than since,
	// in Seq order.
	Changes(ctx context.Context, since int64, limit int) ([]domain.Change, error)

	// Subscribe streams batches of changes with Seq greater than since.
	// Both channels are closed when the subscription ends. A value on the
	// error channel ends the subscription; the caller resubscribes.
	Subscribe(ctx context.Context, since int64) (<-chan domain.ChangeBatch, <-chan error)

	// LatestSeq returns the highest sequence in the log.
	LatestSeq(ctx context.Context) (int64, error)
}
