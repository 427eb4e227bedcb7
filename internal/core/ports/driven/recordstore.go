package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// RecordStore is the primary document store holding canonical records.
// Every successful Put or PutSibling appends an entry to the store's
// change log, which ChangeFeed exposes. Sibling entries carry
// domain.ChangeSibling.
type RecordStore interface {
	// Get retrieves the canonical record for a GUID.
	// Returns nil and no error if the record does not exist.
	Get(ctx context.Context, guid domain.GUID) (*domain.Record, error)

	// Put writes a new canonical revision and returns it.
	// The revision must be exactly one above the stored revision, or 1 for
	// a new record; otherwise domain.ErrRevisionConflict is returned.
	Put(ctx context.Context, record domain.Record) (int, error)

	// PutSibling keeps a candidate revision that could not be merged.
	PutSibling(ctx context.Context, record domain.Record) error

	// Siblings returns the pending sibling revisions for a GUID.
	Siblings(ctx context.Context, guid domain.GUID) ([]domain.Record, error)

	// ClearSiblings removes the siblings whose content hash is listed.
	// Siblings added after they were read are untouched.
	ClearSiblings(ctx context.Context, guid domain.GUID, hashes []string) error

	// PostsByFeed returns the GUIDs of live posts whose Feed reference
	// points at feed, ordered by GUID.
	PostsByFeed(ctx context.Context, feed domain.GUID) ([]domain.GUID, error)

	// List returns canonical records of a kind, ordered by GUID.
	List(ctx context.Context, kind domain.RecordKind, limit, offset int) ([]domain.Record, error)
}
