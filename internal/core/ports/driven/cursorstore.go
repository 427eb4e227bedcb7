package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// CursorStore persists change consumer positions.
type CursorStore interface {
	// Load retrieves a cursor by name.
	// Returns nil and no error if the cursor has never been saved.
	Load(ctx context.Context, name string) (*domain.ChangeCursor, error)

	// Save stores or updates a cursor.
	Save(ctx context.Context, cursor domain.ChangeCursor) error
}
