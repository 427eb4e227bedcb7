package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// cursorStore implements driven.CursorStore.
type cursorStore struct {
	store *Store
}

var _ driven.CursorStore = (*cursorStore)(nil)

// Load retrieves a cursor by name.
// Returns nil and no error if the cursor has never been saved.
func (s *cursorStore) Load(ctx context.Context, name string) (*domain.ChangeCursor, error) {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	var (
		cur       = domain.ChangeCursor{Name: name}
		updatedAt sql.NullString
	)
	err := s.store.db.QueryRowContext(ctx,
		"SELECT sequence, updated_at FROM change_cursors WHERE name = ?", name).Scan(&cur.Sequence, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading cursor %s: %w", name, err)
	}
	cur.UpdatedAt = parseNullableTime(updatedAt)
	return &cur, nil
}

// Save stores or updates a cursor.
func (s *cursorStore) Save(ctx context.Context, cursor domain.ChangeCursor) error {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	if cursor.Name == "" {
		return fmt.Errorf("%w: cursor has no name", domain.ErrInvalidInput)
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO change_cursors (name, sequence, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			sequence = excluded.sequence,
			updated_at = excluded.updated_at
	`, cursor.Name, cursor.Sequence, formatNullableTime(cursor.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving cursor %s: %w", cursor.Name, err)
	}
	return nil
}
