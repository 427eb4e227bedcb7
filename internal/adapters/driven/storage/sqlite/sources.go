package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// sourceStore implements driven.SourceStore.
type sourceStore struct {
	store *Store
}

var _ driven.SourceStore = (*sourceStore)(nil)

// Save stores or updates a source.
func (s *sourceStore) Save(ctx context.Context, source domain.FeedSource) error {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	if source.ID == "" {
		return fmt.Errorf("%w: source has no id", domain.ErrInvalidInput)
	}
	mapping := source.Mapping
	if mapping == "" {
		mapping = "rss"
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO feed_sources (id, url, name, interval_seconds, enabled, mapping, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			name = excluded.name,
			interval_seconds = excluded.interval_seconds,
			enabled = excluded.enabled,
			mapping = excluded.mapping,
			updated_at = excluded.updated_at
	`, source.ID, source.URL, source.Name, int64(source.Interval.Seconds()), boolToInt(source.Enabled),
		mapping, formatNullableTime(source.CreatedAt), formatNullableTime(source.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving source: %w", err)
	}
	return nil
}

// Get retrieves a source by ID.
func (s *sourceStore) Get(ctx context.Context, id string) (*domain.FeedSource, error) {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, url, name, interval_seconds, enabled, mapping, created_at, updated_at
		FROM feed_sources WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying source: %w", err)
	}
	defer rows.Close()

	sources, err := scanSources(rows)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("source %s: %w", id, domain.ErrNotFound)
	}
	return &sources[0], nil
}

// Delete removes a source.
func (s *sourceStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	_, err := s.store.db.ExecContext(ctx, "DELETE FROM feed_sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	return nil
}

// List returns all sources ordered by name.
func (s *sourceStore) List(ctx context.Context) ([]domain.FeedSource, error) {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, url, name, interval_seconds, enabled, mapping, created_at, updated_at
		FROM feed_sources ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

func scanSources(rows *sql.Rows) ([]domain.FeedSource, error) {
	var sources []domain.FeedSource //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			src                  domain.FeedSource
			intervalSeconds      int64
			enabled              int
			createdAt, updatedAt sql.NullString
		)
		if err := rows.Scan(&src.ID, &src.URL, &src.Name, &intervalSeconds, &enabled, &src.Mapping,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		src.Interval = time.Duration(intervalSeconds) * time.Second
		src.Enabled = enabled == 1
		src.CreatedAt = parseNullableTime(createdAt)
		src.UpdatedAt = parseNullableTime(updatedAt)
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return sources, nil
}

// errNoRows reports whether err is sql.ErrNoRows.
func errNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
