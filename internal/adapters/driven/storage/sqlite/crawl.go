package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// crawlStore implements driven.CrawlStore.
type crawlStore struct {
	store *Store
}

var _ driven.CrawlStore = (*crawlStore)(nil)

const scheduleColumns = `source_id, feed_url, interval_seconds, last_run, next_run, last_success,
	last_error, last_error_type, consecutive_failures, etag, last_modified, enabled`

// GetSchedule retrieves a schedule by source ID.
// Returns nil and no error if the schedule does not exist.
func (s *crawlStore) GetSchedule(ctx context.Context, sourceID string) (*domain.CrawlSchedule, error) {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+scheduleColumns+" FROM crawl_schedules WHERE source_id = ?", sourceID)

	sched, err := scanSchedule(row.Scan)
	if errNoRows(err) {
		return nil, nil // Per interface: return nil and no error if not found
	}
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// ListSchedules returns all schedules ordered by source ID.
func (s *crawlStore) ListSchedules(ctx context.Context) ([]domain.CrawlSchedule, error) {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+scheduleColumns+" FROM crawl_schedules ORDER BY source_id")
	if err != nil {
		return nil, fmt.Errorf("querying crawl schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.CrawlSchedule //nolint:prealloc // size unknown from query
	for rows.Next() {
		sched, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating crawl schedules: %w", err)
	}
	return schedules, nil
}

// SaveSchedule persists a schedule's state.
// Creates or updates the schedule based on SourceID.
func (s *crawlStore) SaveSchedule(ctx context.Context, sched *domain.CrawlSchedule) error {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	if sched == nil || sched.SourceID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO crawl_schedules (`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			feed_url = excluded.feed_url,
			interval_seconds = excluded.interval_seconds,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_success = excluded.last_success,
			last_error = excluded.last_error,
			last_error_type = excluded.last_error_type,
			consecutive_failures = excluded.consecutive_failures,
			etag = excluded.etag,
			last_modified = excluded.last_modified,
			enabled = excluded.enabled
	`, sched.SourceID, sched.FeedURL, int64(sched.Interval.Seconds()),
		formatNullableTime(sched.LastRun), formatNullableTime(sched.NextRun), formatNullableTime(sched.LastSuccess),
		nullString(sched.LastError), nullString(string(sched.LastErrorType)), sched.ConsecutiveFailures,
		nullString(sched.ETag), nullString(sched.LastModified), boolToInt(sched.Enabled))

	if err != nil {
		return fmt.Errorf("saving crawl schedule: %w", err)
	}
	return nil
}

// DeleteSchedule removes a schedule and its history.
func (s *crawlStore) DeleteSchedule(ctx context.Context, sourceID string) error {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM crawl_results WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("deleting crawl history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM crawl_schedules WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("deleting crawl schedule: %w", err)
	}
	return tx.Commit()
}

// RecordResult logs a crawl result.
func (s *crawlStore) RecordResult(ctx context.Context, result *domain.CrawlResult) error {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	if result == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO crawl_results (source_id, started_at, ended_at, success, not_modified, error,
			items_seen, items_written, items_skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.SourceID,
		formatTime(result.StartedAt),
		formatTime(result.EndedAt),
		boolToInt(result.Success),
		boolToInt(result.NotModified),
		nullString(result.Error),
		result.ItemsSeen, result.ItemsWritten, result.ItemsSkipped)

	if err != nil {
		return fmt.Errorf("recording crawl result: %w", err)
	}
	return nil
}

// GetHistory returns recent results for a source.
// Results are ordered by start time descending (most recent first).
func (s *crawlStore) GetHistory(ctx context.Context, sourceID string, limit int) ([]domain.CrawlResult, error) {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source_id, started_at, ended_at, success, not_modified, error,
			items_seen, items_written, items_skipped
		FROM crawl_results
		WHERE source_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, sourceID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying crawl history: %w", err)
	}
	defer rows.Close()

	var results []domain.CrawlResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		result, err := scanCrawlResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating crawl history: %w", err)
	}
	return results, nil
}

// PruneHistory removes old crawl results beyond the retention limit.
// Keeps the most recent 'keep' results per source.
func (s *crawlStore) PruneHistory(ctx context.Context, keep int) error {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	if keep <= 0 {
		return nil
	}
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM crawl_results
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY source_id ORDER BY started_at DESC, id DESC) as rn
				FROM crawl_results
			) WHERE rn <= ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning crawl history: %w", err)
	}
	return nil
}

// scanSchedule scans a schedule with the given Scan function, so both
// *sql.Row and *sql.Rows can use it.
func scanSchedule(scan func(dest ...any) error) (*domain.CrawlSchedule, error) {
	var (
		sched                         domain.CrawlSchedule
		intervalSeconds               int64
		lastRun, nextRun, lastSuccess sql.NullString
		lastError, lastErrorType      sql.NullString
		etag, lastModified            sql.NullString
		enabled                       int
	)
	if err := scan(&sched.SourceID, &sched.FeedURL, &intervalSeconds,
		&lastRun, &nextRun, &lastSuccess, &lastError, &lastErrorType,
		&sched.ConsecutiveFailures, &etag, &lastModified, &enabled); err != nil {
		if errNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning crawl schedule: %w", err)
	}

	sched.Interval = time.Duration(intervalSeconds) * time.Second
	sched.LastRun = parseNullableTime(lastRun)
	sched.NextRun = parseNullableTime(nextRun)
	sched.LastSuccess = parseNullableTime(lastSuccess)
	sched.LastError = lastError.String
	sched.LastErrorType = domain.CrawlErrorType(lastErrorType.String)
	sched.ETag = etag.String
	sched.LastModified = lastModified.String
	sched.Enabled = enabled == 1

	return &sched, nil
}

// scanCrawlResult scans a crawl result from *sql.Rows.
func scanCrawlResult(rows *sql.Rows) (*domain.CrawlResult, error) {
	var result domain.CrawlResult
	var startedAt, endedAt sql.NullString
	var success, notModified int
	var errMsg sql.NullString

	if err := rows.Scan(&result.SourceID, &startedAt, &endedAt, &success, &notModified, &errMsg,
		&result.ItemsSeen, &result.ItemsWritten, &result.ItemsSkipped); err != nil {
		return nil, fmt.Errorf("scanning crawl result: %w", err)
	}

	result.StartedAt = parseNullableTime(startedAt)
	result.EndedAt = parseNullableTime(endedAt)
	result.Success = success == 1
	result.NotModified = notModified == 1
	result.Error = errMsg.String

	return &result, nil
}
