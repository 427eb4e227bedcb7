package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// CrawlStore persists crawl schedules for crash recovery.
// It stores polling state and execution history.
type CrawlStore interface {
	// GetSchedule retrieves a schedule by source ID.
	// Returns nil and no error if the schedule does not exist.
	GetSchedule(ctx context.Context, sourceID string) (*domain.CrawlSchedule, error)

	// ListSchedules returns all schedules.
	ListSchedules(ctx context.Context) ([]domain.CrawlSchedule, error)

	// SaveSchedule persists a schedule's state.
	// Creates or updates the schedule based on SourceID.
	SaveSchedule(ctx context.Context, schedule *domain.CrawlSchedule) error

	// DeleteSchedule removes a schedule from storage.
	DeleteSchedule(ctx context.Context, sourceID string) error

	// RecordResult logs a crawl result.
	RecordResult(ctx context.Context, result *domain.CrawlResult) error

	// GetHistory returns recent results for a source.
	// Results are ordered by start time descending (most recent first).
	GetHistory(ctx context.Context, sourceID string, limit int) ([]domain.CrawlResult, error)

	// PruneHistory removes old results beyond the retention limit.
	// Keeps the most recent 'keep' results per source.
	PruneHistory(ctx context.Context, keep int) error
}
