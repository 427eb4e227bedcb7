package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// TaskStore persists the task queue.
type TaskStore interface {
	// Enqueue stores tasks atomically: either all are accepted or none.
	// The store assigns Seq in slice order and returns the stored tasks.
	Enqueue(ctx context.Context, tasks []domain.Task) ([]domain.Task, error)

	// Get retrieves a task by ID.
	// Returns nil and no error if the task does not exist.
	Get(ctx context.Context, id string) (*domain.Task, error)

	// ListPending returns pending and running tasks with Seq greater than
	// afterSeq, ordered by Seq.
	ListPending(ctx context.Context, afterSeq int64, limit int) ([]domain.Task, error)

	// Update persists a task's state.
	Update(ctx context.Context, task domain.Task) error

	// ResetRunning returns every running task to pending.
	// Used at startup to recover tasks interrupted by a crash.
	ResetRunning(ctx context.Context) (int, error)

	// List returns tasks matching the filter, most recent first.
	List(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error)

	// Stats counts tasks by status.
	Stats(ctx context.Context) (domain.QueueStats, error)
}
