package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// TaskService is the surface request handlers use to drive the task queue.
type TaskService interface {
	// SubmitTask durably enqueues a task and returns its ID.
	SubmitTask(ctx context.Context, kind domain.TaskKind, target string, payload map[string]string) (string, error)

	// TaskStatus returns a task by ID, or domain.ErrNotFound.
	TaskStatus(ctx context.Context, id string) (*domain.Task, error)

	// CancelTask fails a pending task with reason "cancelled".
	// Returns domain.ErrTaskNotPending for running or finished tasks.
	CancelTask(ctx context.Context, id string) error

	// TriggerResolve enqueues a resolve task for a GUID and returns its ID.
	TriggerResolve(ctx context.Context, guid domain.GUID) (string, error)

	// ListTasks returns tasks matching the filter.
	ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error)

	// QueueStats counts tasks by status.
	QueueStats(ctx context.Context) (domain.QueueStats, error)
}
