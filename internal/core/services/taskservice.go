package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Ensure TaskService implements the interface.
var _ driving.TaskService = (*TaskService)(nil)

// TaskService exposes the task queue to request handlers.
type TaskService struct {
	dispatcher *Dispatcher
	store      driven.TaskStore
}

// NewTaskService creates a task service over a dispatcher and its store.
func NewTaskService(dispatcher *Dispatcher, store driven.TaskStore) *TaskService {
	return &TaskService{dispatcher: dispatcher, store: store}
}

// SubmitTask durably enqueues a task.
func (s *TaskService) SubmitTask(ctx context.Context, kind domain.TaskKind, target string, payload map[string]string) (string, error) {
	if _, err := domain.ParseGUID(target); err != nil {
		return "", err
	}
	return s.dispatcher.Submit(ctx, domain.NewTask(kind, target, payload))
}

// TaskStatus returns a task by ID.
func (s *TaskService) TaskStatus(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return task, nil
}

// CancelTask fails a pending task.
func (s *TaskService) CancelTask(ctx context.Context, id string) error {
	return s.dispatcher.Cancel(ctx, id)
}

// TriggerResolve enqueues a resolve task for guid.
func (s *TaskService) TriggerResolve(ctx context.Context, guid domain.GUID) (string, error) {
	if !guid.Valid() {
		return "", fmt.Errorf("%w: malformed guid %q", domain.ErrInvalidInput, guid)
	}
	return s.dispatcher.Submit(ctx, domain.NewTask(domain.TaskResolve, string(guid), map[string]string{
		"trigger": "manual",
	}))
}

// ListTasks returns tasks matching the filter.
func (s *TaskService) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.store.List(ctx, filter)
}

// QueueStats counts tasks by status.
func (s *TaskService) QueueStats(ctx context.Context) (domain.QueueStats, error) {
	return s.store.Stats(ctx)
}
