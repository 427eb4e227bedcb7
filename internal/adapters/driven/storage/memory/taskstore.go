package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure TaskStore implements the interface.
var _ driven.TaskStore = (*TaskStore)(nil)

// TaskStore is an in-memory implementation of driven.TaskStore.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
	seq   int64
}

// NewTaskStore creates a new in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]domain.Task),
	}
}

// Enqueue stores tasks atomically and assigns their Seq.
func (s *TaskStore) Enqueue(_ context.Context, tasks []domain.Task) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: task has no id", domain.ErrInvalidInput)
		}
		if _, exists := s.tasks[t.ID]; exists {
			return nil, fmt.Errorf("task %s: %w", t.ID, domain.ErrAlreadyExists)
		}
	}

	stored := make([]domain.Task, len(tasks))
	for i, t := range tasks {
		s.seq++
		t.Seq = s.seq
		t.Payload = copyPayload(t.Payload)
		s.tasks[t.ID] = t
		stored[i] = t
	}
	return stored, nil
}

// Get retrieves a task by ID.
func (s *TaskStore) Get(_ context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// ListPending returns pending and running tasks after afterSeq in Seq order.
func (s *TaskStore) ListPending(_ context.Context, afterSeq int64, limit int) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Task
	for _, t := range s.tasks {
		if !t.Status.Terminal() && t.Seq > afterSeq {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update persists a task's state.
func (s *TaskStore) Update(_ context.Context, task domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[task.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", task.ID, domain.ErrNotFound)
	}
	task.Seq = cur.Seq
	s.tasks[task.ID] = task
	return nil
}

// ResetRunning returns running tasks to pending.
func (s *TaskStore) ResetRunning(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.tasks {
		if t.Status == domain.TaskRunning {
			t.Status = domain.TaskPending
			s.tasks[id] = t
			n++
		}
	}
	return n, nil
}

// List returns tasks matching the filter, most recent first.
func (s *TaskStore) List(_ context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Task
	for _, t := range s.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && t.Kind != filter.Kind {
			continue
		}
		if filter.Target != "" && t.Target != filter.Target {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Stats counts tasks by status.
func (s *TaskStore) Stats(_ context.Context) (domain.QueueStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st domain.QueueStats
	for _, t := range s.tasks {
		switch t.Status {
		case domain.TaskPending:
			st.Pending++
		case domain.TaskRunning:
			st.Running++
		case domain.TaskDone:
			st.Done++
		case domain.TaskFailed:
			st.Failed++
		}
	}
	return st, nil
}

func copyPayload(p map[string]string) map[string]string {
	if p == nil {
		return nil
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
