package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// taskStore implements driven.TaskStore.
type taskStore struct {
	store *Store
}

var _ driven.TaskStore = (*taskStore)(nil)

const taskColumns = `seq, id, kind, target, payload, attempts, max_attempts, status,
	last_error, not_before, created_at, updated_at`

// Enqueue stores tasks in one transaction and assigns their Seq.
func (s *taskStore) Enqueue(ctx context.Context, tasks []domain.Task) ([]domain.Task, error) {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	for _, t := range tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: task has no id", domain.ErrInvalidInput)
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stored := make([]domain.Task, len(tasks))
	for i, t := range tasks {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE id = ?", t.ID).Scan(&exists)
		if err == nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, domain.ErrAlreadyExists)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("checking task %s: %w", t.ID, err)
		}

		payload, err := marshalPayload(t.Payload)
		if err != nil {
			return nil, err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, kind, target, payload, attempts, max_attempts, status,
				last_error, not_before, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, string(t.Kind), t.Target, payload, t.Attempts, t.MaxAttempts, string(t.Status),
			nullString(t.LastError), formatNullableTime(t.NotBefore),
			formatNullableTime(t.CreatedAt), formatNullableTime(t.UpdatedAt))
		if err != nil {
			return nil, fmt.Errorf("inserting task %s: %w", t.ID, err)
		}
		if t.Seq, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("reading task sequence: %w", err)
		}
		stored[i] = t
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing tasks: %w", err)
	}
	return stored, nil
}

// Get retrieves a task by ID.
// Returns nil and no error if the task does not exist.
func (s *taskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	rows, err := s.store.db.QueryContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}
	defer rows.Close()
	tasks, err := scanTasks(rows)
	if err != nil || len(tasks) == 0 {
		return nil, err
	}
	return &tasks[0], nil
}

// ListPending returns pending and running tasks after afterSeq in Seq order.
func (s *taskStore) ListPending(ctx context.Context, afterSeq int64, limit int) ([]domain.Task, error) {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	rows, err := s.store.db.QueryContext(ctx, "SELECT "+taskColumns+` FROM tasks
		WHERE status IN (?, ?) AND seq > ?
		ORDER BY seq
		LIMIT ?`, string(domain.TaskPending), string(domain.TaskRunning), afterSeq, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying pending tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// Update persists a task's state. Seq and CreatedAt are never changed.
func (s *taskStore) Update(ctx context.Context, task domain.Task) error {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	payload, err := marshalPayload(task.Payload)
	if err != nil {
		return err
	}
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE tasks SET payload = ?, attempts = ?, max_attempts = ?, status = ?,
			last_error = ?, not_before = ?, updated_at = ?
		WHERE id = ?
	`, payload, task.Attempts, task.MaxAttempts, string(task.Status),
		nullString(task.LastError), formatNullableTime(task.NotBefore), formatNullableTime(task.UpdatedAt),
		task.ID)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", task.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", task.ID, domain.ErrNotFound)
	}
	return nil
}

// ResetRunning returns running tasks to pending.
func (s *taskStore) ResetRunning(ctx context.Context) (int, error) {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	res, err := s.store.db.ExecContext(ctx, "UPDATE tasks SET status = ? WHERE status = ?",
		string(domain.TaskPending), string(domain.TaskRunning))
	if err != nil {
		return 0, fmt.Errorf("resetting running tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// List returns tasks matching the filter, most recent first.
func (s *taskStore) List(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Target != "" {
		where = append(where, "target = ?")
		args = append(args, filter.Target)
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC LIMIT ?"
	args = append(args, sqlLimit(filter.Limit))

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// Stats counts tasks by status.
func (s *taskStore) Stats(ctx context.Context) (domain.QueueStats, error) {
	ctx, cancel := s.store.bound(ctx)
	defer cancel()

	var st domain.QueueStats
	rows, err := s.store.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return st, fmt.Errorf("counting tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return st, fmt.Errorf("scanning task stats: %w", err)
		}
		switch domain.TaskStatus(status) {
		case domain.TaskPending:
			st.Pending = n
		case domain.TaskRunning:
			st.Running = n
		case domain.TaskDone:
			st.Done = n
		case domain.TaskFailed:
			st.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("iterating task stats: %w", err)
	}
	return st, nil
}

func scanTasks(rows *sql.Rows) ([]domain.Task, error) {
	var tasks []domain.Task //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			t                               domain.Task
			kind, status                    string
			payload, lastError              sql.NullString
			notBefore, createdAt, updatedAt sql.NullString
		)
		if err := rows.Scan(&t.Seq, &t.ID, &kind, &t.Target, &payload, &t.Attempts, &t.MaxAttempts,
			&status, &lastError, &notBefore, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		t.Kind = domain.TaskKind(kind)
		t.Status = domain.TaskStatus(status)
		t.LastError = lastError.String
		t.NotBefore = parseNullableTime(notBefore)
		t.CreatedAt = parseNullableTime(createdAt)
		t.UpdatedAt = parseNullableTime(updatedAt)
		if payload.Valid && payload.String != "" && payload.String != jsonNull {
			if err := json.Unmarshal([]byte(payload.String), &t.Payload); err != nil {
				return nil, fmt.Errorf("unmarshalling payload of task %s: %w", t.ID, err)
			}
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

// jsonNull is the JSON representation of null.
const jsonNull = "null"

func marshalPayload(p map[string]string) (any, error) {
	if len(p) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshalling payload: %w", err)
	}
	return string(b), nil
}
