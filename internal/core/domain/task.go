package domain

import (
	"time"
)

// TaskKind is the closed set of background work the dispatcher knows.
type TaskKind string

// Task kinds.
const (
	// TaskReindex projects a record into the search index.
	TaskReindex TaskKind = "reindex"

	// TaskResolve folds a record's sibling revisions into the canonical one.
	TaskResolve TaskKind = "resolve"

	// TaskFeedRegister upserts the crawl schedule for a feed record.
	TaskFeedRegister TaskKind = "feed.register"
)

// AllTaskKinds returns every known task kind.
func AllTaskKinds() []TaskKind {
	return []TaskKind{TaskReindex, TaskResolve, TaskFeedRegister}
}

// Valid reports whether the kind is known.
func (k TaskKind) Valid() bool {
	switch k {
	case TaskReindex, TaskResolve, TaskFeedRegister:
		return true
	default:
		return false
	}
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// Task statuses. Done and Failed are terminal.
const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskFailed
}

// DefaultMaxAttempts is used when a task is submitted without a limit.
const DefaultMaxAttempts = 5

// CancelledReason is recorded as LastError on cancelled tasks.
const CancelledReason = "cancelled"

// Task is a durable unit of background work.
type Task struct {
	// ID is the unique identifier for the task.
	ID string

	// Seq is the submission order, assigned by the task store.
	Seq int64

	// Kind selects the handler.
	Kind TaskKind

	// Target is the serialization key, usually a GUID.
	// No two tasks with the same Target run at once.
	Target string

	// Payload carries kind-specific arguments.
	Payload map[string]string

	// Attempts counts finished runs that failed.
	Attempts int

	// MaxAttempts bounds retries.
	MaxAttempts int

	// Status is the lifecycle state.
	Status TaskStatus

	// LastError is the message of the last failure, if any.
	LastError string

	// NotBefore delays the next attempt during backoff.
	NotBefore time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTask creates a pending task for target. MaxAttempts is left unset so
// the dispatcher's configured limit applies.
func NewTask(kind TaskKind, target string, payload map[string]string) Task {
	return Task{
		Kind:    kind,
		Target:  target,
		Payload: payload,
		Status:  TaskPending,
	}
}

// Due reports whether a pending task may start at now.
func (t Task) Due(now time.Time) bool {
	return t.Status == TaskPending && !now.Before(t.NotBefore)
}

// Exhausted reports whether the task has used up its attempts.
func (t Task) Exhausted() bool {
	return t.MaxAttempts > 0 && t.Attempts >= t.MaxAttempts
}

// TaskFilter narrows a task listing.
type TaskFilter struct {
	Status TaskStatus
	Kind   TaskKind
	Target string
	Limit  int
}

// QueueStats summarises the task table by status.
type QueueStats struct {
	Pending int
	Running int
	Done    int
	Failed  int
}
