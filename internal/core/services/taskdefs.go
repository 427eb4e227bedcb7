package services

import (
	"strconv"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// TaskDefinition describes which task a change produces.
type TaskDefinition struct {
	Kind domain.TaskKind

	// Applies reports whether a change needs this task.
	Applies func(domain.Change) bool
}

// TaskRegistry maps store changes to tasks. Definitions are consulted in
// registration order, which becomes the tasks' Seq order for a target.
type TaskRegistry struct {
	defs []TaskDefinition
}

// NewTaskRegistry creates an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{}
}

// DefaultTaskRegistry returns the pipeline's task definitions:
//
//   - resolve for crawler-origin changes and new sibling revisions
//   - feed.register for feed records
//   - reindex for every record change
//
// Resolve comes first so that reindex sees the merged record.
func DefaultTaskRegistry() *TaskRegistry {
	r := NewTaskRegistry()
	r.Register(TaskDefinition{
		Kind: domain.TaskResolve,
		Applies: func(c domain.Change) bool {
			return c.Type == domain.ChangeSibling || c.Origin == domain.SourceCrawler
		},
	})
	r.Register(TaskDefinition{
		Kind: domain.TaskFeedRegister,
		Applies: func(c domain.Change) bool {
			return c.Kind == domain.KindFeed && c.Type != domain.ChangeSibling
		},
	})
	r.Register(TaskDefinition{
		Kind: domain.TaskReindex,
		Applies: func(c domain.Change) bool {
			return c.Type != domain.ChangeSibling
		},
	})
	return r
}

// Register appends a definition.
func (r *TaskRegistry) Register(def TaskDefinition) {
	r.defs = append(r.defs, def)
}

// Kinds returns the registered task kinds in order.
func (r *TaskRegistry) Kinds() []domain.TaskKind {
	kinds := make([]domain.TaskKind, len(r.defs))
	for i, d := range r.defs {
		kinds[i] = d.Kind
	}
	return kinds
}

// TasksFor returns the tasks a change produces. Every task targets the
// changed GUID and carries the change sequence and revision.
func (r *TaskRegistry) TasksFor(c domain.Change) []domain.Task {
	var tasks []domain.Task
	for _, def := range r.defs {
		if def.Applies != nil && !def.Applies(c) {
			continue
		}
		tasks = append(tasks, domain.NewTask(def.Kind, string(c.GUID), map[string]string{
			"seq":      strconv.FormatInt(c.Seq, 10),
			"revision": strconv.Itoa(c.Revision),
			"change":   c.Type.String(),
		}))
	}
	return tasks
}
