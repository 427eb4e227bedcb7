package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// SubmitTaskInput is the input schema for the submit_task tool.
type SubmitTaskInput struct {
	Kind    string            `json:"kind" jsonschema:"task kind: reindex, resolve or feed.register"`
	Target  string            `json:"target" jsonschema:"GUID of the record the task acts on"`
	Payload map[string]string `json:"payload,omitempty" jsonschema:"optional string parameters"`
}

// TaskIDOutput carries the ID of a newly submitted task.
type TaskIDOutput struct {
	TaskID string `json:"task_id"`
}

// TaskIDInput selects a task.
type TaskIDInput struct {
	TaskID string `json:"task_id" jsonschema:"the task ID"`
}

// TaskOutput describes a task.
type TaskOutput struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Target      string            `json:"target"`
	Status      string            `json:"status"`
	Attempts    int               `json:"attempts"`
	MaxAttempts int               `json:"max_attempts"`
	LastError   string            `json:"last_error,omitempty"`
	Payload     map[string]string `json:"payload,omitempty"`
	NotBefore   string            `json:"not_before,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// CancelOutput reports a cancellation.
type CancelOutput struct {
	Cancelled bool `json:"cancelled"`
}

// ResolveInput is the input schema for the trigger_resolve tool.
type ResolveInput struct {
	GUID string `json:"guid" jsonschema:"GUID of the record to re-resolve"`
}

// ListTasksInput filters the list_tasks tool.
type ListTasksInput struct {
	Status string `json:"status,omitempty" jsonschema:"pending, running, done or failed"`
	Kind   string `json:"kind,omitempty" jsonschema:"task kind"`
	Target string `json:"target,omitempty" jsonschema:"record GUID"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of tasks (default 50)"`
}

// ListTasksOutput is the output schema for list_tasks.
type ListTasksOutput struct {
	Tasks []TaskOutput      `json:"tasks"`
	Stats domain.QueueStats `json:"stats"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Kind  string `json:"kind,omitempty" jsonschema:"restrict to post, media or feed"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	GUID      string  `json:"guid"`
	Kind      string  `json:"kind"`
	Title     string  `json:"title"`
	URL       string  `json:"url,omitempty"`
	FeedTitle string  `json:"feed_title,omitempty"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "submit_task",
		Description: "Enqueue a pipeline task for a record",
	}, s.handleSubmitTask)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "task_status",
		Description: "Show the state of a task",
	}, s.handleTaskStatus)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cancel_task",
		Description: "Cancel a pending task",
	}, s.handleCancelTask)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "trigger_resolve",
		Description: "Re-run conflict resolution for a record",
	}, s.handleTriggerResolve)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_tasks",
		Description: "List recent tasks and queue counts",
	}, s.handleListTasks)
	if s.ports.Search != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "search",
			Description: "Search indexed posts, media and feeds",
		}, s.handleSearch)
	}
}

func (s *Server) handleSubmitTask(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SubmitTaskInput,
) (*mcp.CallToolResult, TaskIDOutput, error) {
	id, err := s.ports.Tasks.SubmitTask(ctx, domain.TaskKind(input.Kind), input.Target, input.Payload)
	if err != nil {
		return nil, TaskIDOutput{}, err
	}
	return nil, TaskIDOutput{TaskID: id}, nil
}

func (s *Server) handleTaskStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TaskIDInput,
) (*mcp.CallToolResult, TaskOutput, error) {
	task, err := s.ports.Tasks.TaskStatus(ctx, input.TaskID)
	if err != nil {
		return nil, TaskOutput{}, err
	}
	return nil, toTaskOutput(*task), nil
}

func (s *Server) handleCancelTask(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TaskIDInput,
) (*mcp.CallToolResult, CancelOutput, error) {
	if err := s.ports.Tasks.CancelTask(ctx, input.TaskID); err != nil {
		return nil, CancelOutput{}, err
	}
	return nil, CancelOutput{Cancelled: true}, nil
}

func (s *Server) handleTriggerResolve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResolveInput,
) (*mcp.CallToolResult, TaskIDOutput, error) {
	id, err := s.ports.Tasks.TriggerResolve(ctx, domain.GUID(input.GUID))
	if err != nil {
		return nil, TaskIDOutput{}, err
	}
	return nil, TaskIDOutput{TaskID: id}, nil
}

func (s *Server) handleListTasks(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListTasksInput,
) (*mcp.CallToolResult, ListTasksOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	tasks, err := s.ports.Tasks.ListTasks(ctx, domain.TaskFilter{
		Status: domain.TaskStatus(input.Status),
		Kind:   domain.TaskKind(input.Kind),
		Target: input.Target,
		Limit:  limit,
	})
	if err != nil {
		return nil, ListTasksOutput{}, err
	}
	stats, err := s.ports.Tasks.QueueStats(ctx)
	if err != nil {
		return nil, ListTasksOutput{}, err
	}

	output := ListTasksOutput{Tasks: make([]TaskOutput, len(tasks)), Stats: stats}
	for i := range tasks {
		output.Tasks[i] = toTaskOutput(tasks[i])
	}
	return nil, output, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := domain.SearchOptions{Limit: limit}
	if input.Kind != "" {
		opts.Kinds = []domain.RecordKind{domain.RecordKind(input.Kind)}
	}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		doc := results[i].Document
		output.Results[i] = SearchResultOutput{
			GUID:      doc.ID,
			Kind:      string(doc.Kind),
			Title:     doc.Title,
			URL:       doc.URL,
			FeedTitle: doc.FeedTitle,
			Score:     results[i].Score,
			Snippet:   doc.Description,
		}
	}

	return nil, output, nil
}

func toTaskOutput(t domain.Task) TaskOutput {
	out := TaskOutput{
		ID:          t.ID,
		Kind:        string(t.Kind),
		Target:      t.Target,
		Status:      string(t.Status),
		Attempts:    t.Attempts,
		MaxAttempts: t.MaxAttempts,
		LastError:   t.LastError,
		Payload:     t.Payload,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !t.NotBefore.IsZero() {
		out.NotBefore = t.NotBefore.UTC().Format(time.RFC3339)
	}
	return out
}
