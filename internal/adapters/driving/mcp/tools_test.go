package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	if ports.Tasks == nil {
		ports.Tasks = &mockTaskService{}
	}
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestServer_handleSubmitTask(t *testing.T) {
	ctx := context.Background()

	t.Run("submits task", func(t *testing.T) {
		tasks := &mockTaskService{}
		server := newTestServer(t, &Ports{Tasks: tasks})

		_, out, err := server.handleSubmitTask(ctx, nil, SubmitTaskInput{
			Kind:    "reindex",
			Target:  "post:123",
			Payload: map[string]string{"reason": "manual"},
		})

		require.NoError(t, err)
		assert.Equal(t, "task-1", out.TaskID)
		require.Len(t, tasks.submitted, 1)
		assert.Equal(t, domain.TaskReindex, tasks.submitted[0].Kind)
		assert.Equal(t, "post:123", tasks.submitted[0].Target)
		assert.Equal(t, "manual", tasks.submitted[0].Payload["reason"])
	})

	t.Run("propagates overload", func(t *testing.T) {
		server := newTestServer(t, &Ports{Tasks: &mockTaskService{err: domain.ErrSchedulerOverload}})

		_, _, err := server.handleSubmitTask(ctx, nil, SubmitTaskInput{Kind: "reindex", Target: "post:1"})

		assert.ErrorIs(t, err, domain.ErrSchedulerOverload)
	})
}

func TestServer_handleTaskStatus(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("returns task", func(t *testing.T) {
		tasks := &mockTaskService{task: &domain.Task{
			ID:          "task-7",
			Kind:        domain.TaskReindex,
			Target:      "post:1",
			Status:      domain.TaskFailed,
			Attempts:    3,
			MaxAttempts: 3,
			LastError:   "connection refused",
			CreatedAt:   created,
			UpdatedAt:   created.Add(time.Minute),
		}}
		server := newTestServer(t, &Ports{Tasks: tasks})

		_, out, err := server.handleTaskStatus(ctx, nil, TaskIDInput{TaskID: "task-7"})

		require.NoError(t, err)
		assert.Equal(t, "task-7", out.ID)
		assert.Equal(t, "failed", out.Status)
		assert.Equal(t, 3, out.Attempts)
		assert.Equal(t, "connection refused", out.LastError)
		assert.Equal(t, "2024-03-01T09:00:00Z", out.CreatedAt)
		assert.Empty(t, out.NotBefore)
	})

	t.Run("not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{Tasks: &mockTaskService{err: domain.ErrNotFound}})

		_, _, err := server.handleTaskStatus(ctx, nil, TaskIDInput{TaskID: "nope"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestServer_handleCancelTask(t *testing.T) {
	ctx := context.Background()
	tasks := &mockTaskService{}
	server := newTestServer(t, &Ports{Tasks: tasks})

	_, out, err := server.handleCancelTask(ctx, nil, TaskIDInput{TaskID: "task-1"})
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Equal(t, []string{"task-1"}, tasks.cancelled)

	tasks.err = domain.ErrTaskNotPending
	_, out, err = server.handleCancelTask(ctx, nil, TaskIDInput{TaskID: "task-1"})
	assert.ErrorIs(t, err, domain.ErrTaskNotPending)
	assert.False(t, out.Cancelled)
}

func TestServer_handleTriggerResolve(t *testing.T) {
	tasks := &mockTaskService{}
	server := newTestServer(t, &Ports{Tasks: tasks})

	_, out, err := server.handleTriggerResolve(context.Background(), nil, ResolveInput{GUID: "post:9"})

	require.NoError(t, err)
	assert.Equal(t, "task-1", out.TaskID)
	require.Len(t, tasks.submitted, 1)
	assert.Equal(t, domain.TaskResolve, tasks.submitted[0].Kind)
}

func TestServer_handleListTasks(t *testing.T) {
	tasks := &mockTaskService{
		tasks: []domain.Task{{ID: "a", Status: domain.TaskPending}, {ID: "b", Status: domain.TaskPending}},
		stats: domain.QueueStats{Pending: 2, Done: 5},
	}
	server := newTestServer(t, &Ports{Tasks: tasks})

	_, out, err := server.handleListTasks(context.Background(), nil, ListTasksInput{Status: "pending"})

	require.NoError(t, err)
	assert.Len(t, out.Tasks, 2)
	assert.Equal(t, 5, out.Stats.Done)
	assert.Equal(t, domain.TaskPending, tasks.filter.Status)
	assert.Equal(t, 50, tasks.filter.Limit, "default limit")
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearchService{
			results: []domain.SearchResult{
				{
					Document: domain.IndexDocument{
						ID:          "post:1",
						Kind:        domain.KindPost,
						Title:       "Morning show",
						URL:         "https://radio.example.org/1",
						Description: "News and music",
						FeedTitle:   "Free Radio",
					},
					Score: 0.95,
				},
			},
		}
		server := newTestServer(t, &Ports{Search: mockSearch})

		input := SearchInput{Query: "morning", Limit: 10, Kind: "post"}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "post:1", output.Results[0].GUID)
		assert.Equal(t, "post", output.Results[0].Kind)
		assert.Equal(t, "Morning show", output.Results[0].Title)
		assert.Equal(t, "Free Radio", output.Results[0].FeedTitle)
		assert.Equal(t, "News and music", output.Results[0].Snippet)
		assert.Equal(t, 0.95, output.Results[0].Score)
		assert.Equal(t, []domain.RecordKind{domain.KindPost}, mockSearch.opts.Kinds)
	})

	t.Run("default limit is 10", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server := newTestServer(t, &Ports{Search: mockSearch})

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Equal(t, 10, mockSearch.opts.Limit)
		assert.Empty(t, mockSearch.opts.Kinds)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockSearch := &mockSearchService{
			err: errors.New("search failed"),
		}
		server := newTestServer(t, &Ports{Search: mockSearch})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}
