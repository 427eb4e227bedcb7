package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func readRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}
}

func TestExtractSourceID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid source history URI",
			uri:      "sercha://sources/src-123/history",
			expected: "src-123",
		},
		{
			name:     "invalid prefix",
			uri:      "file://sources/src-123/history",
			expected: "",
		},
		{
			name:     "missing history suffix",
			uri:      "sercha://sources/src-123",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractSourceID(tt.uri)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestExtractTaskID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid task URI",
			uri:      "sercha://tasks/task-456",
			expected: "task-456",
		},
		{
			name:     "invalid prefix",
			uri:      "file://tasks/task-456",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractTaskID(tt.uri)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestServer_handleSourcesResource(t *testing.T) {
	ctx := context.Background()
	next := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("joins sources with schedules", func(t *testing.T) {
		crawl := &mockCrawlService{
			sources: []domain.FeedSource{
				{ID: "s1", Name: "Free Radio", URL: "https://radio.example.org/feed", Enabled: true},
				{ID: "s2", Name: "Quiet", URL: "https://quiet.example.org/feed"},
			},
			schedules: []domain.CrawlSchedule{
				{SourceID: "s1", Interval: 30 * time.Minute, NextRun: next, LastError: "HTTP 503", ConsecutiveFailures: 2},
			},
		}
		server := newTestServer(t, &Ports{Crawl: crawl})

		res, err := server.handleSourcesResource(ctx, readRequest("sercha://sources"))
		require.NoError(t, err)
		require.Len(t, res.Contents, 1)

		var infos []sourceInfo
		require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &infos))
		require.Len(t, infos, 2)
		assert.Equal(t, "30m0s", infos[0].Interval)
		assert.Equal(t, "2024-03-01T10:00:00Z", infos[0].NextRun)
		assert.Equal(t, 2, infos[0].ConsecutiveFailures)
		assert.False(t, infos[1].Enabled)
		assert.Empty(t, infos[1].Interval)
	})

	t.Run("no crawl service returns empty list", func(t *testing.T) {
		server := newTestServer(t, &Ports{})

		res, err := server.handleSourcesResource(ctx, readRequest("sercha://sources"))

		require.NoError(t, err)
		assert.Equal(t, "[]", res.Contents[0].Text)
	})

	t.Run("propagates errors", func(t *testing.T) {
		server := newTestServer(t, &Ports{Crawl: &mockCrawlService{err: domain.ErrTransport}})

		_, err := server.handleSourcesResource(ctx, readRequest("sercha://sources"))

		assert.ErrorIs(t, err, domain.ErrTransport)
	})
}

func TestServer_handleHistoryResource(t *testing.T) {
	ctx := context.Background()
	crawl := &mockCrawlService{history: []domain.CrawlResult{{SourceID: "s1", Success: true, ItemsSeen: 4}}}
	server := newTestServer(t, &Ports{Crawl: crawl})

	res, err := server.handleHistoryResource(ctx, readRequest("sercha://sources/s1/history"))
	require.NoError(t, err)
	assert.Equal(t, "s1", crawl.historyID)
	assert.Contains(t, res.Contents[0].Text, `"ItemsSeen": 4`)

	_, err = server.handleHistoryResource(ctx, readRequest("sercha://sources/s1"))
	assert.Error(t, err)

	_, err = newTestServer(t, &Ports{}).handleHistoryResource(ctx, readRequest("sercha://sources/s1/history"))
	assert.Error(t, err)
}

func TestServer_handleTaskResource(t *testing.T) {
	ctx := context.Background()
	tasks := &mockTaskService{task: &domain.Task{ID: "task-1", Kind: domain.TaskResolve, Status: domain.TaskDone}}
	server := newTestServer(t, &Ports{Tasks: tasks})

	res, err := server.handleTaskResource(ctx, readRequest("sercha://tasks/task-1"))
	require.NoError(t, err)

	var out TaskOutput
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &out))
	assert.Equal(t, "task-1", out.ID)
	assert.Equal(t, "done", out.Status)

	_, err = server.handleTaskResource(ctx, readRequest("sercha://other/task-1"))
	assert.Error(t, err)
}
