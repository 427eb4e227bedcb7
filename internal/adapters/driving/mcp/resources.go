package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// URIScheme is the custom URI scheme for pipeline resources.
	uriScheme = "sercha://"

	historyLimit = 20
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing feed sources.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sources",
		Name:        "sources",
		Description: "Configured feed sources and their crawl schedule",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	// Template for crawl history.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sources/{sourceId}/history",
		Name:        "source-history",
		Description: "Recent crawl results for a feed source",
		MIMEType:    "application/json",
	}, s.handleHistoryResource)

	// Template for a single task.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "tasks/{taskId}",
		Name:        "task",
		Description: "State of a pipeline task",
		MIMEType:    "application/json",
	}, s.handleTaskResource)
}

type sourceInfo struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	URL                 string `json:"url"`
	Enabled             bool   `json:"enabled"`
	Interval            string `json:"interval,omitempty"`
	NextRun             string `json:"next_run,omitempty"`
	LastError           string `json:"last_error,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures,omitempty"`
}

// handleSourcesResource returns all feed sources joined with their schedule.
func (s *Server) handleSourcesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Crawl == nil {
		return jsonResult(req.Params.URI, []sourceInfo{})
	}

	sources, err := s.ports.Crawl.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	schedules, err := s.ports.Crawl.Schedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	bySource := make(map[string]int, len(schedules))
	for i := range schedules {
		bySource[schedules[i].SourceID] = i
	}

	infos := make([]sourceInfo, len(sources))
	for i, src := range sources {
		info := sourceInfo{
			ID:      src.ID,
			Name:    src.Name,
			URL:     src.URL,
			Enabled: src.Enabled,
		}
		if j, ok := bySource[src.ID]; ok {
			sched := schedules[j]
			info.Interval = sched.Interval.String()
			if !sched.NextRun.IsZero() {
				info.NextRun = sched.NextRun.UTC().Format(time.RFC3339)
			}
			info.LastError = sched.LastError
			info.ConsecutiveFailures = sched.ConsecutiveFailures
		}
		infos[i] = info
	}
	return jsonResult(req.Params.URI, infos)
}

// handleHistoryResource returns recent crawl results for one source.
func (s *Server) handleHistoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Crawl == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract sourceId from URI: sercha://sources/{sourceId}/history
	sourceID := extractSourceID(req.Params.URI)
	if sourceID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	history, err := s.ports.Crawl.History(ctx, sourceID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("listing crawl history: %w", err)
	}
	return jsonResult(req.Params.URI, history)
}

// handleTaskResource returns one task.
func (s *Server) handleTaskResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	taskID := extractTaskID(req.Params.URI)
	if taskID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	task, err := s.ports.Tasks.TaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return jsonResult(req.Params.URI, toTaskOutput(*task))
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSourceID extracts the source ID from a URI like sercha://sources/{sourceId}/history.
func extractSourceID(uri string) string {
	const prefix = uriScheme + "sources/"
	const suffix = "/history"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}

// extractTaskID extracts the task ID from a URI like sercha://tasks/{taskId}.
func extractTaskID(uri string) string {
	const prefix = uriScheme + "tasks/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
