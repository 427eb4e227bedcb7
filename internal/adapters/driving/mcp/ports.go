package mcp

import (
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Tasks drives the task queue.
	Tasks driving.TaskService

	// Search provides search capabilities. Optional.
	Search driving.SearchService

	// Crawl exposes feed sources and crawl history. Optional.
	Crawl driving.CrawlService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Tasks == nil {
		return ErrMissingTaskService
	}
	return nil
}
