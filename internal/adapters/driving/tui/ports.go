// Package tui provides an interactive terminal dashboard for the ingest
// pipeline. It implements a driving adapter following hexagonal
// architecture principles.
package tui

import (
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Ports aggregates the driving ports the dashboard uses.
type Ports struct {
	// Tasks inspects and drives the task queue.
	Tasks driving.TaskService

	// Crawl manages feed sources.
	Crawl driving.CrawlService

	// Search queries the index. Optional: the search view reports the
	// engine as unavailable when nil.
	Search driving.SearchService
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Tasks == nil {
		return ErrMissingTaskService
	}
	if p.Crawl == nil {
		return ErrMissingCrawlService
	}
	return nil
}
