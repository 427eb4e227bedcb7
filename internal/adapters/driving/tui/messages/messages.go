// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewSearch is the search input and results view.
	ViewSearch
	// ViewSources lists feed sources and their schedules.
	ViewSources
	// ViewTasks shows the task queue.
	ViewTasks
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewSearch:
		return "search"
	case ViewSources:
		return "sources"
	case ViewTasks:
		return "tasks"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// SearchCompleted carries search results back to the model.
type SearchCompleted struct {
	Results []domain.SearchResult
	Err     error
}

// TaskSubmitted reports a task enqueued from the dashboard.
type TaskSubmitted struct {
	Kind   domain.TaskKind
	Target string
	ID     string
	Err    error
}

// TasksLoaded carries a page of tasks and the queue counters.
type TasksLoaded struct {
	Tasks []domain.Task
	Stats domain.QueueStats
	Err   error
}

// TaskCancelled signals a cancel request finished.
type TaskCancelled struct {
	ID  string
	Err error
}

// SourcesLoaded carries the feed sources with their crawl schedules.
type SourcesLoaded struct {
	Sources   []domain.FeedSource
	Schedules []domain.CrawlSchedule
	Err       error
}

// SourceRemoved signals a source was removed.
type SourceRemoved struct {
	ID  string
	Err error
}

// CrawlCompleted carries the outcome of an on-demand crawl.
type CrawlCompleted struct {
	SourceID string
	Result   *domain.CrawlResult
	Err      error
}

// RefreshTick asks the active view to reload its data.
type RefreshTick struct{}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
