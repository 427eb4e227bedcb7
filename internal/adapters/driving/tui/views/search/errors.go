package search

import "errors"

// Error definitions for the search view.
var (
	// ErrNoSearchService indicates that no search engine is configured.
	ErrNoSearchService = errors.New("search is not configured (set search.url)")

	// ErrNoTaskService indicates result actions are unavailable.
	ErrNoTaskService = errors.New("task service is required")
)
