package tui

import "errors"

// ErrMissingTaskService is returned when the task service is not provided.
var ErrMissingTaskService = errors.New("tui: task service is required")

// ErrMissingCrawlService is returned when the crawl service is not provided.
var ErrMissingCrawlService = errors.New("tui: crawl service is required")

// ErrInvalidPorts is returned when no ports are given at all.
var ErrInvalidPorts = errors.New("tui: invalid ports configuration")
