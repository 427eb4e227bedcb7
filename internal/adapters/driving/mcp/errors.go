// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants submit and inspect pipeline tasks and search the
// index.
package mcp

import "errors"

// ErrMissingTaskService is returned when the task service is not provided.
var ErrMissingTaskService = errors.New("mcp: task service is required")
