// Package domain defines the core business entities for the ingest pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types and the pure merge rules:
//
//   - GUID: A namespaced identifier derived from a natural key
//   - Record: A versioned envelope around a Post, Media or Feed
//   - Resolve: The deterministic merge of two versions of one entity
//   - Task: A durable unit of background work
//   - Change: One entry of the document store's mutation log
//   - CrawlSchedule: Polling state for a configured feed source
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import the Go
// standard library and github.com/google/uuid. All other packages depend
// on domain, never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library, github.com/google/uuid
//   - Cannot Import: Any internal/ package, any other external dependency
package domain
