// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - RecordStore: Canonical record persistence with optimistic revisions
//   - ChangeFeed: The record store's mutation log
//   - TaskStore: Durable task queue
//   - CursorStore: Change consumer checkpoints (SQLite or Redis)
//   - CrawlStore: Crawl schedules and history
//   - SourceStore: Feed source configuration
//   - FeedFetcher: Conditional HTTP fetch of feeds
//   - FeedMapper: Feed payload to candidate records
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the pipeline degrades gracefully:
//
//   - SearchIndex: Search engine (Elasticsearch). Without it, reindex tasks
//     fail with domain.ErrSearchUnavailable and search is disabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
