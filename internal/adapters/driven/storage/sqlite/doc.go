// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - RecordStore and ChangeFeed: canonical records, siblings and the mutation log
//   - TaskStore: the durable task queue
//   - CursorStore: change consumer checkpoints
//   - SourceStore: feed source configuration
//   - CrawlStore: crawl schedules and history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Change Log
//
// Every record write appends to the changes table inside the same
// transaction, so a change is visible exactly when its record is. Change
// subscriptions poll the table and are woken early by writes made through
// the same Store.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-ingest/data/ingest.db
//
// # Thread Safety
//
// All operations are thread-safe. Revision checks are single conditional
// statements, so concurrent writers cannot both win.
package sqlite
