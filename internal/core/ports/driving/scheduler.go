package driving

import "context"

// Scheduler manages long-running background loops such as the crawl
// scheduler.
type Scheduler interface {
	// Start begins running scheduled work.
	// Blocks until context is cancelled or an error occurs.
	Start(ctx context.Context) error

	// Stop gracefully stops all running work.
	Stop() error
}

// Dispatcher drains the task queue into handlers.
type Dispatcher interface {
	// Run dispatches tasks on every clock tick until ctx is cancelled.
	Run(ctx context.Context) error

	// Tick performs a single dispatch pass.
	Tick(ctx context.Context) error
}
