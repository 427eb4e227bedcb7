// Package services implements the driving port interfaces and the
// pipeline loops behind them.
//
// The Consumer follows the record store's change log and submits tasks,
// the Dispatcher drains the task queue into handlers (Indexer,
// ResolveHandler, FeedRegistrar), and the Crawler polls feed sources on
// their schedules. Pipeline wires them together from driven ports.
//
// Services are pure Go with no CGO. They depend on driven port
// interfaces only; adapters are injected by the caller.
package services
