package driving

import "context"

// ChangeConsumer follows the record store's change log and turns changes
// into tasks.
type ChangeConsumer interface {
	// Run consumes changes until ctx is cancelled.
	Run(ctx context.Context) error

	// Status returns the consumer's current state.
	Status() ConsumerStatus
}

// ConsumerState is the consumer's lifecycle state.
type ConsumerState string

// Consumer states.
const (
	ConsumerIdle         ConsumerState = "idle"
	ConsumerPolling      ConsumerState = "polling"
	ConsumerProcessing   ConsumerState = "processing"
	ConsumerErrorBackoff ConsumerState = "error_backoff"
)

// ConsumerStatus represents the current state of the change consumer.
type ConsumerStatus struct {
	// State is the lifecycle state.
	State ConsumerState

	// Cursor is the last durably processed sequence.
	Cursor int64

	// BatchesProcessed counts batches whose tasks were accepted.
	BatchesProcessed int

	// ErrorCount is the number of errors encountered.
	ErrorCount int
}
