package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/metrics"
)

// Ensure Consumer implements the interface.
var _ driving.ChangeConsumer = (*Consumer)(nil)

// errSubscriptionClosed is returned when the change feed ends a
// subscription without reporting why.
var errSubscriptionClosed = errors.New("change subscription closed")

// Consumer follows the record store's change log and turns each change
// into tasks. It is the only writer of its cursor, and the cursor moves
// only after a batch's tasks have been durably accepted.
type Consumer struct {
	feed      driven.ChangeFeed
	cursors   driven.CursorStore
	submitter TaskSubmitter
	registry  *TaskRegistry
	clock     clock.Clock
	cfg       domain.ConsumerConfig
	metrics   *metrics.Metrics

	mu       sync.RWMutex
	status   driving.ConsumerStatus
	failures int
}

// NewConsumer creates a change consumer. A nil registry uses
// DefaultTaskRegistry.
func NewConsumer(
	feed driven.ChangeFeed,
	cursors driven.CursorStore,
	submitter TaskSubmitter,
	registry *TaskRegistry,
	cfg domain.ConsumerConfig,
	clk clock.Clock,
	m *metrics.Metrics,
) *Consumer {
	if registry == nil {
		registry = DefaultTaskRegistry()
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if m == nil {
		m = metrics.NewNop()
	}
	defaults := domain.DefaultPipelineConfig().Consumer
	if cfg.CursorName == "" {
		cfg.CursorName = defaults.CursorName
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaults.BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaults.BackoffMax
	}
	return &Consumer{
		feed:      feed,
		cursors:   cursors,
		submitter: submitter,
		registry:  registry,
		clock:     clk,
		cfg:       cfg,
		metrics:   m,
		status:    driving.ConsumerStatus{State: driving.ConsumerIdle},
	}
}

// Status returns the consumer's current state.
func (c *Consumer) Status() driving.ConsumerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Consumer) setState(s driving.ConsumerState) {
	c.mu.Lock()
	c.status.State = s
	c.mu.Unlock()
}

// Run consumes changes until ctx is cancelled. Subscription and enqueue
// failures put the consumer into backoff, after which it resubscribes
// from the persisted cursor.
func (c *Consumer) Run(ctx context.Context) error {
	logger.Info("consumer: starting (cursor %q)", c.cfg.CursorName)
	defer c.setState(driving.ConsumerIdle)

	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.mu.Lock()
		c.failures++
		c.status.ErrorCount++
		c.status.State = driving.ConsumerErrorBackoff
		failures := c.failures
		c.mu.Unlock()
		c.metrics.ConsumerErrors.Inc()

		delay := c.backoff(failures)
		logger.Warn("consumer: %v; resubscribing in %s", err, delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(delay):
		}
	}
}

// consume runs one subscription until it fails or ctx ends.
func (c *Consumer) consume(ctx context.Context) error {
	since, err := c.loadCursor(ctx)
	if err != nil {
		return err
	}
	c.setState(driving.ConsumerPolling)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	batches, errs := c.feed.Subscribe(subCtx, since)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return fmt.Errorf("change subscription: %w", err)
			}

		case batch, ok := <-batches:
			if !ok {
				return errSubscriptionClosed
			}
			if err := c.ProcessBatch(ctx, batch); err != nil {
				return err
			}
			c.setState(driving.ConsumerPolling)
		}
	}
}

func (c *Consumer) loadCursor(ctx context.Context) (int64, error) {
	cur, err := c.cursors.Load(ctx, c.cfg.CursorName)
	if err != nil {
		return 0, fmt.Errorf("load cursor %q: %w", c.cfg.CursorName, err)
	}
	var seq int64
	if cur != nil {
		seq = cur.Sequence
	}
	c.mu.Lock()
	c.status.Cursor = seq
	c.mu.Unlock()
	c.metrics.CursorPosition.Set(float64(seq))
	return seq, nil
}

// ProcessBatch maps a batch to tasks, submits them atomically and then
// checkpoints the cursor. If submission fails the cursor is untouched and
// the whole batch will be redelivered.
func (c *Consumer) ProcessBatch(ctx context.Context, batch domain.ChangeBatch) error {
	if len(batch.Changes) == 0 {
		return nil
	}
	c.setState(driving.ConsumerProcessing)
	c.metrics.ChangesSeen.Add(float64(len(batch.Changes)))

	var tasks []domain.Task
	for _, change := range batch.Changes {
		tasks = append(tasks, c.registry.TasksFor(change)...)
	}

	if len(tasks) > 0 {
		if _, err := c.submitter.SubmitBatch(ctx, tasks); err != nil {
			return fmt.Errorf("submit %d tasks for changes up to %d: %w", len(tasks), batch.LastSeq(), err)
		}
	}

	last := batch.LastSeq()
	c.mu.RLock()
	current := c.status.Cursor
	c.mu.RUnlock()
	if last > current {
		cur := domain.ChangeCursor{Name: c.cfg.CursorName, Sequence: last, UpdatedAt: c.clock.Now()}
		if err := c.cursors.Save(ctx, cur); err != nil {
			// Tasks are accepted; redelivery only repeats idempotent work.
			return fmt.Errorf("save cursor %q at %d: %w", c.cfg.CursorName, last, err)
		}
		current = last
	}

	c.mu.Lock()
	c.status.Cursor = current
	c.status.BatchesProcessed++
	c.failures = 0
	c.mu.Unlock()
	c.metrics.ChangeBatches.Inc()
	c.metrics.CursorPosition.Set(float64(current))

	logger.Debug("consumer: %d changes -> %d tasks, cursor at %d", len(batch.Changes), len(tasks), current)
	return nil
}

func (c *Consumer) backoff(failures int) time.Duration {
	delay := c.cfg.BackoffBase
	for i := 1; i < failures && delay < c.cfg.BackoffMax; i++ {
		delay *= 2
	}
	if delay > c.cfg.BackoffMax {
		delay = c.cfg.BackoffMax
	}
	return delay
}
