package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/metrics"
)

// Ensure Dispatcher implements the interface.
var _ driving.Dispatcher = (*Dispatcher)(nil)

// TaskHandler executes one kind of task.
// Handlers must be idempotent: a task may run more than once.
type TaskHandler interface {
	Handle(ctx context.Context, task domain.Task) error
}

// TaskHandlerFunc adapts a function to TaskHandler.
type TaskHandlerFunc func(ctx context.Context, task domain.Task) error

// Handle calls f.
func (f TaskHandlerFunc) Handle(ctx context.Context, task domain.Task) error {
	return f(ctx, task)
}

// TaskSubmitter durably enqueues tasks.
type TaskSubmitter interface {
	SubmitBatch(ctx context.Context, tasks []domain.Task) ([]string, error)
}

// pendingPageSize is how many queued tasks one store read returns. A
// dispatch pass pages on until every worker is busy or the queue ends.
const pendingPageSize = 1000

// Dispatcher drains the task queue into a bounded pool of handlers.
//
// Tasks sharing a Target are serialized in Seq order: while an earlier
// task for a target is running or waiting out its backoff, later tasks
// for that target are held back. Different targets run in parallel up to
// the configured number of workers.
type Dispatcher struct {
	store    driven.TaskStore
	clock    clock.Clock
	cfg      domain.DispatcherConfig
	metrics  *metrics.Metrics
	handlers map[domain.TaskKind]TaskHandler
	pageSize int

	// mu serializes claiming tasks and cancelling them.
	mu      sync.Mutex
	running map[string]string // target -> task ID
	slots   chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil clock uses the wall clock and
// nil metrics use a private registry.
func NewDispatcher(
	store driven.TaskStore,
	cfg domain.DispatcherConfig,
	clk clock.Clock,
	m *metrics.Metrics,
) *Dispatcher {
	if clk == nil {
		clk = clock.WallClock
	}
	if m == nil {
		m = metrics.NewNop()
	}
	defaults := domain.DefaultPipelineConfig().Dispatcher
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaults.BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaults.BackoffMax
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaults.TaskTimeout
	}
	return &Dispatcher{
		store:    store,
		clock:    clk,
		cfg:      cfg,
		metrics:  m,
		handlers: make(map[domain.TaskKind]TaskHandler),
		pageSize: pendingPageSize,
		running:  make(map[string]string),
		slots:    make(chan struct{}, cfg.Workers),
	}
}

// Register binds a handler to a task kind.
func (d *Dispatcher) Register(kind domain.TaskKind, h TaskHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Submit durably enqueues a single task and returns its ID.
func (d *Dispatcher) Submit(ctx context.Context, task domain.Task) (string, error) {
	ids, err := d.SubmitBatch(ctx, []domain.Task{task})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// SubmitBatch durably enqueues tasks atomically and returns their IDs in
// order. Either every task is accepted or none is.
func (d *Dispatcher) SubmitBatch(ctx context.Context, tasks []domain.Task) ([]string, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	now := d.clock.Now()
	prepared := make([]domain.Task, len(tasks))
	for i, t := range tasks {
		if !t.Kind.Valid() {
			return nil, fmt.Errorf("%w: task kind %q", domain.ErrInvalidInput, t.Kind)
		}
		if t.Target == "" {
			return nil, fmt.Errorf("%w: task %s has no target", domain.ErrInvalidInput, t.Kind)
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.MaxAttempts <= 0 {
			t.MaxAttempts = d.cfg.MaxAttempts
		}
		t.Status = domain.TaskPending
		t.Attempts = 0
		t.LastError = ""
		t.CreatedAt = now
		t.UpdatedAt = now
		prepared[i] = t
	}

	stored, err := d.store.Enqueue(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("%w: enqueue %d tasks: %w", domain.ErrSchedulerOverload, len(prepared), err)
	}

	ids := make([]string, len(stored))
	for i, t := range stored {
		ids[i] = t.ID
		d.metrics.TasksSubmitted.WithLabelValues(string(t.Kind)).Inc()
	}
	return ids, nil
}

// Cancel fails a pending task with reason "cancelled".
func (d *Dispatcher) Cancel(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if task.Status != domain.TaskPending {
		return fmt.Errorf("task %s is %s: %w", id, task.Status, domain.ErrTaskNotPending)
	}

	task.Status = domain.TaskFailed
	task.LastError = domain.CancelledReason
	task.UpdatedAt = d.clock.Now()
	if err := d.store.Update(ctx, *task); err != nil {
		return err
	}
	d.metrics.TasksFailed.WithLabelValues(string(task.Kind), "cancelled").Inc()
	logger.Info("dispatcher: task %s (%s %s) cancelled", task.ID, task.Kind, task.Target)
	return nil
}

// Recover returns tasks left running by a previous process to pending.
func (d *Dispatcher) Recover(ctx context.Context) error {
	n, err := d.store.ResetRunning(ctx)
	if err != nil {
		return fmt.Errorf("reset running tasks: %w", err)
	}
	if n > 0 {
		logger.Warn("dispatcher: returned %d interrupted tasks to pending", n)
	}
	return nil
}

// Run recovers interrupted tasks and then dispatches on every tick until
// ctx is cancelled. In-flight handlers are waited for before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.Recover(ctx); err != nil {
		return err
	}
	defer d.Wait()

	for {
		if err := d.Tick(ctx); err != nil {
			logger.Warn("dispatcher: tick failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.clock.After(d.cfg.TickInterval):
		}
	}
}

// Wait blocks until all in-flight handlers have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Tick performs a single dispatch pass: it claims every due task whose
// target is free, up to the number of idle workers.
func (d *Dispatcher) Tick(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	held := make(map[string]bool)
	var after int64
	depth := 0
	for {
		tasks, err := d.store.ListPending(ctx, after, d.pageSize)
		if err != nil {
			return fmt.Errorf("list pending tasks: %w", err)
		}
		depth += len(tasks)
		full, err := d.claim(ctx, now, tasks, held)
		if err != nil || full || len(tasks) < d.pageSize {
			d.metrics.QueueDepth.Set(float64(depth))
			return err
		}
		after = tasks[len(tasks)-1].Seq
	}
}

// claim starts the due tasks of one page in Seq order. held carries the
// targets already seen on earlier pages. It reports whether every worker
// is now busy.
func (d *Dispatcher) claim(ctx context.Context, now time.Time, tasks []domain.Task, held map[string]bool) (bool, error) {
	for _, task := range tasks {
		if held[task.Target] {
			continue
		}
		// Whatever happens to this task, later ones for its target wait.
		held[task.Target] = true

		if task.Status != domain.TaskPending {
			continue
		}
		if _, busy := d.running[task.Target]; busy {
			continue
		}
		if !task.Due(now) {
			continue
		}

		select {
		case d.slots <- struct{}{}:
		default:
			return true, nil
		}

		task.Status = domain.TaskRunning
		task.UpdatedAt = now
		if err := d.store.Update(ctx, task); err != nil {
			<-d.slots
			return false, fmt.Errorf("claim task %s: %w", task.ID, err)
		}
		d.running[task.Target] = task.ID
		d.metrics.ActiveWorkers.Inc()
		d.wg.Add(1)
		go d.execute(ctx, task)
	}
	return false, nil
}

// execute runs one claimed task and records its outcome.
func (d *Dispatcher) execute(ctx context.Context, task domain.Task) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		delete(d.running, task.Target)
		d.mu.Unlock()
		d.metrics.ActiveWorkers.Dec()
		<-d.slots
	}()

	start := d.clock.Now()
	err := d.invoke(ctx, task)
	d.metrics.TaskDuration.WithLabelValues(string(task.Kind)).Observe(d.clock.Now().Sub(start).Seconds())

	// The outcome must be persisted even when shutdown cancelled ctx.
	d.finish(context.WithoutCancel(ctx), ctx.Err() != nil, task, err)
}

func (d *Dispatcher) invoke(ctx context.Context, task domain.Task) (err error) {
	d.mu.Lock()
	h, ok := d.handlers[task.Kind]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("no handler for task kind %q: %w", task.Kind, domain.ErrUnsupportedType)
	}

	hctx, cancel := context.WithTimeout(ctx, d.cfg.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panic: %v", r)
		}
	}()

	err = h.Handle(hctx, task)
	if err != nil && errors.Is(hctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = domain.NewTransportError("dispatcher", string(task.Kind), fmt.Errorf("timed out after %s: %w", d.cfg.TaskTimeout, err))
	}
	return err
}

// finish advances the task state machine after a run.
func (d *Dispatcher) finish(ctx context.Context, shuttingDown bool, task domain.Task, runErr error) {
	now := d.clock.Now()
	task.UpdatedAt = now
	kind := string(task.Kind)

	switch {
	case runErr == nil:
		task.Status = domain.TaskDone
		task.LastError = ""
		d.metrics.TasksCompleted.WithLabelValues(kind).Inc()
		logger.Debug("dispatcher: task %s (%s %s) done", task.ID, task.Kind, task.Target)

	case shuttingDown:
		// Interrupted, not failed: the attempt does not count.
		task.Status = domain.TaskPending

	case domain.IsPermanent(runErr):
		task.Attempts++
		task.Status = domain.TaskFailed
		task.LastError = runErr.Error()
		d.metrics.TasksFailed.WithLabelValues(kind, "permanent").Inc()
		logger.Error("dispatcher: task %s (%s %s) failed permanently: %v", task.ID, task.Kind, task.Target, runErr)

	default:
		task.Attempts++
		task.LastError = runErr.Error()
		if task.Exhausted() {
			task.Status = domain.TaskFailed
			d.metrics.TasksFailed.WithLabelValues(kind, "exhausted").Inc()
			logger.Error("dispatcher: task %s (%s %s) failed after %d attempts: %v",
				task.ID, task.Kind, task.Target, task.Attempts, runErr)
		} else {
			task.Status = domain.TaskPending
			task.NotBefore = now.Add(d.backoff(task.Attempts))
			d.metrics.TasksRetried.WithLabelValues(kind).Inc()
			logger.Warn("dispatcher: task %s (%s %s) attempt %d failed, retrying at %s: %v",
				task.ID, task.Kind, task.Target, task.Attempts, task.NotBefore.Format(time.RFC3339), runErr)
		}
	}

	if err := d.store.Update(ctx, task); err != nil {
		// The task stays running in the store and is recovered on restart.
		logger.Error("dispatcher: failed to save task %s: %v", task.ID, err)
	}
}

// backoff returns base * 2^(attempts-1), capped.
func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.cfg.BackoffBase
	for i := 1; i < attempts && delay < d.cfg.BackoffMax; i++ {
		delay *= 2
	}
	if delay > d.cfg.BackoffMax {
		delay = d.cfg.BackoffMax
	}
	return delay
}
