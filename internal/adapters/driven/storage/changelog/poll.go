// Package changelog turns a store's pull-based change query into the
// streaming subscription of driven.ChangeFeed.
package changelog

import (
	"context"
	"time"

	"github.com/juju/clock"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// FetchFunc returns up to limit changes with Seq greater than since.
type FetchFunc func(ctx context.Context, since int64, limit int) ([]domain.Change, error)

// Options shape batching and polling.
type Options struct {
	// BatchSize caps the changes in one batch.
	BatchSize int

	// Linger is how long a partial batch waits for more changes.
	Linger time.Duration

	// PollInterval is the idle delay between queries.
	PollInterval time.Duration

	// Wake, if set, returns a channel that is closed on the next write.
	// It lets in-process stores skip the poll delay.
	Wake func() <-chan struct{}

	Clock clock.Clock
}

// Defaults used for zero options.
const (
	DefaultBatchSize    = 1000
	DefaultLinger       = 200 * time.Millisecond
	DefaultPollInterval = time.Second
)

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Linger < 0 {
		o.Linger = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Clock == nil {
		o.Clock = clock.WallClock
	}
	return o
}

// Subscribe polls fetch from since and delivers batches in Seq order. A
// fetch error is sent on the error channel and ends the subscription.
// Both channels are closed when the subscription ends.
func Subscribe(ctx context.Context, since int64, fetch FetchFunc, opts Options) (<-chan domain.ChangeBatch, <-chan error) {
	opts = opts.withDefaults()
	batches := make(chan domain.ChangeBatch)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(batches)

		p := poller{fetch: fetch, opts: opts, since: since}
		for {
			batch, err := p.next(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			select {
			case batches <- batch:
				p.since = batch.LastSeq()
			case <-ctx.Done():
				return
			}
		}
	}()
	return batches, errs
}

type poller struct {
	fetch FetchFunc
	opts  Options
	since int64
}

// next blocks until at least one change is available, then lingers to
// fill the batch.
func (p *poller) next(ctx context.Context) (domain.ChangeBatch, error) {
	for {
		var wake <-chan struct{}
		if p.opts.Wake != nil {
			// Taken before the query so a write in between is not missed.
			wake = p.opts.Wake()
		}
		changes, err := p.fetch(ctx, p.since, p.opts.BatchSize)
		if err != nil {
			return domain.ChangeBatch{}, err
		}
		if len(changes) > 0 {
			return p.fill(ctx, changes)
		}
		select {
		case <-ctx.Done():
			return domain.ChangeBatch{}, ctx.Err()
		case <-wake:
		case <-p.opts.Clock.After(p.opts.PollInterval):
		}
	}
}

func (p *poller) fill(ctx context.Context, changes []domain.Change) (domain.ChangeBatch, error) {
	if len(changes) >= p.opts.BatchSize || p.opts.Linger == 0 {
		return domain.ChangeBatch{Changes: changes}, nil
	}
	select {
	case <-ctx.Done():
		return domain.ChangeBatch{}, ctx.Err()
	case <-p.opts.Clock.After(p.opts.Linger):
	}
	last := changes[len(changes)-1].Seq
	more, err := p.fetch(ctx, last, p.opts.BatchSize-len(changes))
	if err != nil {
		// What was read is still valid; the error surfaces on the next poll.
		return domain.ChangeBatch{Changes: changes}, nil
	}
	return domain.ChangeBatch{Changes: append(changes, more...)}, nil
}
