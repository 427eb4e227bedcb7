package services

import (
	"context"
	"errors"
	"sync"

	"github.com/juju/clock"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/metrics"
)

// PipelineDeps groups the adapters the pipeline runs on. Index may be nil
// when no search engine is configured. Fetcher and Mapper may be nil when
// crawling is disabled.
type PipelineDeps struct {
	Records driven.RecordStore
	Changes driven.ChangeFeed
	Tasks   driven.TaskStore
	Cursors driven.CursorStore
	Index   driven.SearchIndex
	Crawl   driven.CrawlStore
	Sources driven.SourceStore
	Fetcher driven.FeedFetcher
	Mapper  driven.FeedMapper
	Clock   clock.Clock
	Metrics *metrics.Metrics
}

// Pipeline wires the change consumer, the task dispatcher and its
// handlers, and the crawl scheduler into one runnable unit.
type Pipeline struct {
	cfg domain.PipelineConfig

	Dispatcher *Dispatcher
	Consumer   *Consumer
	Crawler    *Crawler
	Indexer    *Indexer
	Resolver   *ResolveHandler
	Tasks      *TaskService
	Search     *SearchService
}

// NewPipeline builds every service and registers the task handlers.
func NewPipeline(cfg domain.PipelineConfig, deps PipelineDeps) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = clock.WallClock
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}

	p := &Pipeline{cfg: cfg}
	p.Dispatcher = NewDispatcher(deps.Tasks, cfg.Dispatcher, deps.Clock, deps.Metrics)
	p.Consumer = NewConsumer(deps.Changes, deps.Cursors, p.Dispatcher, DefaultTaskRegistry(),
		cfg.Consumer, deps.Clock, deps.Metrics)
	p.Crawler = NewCrawler(cfg.Crawl, CrawlerDeps{
		Store:   deps.Crawl,
		Sources: deps.Sources,
		Records: deps.Records,
		Fetcher: deps.Fetcher,
		Mapper:  deps.Mapper,
		Clock:   deps.Clock,
		Metrics: deps.Metrics,
	})
	p.Indexer = NewIndexer(deps.Records, deps.Index, deps.Metrics).WithFollowUp(p.Dispatcher)
	p.Resolver = NewResolveHandler(deps.Records)
	p.Tasks = NewTaskService(p.Dispatcher, deps.Tasks)
	p.Search = NewSearchService(deps.Index)

	p.Dispatcher.Register(domain.TaskReindex, p.Indexer)
	p.Dispatcher.Register(domain.TaskResolve, p.Resolver)
	p.Dispatcher.Register(domain.TaskFeedRegister, NewFeedRegisterHandler(deps.Records, p.Crawler))

	return p
}

// Run starts the dispatcher, the consumer and, when enabled, the crawler.
// It blocks until ctx is cancelled or one of them fails, in which case
// the others are stopped and the first failure is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("pipeline: %s stopped: %v", name, err)
			once.Do(func() {
				firstErr = err
				cancel()
			})
		}()
	}

	run("dispatcher", p.Dispatcher.Run)
	run("consumer", p.Consumer.Run)
	if p.cfg.Crawl.Enabled && p.Crawler.fetcher != nil && p.Crawler.mapper != nil {
		run("crawler", p.Crawler.Start)
	} else {
		logger.Info("pipeline: crawling disabled")
	}

	logger.Info("pipeline: running")
	wg.Wait()
	logger.Info("pipeline: stopped")
	return firstErr
}
