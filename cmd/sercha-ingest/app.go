package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/feed"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/search/elastic"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/changelog"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/watch"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/services"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/mapping/rss"
	"github.com/custodia-labs/sercha-ingest/internal/metrics"
)

// shutdownTimeout bounds the metrics server shutdown.
const shutdownTimeout = 5 * time.Second

// app owns the adapters behind the CLI and runs the pipeline.
type app struct {
	configStore driven.ConfigStore
	store       *sqlite.Store
	redis       *goredis.Client
	registry    *prometheus.Registry
	pipeline    *services.Pipeline
}

var _ cli.Runner = (*app)(nil)

func newApp(ctx context.Context, configStore driven.ConfigStore) (*app, error) {
	cfg := services.LoadPipelineConfig(configStore)
	a := &app{
		configStore: configStore,
		registry:    prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := sqlite.NewStore(cfg.Store.DataDir,
		sqlite.WithQueryTimeout(cfg.Store.Timeout),
		sqlite.WithSubscribeOptions(changelog.Options{
			BatchSize: cfg.Consumer.BatchSize,
			Linger:    cfg.Consumer.BatchLinger,
		}))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.store = store

	var cursors driven.CursorStore = store.CursorStore()
	if cfg.Store.CursorBackend == "redis" {
		client, err := redis.NewClient(ctx, redis.Config{Address: cfg.Store.RedisAddr, Timeout: cfg.Store.Timeout})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting cursor store: %w", err)
		}
		a.redis = client
		cursors = redis.NewCursorStore(client, "")
	}

	var index driven.SearchIndex
	if cfg.Search.URL != "" {
		ix, err := elastic.New(elastic.Config{
			URL:      cfg.Search.URL,
			Index:    cfg.Search.Index,
			Username: cfg.Search.Username,
			Password: cfg.Search.Password,
			Timeout:  cfg.Search.Timeout,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		index = ix
	}

	records := store.RecordStore()
	a.pipeline = services.NewPipeline(cfg, services.PipelineDeps{
		Records: records,
		Changes: records,
		Tasks:   store.TaskStore(),
		Cursors: cursors,
		Index:   index,
		Crawl:   store.CrawlStore(),
		Sources: store.SourceStore(),
		Fetcher: feed.NewFetcher(feed.Options{
			UserAgent:         cfg.Crawl.UserAgent,
			RequestsPerSecond: cfg.Crawl.RequestsPerSecond,
		}),
		Mapper:  rss.New(),
		Clock:   clock.WallClock,
		Metrics: metrics.New(a.registry),
	})
	return a, nil
}

// Run starts the pipeline, plus the config watcher and metrics endpoint
// when requested, and blocks until ctx is cancelled.
func (a *app) Run(ctx context.Context, opts cli.RunOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	fail := func(err error) {
		errOnce.Do(func() { runErr = err })
		cancel()
	}

	if opts.WatchConfig {
		w := watch.NewConfigWatcher(a.configStore, a.pipeline.Crawler, clock.WallClock, watch.DefaultDebounce)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("config watcher stopped: %v", err)
			}
		}()
	}

	if opts.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           a.metricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("metrics listening on %s", opts.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fail(fmt.Errorf("metrics server: %w", err))
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := a.pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fail(err)
	}
	cancel()
	wg.Wait()
	return runErr
}

func (a *app) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Close releases the store and the Redis connection.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("closing redis: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("closing store: %v", err)
		}
	}
}
