package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/metrics"
)

// Ensure Crawler implements the interfaces.
var (
	_ driving.Scheduler    = (*Crawler)(nil)
	_ driving.CrawlService = (*Crawler)(nil)
)

// putRetries bounds optimistic write retries before a candidate is kept
// as a sibling.
const putRetries = 3

// Crawler polls feed sources on their own schedules and writes what it
// discovers to the record store. Each enabled source has one goroutine.
// A failing source only delays itself.
type Crawler struct {
	cfg     domain.CrawlConfig
	store   driven.CrawlStore
	sources driven.SourceStore
	records driven.RecordStore
	fetcher driven.FeedFetcher
	mapper  driven.FeedMapper
	clock   clock.Clock
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	runCtx  context.Context
	stopCh  chan struct{}
	wg      sync.WaitGroup
	entries map[string]*crawlEntry

	// locks serializes crawls of one source.
	locks sync.Map
}

// CrawlerDeps groups the crawler's collaborators.
type CrawlerDeps struct {
	Store   driven.CrawlStore
	Sources driven.SourceStore
	Records driven.RecordStore
	Fetcher driven.FeedFetcher
	Mapper  driven.FeedMapper
	Clock   clock.Clock
	Metrics *metrics.Metrics
}

// NewCrawler creates a crawl scheduler.
func NewCrawler(cfg domain.CrawlConfig, deps CrawlerDeps) *Crawler {
	if deps.Clock == nil {
		deps.Clock = clock.WallClock
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	defaults := domain.DefaultPipelineConfig().Crawl
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = defaults.DefaultInterval
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaults.FetchTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaults.HistoryLimit
	}
	return &Crawler{
		cfg:     cfg,
		store:   deps.Store,
		sources: deps.Sources,
		records: deps.Records,
		fetcher: deps.Fetcher,
		mapper:  deps.Mapper,
		clock:   deps.Clock,
		metrics: deps.Metrics,
		entries: make(map[string]*crawlEntry),
	}
}

// Start registers configured feeds, starts one loop per enabled source
// and blocks until Stop is called or ctx is cancelled.
func (c *Crawler) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil // Already running
	}
	c.running = true
	c.runCtx = ctx
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	if err := c.ReloadSources(ctx, c.cfg.Feeds); err != nil {
		logger.Warn("crawler: failed to register configured feeds: %v", err)
	}

	schedules, err := c.store.ListSchedules(ctx)
	if err != nil {
		logger.Warn("crawler: failed to list schedules: %v", err)
	}
	for _, s := range schedules {
		if s.Enabled {
			c.startEntry(s.SourceID)
		}
	}
	logger.Info("crawler: started with %d schedules", len(schedules))

	select {
	case <-ctx.Done():
		c.shutdown()
		return ctx.Err()
	case <-stopCh:
		return nil
	}
}

// Stop gracefully shuts down every source loop.
func (c *Crawler) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	close(c.stopCh)
	c.mu.Unlock()

	c.shutdown()
	return nil
}

func (c *Crawler) shutdown() {
	c.mu.Lock()
	c.running = false
	for id, e := range c.entries {
		e.cancel()
		delete(c.entries, id)
	}
	c.mu.Unlock()

	// Wait for running crawls to complete
	c.wg.Wait()
}

// crawlEntry is one running source loop.
type crawlEntry struct {
	cancel context.CancelFunc
}

// startEntry launches the polling loop for a source if the crawler is
// running and the source has no loop yet.
func (c *Crawler) startEntry(sourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	if _, ok := c.entries[sourceID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(c.runCtx)
	e := &crawlEntry{cancel: cancel}
	c.entries[sourceID] = e
	c.wg.Add(1)
	go c.loop(ctx, sourceID, e)
}

func (c *Crawler) stopEntry(sourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[sourceID]; ok {
		e.cancel()
		delete(c.entries, sourceID)
	}
}

// loop waits for the source's next run and crawls it, until the source is
// disabled, removed or the crawler stops.
func (c *Crawler) loop(ctx context.Context, sourceID string, self *crawlEntry) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		// A replacement loop may already own the slot.
		if c.entries[sourceID] == self {
			delete(c.entries, sourceID)
		}
		c.mu.Unlock()
		self.cancel()
	}()

	// last is the schedule computed by this loop's previous crawl.
	var last *domain.CrawlSchedule
	for {
		sched, err := c.store.GetSchedule(ctx, sourceID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("crawler: failed to load schedule %s: %v", sourceID, err)
			sched = &domain.CrawlSchedule{SourceID: sourceID, Enabled: true, NextRun: c.clock.Now().Add(c.cfg.DefaultInterval)}
		}
		if sched != nil && last != nil && sched.LastRun.Before(last.LastRun) {
			// The previous crawl's schedule was never saved.
			sched.NextRun = last.NextRun
			sched.Enabled = sched.Enabled && last.Enabled
		}
		if sched == nil || !sched.Enabled {
			return
		}

		if wait := sched.NextRun.Sub(c.clock.Now()); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-c.clock.After(wait):
			}
		}
		if ctx.Err() != nil {
			return
		}

		res, ran, err := c.crawl(ctx, sourceID)
		if ctx.Err() != nil || errors.Is(err, domain.ErrNotFound) {
			return
		}
		last = ran
		if res == nil {
			// Nothing was recorded, so NextRun did not move.
			logger.Warn("crawler: %s: %v", sourceID, err)
			select {
			case <-ctx.Done():
				return
			case <-c.clock.After(c.cfg.DefaultInterval):
			}
		}
	}
}

// CrawlNow polls a source immediately, outside its schedule.
func (c *Crawler) CrawlNow(ctx context.Context, id string) (*domain.CrawlResult, error) {
	if _, err := c.sources.Get(ctx, id); err != nil {
		return nil, err
	}
	res, _, err := c.crawl(ctx, id)
	return res, err
}

// crawl performs one poll of a source and updates its schedule and
// history. It returns the result, the updated schedule and the poll
// failure, if any; the result is recorded either way.
func (c *Crawler) crawl(ctx context.Context, sourceID string) (*domain.CrawlResult, *domain.CrawlSchedule, error) {
	lock, _ := c.locks.LoadOrStore(sourceID, &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
	defer lock.(*sync.Mutex).Unlock()

	src, err := c.sources.Get(ctx, sourceID)
	if err != nil {
		return nil, nil, fmt.Errorf("load source %s: %w", sourceID, err)
	}
	sched, err := c.store.GetSchedule(ctx, sourceID)
	if err != nil {
		return nil, nil, fmt.Errorf("load schedule %s: %w", sourceID, err)
	}
	if sched == nil {
		sched = c.newSchedule(*src)
	}

	result := &domain.CrawlResult{SourceID: sourceID, StartedAt: c.clock.Now()}
	pollErr := c.poll(ctx, src, sched, result)
	result.EndedAt = c.clock.Now()

	// Update schedule state
	sched.LastRun = result.StartedAt
	if pollErr != nil {
		c.recordFailure(ctx, src, sched, pollErr)
		result.Error = pollErr.Error()
	} else {
		result.Success = true
		sched.LastSuccess = result.EndedAt
		sched.LastError = ""
		sched.LastErrorType = ""
		sched.ConsecutiveFailures = 0
		sched.NextRun = result.EndedAt.Add(sched.Interval)
	}

	if ctx.Err() != nil {
		return result, sched, pollErr
	}
	if saveErr := c.store.SaveSchedule(ctx, sched); saveErr != nil {
		logger.Warn("crawler: failed to save schedule %s: %v", sourceID, saveErr)
	}

	// Record result for history
	if recordErr := c.store.RecordResult(ctx, result); recordErr != nil {
		logger.Warn("crawler: failed to record result for %s: %v", sourceID, recordErr)
	}

	// Prune old history
	if pruneErr := c.store.PruneHistory(ctx, c.cfg.HistoryLimit); pruneErr != nil {
		logger.Warn("crawler: failed to prune history: %v", pruneErr)
	}

	return result, sched, pollErr
}

// poll fetches and maps a feed and writes its records.
func (c *Crawler) poll(ctx context.Context, src *domain.FeedSource, sched *domain.CrawlSchedule, result *domain.CrawlResult) error {
	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	res, err := c.fetcher.Fetch(fetchCtx, domain.FetchRequest{
		URL:          src.URL,
		ETag:         sched.ETag,
		LastModified: sched.LastModified,
	})
	if err != nil {
		c.metrics.CrawlFetches.WithLabelValues("error").Inc()
		return err
	}
	if res.NotModified {
		c.metrics.CrawlFetches.WithLabelValues("not_modified").Inc()
		result.NotModified = true
		logger.Debug("crawler: %s not modified", src.URL)
		return nil
	}
	c.metrics.CrawlFetches.WithLabelValues("ok").Inc()

	fetchedAt := res.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = c.clock.Now()
	}
	records, skipped, err := c.mapper.Map(src.URL, res.Body, domain.Provenance{
		Source:    domain.SourceCrawler,
		FetchedAt: fetchedAt,
	})
	if err != nil {
		return domain.ClassifyParseError(err, src.URL)
	}
	for _, s := range skipped {
		logger.Warn("crawler: %v", s)
	}

	result.ItemsSeen = len(records)
	for _, rec := range records {
		outcome, err := c.write(ctx, rec)
		if err != nil {
			return err
		}
		c.metrics.CrawlRecords.WithLabelValues(outcome).Inc()
		switch outcome {
		case "written":
			result.ItemsWritten++
		default:
			result.ItemsSkipped++
		}
	}

	// Validators are kept only after every record is stored, so a failed
	// write is retried against the full body.
	sched.ETag = res.ETag
	sched.LastModified = res.LastModified

	logger.Info("crawler: %s: %d records, %d written, %d unchanged",
		src.URL, result.ItemsSeen, result.ItemsWritten, result.ItemsSkipped)
	return nil
}

// write resolves a candidate against the stored record and writes the
// result. It returns "written", "skipped" or "sibling".
func (c *Crawler) write(ctx context.Context, candidate domain.Record) (string, error) {
	for attempt := 0; attempt < putRetries; attempt++ {
		existing, err := c.records.Get(ctx, candidate.GUID)
		if err != nil {
			return "", asTransport("store", "get", err)
		}
		if existing != nil && existing.ContentHash() == candidate.ContentHash() {
			return "skipped", nil
		}

		merged, err := domain.Resolve(existing, candidate)
		if err != nil {
			if errors.Is(err, domain.ErrConflictUnresolvable) {
				return c.keepSibling(ctx, candidate, err)
			}
			return "", err
		}
		if existing != nil && merged.Revision == existing.Revision {
			return "skipped", nil
		}

		_, err = c.records.Put(ctx, merged)
		if errors.Is(err, domain.ErrRevisionConflict) {
			continue
		}
		if err != nil {
			return "", asTransport("store", "put", err)
		}
		return "written", nil
	}
	return c.keepSibling(ctx, candidate, domain.ErrRevisionConflict)
}

func (c *Crawler) keepSibling(ctx context.Context, candidate domain.Record, reason error) (string, error) {
	if err := c.records.PutSibling(ctx, candidate); err != nil {
		return "", asTransport("store", "put sibling", err)
	}
	c.metrics.SiblingsPersisted.Inc()
	logger.Warn("crawler: kept %s as sibling: %v", candidate.GUID, reason)
	return "sibling", nil
}

// recordFailure classifies a poll failure, backs the source off and
// disables it after too many consecutive failures of one class.
func (c *Crawler) recordFailure(ctx context.Context, src *domain.FeedSource, sched *domain.CrawlSchedule, err error) {
	errType := domain.CrawlErrUnexpected
	var crawlErr *domain.CrawlError
	if errors.As(err, &crawlErr) {
		errType = crawlErr.Type
	}

	if sched.LastErrorType != errType {
		sched.ConsecutiveFailures = 0
	}
	sched.ConsecutiveFailures++
	sched.LastError = err.Error()
	sched.LastErrorType = errType
	sched.NextRun = c.clock.Now().Add(sched.Backoff(c.cfg.MaxBackoff))

	logger.Warn("crawler: %s failed (%s, %d in a row), next poll at %s",
		src.URL, errType, sched.ConsecutiveFailures, sched.NextRun.Format(time.RFC3339))

	threshold, ok := domain.DisableThreshold(errType)
	if !ok || sched.ConsecutiveFailures < threshold {
		return
	}
	sched.Enabled = false
	src.Enabled = false
	src.UpdatedAt = c.clock.Now()
	if ctx.Err() == nil {
		if saveErr := c.sources.Save(ctx, *src); saveErr != nil {
			logger.Warn("crawler: failed to disable source %s: %v", src.ID, saveErr)
		}
	}
	c.metrics.SourcesDisabled.Inc()
	logger.Error("crawler: disabled %s after %d consecutive %s failures", src.URL, sched.ConsecutiveFailures, errType)
}

func (c *Crawler) newSchedule(src domain.FeedSource) *domain.CrawlSchedule {
	interval := src.Interval
	if interval <= 0 {
		interval = c.cfg.DefaultInterval
	}
	return &domain.CrawlSchedule{
		SourceID: src.ID,
		FeedURL:  src.URL,
		Interval: interval,
		NextRun:  c.clock.Now(),
		Enabled:  src.Enabled,
	}
}

// RegisterFeed creates or updates a source and its schedule. Polling
// state of an existing schedule is preserved.
func (c *Crawler) RegisterFeed(ctx context.Context, src domain.FeedSource) (*domain.FeedSource, error) {
	if err := validateFeedURL(src.URL); err != nil {
		return nil, err
	}
	if src.ID == "" {
		src.ID = domain.SourceIDForURL(src.URL)
	}
	if src.Name == "" {
		src.Name = src.URL
	}
	if src.Mapping == "" {
		src.Mapping = "rss"
	}

	now := c.clock.Now()
	existing, err := c.sources.Get(ctx, src.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		src.CreatedAt = now
	case err != nil:
		return nil, err
	default:
		src.CreatedAt = existing.CreatedAt
	}
	src.UpdatedAt = now
	if err := c.sources.Save(ctx, src); err != nil {
		return nil, fmt.Errorf("save source %s: %w", src.ID, err)
	}

	sched, err := c.store.GetSchedule(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		sched = c.newSchedule(src)
	} else {
		interval := src.Interval
		if interval <= 0 {
			interval = c.cfg.DefaultInterval
		}
		if sched.Interval != interval {
			sched.Interval = interval
			// Recalculate next run from now
			sched.NextRun = now.Add(interval)
		}
		if src.Enabled && !sched.Enabled {
			sched.ConsecutiveFailures = 0
			sched.NextRun = now
		}
		sched.FeedURL = src.URL
		sched.Enabled = src.Enabled
	}
	if err := c.store.SaveSchedule(ctx, sched); err != nil {
		return nil, fmt.Errorf("save schedule %s: %w", src.ID, err)
	}

	if src.Enabled {
		c.startEntry(src.ID)
	} else {
		c.stopEntry(src.ID)
	}
	return &src, nil
}

// ReloadSources registers every given source. Used for configured feeds
// and when the configuration file changes.
func (c *Crawler) ReloadSources(ctx context.Context, feeds []domain.FeedSource) error {
	var errs []error
	for _, f := range feeds {
		if _, err := c.RegisterFeed(ctx, f); err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", f.URL, err))
		}
	}
	return errors.Join(errs...)
}

// AddSource registers a new feed and enables it.
func (c *Crawler) AddSource(ctx context.Context, src domain.FeedSource) (*domain.FeedSource, error) {
	src.Enabled = true
	return c.RegisterFeed(ctx, src)
}

// GetSource retrieves a source by ID.
func (c *Crawler) GetSource(ctx context.Context, id string) (*domain.FeedSource, error) {
	return c.sources.Get(ctx, id)
}

// ListSources returns all sources ordered by name.
func (c *Crawler) ListSources(ctx context.Context) ([]domain.FeedSource, error) {
	sources, err := c.sources.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}

// RemoveSource stops crawling a source. Records already written stay,
// because absence from a feed never deletes anything.
func (c *Crawler) RemoveSource(ctx context.Context, id string) error {
	if _, err := c.sources.Get(ctx, id); err != nil {
		return err
	}
	c.stopEntry(id)
	if err := c.store.DeleteSchedule(ctx, id); err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	return c.sources.Delete(ctx, id)
}

// Schedules returns the polling state of every source.
func (c *Crawler) Schedules(ctx context.Context) ([]domain.CrawlSchedule, error) {
	return c.store.ListSchedules(ctx)
}

// History returns recent crawl results for a source.
func (c *Crawler) History(ctx context.Context, id string, limit int) ([]domain.CrawlResult, error) {
	if limit <= 0 {
		limit = 20
	}
	return c.store.GetHistory(ctx, id, limit)
}

func validateFeedURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: feed url %q", domain.ErrInvalidInput, raw)
	}
	return nil
}
