package services

import (
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Config keys.
const (
	keyDispatcherWorkers     = "dispatcher.workers"
	keyDispatcherTick        = "dispatcher.tick_interval"
	keyDispatcherMaxAttempts = "dispatcher.max_attempts"
	keyDispatcherBackoffBase = "dispatcher.backoff_base"
	keyDispatcherBackoffMax  = "dispatcher.backoff_max"
	keyDispatcherTimeout     = "dispatcher.task_timeout"

	keyConsumerCursor      = "consumer.cursor"
	keyConsumerBatchSize   = "consumer.batch_size"
	keyConsumerLinger      = "consumer.batch_linger"
	keyConsumerBackoffBase = "consumer.backoff_base"
	keyConsumerBackoffMax  = "consumer.backoff_max"

	keyCrawlEnabled      = "crawl.enabled"
	keyCrawlInterval     = "crawl.default_interval"
	keyCrawlMaxBackoff   = "crawl.max_backoff"
	keyCrawlFetchTimeout = "crawl.fetch_timeout"
	keyCrawlRPS          = "crawl.requests_per_second"
	keyCrawlUserAgent    = "crawl.user_agent"
	keyCrawlHistory      = "crawl.history_limit"
	keyCrawlFeeds        = "crawl.feeds"

	keySearchURL      = "search.url"
	keySearchIndex    = "search.index"
	keySearchUsername = "search.username"
	keySearchPassword = "search.password"
	keySearchTimeout  = "search.timeout"

	keyStoreDataDir       = "store.data_dir"
	keyStoreCursorBackend = "store.cursor_backend"
	keyStoreRedisAddr     = "store.redis_addr"
	keyStoreTimeout       = "store.timeout"
)

// configReader reads typed values with defaults from a ConfigStore.
type configReader struct {
	store driven.ConfigStore
}

// LoadPipelineConfig reads the runtime configuration. Missing and invalid
// values fall back to domain.DefaultPipelineConfig.
func LoadPipelineConfig(store driven.ConfigStore) domain.PipelineConfig {
	cfg := domain.DefaultPipelineConfig()
	if store == nil {
		return cfg
	}
	r := configReader{store: store}

	d := &cfg.Dispatcher
	d.Workers = r.getInt(keyDispatcherWorkers, d.Workers)
	d.TickInterval = r.getDuration(keyDispatcherTick, d.TickInterval)
	d.MaxAttempts = r.getInt(keyDispatcherMaxAttempts, d.MaxAttempts)
	d.BackoffBase = r.getDuration(keyDispatcherBackoffBase, d.BackoffBase)
	d.BackoffMax = r.getDuration(keyDispatcherBackoffMax, d.BackoffMax)
	d.TaskTimeout = r.getDuration(keyDispatcherTimeout, d.TaskTimeout)

	c := &cfg.Consumer
	c.CursorName = r.getString(keyConsumerCursor, c.CursorName)
	c.BatchSize = r.getInt(keyConsumerBatchSize, c.BatchSize)
	c.BatchLinger = r.getDuration(keyConsumerLinger, c.BatchLinger)
	c.BackoffBase = r.getDuration(keyConsumerBackoffBase, c.BackoffBase)
	c.BackoffMax = r.getDuration(keyConsumerBackoffMax, c.BackoffMax)

	cr := &cfg.Crawl
	cr.Enabled = r.getBool(keyCrawlEnabled, cr.Enabled)
	cr.DefaultInterval = r.getDuration(keyCrawlInterval, cr.DefaultInterval)
	cr.MaxBackoff = r.getDuration(keyCrawlMaxBackoff, cr.MaxBackoff)
	cr.FetchTimeout = r.getDuration(keyCrawlFetchTimeout, cr.FetchTimeout)
	cr.RequestsPerSecond = r.getFloat(keyCrawlRPS, cr.RequestsPerSecond)
	cr.UserAgent = r.getString(keyCrawlUserAgent, cr.UserAgent)
	cr.HistoryLimit = r.getInt(keyCrawlHistory, cr.HistoryLimit)
	cr.Feeds = r.getFeeds()

	s := &cfg.Search
	s.URL = r.getString(keySearchURL, s.URL)
	s.Index = r.getString(keySearchIndex, s.Index)
	s.Username = r.getString(keySearchUsername, s.Username)
	s.Password = r.getString(keySearchPassword, s.Password)
	s.Timeout = r.getDuration(keySearchTimeout, s.Timeout)

	st := &cfg.Store
	st.DataDir = r.getString(keyStoreDataDir, st.DataDir)
	st.CursorBackend = r.getString(keyStoreCursorBackend, st.CursorBackend)
	st.RedisAddr = r.getString(keyStoreRedisAddr, st.RedisAddr)
	st.Timeout = r.getDuration(keyStoreTimeout, st.Timeout)
	if st.CursorBackend != "sqlite" && st.CursorBackend != "redis" {
		logger.Warn("config: unknown cursor backend %q, using sqlite", st.CursorBackend)
		st.CursorBackend = "sqlite"
	}

	return cfg
}

// getFeeds parses [[crawl.feeds]] tables. Entries without a url are
// skipped.
func (r configReader) getFeeds() []domain.FeedSource {
	tables := r.store.GetTables(keyCrawlFeeds)
	if len(tables) == 0 {
		return nil
	}
	feeds := make([]domain.FeedSource, 0, len(tables))
	for i, t := range tables {
		feedURL, _ := t["url"].(string)
		if feedURL == "" {
			logger.Warn("config: crawl.feeds[%d] has no url, skipping", i)
			continue
		}
		f := domain.FeedSource{
			ID:      domain.SourceIDForURL(feedURL),
			URL:     feedURL,
			Enabled: true,
		}
		if name, ok := t["name"].(string); ok {
			f.Name = name
		}
		if mapping, ok := t["mapping"].(string); ok {
			f.Mapping = mapping
		}
		if enabled, ok := t["enabled"].(bool); ok {
			f.Enabled = enabled
		}
		if interval, ok := t["interval"].(string); ok {
			if d, err := time.ParseDuration(interval); err == nil {
				f.Interval = d
			} else {
				logger.Warn("config: crawl.feeds[%d] interval %q: %v", i, interval, err)
			}
		}
		feeds = append(feeds, f)
	}
	return feeds
}

// Helper methods for reading config with defaults.

func (r configReader) getString(key, defaultVal string) string {
	val := r.store.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (r configReader) getInt(key string, defaultVal int) int {
	val := r.store.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (r configReader) getFloat(key string, defaultVal float64) float64 {
	val := r.store.GetFloat(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (r configReader) getBool(key string, defaultVal bool) bool {
	if _, exists := r.store.Get(key); !exists {
		return defaultVal
	}
	return r.store.GetBool(key)
}

func (r configReader) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := r.store.GetDuration(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}
