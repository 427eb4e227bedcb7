package domain

import "time"

// DispatcherConfig holds task dispatcher settings.
type DispatcherConfig struct {
	// Workers bounds the number of handlers running at once.
	Workers int

	// TickInterval is how often pending tasks are scanned.
	TickInterval time.Duration

	// MaxAttempts is applied to submitted tasks that set none.
	MaxAttempts int

	// BackoffBase and BackoffMax shape the retry delay:
	// base * 2^(attempts-1), capped at max.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// TaskTimeout bounds a single handler run.
	TaskTimeout time.Duration
}

// ConsumerConfig holds change feed consumer settings.
type ConsumerConfig struct {
	// CursorName identifies the persisted cursor.
	CursorName string

	// BatchSize and BatchLinger bound a change batch.
	BatchSize   int
	BatchLinger time.Duration

	// BackoffBase and BackoffMax shape the resubscribe delay.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// CrawlConfig holds crawl scheduler settings.
type CrawlConfig struct {
	// Enabled is the master switch for crawling.
	Enabled bool

	// DefaultInterval applies to sources without their own.
	DefaultInterval time.Duration

	// MaxBackoff caps the failure backoff.
	MaxBackoff time.Duration

	// FetchTimeout bounds a single feed fetch.
	FetchTimeout time.Duration

	// RequestsPerSecond limits outbound fetches across all sources.
	RequestsPerSecond float64

	// UserAgent is sent with feed requests.
	UserAgent string

	// HistoryLimit is how many crawl results to keep per source.
	HistoryLimit int

	// Feeds are sources declared in configuration.
	Feeds []FeedSource
}

// SearchConfig holds search engine settings.
type SearchConfig struct {
	// URL is the Elasticsearch endpoint. Empty disables the index.
	URL      string
	Index    string
	Username string
	Password string

	// Timeout bounds every search engine call.
	Timeout time.Duration
}

// StoreConfig selects persistence backends.
type StoreConfig struct {
	// DataDir holds the SQLite database.
	DataDir string

	// CursorBackend is "sqlite" or "redis".
	CursorBackend string

	// RedisAddr is used when CursorBackend is "redis".
	RedisAddr string

	// Timeout bounds every store call.
	Timeout time.Duration
}

// PipelineConfig is the complete runtime configuration.
type PipelineConfig struct {
	Dispatcher DispatcherConfig
	Consumer   ConsumerConfig
	Crawl      CrawlConfig
	Search     SearchConfig
	Store      StoreConfig
}

// DefaultPipelineConfig returns sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Dispatcher: DispatcherConfig{
			Workers:      4,
			TickInterval: 250 * time.Millisecond,
			MaxAttempts:  DefaultMaxAttempts,
			BackoffBase:  time.Second,
			BackoffMax:   5 * time.Minute,
			TaskTimeout:  30 * time.Second,
		},
		Consumer: ConsumerConfig{
			CursorName:  DefaultCursorName,
			BatchSize:   1000,
			BatchLinger: 200 * time.Millisecond,
			BackoffBase: time.Second,
			BackoffMax:  time.Minute,
		},
		Crawl: CrawlConfig{
			Enabled:           true,
			DefaultInterval:   30 * time.Minute,
			MaxBackoff:        24 * time.Hour,
			FetchTimeout:      30 * time.Second,
			RequestsPerSecond: 2,
			UserAgent:         "sercha-ingest/1.0",
			HistoryLimit:      100,
		},
		Search: SearchConfig{
			Index:   "records",
			Timeout: 10 * time.Second,
		},
		Store: StoreConfig{
			CursorBackend: "sqlite",
			Timeout:       10 * time.Second,
		},
	}
}
