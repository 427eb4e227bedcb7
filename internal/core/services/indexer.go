package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/metrics"
)

// Indexer keeps the search index in step with the record store. It runs
// as the reindex task handler.
//
// Post documents embed their feed's title, so when a feed document's
// title changes the indexer submits reindex tasks for the feed's posts.
type Indexer struct {
	records   driven.RecordStore
	index     driven.SearchIndex
	projector *Projector
	metrics   *metrics.Metrics
	followUp  TaskSubmitter

	ensureMu sync.Mutex
	ensured  bool
}

// NewIndexer creates an indexer. index may be nil when no search engine is
// configured; Sync then fails with domain.ErrSearchUnavailable.
func NewIndexer(records driven.RecordStore, index driven.SearchIndex, m *metrics.Metrics) *Indexer {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Indexer{
		records:   records,
		index:     index,
		projector: NewProjector(records),
		metrics:   m,
	}
}

// WithFollowUp sets where reindex tasks for a feed's posts are submitted.
// Without it feed title changes reach post documents only when the posts
// themselves change.
func (i *Indexer) WithFollowUp(s TaskSubmitter) *Indexer {
	i.followUp = s
	return i
}

// Handle implements TaskHandler for reindex tasks.
func (i *Indexer) Handle(ctx context.Context, task domain.Task) error {
	guid, err := domain.ParseGUID(task.Target)
	if err != nil {
		return err
	}
	return i.Sync(ctx, guid)
}

// Sync projects the canonical record for guid into the index. Absent and
// tombstoned records are deleted from the index. The document is always
// rebuilt wholesale, so running Sync twice leaves one identical document.
func (i *Indexer) Sync(ctx context.Context, guid domain.GUID) error {
	if i.index == nil {
		return domain.ErrSearchUnavailable
	}
	if err := i.ensureIndex(ctx); err != nil {
		return err
	}

	rec, err := i.records.Get(ctx, guid)
	if err != nil {
		return asTransport("store", "get "+string(guid), err)
	}

	if guid.Namespace() == domain.NamespaceFeed {
		if err := i.refreshPosts(ctx, guid, rec); err != nil {
			return err
		}
	}

	if rec == nil || rec.Tombstone {
		if err := i.index.Delete(ctx, string(guid)); err != nil {
			i.metrics.IndexOperations.WithLabelValues("delete", "error").Inc()
			return asTransport("search", "delete", err)
		}
		i.metrics.IndexOperations.WithLabelValues("delete", "ok").Inc()
		logger.Debug("indexer: removed %s", guid)
		return nil
	}

	doc, err := i.projector.Project(ctx, *rec)
	if err != nil {
		i.metrics.IndexOperations.WithLabelValues("upsert", "unmappable").Inc()
		return err
	}
	if err := i.index.Upsert(ctx, doc); err != nil {
		i.metrics.IndexOperations.WithLabelValues("upsert", "error").Inc()
		return asTransport("search", "upsert", err)
	}
	i.metrics.IndexOperations.WithLabelValues("upsert", "ok").Inc()
	logger.Debug("indexer: indexed %s revision %d", guid, rec.Revision)
	return nil
}

// refreshPosts submits reindex tasks for the posts of feed when the title
// their documents embed is about to change. It runs before the feed
// document is written, so a failed write retries the fan-out too.
func (i *Indexer) refreshPosts(ctx context.Context, feed domain.GUID, rec *domain.Record) error {
	if i.followUp == nil {
		return nil
	}
	prev, err := i.index.Document(ctx, string(feed))
	if err != nil {
		return asTransport("search", "get "+string(feed), err)
	}
	title := ""
	if rec != nil && !rec.Tombstone && rec.Feed != nil {
		title = rec.Feed.Title
	}
	if prev != nil && prev.FeedTitle == title {
		return nil
	}

	posts, err := i.records.PostsByFeed(ctx, feed)
	if err != nil {
		return asTransport("store", "posts of "+string(feed), err)
	}
	if len(posts) == 0 {
		return nil
	}
	tasks := make([]domain.Task, len(posts))
	for n, post := range posts {
		tasks[n] = domain.NewTask(domain.TaskReindex, string(post), map[string]string{
			"reason": "feed",
			"feed":   string(feed),
		})
	}
	if _, err := i.followUp.SubmitBatch(ctx, tasks); err != nil {
		return err
	}
	logger.Debug("indexer: feed %s changed title, reindexing %d posts", feed, len(posts))
	return nil
}

// ensureIndex creates the index once per process. A failure is retried on
// the next sync.
func (i *Indexer) ensureIndex(ctx context.Context) error {
	i.ensureMu.Lock()
	defer i.ensureMu.Unlock()
	if i.ensured {
		return nil
	}
	if err := i.index.EnsureIndex(ctx); err != nil {
		return asTransport("search", "ensure index", err)
	}
	i.ensured = true
	return nil
}
