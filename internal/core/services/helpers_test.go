package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var (
	t0          = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	testFeedURL = "https://radio.example.org/feed.xml"

	errBackendDown = errors.New("connection refused")
)

func testFeedGUID() domain.GUID {
	return domain.NewGUID(domain.NamespaceFeed, testFeedURL)
}

func postGUID(itemID string) domain.GUID {
	return domain.NewGUID(domain.NamespacePost, domain.PostKey(testFeedURL, itemID))
}

func crawledPost(itemID, headline string, at time.Time) domain.Record {
	return domain.NewPostRecord(postGUID(itemID), domain.Post{
		Headline: headline,
		URL:      "https://radio.example.org/" + itemID,
		Feed:     domain.RefTo(testFeedGUID()),
	}, domain.Provenance{Source: domain.SourceCrawler, FetchedAt: at})
}

func storedPost(itemID string, p domain.Post, at time.Time) domain.Record {
	return domain.NewPostRecord(postGUID(itemID), p, domain.Provenance{Source: domain.SourceStore, FetchedAt: at})
}

func feedRecord(title string, at time.Time) domain.Record {
	return domain.NewFeedRecord(testFeedGUID(), domain.Feed{
		URL:   testFeedURL,
		Title: title,
	}, domain.Provenance{Source: domain.SourceCrawler, FetchedAt: at})
}

// put writes rec at the next revision.
func put(ctx context.Context, store *memory.RecordStore, rec domain.Record) domain.Record {
	existing, _ := store.Get(ctx, rec.GUID)
	rec.Revision = 1
	if existing != nil {
		rec.Revision = existing.Revision + 1
	}
	if _, err := store.Put(ctx, rec); err != nil {
		panic(err)
	}
	return rec
}

// failingTaskStore rejects enqueues while err is set.
type failingTaskStore struct {
	*memory.TaskStore
	mu  sync.Mutex
	err error
}

func (s *failingTaskStore) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *failingTaskStore) Enqueue(ctx context.Context, tasks []domain.Task) ([]domain.Task, error) {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.TaskStore.Enqueue(ctx, tasks)
}

// failingIndex fails writes while err is set.
type failingIndex struct {
	*memory.SearchIndex
	mu     sync.Mutex
	err    error
	writes int
}

func (i *failingIndex) setErr(err error) {
	i.mu.Lock()
	i.err = err
	i.mu.Unlock()
}

func (i *failingIndex) fail() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.writes++
	return i.err
}

func (i *failingIndex) Upsert(ctx context.Context, doc domain.IndexDocument) error {
	if err := i.fail(); err != nil {
		return err
	}
	return i.SearchIndex.Upsert(ctx, doc)
}

func (i *failingIndex) Delete(ctx context.Context, id string) error {
	if err := i.fail(); err != nil {
		return err
	}
	return i.SearchIndex.Delete(ctx, id)
}

// failingCursorStore rejects checkpoints while err is set.
type failingCursorStore struct {
	*memory.CursorStore
	mu  sync.Mutex
	err error
}

func (s *failingCursorStore) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *failingCursorStore) Save(ctx context.Context, cursor domain.ChangeCursor) error {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.CursorStore.Save(ctx, cursor)
}

// failingCrawlStore rejects schedule saves while err is set.
type failingCrawlStore struct {
	*memory.CrawlStore
	mu  sync.Mutex
	err error
}

func (s *failingCrawlStore) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *failingCrawlStore) SaveSchedule(ctx context.Context, sched *domain.CrawlSchedule) error {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.CrawlStore.SaveSchedule(ctx, sched)
}

// racingRecordStore reports a revision conflict on the first n puts.
type racingRecordStore struct {
	*memory.RecordStore
	mu        sync.Mutex
	conflicts int
}

func (s *racingRecordStore) Put(ctx context.Context, rec domain.Record) (int, error) {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return 0, domain.ErrRevisionConflict
	}
	s.mu.Unlock()
	return s.RecordStore.Put(ctx, rec)
}

// recordingSubmitter captures submitted batches.
type recordingSubmitter struct {
	mu      sync.Mutex
	batches [][]domain.Task
	err     error
}

func (s *recordingSubmitter) SubmitBatch(_ context.Context, tasks []domain.Task) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.batches = append(s.batches, tasks)
	ids := make([]string, len(tasks))
	for i := range tasks {
		ids[i] = string(tasks[i].Kind) + ":" + tasks[i].Target
	}
	return ids, nil
}

func (s *recordingSubmitter) tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Task
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

// stubFetcher returns queued responses in order, each exactly once.
type stubFetcher struct {
	mu        sync.Mutex
	responses []fetchResponse
	requests  []domain.FetchRequest
}

type fetchResponse struct {
	result *domain.FetchResult
	err    error
}

func (f *stubFetcher) queue(result *domain.FetchResult, err error) {
	f.mu.Lock()
	f.responses = append(f.responses, fetchResponse{result, err})
	f.mu.Unlock()
}

func (f *stubFetcher) Fetch(_ context.Context, req domain.FetchRequest) (*domain.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return nil, errors.New("no response queued")
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r.result, r.err
}

func (f *stubFetcher) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *stubFetcher) lastRequest() domain.FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// stubMapper stamps fixed records with the given provenance.
type stubMapper struct {
	records []domain.Record
	skipped []error
	err     error
}

func (m *stubMapper) Map(_ string, _ []byte, prov domain.Provenance) ([]domain.Record, []error, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	out := make([]domain.Record, len(m.records))
	for i, r := range m.records {
		r = r.Clone()
		r.Provenance = prov
		out[i] = r
	}
	return out, m.skipped, nil
}
