package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/juju/clock"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/changelog"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure RecordStore implements the interfaces.
var (
	_ driven.RecordStore = (*RecordStore)(nil)
	_ driven.ChangeFeed  = (*RecordStore)(nil)
)

// RecordStore is an in-memory record store with a change log.
// Suitable for testing and single-process use.
type RecordStore struct {
	mu       sync.RWMutex
	records  map[domain.GUID]domain.Record
	siblings map[domain.GUID][]domain.Record
	log      []domain.Change
	wake     chan struct{}

	clock clock.Clock
	opts  changelog.Options
}

// NewRecordStore creates an empty record store. A nil clock uses the wall
// clock.
func NewRecordStore(clk clock.Clock) *RecordStore {
	if clk == nil {
		clk = clock.WallClock
	}
	s := &RecordStore{
		records:  make(map[domain.GUID]domain.Record),
		siblings: make(map[domain.GUID][]domain.Record),
		wake:     make(chan struct{}),
		clock:    clk,
	}
	s.opts = changelog.Options{Linger: 0, Clock: clk, Wake: s.wakeChan}
	return s
}

// SetSubscribeOptions overrides batching for Subscribe. Wake and Clock are
// kept.
func (s *RecordStore) SetSubscribeOptions(opts changelog.Options) {
	opts.Wake = s.wakeChan
	opts.Clock = s.clock
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
}

// Get retrieves the canonical record for a GUID.
func (s *RecordStore) Get(_ context.Context, guid domain.GUID) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[guid]
	if !ok {
		return nil, nil
	}
	clone := rec.Clone()
	return &clone, nil
}

// Put writes a new canonical revision.
func (s *RecordStore) Put(_ context.Context, record domain.Record) (int, error) {
	if err := record.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	expected := 1
	if cur, ok := s.records[record.GUID]; ok {
		expected = cur.Revision + 1
	}
	if record.Revision != expected {
		return 0, fmt.Errorf("%w: %s revision %d, expected %d",
			domain.ErrRevisionConflict, record.GUID, record.Revision, expected)
	}
	s.records[record.GUID] = record.Clone()
	s.appendLocked(domain.ChangeFromRecord(record))
	return record.Revision, nil
}

// PutSibling keeps a candidate revision beside the canonical record.
func (s *RecordStore) PutSibling(_ context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := record.ContentHash()
	for _, existing := range s.siblings[record.GUID] {
		if existing.ContentHash() == hash {
			return nil
		}
	}
	s.siblings[record.GUID] = append(s.siblings[record.GUID], record.Clone())

	change := domain.ChangeFromRecord(record)
	change.Type = domain.ChangeSibling
	s.appendLocked(change)
	return nil
}

// Siblings returns the pending sibling revisions for a GUID.
func (s *RecordStore) Siblings(_ context.Context, guid domain.GUID) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Record, 0, len(s.siblings[guid]))
	for _, r := range s.siblings[guid] {
		out = append(out, r.Clone())
	}
	return out, nil
}

// ClearSiblings removes siblings whose content hash is listed.
func (s *RecordStore) ClearSiblings(_ context.Context, guid domain.GUID, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		drop[h] = true
	}
	kept := s.siblings[guid][:0]
	for _, r := range s.siblings[guid] {
		if !drop[r.ContentHash()] {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		delete(s.siblings, guid)
		return nil
	}
	s.siblings[guid] = kept
	return nil
}

// PostsByFeed returns the live posts referencing feed, ordered by GUID.
func (s *RecordStore) PostsByFeed(_ context.Context, feed domain.GUID) ([]domain.GUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.GUID
	for guid, r := range s.records {
		if r.Post != nil && !r.Tombstone && r.Post.Feed.GUID == feed {
			out = append(out, guid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// List returns canonical records of a kind ordered by GUID.
func (s *RecordStore) List(_ context.Context, kind domain.RecordKind, limit, offset int) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Record
	for _, r := range s.records {
		if kind == "" || r.Kind == kind {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GUID < out[j].GUID })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Changes returns up to limit changes after since.
func (s *RecordStore) Changes(_ context.Context, since int64, limit int) ([]domain.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Seq is the 1-based log index.
	if since < 0 {
		since = 0
	}
	if since >= int64(len(s.log)) {
		return nil, nil
	}
	tail := s.log[since:]
	if limit > 0 && len(tail) > limit {
		tail = tail[:limit]
	}
	out := make([]domain.Change, len(tail))
	copy(out, tail)
	return out, nil
}

// Subscribe streams changes after since.
func (s *RecordStore) Subscribe(ctx context.Context, since int64) (<-chan domain.ChangeBatch, <-chan error) {
	s.mu.RLock()
	opts := s.opts
	s.mu.RUnlock()
	return changelog.Subscribe(ctx, since, s.Changes, opts)
}

// LatestSeq returns the highest sequence in the log.
func (s *RecordStore) LatestSeq(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.log)), nil
}

// appendLocked adds a change to the log and wakes subscribers.
// Caller must hold mu.
func (s *RecordStore) appendLocked(c domain.Change) {
	c.Seq = int64(len(s.log) + 1)
	c.At = s.clock.Now()
	s.log = append(s.log, c)
	close(s.wake)
	s.wake = make(chan struct{})
}

func (s *RecordStore) wakeChan() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wake
}
