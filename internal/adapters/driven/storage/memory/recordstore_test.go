package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/changelog"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func post(key, headline string, rev int) domain.Record {
	r := domain.NewPostRecord(domain.NewGUID(domain.NamespacePost, key), domain.Post{Headline: headline},
		domain.Provenance{Source: domain.SourceCrawler, FetchedAt: t0})
	r.Revision = rev
	return r
}

func TestRecordStore_GetMissing(t *testing.T) {
	store := NewRecordStore(nil)
	rec, err := store.Get(context.Background(), domain.NewGUID(domain.NamespacePost, "x"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRecordStore_PutRequiresNextRevision(t *testing.T) {
	store := NewRecordStore(nil)
	ctx := context.Background()

	_, err := store.Put(ctx, post("a", "first", 2))
	assert.ErrorIs(t, err, domain.ErrRevisionConflict)

	rev, err := store.Put(ctx, post("a", "first", 1))
	require.NoError(t, err)
	assert.Equal(t, 1, rev)

	_, err = store.Put(ctx, post("a", "stale", 1))
	assert.ErrorIs(t, err, domain.ErrRevisionConflict)

	_, err = store.Put(ctx, post("a", "second", 2))
	require.NoError(t, err)

	got, err := store.Get(ctx, post("a", "", 0).GUID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Post.Headline)
	assert.Equal(t, 2, got.Revision)
}

func TestRecordStore_PutRejectsInvalid(t *testing.T) {
	store := NewRecordStore(nil)
	bad := post("a", "x", 1)
	bad.Post = nil

	_, err := store.Put(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordStore_GetReturnsCopy(t *testing.T) {
	store := NewRecordStore(nil)
	ctx := context.Background()
	_, err := store.Put(ctx, post("a", "original", 1))
	require.NoError(t, err)

	got, _ := store.Get(ctx, post("a", "", 0).GUID)
	got.Post.Headline = "mutated"

	again, _ := store.Get(ctx, got.GUID)
	assert.Equal(t, "original", again.Post.Headline)
}

func TestRecordStore_ChangeLog(t *testing.T) {
	store := NewRecordStore(nil)
	ctx := context.Background()

	_, _ = store.Put(ctx, post("a", "one", 1))
	_, _ = store.Put(ctx, post("a", "two", 2))
	tomb := post("a", "", 3)
	tomb.Tombstone = true
	tomb.Post = nil
	_, _ = store.Put(ctx, tomb)
	require.NoError(t, store.PutSibling(ctx, post("a", "sibling", 1)))

	changes, err := store.Changes(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, changes, 4)
	assert.Equal(t, domain.ChangeCreated, changes[0].Type)
	assert.Equal(t, domain.ChangeUpdated, changes[1].Type)
	assert.Equal(t, domain.ChangeDeleted, changes[2].Type)
	assert.Equal(t, domain.ChangeSibling, changes[3].Type)
	for i, c := range changes {
		assert.Equal(t, int64(i+1), c.Seq)
	}

	tail, err := store.Changes(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, int64(3), tail[0].Seq)

	latest, err := store.LatestSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), latest)
}

func TestRecordStore_Siblings(t *testing.T) {
	store := NewRecordStore(nil)
	ctx := context.Background()
	a := post("a", "one", 1)
	b := post("a", "two", 1)

	require.NoError(t, store.PutSibling(ctx, a))
	require.NoError(t, store.PutSibling(ctx, a))
	require.NoError(t, store.PutSibling(ctx, b))

	sibs, err := store.Siblings(ctx, a.GUID)
	require.NoError(t, err)
	assert.Len(t, sibs, 2)

	require.NoError(t, store.ClearSiblings(ctx, a.GUID, []string{a.ContentHash()}))
	sibs, _ = store.Siblings(ctx, a.GUID)
	require.Len(t, sibs, 1)
	assert.Equal(t, "two", sibs[0].Post.Headline)

	require.NoError(t, store.ClearSiblings(ctx, a.GUID, []string{b.ContentHash()}))
	sibs, _ = store.Siblings(ctx, a.GUID)
	assert.Empty(t, sibs)
}

func TestRecordStore_List(t *testing.T) {
	store := NewRecordStore(nil)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_, err := store.Put(ctx, post(k, k, 1))
		require.NoError(t, err)
	}
	feed := domain.NewFeedRecord(domain.NewGUID(domain.NamespaceFeed, "f"), domain.Feed{URL: "https://example.org/feed"},
		domain.Provenance{Source: domain.SourceCrawler, FetchedAt: t0})
	feed.Revision = 1
	_, err := store.Put(ctx, feed)
	require.NoError(t, err)

	posts, err := store.List(ctx, domain.KindPost, 2, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.True(t, posts[0].GUID < posts[1].GUID)

	rest, err := store.List(ctx, domain.KindPost, 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	all, err := store.List(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRecordStore_PostsByFeed(t *testing.T) {
	store := NewRecordStore(nil)
	ctx := context.Background()
	radio := domain.NewGUID(domain.NamespaceFeed, "https://radio.example.org/feed")
	other := domain.NewGUID(domain.NamespaceFeed, "https://other.example.org/feed")

	for _, k := range []string{"b", "a", "c"} {
		p := post(k, k, 1)
		p.Post.Feed = domain.RefTo(radio)
		if k == "c" {
			p.Post.Feed = domain.RefTo(other)
		}
		_, err := store.Put(ctx, p)
		require.NoError(t, err)
	}
	gone := post("b", "b", 1)
	gone.Post.Feed = domain.RefTo(radio)
	_, err := store.Put(ctx, gone.Tombstoned(gone.Provenance))
	require.NoError(t, err)

	posts, err := store.PostsByFeed(ctx, radio)
	require.NoError(t, err)
	assert.Equal(t, []domain.GUID{post("a", "", 0).GUID}, posts)

	none, err := store.PostsByFeed(ctx, domain.NewGUID(domain.NamespaceFeed, "unknown"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordStore_SubscribeDeliversWrites(t *testing.T) {
	store := NewRecordStore(nil)
	store.SetSubscribeOptions(changelog.Options{BatchSize: 10, PollInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _ = store.Put(ctx, post("a", "one", 1))
	batches, _ := store.Subscribe(ctx, 0)

	first := <-batches
	assert.Equal(t, int64(1), first.LastSeq())

	_, _ = store.Put(ctx, post("b", "two", 1))
	select {
	case next := <-batches:
		assert.Equal(t, int64(2), next.LastSeq())
	case <-time.After(2 * time.Second):
		t.Fatal("write did not wake subscriber")
	}
}
