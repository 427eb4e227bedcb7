package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestRecord_ContentHashIgnoresEnvelope tests that revision and provenance are not content
func TestRecord_ContentHashIgnoresEnvelope(t *testing.T) {
	a := crawled("A", t0)
	b := a.Clone()
	b.Revision = 7
	b.Provenance = Provenance{Source: SourceStore, FetchedAt: t0.Add(time.Hour)}

	assert.Equal(t, a.ContentHash(), b.ContentHash())
	assert.True(t, a.SameContent(b))
}

// TestRecord_ContentHashDetectsChanges tests that body and extension edits change the hash
func TestRecord_ContentHashDetectsChanges(t *testing.T) {
	base := crawled("A", t0)

	edited := base.Clone()
	edited.Post.Headline = "B"
	assert.NotEqual(t, base.ContentHash(), edited.ContentHash())

	ext := base.Clone()
	ext.Extensions = map[string]string{ExtRadio: "x"}
	assert.NotEqual(t, base.ContentHash(), ext.ContentHash())

	empty := base.Clone()
	empty.Extensions = map[string]string{}
	assert.Equal(t, base.ContentHash(), empty.ContentHash())
}

// TestRecord_CloneIsDeep tests that a clone shares no mutable state
func TestRecord_CloneIsDeep(t *testing.T) {
	r := crawled("A", t0)
	r.Post.Creator = []string{"alice"}
	r.Post.Media = []Reference{RefTo(NewGUID(NamespaceMedia, "m"))}
	r.Extensions = map[string]string{"k": "v"}

	c := r.Clone()
	c.Post.Headline = "changed"
	c.Post.Creator[0] = "bob"
	c.Post.Media[0].GUID = "x"
	c.Extensions["k"] = "changed"

	assert.Equal(t, "A", r.Post.Headline)
	assert.Equal(t, "alice", r.Post.Creator[0])
	assert.NotEqual(t, GUID("x"), r.Post.Media[0].GUID)
	assert.Equal(t, "v", r.Extensions["k"])
}

// TestRecord_Validate tests envelope invariants
func TestRecord_Validate(t *testing.T) {
	post := crawled("A", t0)

	noBody := post.Clone()
	noBody.Post = nil

	tombstone := noBody.Clone()
	tombstone.Tombstone = true

	twoBodies := post.Clone()
	twoBodies.Media = &Media{}

	wrongNamespace := post.Clone()
	wrongNamespace.GUID = NewGUID(NamespaceMedia, "x")

	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"valid post", post, false},
		{"tombstone without body", tombstone, false},
		{"missing body", noBody, true},
		{"two bodies", twoBodies, true},
		{"guid namespace mismatch", wrongNamespace, true},
		{"bad guid", Record{GUID: "nope", Kind: KindPost, Post: &Post{}}, true},
		{"bad kind", Record{GUID: post.GUID, Kind: "user", Post: &Post{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidInput))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestRecord_Tombstoned tests that deletion produces a new revision
func TestRecord_Tombstoned(t *testing.T) {
	r := crawled("A", t0)
	r.Revision = 2

	dead := r.Tombstoned(Provenance{Source: SourceStore, FetchedAt: t0.Add(time.Hour)})

	assert.Equal(t, 3, dead.Revision)
	assert.True(t, dead.Tombstone)
	assert.False(t, r.Tombstone)
	assert.NotEqual(t, r.ContentHash(), dead.ContentHash())
}

// TestRecord_References tests outgoing references of a post
func TestRecord_References(t *testing.T) {
	r := crawled("A", t0)
	media := RefTo(NewGUID(NamespaceMedia, "m"))
	r.Post.Media = []Reference{media}

	refs := r.References()

	assert.Equal(t, []Reference{r.Post.Feed, media}, refs)
	assert.Equal(t, KindFeed, refs[0].Kind)
}

// TestChangeFromRecord tests change typing from revisions
func TestChangeFromRecord(t *testing.T) {
	r := crawled("A", t0)
	r.Revision = 1
	assert.Equal(t, ChangeCreated, ChangeFromRecord(r).Type)

	r.Revision = 2
	c := ChangeFromRecord(r)
	assert.Equal(t, ChangeUpdated, c.Type)
	assert.Equal(t, SourceCrawler, c.Origin)
	assert.Equal(t, KindPost, c.Kind)

	dead := r.Tombstoned(Provenance{Source: SourceStore})
	assert.Equal(t, ChangeDeleted, ChangeFromRecord(dead).Type)
}

// TestChangeBatch_LastSeq tests the batch high-water mark
func TestChangeBatch_LastSeq(t *testing.T) {
	assert.Equal(t, int64(0), ChangeBatch{}.LastSeq())
	b := ChangeBatch{Changes: []Change{{Seq: 4}, {Seq: 9}}}
	assert.Equal(t, int64(9), b.LastSeq())
}
