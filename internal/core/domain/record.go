package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

// RecordKind identifies which variant a Record carries.
type RecordKind string

// Record kinds.
const (
	KindPost  RecordKind = "post"
	KindMedia RecordKind = "media"
	KindFeed  RecordKind = "feed"
)

// Valid reports whether the kind is one of the known variants.
func (k RecordKind) Valid() bool {
	switch k {
	case KindPost, KindMedia, KindFeed:
		return true
	default:
		return false
	}
}

// Source names where a revision of a record came from.
type Source string

// Provenance sources, listed in priority order.
const (
	// SourceStore is data authored directly in the primary document store.
	SourceStore Source = "store"

	// SourceCrawler is data discovered by polling a feed.
	SourceCrawler Source = "crawler"
)

// priority returns the tie-break rank of a source. Lower wins.
func (s Source) priority() int {
	switch s {
	case SourceStore:
		return 0
	case SourceCrawler:
		return 1
	default:
		return 2
	}
}

// Provenance records who produced a revision and when it was fetched.
type Provenance struct {
	Source    Source    `json:"source"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Reference is a GUID-valued pointer from one record to another.
// It is resolved by lookup at read time and never implies ownership.
type Reference struct {
	GUID GUID       `json:"guid"`
	Kind RecordKind `json:"kind"`
}

// IsZero reports whether the reference points nowhere.
func (r Reference) IsZero() bool {
	return r.GUID == ""
}

// RefTo builds a Reference to the given GUID.
func RefTo(g GUID) Reference {
	return Reference{GUID: g, Kind: g.Kind()}
}

// Post is an article or episode discovered in a feed.
type Post struct {
	Headline      string      `json:"headline,omitempty"`
	URL           string      `json:"url,omitempty"`
	Identifier    string      `json:"identifier,omitempty"`
	Abstract      string      `json:"abstract,omitempty"`
	Description   string      `json:"description,omitempty"`
	Creator       []string    `json:"creator,omitempty"`
	DatePublished time.Time   `json:"datePublished,omitzero"`
	Publisher     string      `json:"publisher,omitempty"`
	InLanguage    string      `json:"inLanguage,omitempty"`
	Licence       string      `json:"licence,omitempty"`
	Genre         []string    `json:"genre,omitempty"`
	Feed          Reference   `json:"feed,omitzero"`
	Media         []Reference `json:"media,omitempty"`
}

// Media is an audio or video file, usually a feed enclosure.
type Media struct {
	ContentURL     string `json:"contentUrl,omitempty"`
	EncodingFormat string `json:"encodingFormat,omitempty"`
	Duration       string `json:"duration,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
}

// Feed holds metadata about a polled RSS or Atom feed.
type Feed struct {
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`

	// CheckInterval overrides the crawl interval for this feed.
	CheckInterval time.Duration `json:"checkInterval,omitempty"`
}

// Record is an immutable, versioned envelope around exactly one variant.
// New information produces a new Record with a higher Revision; existing
// revisions are never mutated in place. Use Clone before changing a copy.
type Record struct {
	GUID       GUID              `json:"guid"`
	Kind       RecordKind        `json:"kind"`
	Revision   int               `json:"revision"`
	Provenance Provenance        `json:"provenance"`
	Tombstone  bool              `json:"tombstone,omitempty"`
	Post       *Post             `json:"post,omitempty"`
	Media      *Media            `json:"media,omitempty"`
	Feed       *Feed             `json:"feed,omitempty"`
	Extensions map[string]string `json:"extensions,omitempty"`

	// CrawlerFilled lists store-owned fields whose value was taken from
	// the crawler because the store had none, keyed by field name with a
	// fingerprint of that value. It is not part of the content hash.
	CrawlerFilled map[string]string `json:"crawlerFilled,omitempty"`
}

// NewPostRecord wraps a Post in a Record.
func NewPostRecord(g GUID, p Post, prov Provenance) Record {
	return Record{GUID: g, Kind: KindPost, Provenance: prov, Post: &p}
}

// NewMediaRecord wraps a Media in a Record.
func NewMediaRecord(g GUID, m Media, prov Provenance) Record {
	return Record{GUID: g, Kind: KindMedia, Provenance: prov, Media: &m}
}

// NewFeedRecord wraps a Feed in a Record.
func NewFeedRecord(g GUID, f Feed, prov Provenance) Record {
	return Record{GUID: g, Kind: KindFeed, Provenance: prov, Feed: &f}
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	if r.Post != nil {
		p := *r.Post
		p.Creator = slices.Clone(r.Post.Creator)
		p.Genre = slices.Clone(r.Post.Genre)
		p.Media = slices.Clone(r.Post.Media)
		out.Post = &p
	}
	if r.Media != nil {
		m := *r.Media
		out.Media = &m
	}
	if r.Feed != nil {
		f := *r.Feed
		out.Feed = &f
	}
	out.Extensions = maps.Clone(r.Extensions)
	out.CrawlerFilled = maps.Clone(r.CrawlerFilled)
	return out
}

// Tombstoned returns a new revision of the record marking logical deletion.
func (r Record) Tombstoned(prov Provenance) Record {
	out := r.Clone()
	out.Revision = r.Revision + 1
	out.Provenance = prov
	out.Tombstone = true
	return out
}

// References returns every GUID the record points at.
func (r Record) References() []Reference {
	if r.Post == nil {
		return nil
	}
	refs := make([]Reference, 0, len(r.Post.Media)+1)
	if !r.Post.Feed.IsZero() {
		refs = append(refs, r.Post.Feed)
	}
	return append(refs, r.Post.Media...)
}

// Validate checks the envelope invariants.
// A record carries exactly one variant matching its kind unless it is a
// tombstone, in which case the body may be absent.
func (r Record) Validate() error {
	if !r.GUID.Valid() {
		return fmt.Errorf("%w: record guid %q", ErrInvalidInput, r.GUID)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: record kind %q", ErrInvalidInput, r.Kind)
	}
	if r.GUID.Kind() != r.Kind {
		return fmt.Errorf("%w: guid %s does not name a %s", ErrInvalidInput, r.GUID, r.Kind)
	}

	bodies := 0
	for _, present := range []bool{r.Post != nil, r.Media != nil, r.Feed != nil} {
		if present {
			bodies++
		}
	}
	if bodies > 1 {
		return fmt.Errorf("%w: record %s carries %d variants", ErrInvalidInput, r.GUID, bodies)
	}
	if r.Tombstone {
		return nil
	}
	if bodies == 0 || !r.hasBody(r.Kind) {
		return fmt.Errorf("%w: record %s has no %s body", ErrInvalidInput, r.GUID, r.Kind)
	}
	return nil
}

func (r Record) hasBody(kind RecordKind) bool {
	switch kind {
	case KindPost:
		return r.Post != nil
	case KindMedia:
		return r.Media != nil
	case KindFeed:
		return r.Feed != nil
	default:
		return false
	}
}

// contentView is the part of a record that counts as its content.
// Revision and provenance are excluded.
type contentView struct {
	Kind       RecordKind        `json:"kind"`
	Tombstone  bool              `json:"tombstone"`
	Post       *Post             `json:"post,omitempty"`
	Media      *Media            `json:"media,omitempty"`
	Feed       *Feed             `json:"feed,omitempty"`
	Extensions map[string]string `json:"extensions,omitempty"`
}

// ContentHash returns a hex digest of the record's content.
// Two records with equal content hash carry the same information.
func (r Record) ContentHash() string {
	view := contentView{
		Kind:       r.Kind,
		Tombstone:  r.Tombstone,
		Post:       r.Post,
		Media:      r.Media,
		Feed:       r.Feed,
		Extensions: r.Extensions,
	}
	if len(view.Extensions) == 0 {
		view.Extensions = nil
	}
	// json.Marshal sorts map keys, so the encoding is canonical.
	data, err := json.Marshal(view)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SameContent reports whether two records carry the same information.
func (r Record) SameContent(other Record) bool {
	return r.GUID == other.GUID && r.ContentHash() == other.ContentHash()
}

// Title returns the human-readable title of whichever variant is present.
func (r Record) Title() string {
	switch {
	case r.Post != nil:
		return r.Post.Headline
	case r.Feed != nil:
		return r.Feed.Title
	case r.Media != nil:
		return r.Media.ContentURL
	default:
		return ""
	}
}
