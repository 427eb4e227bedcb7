package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"
)

// Authority decides which source a field is taken from when a store
// version and a crawler version of the same entity are merged.
type Authority int

const (
	// Shared fields take the value with the later FetchedAt.
	// Ties go to the store.
	Shared Authority = iota

	// StoreOwned fields are never overwritten by crawler data.
	StoreOwned

	// CrawlerOwned fields always take the crawled value.
	CrawlerOwned
)

func (a Authority) String() string {
	switch a {
	case StoreOwned:
		return "store"
	case CrawlerOwned:
		return "crawler"
	default:
		return "shared"
	}
}

// FieldAuthority is the authority table used by Resolve. Fields not
// listed for a kind are Shared. Extension keys have their own table and
// keys missing from it have no rule.
var FieldAuthority = map[RecordKind]map[string]Authority{
	KindPost: {
		"headline":      Shared,
		"url":           CrawlerOwned,
		"identifier":    CrawlerOwned,
		"abstract":      Shared,
		"description":   Shared,
		"creator":       Shared,
		"datePublished": CrawlerOwned,
		"publisher":     StoreOwned,
		"inLanguage":    Shared,
		"licence":       StoreOwned,
		"genre":         StoreOwned,
		"feed":          CrawlerOwned,
		"media":         CrawlerOwned,
		"tombstone":     StoreOwned,
	},
	KindMedia: {
		"contentUrl":     CrawlerOwned,
		"encodingFormat": CrawlerOwned,
		"duration":       CrawlerOwned,
		"transcript":     StoreOwned,
		"tombstone":      StoreOwned,
	},
	KindFeed: {
		"url":           CrawlerOwned,
		"title":         Shared,
		"description":   Shared,
		"language":      Shared,
		"imageUrl":      CrawlerOwned,
		"checkInterval": StoreOwned,
		"tombstone":     StoreOwned,
	},
}

// Extension keys produced by the RSS mapping layer. They are all filled
// from the feed, so the crawler owns them.
const (
	ExtDuration = "frn:laenge"
	ExtRadio    = "frn:radio"
	ExtLanguage = "frn:language"
	ExtLicence  = "frn:licence"
)

var extensionAuthority = map[string]Authority{
	ExtDuration: CrawlerOwned,
	ExtRadio:    CrawlerOwned,
	ExtLanguage: CrawlerOwned,
	ExtLicence:  CrawlerOwned,
}

func authorityOf(kind RecordKind, field string) Authority {
	return FieldAuthority[kind][field]
}

// Resolve merges an incoming version of an entity into the existing
// canonical one and returns the new canonical record.
//
// Resolve is pure and deterministic. When existing is nil the incoming
// record becomes canonical. Two versions from the same source are merged
// by taking the later one wholesale. Versions from different sources are
// merged field by field through FieldAuthority.
//
// When the merged content equals the existing content, existing is
// returned unchanged, so Resolve(r, r) == r. Otherwise the result carries
// revision existing.Revision+1.
//
// A *ConflictError is returned when the versions disagree on something no
// rule covers. The caller should keep the incoming version as a sibling.
func Resolve(existing *Record, incoming Record) (Record, error) {
	if existing == nil {
		out := incoming.Clone()
		if out.Revision <= 0 {
			out.Revision = 1
		}
		return out, nil
	}
	if existing.GUID != incoming.GUID {
		return Record{}, fmt.Errorf("%w: resolve %s against %s", ErrInvalidInput, incoming.GUID, existing.GUID)
	}
	if existing.Kind != incoming.Kind {
		return Record{}, &ConflictError{GUID: existing.GUID, Fields: []string{"kind"}}
	}

	var merged Record
	if existing.Provenance.Source == incoming.Provenance.Source {
		merged = latest(*existing, incoming).Clone()
	} else {
		store, crawler := *existing, incoming
		if incoming.Provenance.Source == SourceStore {
			store, crawler = incoming, *existing
		}
		var err error
		merged, err = mergeSources(store, crawler)
		if err != nil {
			return Record{}, err
		}
	}

	if merged.ContentHash() == existing.ContentHash() {
		return *existing, nil
	}
	merged.Revision = existing.Revision + 1
	return merged, nil
}

// latest picks the version with the later FetchedAt, breaking ties on
// content hash so the choice never depends on argument order.
func latest(a, b Record) Record {
	switch {
	case a.Provenance.FetchedAt.After(b.Provenance.FetchedAt):
		return a
	case b.Provenance.FetchedAt.After(a.Provenance.FetchedAt):
		return b
	case b.ContentHash() > a.ContentHash():
		return b
	default:
		return a
	}
}

// merger applies authority rules for one store/crawler pair.
type merger struct {
	kind         RecordKind
	crawlerLater bool

	// prior is the store side's CrawlerFilled; filled collects the result's.
	prior  map[string]string
	filled map[string]string
}

// fingerprint identifies a field value for CrawlerFilled.
func fingerprint(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// fromCrawler reports whether the store's value of a store-owned field
// is still the one the crawler filled in.
func (m *merger) fromCrawler(field string, v any) bool {
	fp, ok := m.prior[field]
	return ok && fp == fingerprint(v)
}

func (m *merger) markFilled(field string, v any) {
	if m.filled == nil {
		m.filled = make(map[string]string)
	}
	m.filled[field] = fingerprint(v)
}

func pick[T any](m *merger, field string, fromStore, fromCrawler T, storeEmpty, crawlerEmpty bool) T {
	switch authorityOf(m.kind, field) {
	case StoreOwned:
		// The store owns a field once it has set it itself. Until then
		// the crawler keeps it current.
		if !storeEmpty && !m.fromCrawler(field, fromStore) {
			return fromStore
		}
		if crawlerEmpty {
			if !storeEmpty {
				m.markFilled(field, fromStore)
			}
			return fromStore
		}
		m.markFilled(field, fromCrawler)
		return fromCrawler
	case CrawlerOwned:
		if crawlerEmpty {
			return fromStore
		}
		return fromCrawler
	default:
		if storeEmpty || (m.crawlerLater && !crawlerEmpty) {
			return fromCrawler
		}
		return fromStore
	}
}

func (m *merger) str(field, s, c string) string {
	return pick(m, field, s, c, s == "", c == "")
}

func (m *merger) strs(field string, s, c []string) []string {
	return slices.Clone(pick(m, field, s, c, len(s) == 0, len(c) == 0))
}

func (m *merger) when(field string, s, c time.Time) time.Time {
	return pick(m, field, s, c, s.IsZero(), c.IsZero())
}

func (m *merger) dur(field string, s, c time.Duration) time.Duration {
	return pick(m, field, s, c, s == 0, c == 0)
}

func (m *merger) ref(field string, s, c Reference) Reference {
	return pick(m, field, s, c, s.IsZero(), c.IsZero())
}

func (m *merger) refs(field string, s, c []Reference) []Reference {
	return slices.Clone(pick(m, field, s, c, len(s) == 0, len(c) == 0))
}

// mergeSources merges a store version with a crawler version.
// The result is attributed to the store, because it carries
// store-authoritative fields, and stamped with the later FetchedAt.
// Store-owned fields the crawler filled are listed in CrawlerFilled so
// later crawls can still update them.
func mergeSources(store, crawler Record) (Record, error) {
	crawlerLater := crawler.Provenance.FetchedAt.After(store.Provenance.FetchedAt)
	m := &merger{kind: store.Kind, crawlerLater: crawlerLater, prior: store.CrawlerFilled}

	ext, err := mergeExtensions(store, crawler, crawlerLater)
	if err != nil {
		return Record{}, err
	}

	out := Record{
		GUID:       store.GUID,
		Kind:       store.Kind,
		Provenance: Provenance{Source: SourceStore, FetchedAt: store.Provenance.FetchedAt},
		Tombstone:  store.Tombstone,
		Extensions: ext,
	}
	if crawlerLater {
		out.Provenance.FetchedAt = crawler.Provenance.FetchedAt
	}

	switch store.Kind {
	case KindPost:
		s, c := orZero(store.Post), orZero(crawler.Post)
		out.Post = &Post{
			Headline:      m.str("headline", s.Headline, c.Headline),
			URL:           m.str("url", s.URL, c.URL),
			Identifier:    m.str("identifier", s.Identifier, c.Identifier),
			Abstract:      m.str("abstract", s.Abstract, c.Abstract),
			Description:   m.str("description", s.Description, c.Description),
			Creator:       m.strs("creator", s.Creator, c.Creator),
			DatePublished: m.when("datePublished", s.DatePublished, c.DatePublished),
			Publisher:     m.str("publisher", s.Publisher, c.Publisher),
			InLanguage:    m.str("inLanguage", s.InLanguage, c.InLanguage),
			Licence:       m.str("licence", s.Licence, c.Licence),
			Genre:         m.strs("genre", s.Genre, c.Genre),
			Feed:          m.ref("feed", s.Feed, c.Feed),
			Media:         m.refs("media", s.Media, c.Media),
		}
	case KindMedia:
		s, c := orZero(store.Media), orZero(crawler.Media)
		out.Media = &Media{
			ContentURL:     m.str("contentUrl", s.ContentURL, c.ContentURL),
			EncodingFormat: m.str("encodingFormat", s.EncodingFormat, c.EncodingFormat),
			Duration:       m.str("duration", s.Duration, c.Duration),
			Transcript:     m.str("transcript", s.Transcript, c.Transcript),
		}
	case KindFeed:
		s, c := orZero(store.Feed), orZero(crawler.Feed)
		out.Feed = &Feed{
			URL:           m.str("url", s.URL, c.URL),
			Title:         m.str("title", s.Title, c.Title),
			Description:   m.str("description", s.Description, c.Description),
			Language:      m.str("language", s.Language, c.Language),
			ImageURL:      m.str("imageUrl", s.ImageURL, c.ImageURL),
			CheckInterval: m.dur("checkInterval", s.CheckInterval, c.CheckInterval),
		}
	default:
		return Record{}, fmt.Errorf("%w: record kind %q", ErrUnsupportedType, store.Kind)
	}
	out.CrawlerFilled = m.filled
	return out, nil
}

// mergeExtensions merges extension maps. Keys with a rule follow it.
// Keys without a rule are kept when only one side has them and are a
// conflict when both sides disagree.
func mergeExtensions(store, crawler Record, crawlerLater bool) (map[string]string, error) {
	if len(store.Extensions) == 0 && len(crawler.Extensions) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(store.Extensions)+len(crawler.Extensions))
	var conflicts []string

	keys := make(map[string]struct{})
	for k := range store.Extensions {
		keys[k] = struct{}{}
	}
	for k := range crawler.Extensions {
		keys[k] = struct{}{}
	}
	for k := range keys {
		s, inStore := store.Extensions[k]
		c, inCrawler := crawler.Extensions[k]
		auth, ruled := extensionAuthority[k]
		switch {
		case !inCrawler:
			out[k] = s
		case !inStore:
			out[k] = c
		case s == c:
			out[k] = s
		case !ruled:
			conflicts = append(conflicts, "ext:"+k)
		case auth == StoreOwned:
			out[k] = s
		case auth == CrawlerOwned:
			out[k] = c
		case crawlerLater:
			out[k] = c
		default:
			out[k] = s
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, &ConflictError{GUID: store.GUID, Fields: conflicts}
	}
	return out, nil
}

func orZero[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
