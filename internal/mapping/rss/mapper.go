package rss

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure Mapper implements the interface.
var _ driven.FeedMapper = (*Mapper)(nil)

// abstractLength bounds Post.Abstract in runes.
const abstractLength = 280

// Field targets for extension values.
const (
	FieldMediaDuration = "media.duration"
	FieldPublisher     = "publisher"
	FieldInLanguage    = "inLanguage"
	FieldLicence       = "licence"
)

// DefaultExtensionMapping maps "prefix:name" item extensions to fields.
func DefaultExtensionMapping() map[string]string {
	return map[string]string{
		domain.ExtDuration: FieldMediaDuration,
		domain.ExtRadio:    FieldPublisher,
		domain.ExtLanguage: FieldInLanguage,
		domain.ExtLicence:  FieldLicence,
	}
}

var (
	errNoItemKey = errors.New("item has no guid or link")
	errEmptyBody = errors.New("empty feed body")
)

// Mapper turns RSS and Atom documents into candidate records.
type Mapper struct {
	extensions map[string]string
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithExtensionMapping replaces the default extension mapping.
func WithExtensionMapping(mapping map[string]string) Option {
	return func(m *Mapper) {
		m.extensions = mapping
	}
}

// New creates a mapper with the default extension mapping.
func New(opts ...Option) *Mapper {
	m := &Mapper{extensions: DefaultExtensionMapping()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map parses body and returns the feed record, then media records, then
// post records. Items without a stable key are reported in skipped.
func (m *Mapper) Map(feedURL string, body []byte, prov domain.Provenance) ([]domain.Record, []error, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil, fmt.Errorf("parse feed: %w", errEmptyBody)
	}
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse feed: %w", err)
	}

	feed := m.feedRecord(feedURL, parsed, prov)
	feedRef := domain.RefTo(feed.GUID)

	var (
		media   []domain.Record
		posts   []domain.Record
		skipped []error
		seen    = make(map[domain.GUID]bool)
	)
	for i, item := range parsed.Items {
		if item == nil {
			continue
		}
		key := itemKey(item)
		if key == "" {
			skipped = append(skipped, &domain.MappingError{
				Source: feedURL,
				Item:   fmt.Sprintf("#%d %q", i, item.Title),
				Err:    errNoItemKey,
			})
			continue
		}
		guid := domain.NewGUID(domain.NamespacePost, domain.PostKey(feedURL, key))
		if seen[guid] {
			continue
		}
		seen[guid] = true

		fields, extensions := m.resolveExtensions(item.Extensions)
		post := m.post(item, key, fields)
		post.Feed = feedRef

		for _, enc := range item.Enclosures {
			if enc == nil || strings.TrimSpace(enc.URL) == "" {
				continue
			}
			rec := mediaRecord(enc, item, fields, prov)
			post.Media = append(post.Media, domain.RefTo(rec.GUID))
			if !seen[rec.GUID] {
				seen[rec.GUID] = true
				media = append(media, rec)
			}
		}

		rec := domain.NewPostRecord(guid, post, prov)
		rec.Extensions = extensions
		posts = append(posts, rec)
	}

	logger.Debug("rss: %s mapped %d posts, %d media, %d skipped", feedURL, len(posts), len(media), len(skipped))

	out := make([]domain.Record, 0, 1+len(media)+len(posts))
	out = append(out, feed)
	out = append(out, media...)
	return append(out, posts...), skipped, nil
}

func (m *Mapper) feedRecord(feedURL string, f *gofeed.Feed, prov domain.Provenance) domain.Record {
	feed := domain.Feed{
		URL:         feedURL,
		Title:       strings.TrimSpace(f.Title),
		Description: plainText(f.Description),
		Language:    strings.TrimSpace(f.Language),
	}
	if f.Image != nil {
		feed.ImageURL = f.Image.URL
	} else if f.ITunesExt != nil {
		feed.ImageURL = f.ITunesExt.Image
	}
	return domain.NewFeedRecord(domain.NewGUID(domain.NamespaceFeed, feedURL), feed, prov)
}

func (m *Mapper) post(item *gofeed.Item, key string, fields map[string]string) domain.Post {
	description := plainText(item.Description)
	if description == "" {
		description = plainText(item.Content)
	}
	p := domain.Post{
		Headline:    strings.TrimSpace(item.Title),
		URL:         itemLink(item),
		Identifier:  key,
		Description: description,
		Publisher:   fields[FieldPublisher],
		InLanguage:  fields[FieldInLanguage],
		Licence:     fields[FieldLicence],
	}
	if description != "" {
		p.Abstract = firstSentences(strings.SplitN(description, "\n", 2)[0], abstractLength)
	}
	if item.PublishedParsed != nil {
		p.DatePublished = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		p.DatePublished = item.UpdatedParsed.UTC()
	}
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			p.Creator = append(p.Creator, strings.TrimSpace(a.Name))
		}
	}
	if len(p.Creator) == 0 && item.DublinCoreExt != nil {
		for _, c := range item.DublinCoreExt.Creator {
			if c = strings.TrimSpace(c); c != "" {
				p.Creator = append(p.Creator, c)
			}
		}
	}
	for _, c := range item.Categories {
		if c = strings.TrimSpace(c); c != "" {
			p.Genre = append(p.Genre, c)
		}
	}
	return p
}

func mediaRecord(enc *gofeed.Enclosure, item *gofeed.Item, fields map[string]string, prov domain.Provenance) domain.Record {
	url := strings.TrimSpace(enc.URL)
	media := domain.Media{
		ContentURL:     url,
		EncodingFormat: enc.Type,
		Duration:       fields[FieldMediaDuration],
	}
	if media.Duration == "" && item.ITunesExt != nil {
		media.Duration = item.ITunesExt.Duration
	}
	return domain.NewMediaRecord(domain.NewGUID(domain.NamespaceMedia, url), media, prov)
}

// resolveExtensions looks up every mapped extension on the item. It
// returns the values by target field and by extension key.
func (m *Mapper) resolveExtensions(extensions ext.Extensions) (map[string]string, map[string]string) {
	if len(extensions) == 0 || len(m.extensions) == 0 {
		return nil, nil
	}
	fields := make(map[string]string)
	raw := make(map[string]string)
	for key, field := range m.extensions {
		prefix, name, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		values := extensions[prefix][name]
		if len(values) == 0 {
			continue
		}
		v := strings.TrimSpace(values[0].Value)
		if v == "" {
			continue
		}
		fields[field] = v
		raw[key] = v
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return fields, raw
}

// itemKey is the item's stable identifier within its feed: the guid,
// or the link when the feed has no guids.
func itemKey(item *gofeed.Item) string {
	if g := strings.TrimSpace(item.GUID); g != "" {
		return g
	}
	return itemLink(item)
}

func itemLink(item *gofeed.Item) string {
	if l := strings.TrimSpace(item.Link); l != "" {
		return l
	}
	if strings.HasPrefix(item.GUID, "http") {
		return strings.TrimSpace(item.GUID)
	}
	return ""
}
