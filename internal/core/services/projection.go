package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var (
	errNoTitle = errors.New("post has neither headline nor url")
	errNoURL   = errors.New("missing url")
)

// Projector builds search documents from canonical records. Referenced
// records are looked up at projection time, so a post always embeds the
// current title of its feed.
type Projector struct {
	records driven.RecordStore
}

// NewProjector creates a projector reading references from records.
func NewProjector(records driven.RecordStore) *Projector {
	return &Projector{records: records}
}

// Project converts a record to its search document. Records that violate
// their shape yield a *domain.MappingError; lookup failures are transport
// errors.
func (p *Projector) Project(ctx context.Context, rec domain.Record) (domain.IndexDocument, error) {
	if err := rec.Validate(); err != nil {
		return domain.IndexDocument{}, &domain.MappingError{Source: string(rec.GUID), Err: err}
	}

	doc := domain.IndexDocument{
		ID:        string(rec.GUID),
		Kind:      rec.Kind,
		Revision:  rec.Revision,
		FetchedAt: rec.Provenance.FetchedAt,
	}

	switch rec.Kind {
	case domain.KindPost:
		return p.projectPost(ctx, rec, doc)
	case domain.KindMedia:
		m := rec.Media
		if m.ContentURL == "" {
			return doc, &domain.MappingError{Source: string(rec.GUID), Err: errNoURL}
		}
		doc.Title = m.ContentURL
		doc.URL = m.ContentURL
		doc.EncodingFormat = m.EncodingFormat
		doc.Duration = m.Duration
		doc.Transcript = m.Transcript
		return doc, nil
	case domain.KindFeed:
		f := rec.Feed
		if f.URL == "" {
			return doc, &domain.MappingError{Source: string(rec.GUID), Err: errNoURL}
		}
		doc.Title = f.Title
		doc.Description = f.Description
		doc.URL = f.URL
		doc.Language = f.Language
		doc.FeedGUID = string(rec.GUID)
		doc.FeedTitle = f.Title
		return doc, nil
	default:
		return doc, &domain.MappingError{Source: string(rec.GUID), Err: domain.ErrUnsupportedType}
	}
}

func (p *Projector) projectPost(ctx context.Context, rec domain.Record, doc domain.IndexDocument) (domain.IndexDocument, error) {
	post := rec.Post
	if post.Headline == "" && post.URL == "" {
		return doc, &domain.MappingError{Source: string(rec.GUID), Err: errNoTitle}
	}

	doc.Title = post.Headline
	if doc.Title == "" {
		doc.Title = post.URL
	}
	doc.Description = post.Description
	if doc.Description == "" {
		doc.Description = post.Abstract
	}
	doc.URL = post.URL
	doc.Creator = post.Creator
	doc.Genre = post.Genre
	doc.Language = post.InLanguage
	doc.Publisher = post.Publisher
	doc.Licence = post.Licence
	doc.Published = post.DatePublished

	if !post.Feed.IsZero() {
		doc.FeedGUID = string(post.Feed.GUID)
		feed, err := p.lookup(ctx, post.Feed.GUID)
		if err != nil {
			return doc, err
		}
		if feed != nil && feed.Feed != nil && !feed.Tombstone {
			doc.FeedTitle = feed.Feed.Title
		}
	}

	for _, ref := range post.Media {
		media, err := p.lookup(ctx, ref.GUID)
		if err != nil {
			return doc, err
		}
		if media == nil || media.Media == nil || media.Tombstone {
			continue
		}
		doc.MediaURLs = append(doc.MediaURLs, media.Media.ContentURL)
		if doc.Duration == "" {
			doc.Duration = media.Media.Duration
		}
	}
	return doc, nil
}

func (p *Projector) lookup(ctx context.Context, guid domain.GUID) (*domain.Record, error) {
	rec, err := p.records.Get(ctx, guid)
	if err != nil {
		return nil, asTransport("store", "get "+string(guid), err)
	}
	return rec, nil
}

// asTransport wraps err as a transport failure unless it is already
// classified.
func asTransport(system, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrTransport) || domain.IsPermanent(err) {
		return fmt.Errorf("%s %s: %w", system, op, err)
	}
	return domain.NewTransportError(system, op, err)
}
