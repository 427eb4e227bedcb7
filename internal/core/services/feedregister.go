package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// FeedRegistrar creates and updates crawl schedules.
type FeedRegistrar interface {
	RegisterFeed(ctx context.Context, src domain.FeedSource) (*domain.FeedSource, error)
	GetSource(ctx context.Context, id string) (*domain.FeedSource, error)
}

// FeedRegisterHandler keeps crawl schedules in step with feed records, so
// feeds added through the record store start being crawled. It runs as the
// feed.register task handler.
type FeedRegisterHandler struct {
	records   driven.RecordStore
	registrar FeedRegistrar
}

// NewFeedRegisterHandler creates a feed.register handler.
func NewFeedRegisterHandler(records driven.RecordStore, registrar FeedRegistrar) *FeedRegisterHandler {
	return &FeedRegisterHandler{records: records, registrar: registrar}
}

// Handle implements TaskHandler.
func (h *FeedRegisterHandler) Handle(ctx context.Context, task domain.Task) error {
	guid, err := domain.ParseGUID(task.Target)
	if err != nil {
		return err
	}
	rec, err := h.records.Get(ctx, guid)
	if err != nil {
		return asTransport("store", "get", err)
	}
	if rec == nil {
		return nil
	}
	if rec.Kind != domain.KindFeed {
		return fmt.Errorf("%w: feed.register on %s record", domain.ErrUnsupportedType, rec.Kind)
	}
	if rec.Feed == nil || rec.Feed.URL == "" {
		if rec.Tombstone {
			return nil
		}
		return &domain.MappingError{Source: string(guid), Err: errNoURL}
	}

	src := domain.FeedSource{
		ID:       domain.SourceIDForURL(rec.Feed.URL),
		URL:      rec.Feed.URL,
		Name:     rec.Feed.Title,
		Interval: rec.Feed.CheckInterval,
		Enabled:  !rec.Tombstone,
	}

	// Keep operator settings on sources that already exist.
	existing, err := h.registrar.GetSource(ctx, src.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return asTransport("store", "get source", err)
	default:
		if src.Name == "" {
			src.Name = existing.Name
		}
		if src.Interval == 0 {
			src.Interval = existing.Interval
		}
		src.Mapping = existing.Mapping
		if !existing.Enabled && !rec.Tombstone {
			// Auto-disabled or switched off by an operator; a crawl
			// writing the same feed record must not re-enable it.
			src.Enabled = false
		}
		if *existing == withTimes(src, existing) {
			return nil
		}
	}

	if _, err := h.registrar.RegisterFeed(ctx, src); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return &domain.MappingError{Source: string(guid), Err: err}
		}
		return err
	}
	return nil
}

// withTimes copies the bookkeeping timestamps of ref onto src so the two
// can be compared on content alone.
func withTimes(src domain.FeedSource, ref *domain.FeedSource) domain.FeedSource {
	src.CreatedAt = ref.CreatedAt
	src.UpdatedAt = ref.UpdatedAt
	return src
}
