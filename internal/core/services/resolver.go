package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// ResolveHandler folds sibling revisions into the canonical record. It
// runs as the resolve task handler.
//
// Siblings that merge are cleared. Siblings that still conflict are left
// in place without producing a change, so resolve never feeds itself.
type ResolveHandler struct {
	records driven.RecordStore
}

// NewResolveHandler creates a resolve handler.
func NewResolveHandler(records driven.RecordStore) *ResolveHandler {
	return &ResolveHandler{records: records}
}

// Handle implements TaskHandler.
func (h *ResolveHandler) Handle(ctx context.Context, task domain.Task) error {
	guid, err := domain.ParseGUID(task.Target)
	if err != nil {
		return err
	}
	_, err = h.Resolve(ctx, guid)
	return err
}

// Resolve merges every sibling of guid and returns the canonical record.
func (h *ResolveHandler) Resolve(ctx context.Context, guid domain.GUID) (*domain.Record, error) {
	siblings, err := h.records.Siblings(ctx, guid)
	if err != nil {
		return nil, asTransport("store", "siblings", err)
	}
	existing, err := h.records.Get(ctx, guid)
	if err != nil {
		return nil, asTransport("store", "get", err)
	}
	if len(siblings) == 0 {
		return existing, nil
	}

	candidates := domain.NewRecordMap()
	for _, s := range siblings {
		candidates.Add(s)
	}

	merged, changed, conflicts, err := candidates.Fold(guid, existing)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", guid, err)
	}

	if changed {
		if _, err := h.records.Put(ctx, merged); err != nil {
			// A concurrent crawl won the race; the retry sees its revision.
			return nil, asTransport("store", "put", err)
		}
		logger.Info("resolver: %s merged %d siblings into revision %d", guid, len(siblings)-len(conflicts), merged.Revision)
	}

	conflicting := make(map[string]bool, len(conflicts))
	for _, c := range conflicts {
		conflicting[c.ContentHash()] = true
	}
	var resolved []string
	for _, s := range siblings {
		if hash := s.ContentHash(); !conflicting[hash] {
			resolved = append(resolved, hash)
		}
	}
	if len(resolved) > 0 {
		if err := h.records.ClearSiblings(ctx, guid, resolved); err != nil {
			return nil, asTransport("store", "clear siblings", err)
		}
	}
	if len(conflicts) > 0 {
		logger.Warn("resolver: %s has %d conflicting siblings left for review", guid, len(conflicts))
	}

	if changed {
		return &merged, nil
	}
	return existing, nil
}
