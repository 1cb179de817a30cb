package engine

import (
	"context"
	"fmt"

	"github.com/rpggio/feedsync/internal/domain/timeline"
)

// Deduplicator drops remote records whose activity id is already stored.
type Deduplicator struct {
	store timeline.Store
}

// NewDeduplicator creates a Deduplicator over store.
func NewDeduplicator(store timeline.Store) *Deduplicator {
	return &Deduplicator{store: store}
}

// Filter returns the records of batch that are not yet stored. Only ids
// stored at or after the batch minimum timestamp are considered. Repeated
// ids within the batch are collapsed to their first occurrence.
func (d *Deduplicator) Filter(ctx context.Context, batch []timeline.Record) ([]timeline.Record, error) {
	minTS, _, ok := timeline.Bounds(batch)
	if !ok {
		return nil, nil
	}
	existing, err := d.store.ExistingActivityIDs(ctx, minTS)
	if err != nil {
		return nil, fmt.Errorf("loading existing activity ids: %w", err)
	}
	if existing == nil {
		existing = make(map[string]struct{})
	}

	fresh := make([]timeline.Record, 0, len(batch))
	for _, rec := range batch {
		if _, dup := existing[rec.ActivityID]; dup {
			continue
		}
		existing[rec.ActivityID] = struct{}{}
		fresh = append(fresh, rec)
	}
	return fresh, nil
}
