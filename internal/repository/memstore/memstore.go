// Package memstore holds in-memory timeline and watermark stores for tests
// and dry runs.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
)

// Timeline is an in-memory timeline.Store that also records every write.
type Timeline struct {
	mu      sync.Mutex
	records []timeline.Record
	writes  [][]timeline.Record
	nextID  int64

	// WriteErr, when set, fails every write.
	WriteErr error
}

// NewTimeline creates an empty Timeline.
func NewTimeline() *Timeline {
	return &Timeline{}
}

func (t *Timeline) WriteTimelineBatch(_ context.Context, records []timeline.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.WriteErr != nil {
		return t.WriteErr
	}
	batch := make([]timeline.Record, len(records))
	for i := range records {
		t.nextID++
		records[i].ID = t.nextID
		batch[i] = records[i]
	}
	t.records = append(t.records, batch...)
	t.writes = append(t.writes, batch)
	return nil
}

func (t *Timeline) ExistingActivityIDs(_ context.Context, minTimestamp int64) (map[string]struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make(map[string]struct{})
	for _, rec := range t.records {
		if rec.IsRemote() && rec.ActivityID != "" && rec.Timestamp >= minTimestamp {
			ids[rec.ActivityID] = struct{}{}
		}
	}
	return ids, nil
}

// PruneTimeline drops duplicate (source, native id) rows, keeping the first.
func (t *Timeline) PruneTimeline(_ context.Context) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	type key struct {
		source   timeline.SourceKind
		nativeID string
	}
	seen := make(map[key]struct{}, len(t.records))
	kept := t.records[:0]
	var pruned int64
	for _, rec := range t.records {
		k := key{rec.Source, rec.NativeID}
		if _, dup := seen[k]; dup {
			pruned++
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, rec)
	}
	t.records = kept
	return pruned, nil
}

func (t *Timeline) List(_ context.Context, opts timeline.ListOptions) ([]timeline.Record, error) {
	records := t.Records()
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp != records[j].Timestamp {
			return records[i].Timestamp > records[j].Timestamp
		}
		return records[i].ID > records[j].ID
	})

	var out []timeline.Record
	for _, rec := range records {
		if opts.Before > 0 && rec.Timestamp >= opts.Before {
			continue
		}
		if len(opts.Sources) > 0 && !containsSource(opts.Sources, rec.Source) {
			continue
		}
		out = append(out, rec)
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (t *Timeline) Count(_ context.Context) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int64(len(t.records)), nil
}

// Records returns a copy of the stored records in insert order.
func (t *Timeline) Records() []timeline.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]timeline.Record, len(t.records))
	copy(out, t.records)
	return out
}

// Writes returns the size of every successful batch write, in order.
func (t *Timeline) Writes() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	sizes := make([]int, len(t.writes))
	for i, w := range t.writes {
		sizes[i] = len(w)
	}
	return sizes
}

func containsSource(sources []timeline.SourceKind, s timeline.SourceKind) bool {
	for _, src := range sources {
		if src == s {
			return true
		}
	}
	return false
}

// Watermarks is an in-memory watermark.Store.
type Watermarks struct {
	mu    sync.Mutex
	marks map[watermark.Kind]watermark.Watermark
}

// NewWatermarks creates an empty Watermarks store.
func NewWatermarks() *Watermarks {
	return &Watermarks{marks: make(map[watermark.Kind]watermark.Watermark)}
}

func (w *Watermarks) Get(_ context.Context, kind watermark.Kind) (watermark.Watermark, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.marks[kind], nil
}

func (w *Watermarks) Set(_ context.Context, kind watermark.Kind, oldest, newest *int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	mark := w.marks[kind]
	if oldest != nil {
		mark.Oldest = *oldest
	}
	if newest != nil {
		mark.Newest = *newest
	}
	w.marks[kind] = mark
	return nil
}

// Put overwrites the watermark for kind.
func (w *Watermarks) Put(kind watermark.Kind, mark watermark.Watermark) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.marks[kind] = mark
}
