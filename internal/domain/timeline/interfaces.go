package timeline

import "context"

// Store persists timeline records. It is the only durable copy of the merged timeline.
type Store interface {
	WriteTimelineBatch(ctx context.Context, records []Record) error
	// ExistingActivityIDs returns the remote activity ids stored with timestamp >= minTimestamp.
	ExistingActivityIDs(ctx context.Context, minTimestamp int64) (map[string]struct{}, error)
	PruneTimeline(ctx context.Context) (int64, error)
	List(ctx context.Context, opts ListOptions) ([]Record, error)
	Count(ctx context.Context) (int64, error)
}
