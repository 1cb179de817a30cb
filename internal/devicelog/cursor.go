package devicelog

import (
	"context"
	"sort"

	"github.com/rpggio/feedsync/internal/domain/watermark"
)

// Event is a raw device log row that knows its timestamp in milliseconds.
type Event interface {
	Millis() int64
}

// Query bounds one scan of a device log. Scans are always newest first.
// With Refresh set the scan covers events newer than Bound, otherwise events
// older than Bound. An unset Bound leaves that side open.
type Query struct {
	Refresh  bool
	Bound    int64
	PageSize int
}

// Crosses reports whether ts lies on the already-synced side of the bound.
func (q Query) Crosses(ts int64) bool {
	if q.Bound == watermark.Unset {
		return false
	}
	if q.Refresh {
		return ts <= q.Bound
	}
	return ts >= q.Bound
}

// Cursor yields pages of raw events. An empty page means the cursor is exhausted.
type Cursor[T Event] interface {
	Next(ctx context.Context) ([]T, error)
	Close() error
}

// Source opens cursors over one device log.
type Source[T Event] interface {
	Open(ctx context.Context, q Query) (Cursor[T], error)
}

// SliceSource serves events from memory, newest first, filtered by the query
// bound the same way a provider query is.
type SliceSource[T Event] struct {
	Events []T
	// Err, when set, is returned by Open.
	Err error
}

// Open implements Source.
func (s *SliceSource[T]) Open(_ context.Context, q Query) (Cursor[T], error) {
	if s.Err != nil {
		return nil, s.Err
	}
	events := make([]T, 0, len(s.Events))
	for _, e := range s.Events {
		if !q.Crosses(e.Millis()) {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Millis() > events[j].Millis()
	})
	size := q.PageSize
	if size <= 0 {
		size = 1
	}
	return &sliceCursor[T]{events: events, size: size}, nil
}

type sliceCursor[T Event] struct {
	events []T
	pos    int
	size   int
	closed bool
}

func (c *sliceCursor[T]) Next(_ context.Context) ([]T, error) {
	if c.closed || c.pos >= len(c.events) {
		return nil, nil
	}
	end := c.pos + c.size
	if end > len(c.events) {
		end = len(c.events)
	}
	page := c.events[c.pos:end]
	c.pos = end
	return page, nil
}

func (c *sliceCursor[T]) Close() error {
	c.closed = true
	return nil
}
