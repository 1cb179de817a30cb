package devicelog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/feedsync/internal/domain/contact"
	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
)

// ErrSkip is returned by a converter for raw events that have no timeline entry.
var ErrSkip = errors.New("event skipped")

// Policy is the paging policy shared by all device log readers.
type Policy struct {
	PageSize  int // raw events per cursor page
	BatchSize int // records per store write
	MaxPages  int // pages per invocation
}

// DefaultPolicy returns the reference paging policy.
func DefaultPolicy() Policy {
	return Policy{PageSize: 2, BatchSize: 10, MaxPages: 10}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.PageSize <= 0 {
		p.PageSize = def.PageSize
	}
	if p.BatchSize <= 0 {
		p.BatchSize = def.BatchSize
	}
	if p.MaxPages <= 0 {
		p.MaxPages = def.MaxPages
	}
	return p
}

// Progress reports where a reader stands after one invocation.
type Progress struct {
	// Done is set once the scan is exhausted or crossed its bound.
	Done bool
	// Updated is set once any watermark moved during the phase.
	Updated bool
}

// Reader is a resumable device log phase. Each Run advances at most one
// invocation's worth of pages.
type Reader interface {
	Run(ctx context.Context) (Progress, error)
	// Cancel releases the cursor and resets the reader. It is idempotent.
	Cancel()
}

// Deps are the collaborators shared by all device log readers.
type Deps struct {
	Timeline       timeline.Store
	Watermarks     watermark.Store
	Contacts       contact.Resolver
	Policy         Policy
	Location       *time.Location
	DescriptionCap int
	Logger         *slog.Logger
}

func (d Deps) withDefaults() Deps {
	d.Policy = d.Policy.withDefaults()
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.DescriptionCap <= 0 {
		d.DescriptionCap = timeline.MaxDescriptionRunes
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// ConvertFunc turns a raw event into a timeline record.
type ConvertFunc[T Event] func(ctx context.Context, raw T) (timeline.Record, error)

// Pager drives a Source through the paging policy, writes batches to the
// timeline store and extends the watermark for its kind after each write.
// A refresh scan runs newest first, so its newest bound is only persisted
// once the scan reaches the previous newest.
type Pager[T Event] struct {
	kind    watermark.Kind
	refresh bool
	source  Source[T]
	convert ConvertFunc[T]
	deps    Deps
	logger  *slog.Logger

	cursor  Cursor[T]
	query   Query
	batch   []timeline.Record
	updated bool
	done    bool
	// pendingNewest is the newest timestamp written by an unfinished
	// refresh scan. It is persisted once the scan completes.
	pendingNewest int64
}

// NewPager creates a pager for one kind. With refresh set it fills in events
// newer than the newest watermark, otherwise events older than the oldest.
func NewPager[T Event](kind watermark.Kind, refresh bool, source Source[T], convert ConvertFunc[T], deps Deps) *Pager[T] {
	deps = deps.withDefaults()
	return &Pager[T]{
		kind:    kind,
		refresh: refresh,
		source:  source,
		convert: convert,
		deps:    deps,
		logger:  deps.Logger.With("kind", kind, "refresh", refresh),
	}
}

// Run implements Reader.
func (p *Pager[T]) Run(ctx context.Context) (Progress, error) {
	if p.done {
		return p.progress(), nil
	}
	if p.cursor == nil {
		if err := p.open(ctx); err != nil {
			return Progress{}, err
		}
	}

	pages := 0
	exhausted := false
	for pages < p.deps.Policy.MaxPages && !exhausted {
		page, err := p.cursor.Next(ctx)
		if err != nil {
			p.Cancel()
			return Progress{}, fmt.Errorf("reading %s page: %w", p.kind, err)
		}
		if len(page) == 0 {
			exhausted = true
			break
		}
		pages++

		for _, raw := range page {
			if p.query.Crosses(raw.Millis()) {
				p.logger.Debug("scan reached watermark", "timestamp", raw.Millis(), "bound", p.query.Bound)
				exhausted = true
				break
			}
			rec, err := p.convert(ctx, raw)
			if errors.Is(err, ErrSkip) {
				continue
			}
			if err != nil {
				p.Cancel()
				return Progress{}, fmt.Errorf("converting %s event: %w", p.kind, err)
			}
			p.batch = append(p.batch, rec)
			if len(p.batch) >= p.deps.Policy.BatchSize {
				if err := p.flush(ctx); err != nil {
					p.Cancel()
					return Progress{}, err
				}
			}
		}
	}

	if err := p.flush(ctx); err != nil {
		p.Cancel()
		return Progress{}, err
	}
	if exhausted {
		if err := p.commitNewest(ctx); err != nil {
			p.Cancel()
			return Progress{}, err
		}
		p.closeCursor()
		p.done = true
	}
	p.logger.Debug("device log invocation finished", "pages", pages, "done", p.done, "updated", p.updated)
	return p.progress(), nil
}

// Cancel implements Reader. Records read but not yet written are discarded.
func (p *Pager[T]) Cancel() {
	p.closeCursor()
	p.batch = nil
	p.updated = false
	p.done = false
	p.pendingNewest = watermark.Unset
}

func (p *Pager[T]) progress() Progress {
	return Progress{Done: p.done, Updated: p.updated}
}

func (p *Pager[T]) open(ctx context.Context) error {
	w, err := p.deps.Watermarks.Get(ctx, p.kind)
	if err != nil {
		return fmt.Errorf("reading %s watermark: %w", p.kind, err)
	}
	bound := w.Oldest
	if p.refresh {
		bound = w.Newest
	}
	p.query = Query{Refresh: p.refresh, Bound: bound, PageSize: p.deps.Policy.PageSize}

	cursor, err := p.source.Open(ctx, p.query)
	if err != nil {
		return fmt.Errorf("opening %s cursor: %w", p.kind, err)
	}
	p.cursor = cursor
	return nil
}

func (p *Pager[T]) closeCursor() {
	if p.cursor == nil {
		return
	}
	if err := p.cursor.Close(); err != nil {
		p.logger.Warn("failed to close device cursor", "error", err)
	}
	p.cursor = nil
}

func (p *Pager[T]) flush(ctx context.Context) error {
	if len(p.batch) == 0 {
		return nil
	}
	batch := p.batch
	p.batch = nil

	if err := p.deps.Timeline.WriteTimelineBatch(ctx, batch); err != nil {
		return fmt.Errorf("writing %s batch: %w", p.kind, err)
	}
	minTS, maxTS, _ := timeline.Bounds(batch)

	w, err := p.deps.Watermarks.Get(ctx, p.kind)
	if err != nil {
		return fmt.Errorf("reading %s watermark: %w", p.kind, err)
	}
	next, moved := w.Extend(minTS, maxTS)
	if !moved {
		return nil
	}
	p.updated = true
	var oldest, newest *int64
	if next.Oldest != w.Oldest {
		oldest = &next.Oldest
	}
	if next.Newest != w.Newest {
		if p.refresh {
			// Newer rows below this batch are still unread.
			p.pendingNewest = max(p.pendingNewest, next.Newest)
		} else {
			newest = &next.Newest
		}
	}
	p.logger.Debug("device batch written", "records", len(batch), "oldest", next.Oldest, "newest", next.Newest)
	if oldest == nil && newest == nil {
		return nil
	}
	if err := p.deps.Watermarks.Set(ctx, p.kind, oldest, newest); err != nil {
		return fmt.Errorf("extending %s watermark: %w", p.kind, err)
	}
	return nil
}

// commitNewest persists the newest timestamp of a completed refresh scan.
func (p *Pager[T]) commitNewest(ctx context.Context) error {
	if p.pendingNewest == watermark.Unset {
		return nil
	}
	newest := p.pendingNewest
	p.pendingNewest = watermark.Unset
	w, err := p.deps.Watermarks.Get(ctx, p.kind)
	if err != nil {
		return fmt.Errorf("reading %s watermark: %w", p.kind, err)
	}
	if newest <= w.Newest {
		return nil
	}
	if err := p.deps.Watermarks.Set(ctx, p.kind, nil, &newest); err != nil {
		return fmt.Errorf("extending %s watermark: %w", p.kind, err)
	}
	return nil
}

// resolveContact fills the contact fields of rec from address. When no
// contact matches, the normalized address stands in for the name.
func (d Deps) resolveContact(ctx context.Context, rec *timeline.Record, address string) {
	normalized := contact.NormalizeAddress(address)
	rec.ContactName = normalized
	if d.Contacts == nil || normalized == "" {
		return
	}
	m, err := d.Contacts.LookupByAddress(ctx, address)
	if err != nil {
		d.Logger.Warn("contact lookup failed", "address", normalized, "error", err)
		return
	}
	if m == nil {
		return
	}
	rec.LocalContactID = m.LocalID
	rec.RemoteContactID = m.ContactID
	rec.RemoteUserID = m.UserID
	if m.DisplayName != "" {
		rec.ContactName = m.DisplayName
	}
	rec.ContactNetwork = m.NetworkTag
}
