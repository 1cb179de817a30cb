package devicelog

import (
	"context"
	"strconv"
	"strings"

	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
)

// SMSType is the native sms type column.
type SMSType int

const (
	SMSInbox  SMSType = 1
	SMSSent   SMSType = 2
	SMSDraft  SMSType = 3
	SMSOutbox SMSType = 4
	SMSFailed SMSType = 5
	SMSQueued SMSType = 6
)

// SMSEvent is one row of the native sms table.
type SMSEvent struct {
	ID       int64
	Date     int64 // milliseconds
	Address  string
	Subject  string
	Body     string
	Type     SMSType
	ThreadID int64
}

// Millis implements Event.
func (e SMSEvent) Millis() int64 { return e.Date }

// MessageLogReader runs the SMS sub-phase and then the MMS sub-phase. Each
// sub-phase keeps its own pair of watermarks.
type MessageLogReader struct {
	phases  []Reader
	current int
	updated bool
}

// NewMessageLogReader creates the message log phase reader.
func NewMessageLogReader(sms Source[SMSEvent], mms Source[MMSEvent], deps Deps, refresh bool) *MessageLogReader {
	deps = deps.withDefaults()
	decoder := MMSDecoder{Logger: deps.Logger}
	return &MessageLogReader{
		phases: []Reader{
			NewPager(watermark.KindSMS, refresh, sms, deps.smsRecord, deps),
			NewPager(watermark.KindMMS, refresh, mms, func(ctx context.Context, e MMSEvent) (timeline.Record, error) {
				return deps.mmsRecord(ctx, decoder, e)
			}, deps),
		},
	}
}

// Run implements Reader.
func (r *MessageLogReader) Run(ctx context.Context) (Progress, error) {
	if r.current >= len(r.phases) {
		return Progress{Done: true, Updated: r.updated}, nil
	}
	progress, err := r.phases[r.current].Run(ctx)
	if err != nil {
		r.Cancel()
		return Progress{}, err
	}
	r.updated = r.updated || progress.Updated
	if progress.Done {
		r.current++
	}
	return Progress{Done: r.current >= len(r.phases), Updated: r.updated}, nil
}

// Cancel implements Reader.
func (r *MessageLogReader) Cancel() {
	for _, phase := range r.phases {
		phase.Cancel()
	}
	r.current = 0
	r.updated = false
}

func (d Deps) smsRecord(ctx context.Context, e SMSEvent) (timeline.Record, error) {
	if e.Type == SMSDraft {
		return timeline.Record{}, ErrSkip
	}
	direction := timeline.DirectionOutgoing
	if e.Type == SMSInbox {
		direction = timeline.DirectionIncoming
	}
	text := e.Body
	if strings.TrimSpace(text) == "" {
		text = e.Subject
	}
	rec := timeline.Record{
		NativeID:    strconv.FormatInt(e.ID, 10),
		Source:      timeline.SourceSMS,
		Direction:   direction,
		Timestamp:   e.Date,
		Title:       timeline.FormatTitle(e.Date, d.Location),
		Description: timeline.CapDescription(text, d.DescriptionCap),
	}
	d.resolveContact(ctx, &rec, e.Address)
	return rec, nil
}

func (d Deps) mmsRecord(ctx context.Context, decoder MMSDecoder, e MMSEvent) (timeline.Record, error) {
	if e.Box == MMSBoxDrafts {
		return timeline.Record{}, ErrSkip
	}
	rec := timeline.Record{
		NativeID:    strconv.FormatInt(e.ID, 10),
		Source:      timeline.SourceMMS,
		Direction:   decoder.Direction(e),
		Timestamp:   e.Date,
		Title:       timeline.FormatTitle(e.Date, d.Location),
		Description: timeline.CapDescription(decoder.Description(e), d.DescriptionCap),
	}
	d.resolveContact(ctx, &rec, decoder.Address(e))
	return rec, nil
}
