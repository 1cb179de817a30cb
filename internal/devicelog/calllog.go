package devicelog

import (
	"context"
	"strconv"

	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
)

// CallType is the native call log type column.
type CallType int

const (
	CallIncoming  CallType = 1
	CallOutgoing  CallType = 2
	CallMissed    CallType = 3
	CallVoicemail CallType = 4
	CallRejected  CallType = 5
	CallBlocked   CallType = 6
)

// CallEvent is one row of the native call log.
type CallEvent struct {
	ID     int64
	Number string
	Date   int64 // milliseconds
	Type   CallType
}

// Millis implements Event.
func (e CallEvent) Millis() int64 { return e.Date }

// NewCallLogReader creates the call log phase reader.
func NewCallLogReader(source Source[CallEvent], deps Deps, refresh bool) *Pager[CallEvent] {
	deps = deps.withDefaults()
	return NewPager(watermark.KindCall, refresh, source, deps.callRecord, deps)
}

func (d Deps) callRecord(ctx context.Context, e CallEvent) (timeline.Record, error) {
	direction, label := callDirection(e.Type)
	rec := timeline.Record{
		NativeID:    strconv.FormatInt(e.ID, 10),
		Source:      timeline.SourceCall,
		Direction:   direction,
		Timestamp:   e.Date,
		Title:       timeline.FormatTitle(e.Date, d.Location),
		Description: label,
	}
	d.resolveContact(ctx, &rec, e.Number)
	return rec, nil
}

func callDirection(t CallType) (timeline.Direction, string) {
	switch t {
	case CallOutgoing:
		return timeline.DirectionOutgoing, "Outgoing call"
	case CallMissed, CallRejected, CallBlocked:
		return timeline.DirectionMissed, "Missed call"
	case CallVoicemail:
		return timeline.DirectionIncoming, "Voicemail"
	default:
		return timeline.DirectionIncoming, "Incoming call"
	}
}
