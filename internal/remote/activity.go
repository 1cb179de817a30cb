package remote

import (
	"time"

	"github.com/rpggio/feedsync/internal/domain/timeline"
)

// Activity is one decoded remote status activity. Time is in unix seconds.
type Activity struct {
	ID          string
	ParentID    string
	Time        int64
	Text        string
	ContactID   *int64
	UserID      *int64
	ContactName string
	Network     string
	HasChildren bool
	Flags       int64
}

// Batch is the decoded result of one fetch.
type Batch struct {
	Activities []Activity
	// Dropped counts records that failed to decode and were skipped.
	Dropped int
}

// Records converts the batch into timeline records with millisecond timestamps.
func (b *Batch) Records(loc *time.Location, descriptionCap int) []timeline.Record {
	if b == nil {
		return nil
	}
	records := make([]timeline.Record, 0, len(b.Activities))
	for _, a := range b.Activities {
		ts := a.Time * 1000
		records = append(records, timeline.Record{
			NativeID:         a.ID,
			Source:           timeline.SourceRemoteStatus,
			Timestamp:        ts,
			Title:            timeline.FormatTitle(ts, loc),
			Description:      timeline.CapDescription(a.Text, descriptionCap),
			RemoteContactID:  a.ContactID,
			RemoteUserID:     a.UserID,
			ContactName:      a.ContactName,
			ContactNetwork:   a.Network,
			ActivityID:       a.ID,
			ParentActivityID: a.ParentID,
			HasChildren:      a.HasChildren,
			Flags:            a.Flags,
		})
	}
	return records
}
