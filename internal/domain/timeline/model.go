package timeline

// SourceKind identifies where a timeline record came from.
type SourceKind string

const (
	SourceRemoteStatus SourceKind = "remote_status"
	SourceCall         SourceKind = "call"
	SourceSMS          SourceKind = "sms"
	SourceMMS          SourceKind = "mms"
)

// Direction is only meaningful for calls and messages.
type Direction string

const (
	DirectionNone     Direction = ""
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionMissed   Direction = "missed"
)

// Record is the unified, source-agnostic timeline entry. Timestamp is in
// milliseconds since epoch on the device clock.
type Record struct {
	ID          int64      `json:"id,omitempty"`
	NativeID    string     `json:"native_id"`
	Source      SourceKind `json:"source"`
	Direction   Direction  `json:"direction,omitempty"`
	Timestamp   int64      `json:"timestamp"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`

	LocalContactID  *int64 `json:"local_contact_id,omitempty"`
	RemoteContactID *int64 `json:"remote_contact_id,omitempty"`
	RemoteUserID    *int64 `json:"remote_user_id,omitempty"`
	ContactName     string `json:"contact_name,omitempty"`
	ContactNetwork  string `json:"contact_network,omitempty"`

	// Remote-sourced records only.
	ActivityID       string `json:"activity_id,omitempty"`
	ParentActivityID string `json:"parent_activity_id,omitempty"`
	HasChildren      bool   `json:"has_children,omitempty"`
	Flags            int64  `json:"flags,omitempty"`
}

// IsRemote reports whether the record mirrors a remote activity.
func (r Record) IsRemote() bool {
	return r.Source == SourceRemoteStatus
}

// Bounds returns the minimum and maximum timestamps in records. ok is false
// when records is empty.
func Bounds(records []Record) (minTS, maxTS int64, ok bool) {
	if len(records) == 0 {
		return 0, 0, false
	}
	minTS, maxTS = records[0].Timestamp, records[0].Timestamp
	for _, rec := range records[1:] {
		if rec.Timestamp < minTS {
			minTS = rec.Timestamp
		}
		if rec.Timestamp > maxTS {
			maxTS = rec.Timestamp
		}
	}
	return minTS, maxTS, true
}
