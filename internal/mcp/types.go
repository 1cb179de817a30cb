package mcp

import (
	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/rpggio/feedsync/internal/engine"
)

type SyncParams struct {
	NoWait bool `json:"no_wait,omitempty" jsonschema:"return immediately instead of waiting for the sync result"`
}

type DeviceChangedParams struct {
	Log    string `json:"log" jsonschema:"device log that changed: calllog or messagelog"`
	NoWait bool   `json:"no_wait,omitempty" jsonschema:"return immediately instead of waiting for the sync result"`
}

type SyncOutput struct {
	Op           string `json:"op"`
	Status       string `json:"status"`
	Pending      bool   `json:"pending,omitempty"`
	Error        string `json:"error,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

type ListTimelineParams struct {
	Sources []string `json:"sources,omitempty" jsonschema:"only these sources: remote_status, call, sms, mms"`
	Before  int64    `json:"before,omitempty" jsonschema:"only records strictly older than this epoch millisecond"`
	Limit   int      `json:"limit,omitempty" jsonschema:"maximum number of records"`
	Offset  int      `json:"offset,omitempty" jsonschema:"records to skip"`
}

type TimelineEntry struct {
	ID          int64  `json:"id"`
	Source      string `json:"source"`
	Direction   string `json:"direction,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ContactName string `json:"contact_name,omitempty"`
	ActivityID  string `json:"activity_id,omitempty"`
	ParentID    string `json:"parent_activity_id,omitempty"`
}

type ListTimelineOutput struct {
	Records []TimelineEntry `json:"records"`
	Total   int64           `json:"total"`
}

type GetSyncStatusParams struct{}

type WatermarkEntry struct {
	Kind   string `json:"kind"`
	Oldest int64  `json:"oldest"`
	Newest int64  `json:"newest"`
}

type SyncStatusOutput struct {
	Busy        bool             `json:"busy"`
	BusyReasons []string         `json:"busy_reasons"`
	Phase       string           `json:"phase"`
	LastOp      string           `json:"last_op,omitempty"`
	LastStatus  string           `json:"last_status,omitempty"`
	LastError   string           `json:"last_error,omitempty"`
	Watermarks  []WatermarkEntry `json:"watermarks"`
}

func syncOutput(op engine.Op, res engine.Result, pending bool) SyncOutput {
	if pending {
		return SyncOutput{Op: op.String(), Status: "pending", Pending: true}
	}
	out := SyncOutput{Op: res.Op.String(), Status: res.Status.String(), Error: res.Message()}
	if !res.Status.OK() {
		out.RecoveryHint = statusHint(res.Status)
	}
	return out
}

func timelineEntry(r timeline.Record) TimelineEntry {
	return TimelineEntry{
		ID:          r.ID,
		Source:      string(r.Source),
		Direction:   string(r.Direction),
		Timestamp:   r.Timestamp,
		Title:       r.Title,
		Description: r.Description,
		ContactName: r.ContactName,
		ActivityID:  r.ActivityID,
		ParentID:    r.ParentActivityID,
	}
}

func watermarkEntry(kind watermark.Kind, w watermark.Watermark) WatermarkEntry {
	return WatermarkEntry{Kind: string(kind), Oldest: w.Oldest, Newest: w.Newest}
}
