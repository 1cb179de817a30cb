package mcp

import (
	"context"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/rpggio/feedsync/internal/engine"
)

type toolHandlers struct {
	services    Services
	waitTimeout time.Duration
}

func registerTools(server *sdkmcp.Server, services Services, waitTimeout time.Duration) {
	h := &toolHandlers{services: services, waitTimeout: waitTimeout}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "refresh_timeline",
		Description: "Fetch new remote activities. The first refresh also imports the device call log and message log.",
	}, h.refreshTimeline)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "load_older",
		Description: "Fetch older remote activities, then the next older pages of the call log and message log.",
	}, h.loadOlder)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "device_changed",
		Description: "Import new entries after the device call log or message log changed.",
	}, h.deviceChanged)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_timeline",
		Description: "List merged timeline records, newest first.",
	}, h.listTimeline)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_sync_status",
		Description: "Report whether a sync is running, the last result and the watermarks per source.",
	}, h.getSyncStatus)
}

func (h *toolHandlers) refreshTimeline(ctx context.Context, _ *sdkmcp.CallToolRequest, in SyncParams) (*sdkmcp.CallToolResult, SyncOutput, error) {
	return nil, h.wait(ctx, engine.OpRefresh, h.services.Sync.RequestRefresh(), in.NoWait), nil
}

func (h *toolHandlers) loadOlder(ctx context.Context, _ *sdkmcp.CallToolRequest, in SyncParams) (*sdkmcp.CallToolResult, SyncOutput, error) {
	return nil, h.wait(ctx, engine.OpOlder, h.services.Sync.RequestOlder(), in.NoWait), nil
}

func (h *toolHandlers) deviceChanged(ctx context.Context, _ *sdkmcp.CallToolRequest, in DeviceChangedParams) (*sdkmcp.CallToolResult, SyncOutput, error) {
	kind, err := engine.ParseDeviceKind(in.Log)
	if err != nil {
		return nil, SyncOutput{}, MapError(err)
	}
	return nil, h.wait(ctx, engine.OpDeviceChanged, h.services.Sync.RequestDeviceChanged(kind), in.NoWait), nil
}

// wait blocks for the result unless noWait is set, the call is cancelled or
// the wait timeout passes. The operation keeps running in every case.
func (h *toolHandlers) wait(ctx context.Context, op engine.Op, ch <-chan engine.Result, noWait bool) SyncOutput {
	if noWait {
		select {
		case res := <-ch:
			return syncOutput(op, res, false)
		default:
			return syncOutput(op, engine.Result{}, true)
		}
	}
	timer := time.NewTimer(h.waitTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		return syncOutput(op, res, false)
	case <-timer.C:
	case <-ctx.Done():
	}
	return syncOutput(op, engine.Result{}, true)
}

func (h *toolHandlers) listTimeline(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListTimelineParams) (*sdkmcp.CallToolResult, ListTimelineOutput, error) {
	opts := timeline.ListOptions{Before: in.Before, Limit: in.Limit, Offset: in.Offset}
	for _, s := range in.Sources {
		src, err := timeline.ParseSourceKind(s)
		if err != nil {
			return nil, ListTimelineOutput{}, MapError(err)
		}
		opts.Sources = append(opts.Sources, src)
	}

	records, err := h.services.Timeline.List(ctx, opts)
	if err != nil {
		return nil, ListTimelineOutput{}, MapError(err)
	}
	total, err := h.services.Timeline.Count(ctx)
	if err != nil {
		return nil, ListTimelineOutput{}, MapError(err)
	}

	out := ListTimelineOutput{Records: make([]TimelineEntry, 0, len(records)), Total: total}
	for _, r := range records {
		out.Records = append(out.Records, timelineEntry(r))
	}
	return nil, out, nil
}

func (h *toolHandlers) getSyncStatus(ctx context.Context, _ *sdkmcp.CallToolRequest, _ GetSyncStatusParams) (*sdkmcp.CallToolResult, SyncStatusOutput, error) {
	snap := h.services.Status.Snapshot()
	out := SyncStatusOutput{
		Busy:        snap.Busy,
		BusyReasons: snap.BusyReasons,
		Phase:       snap.Phase.String(),
		LastError:   snap.LastError,
		Watermarks:  make([]WatermarkEntry, 0, len(watermark.Kinds)),
	}
	if out.BusyReasons == nil {
		out.BusyReasons = []string{}
	}
	if snap.LastResult != nil {
		out.LastOp = snap.LastResult.Op.String()
		out.LastStatus = snap.LastResult.Status.String()
	}
	for _, kind := range watermark.Kinds {
		w, err := h.services.Watermarks.Get(ctx, kind)
		if err != nil {
			return nil, SyncStatusOutput{}, MapError(fmt.Errorf("reading %s watermark: %w", kind, err))
		}
		out.Watermarks = append(out.Watermarks, watermarkEntry(kind, w))
	}
	return nil, out, nil
}
