package mcp

import (
	"context"
	"encoding/json"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/rpggio/feedsync/internal/engine"
	"github.com/rpggio/feedsync/internal/repository/memstore"
)

// fakeSync answers every request with a fixed status.
type fakeSync struct {
	status  engine.Status
	pending bool
	kinds   []engine.DeviceKind
}

func (f *fakeSync) result(op engine.Op) <-chan engine.Result {
	ch := make(chan engine.Result, 1)
	if !f.pending {
		ch <- engine.Result{Op: op, Status: f.status}
	}
	return ch
}

func (f *fakeSync) RequestRefresh() <-chan engine.Result { return f.result(engine.OpRefresh) }
func (f *fakeSync) RequestOlder() <-chan engine.Result   { return f.result(engine.OpOlder) }
func (f *fakeSync) RequestDeviceChanged(kind engine.DeviceKind) <-chan engine.Result {
	f.kinds = append(f.kinds, kind)
	return f.result(engine.OpDeviceChanged)
}

type fixture struct {
	session *sdkmcp.ClientSession
	sync    *fakeSync
	store   *memstore.Timeline
	marks   *memstore.Watermarks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		sync:  &fakeSync{status: engine.StatusSuccess},
		store: memstore.NewTimeline(),
		marks: memstore.NewWatermarks(),
	}
	server := NewServer(Config{
		Services: Services{
			Sync:       f.sync,
			Timeline:   timeline.NewService(f.store, nil),
			Status:     engine.NewStatusCache(),
			Watermarks: f.marks,
		},
		TransportMode: "stdio",
	})

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})
	f.session = cs
	return f
}

func (f *fixture) call(t *testing.T, name string, args map[string]any, out any) *sdkmcp.CallToolResult {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := f.session.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	if out != nil && !res.IsError {
		text, ok := res.Content[0].(*sdkmcp.TextContent)
		require.True(t, ok)
		require.NoError(t, json.Unmarshal([]byte(text.Text), out))
	}
	return res
}

func TestTools_Listed(t *testing.T) {
	f := newFixture(t)
	res, err := f.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{"refresh_timeline", "load_older", "device_changed", "list_timeline", "get_sync_status"}, names)
}

func TestRefreshTimeline(t *testing.T) {
	f := newFixture(t)
	var out SyncOutput
	f.call(t, "refresh_timeline", nil, &out)
	require.Equal(t, SyncOutput{Op: "refresh", Status: "success"}, out)

	f.sync.status = engine.StatusNoConnectivity
	f.call(t, "load_older", nil, &out)
	require.Equal(t, "older", out.Op)
	require.Equal(t, "no_connectivity", out.Status)
	require.NotEmpty(t, out.RecoveryHint)
}

func TestRefreshTimeline_NoWait(t *testing.T) {
	f := newFixture(t)
	f.sync.pending = true
	var out SyncOutput
	f.call(t, "refresh_timeline", map[string]any{"no_wait": true}, &out)
	require.True(t, out.Pending)
	require.Equal(t, "pending", out.Status)
}

func TestDeviceChanged(t *testing.T) {
	f := newFixture(t)
	f.sync.status = engine.StatusUpdatedFromDevice

	var out SyncOutput
	f.call(t, "device_changed", map[string]any{"log": "messagelog"}, &out)
	require.Equal(t, "updated_from_device", out.Status)
	require.Equal(t, []engine.DeviceKind{engine.DeviceMessageLog}, f.sync.kinds)

	res := f.call(t, "device_changed", map[string]any{"log": "fax"}, nil)
	require.True(t, res.IsError)
	require.Contains(t, res.Content[0].(*sdkmcp.TextContent).Text, "UNKNOWN_DEVICE_LOG")
}

func TestListTimeline(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.WriteTimelineBatch(context.Background(), []timeline.Record{
		{NativeID: "1", Source: timeline.SourceRemoteStatus, Timestamp: 1_000, Title: "a", ActivityID: "1"},
		{NativeID: "2", Source: timeline.SourceCall, Timestamp: 2_000, Title: "b", Direction: timeline.DirectionMissed},
		{NativeID: "3", Source: timeline.SourceSMS, Timestamp: 3_000, Title: "c"},
	}))

	var out ListTimelineOutput
	f.call(t, "list_timeline", nil, &out)
	require.Equal(t, int64(3), out.Total)
	require.Len(t, out.Records, 3)
	require.Equal(t, "sms", out.Records[0].Source)

	f.call(t, "list_timeline", map[string]any{"sources": []string{"call"}}, &out)
	require.Len(t, out.Records, 1)
	require.Equal(t, "missed", out.Records[0].Direction)

	res := f.call(t, "list_timeline", map[string]any{"sources": []string{"fax"}}, nil)
	require.True(t, res.IsError)
}

func TestGetSyncStatus(t *testing.T) {
	f := newFixture(t)
	f.marks.Put(watermark.KindCall, watermark.Watermark{Oldest: 10, Newest: 20})

	var out SyncStatusOutput
	f.call(t, "get_sync_status", nil, &out)
	require.False(t, out.Busy)
	require.Equal(t, "idle", out.Phase)
	require.Len(t, out.Watermarks, len(watermark.Kinds))
	require.Contains(t, out.Watermarks, WatermarkEntry{Kind: "call", Oldest: 10, Newest: 20})
}

func TestDocResource(t *testing.T) {
	f := newFixture(t)
	res, err := f.session.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: "feedsync://docs/overview"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Contains(t, res.Contents[0].Text, "Watermarks")
}

func TestMapError(t *testing.T) {
	require.Nil(t, MapError(nil))
	require.Equal(t, "UNKNOWN_SOURCE", MapError(timeline.ErrUnknownSource).Code)
	_, err := engine.ParseDeviceKind("fax")
	require.Equal(t, "UNKNOWN_DEVICE_LOG", MapError(err).Code)
	require.Equal(t, "INTERNAL_ERROR", MapError(context.Canceled).Code)
}
