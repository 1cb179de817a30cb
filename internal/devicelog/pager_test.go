package devicelog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rpggio/feedsync/internal/domain/contact"
	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/rpggio/feedsync/internal/repository/memstore"
	"github.com/rpggio/feedsync/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newDeps() (Deps, *memstore.Timeline, *memstore.Watermarks) {
	store := memstore.NewTimeline()
	marks := memstore.NewWatermarks()
	return Deps{
		Timeline:   store,
		Watermarks: marks,
		Policy:     DefaultPolicy(),
		Location:   time.UTC,
	}, store, marks
}

// calls returns n call events with timestamps 1000, 2000, ... n*1000.
func calls(n int) []CallEvent {
	events := make([]CallEvent, n)
	for i := range events {
		events[i] = CallEvent{
			ID:     int64(i + 1),
			Number: fmt.Sprintf("+1555000%04d", i+1),
			Date:   int64(i+1) * 1000,
			Type:   CallIncoming,
		}
	}
	return events
}

// fixedSource replays events in the given order and ignores the query bound.
type fixedSource struct {
	events []CallEvent
}

func (s *fixedSource) Open(_ context.Context, q Query) (Cursor[CallEvent], error) {
	return &sliceCursor[CallEvent]{events: s.events, size: q.PageSize}, nil
}

func runToDone(t *testing.T, r Reader) (Progress, int) {
	t.Helper()
	for i := 1; i <= 100; i++ {
		progress, err := r.Run(context.Background())
		require.NoError(t, err)
		if progress.Done {
			return progress, i
		}
	}
	t.Fatal("reader never finished")
	return Progress{}, 0
}

func TestPager_OlderInvocationIsCapped(t *testing.T) {
	deps, store, marks := newDeps()
	marks.Put(watermark.KindCall, watermark.Watermark{Oldest: 1_000_000, Newest: 2_000_000})
	reader := NewCallLogReader(&SliceSource[CallEvent]{Events: calls(25)}, deps, false)

	progress, err := reader.Run(context.Background())
	require.NoError(t, err)
	require.False(t, progress.Done)
	require.True(t, progress.Updated)
	require.Equal(t, []int{10, 10}, store.Writes())

	w, _ := marks.Get(context.Background(), watermark.KindCall)
	require.Equal(t, watermark.Watermark{Oldest: 6000, Newest: 2_000_000}, w)

	progress, err = reader.Run(context.Background())
	require.NoError(t, err)
	require.True(t, progress.Done)
	require.True(t, progress.Updated)
	require.Equal(t, []int{10, 10, 5}, store.Writes())

	w, _ = marks.Get(context.Background(), watermark.KindCall)
	require.Equal(t, int64(1000), w.Oldest)
}

func TestPager_PaginationCompleteness(t *testing.T) {
	for _, k := range []int{0, 1, 2, 3, 9, 10, 11, 19, 20, 21, 23, 37, 100} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			deps, store, _ := newDeps()
			reader := NewCallLogReader(&SliceSource[CallEvent]{Events: calls(k)}, deps, true)

			progress, _ := runToDone(t, reader)
			require.Equal(t, k > 0, progress.Updated)

			records := store.Records()
			require.Len(t, records, k)
			seen := make(map[string]struct{}, k)
			for _, rec := range records {
				_, dup := seen[rec.NativeID]
				require.False(t, dup, "duplicate record %s", rec.NativeID)
				seen[rec.NativeID] = struct{}{}
			}
		})
	}
}

func TestPager_RefreshStopsAtNewest(t *testing.T) {
	deps, store, marks := newDeps()
	marks.Put(watermark.KindCall, watermark.Watermark{Oldest: 1000, Newest: 5000})
	events := calls(9)
	reversed := make([]CallEvent, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		reversed = append(reversed, events[i])
	}
	reader := NewCallLogReader(&fixedSource{events: reversed}, deps, true)

	progress, _ := runToDone(t, reader)
	require.True(t, progress.Updated)

	records := store.Records()
	require.Len(t, records, 4)
	for _, rec := range records {
		require.Greater(t, rec.Timestamp, int64(5000))
	}
	w, _ := marks.Get(context.Background(), watermark.KindCall)
	require.Equal(t, watermark.Watermark{Oldest: 1000, Newest: 9000}, w)
}

func TestPager_OlderStopsAtOldest(t *testing.T) {
	deps, store, marks := newDeps()
	marks.Put(watermark.KindCall, watermark.Watermark{Oldest: 5000, Newest: 9000})
	reader := NewCallLogReader(&SliceSource[CallEvent]{Events: calls(9)}, deps, false)

	runToDone(t, reader)

	records := store.Records()
	require.Len(t, records, 4)
	for _, rec := range records {
		require.Less(t, rec.Timestamp, int64(5000))
	}
	w, _ := marks.Get(context.Background(), watermark.KindCall)
	require.Equal(t, watermark.Watermark{Oldest: 1000, Newest: 9000}, w)
}

func TestPager_OlderStopsAtOutOfOrderEvent(t *testing.T) {
	deps, store, marks := newDeps()
	marks.Put(watermark.KindCall, watermark.Watermark{Oldest: 5000, Newest: 9000})
	events := []CallEvent{
		{ID: 4, Date: 4000},
		{ID: 3, Date: 3000},
		{ID: 7, Date: 7000},
		{ID: 2, Date: 2000},
	}
	reader := NewCallLogReader(&fixedSource{events: events}, deps, false)

	runToDone(t, reader)

	records := store.Records()
	require.Len(t, records, 2)
	require.Equal(t, "4", records[0].NativeID)
	require.Equal(t, "3", records[1].NativeID)
}

func TestPager_NothingNewIsNotUpdated(t *testing.T) {
	deps, store, marks := newDeps()
	marks.Put(watermark.KindCall, watermark.Watermark{Oldest: 1000, Newest: 9000})
	reader := NewCallLogReader(&SliceSource[CallEvent]{Events: calls(9)}, deps, true)

	progress, invocations := runToDone(t, reader)
	require.False(t, progress.Updated)
	require.Equal(t, 1, invocations)
	require.Empty(t, store.Writes())
}

func TestPager_CancelIsIdempotentAndRestarts(t *testing.T) {
	deps, store, marks := newDeps()
	marks.Put(watermark.KindCall, watermark.Watermark{Oldest: 1_000_000, Newest: 2_000_000})
	reader := NewCallLogReader(&SliceSource[CallEvent]{Events: calls(25)}, deps, false)

	_, err := reader.Run(context.Background())
	require.NoError(t, err)

	reader.Cancel()
	reader.Cancel()

	progress, invocations := runToDone(t, reader)
	require.True(t, progress.Updated)
	require.Equal(t, 1, invocations)
	require.Len(t, store.Records(), 25)
}

func TestPager_RefreshCommitsNewestWhenDone(t *testing.T) {
	deps, store, marks := newDeps()
	marks.Put(watermark.KindCall, watermark.Watermark{Oldest: 500, Newest: 500})
	reader := NewCallLogReader(&SliceSource[CallEvent]{Events: calls(30)}, deps, true)

	progress, err := reader.Run(context.Background())
	require.NoError(t, err)
	require.False(t, progress.Done)
	require.Equal(t, []int{10, 10}, store.Writes())

	// Rows 1000..10000 are unread, so newest must not move yet.
	w, _ := marks.Get(context.Background(), watermark.KindCall)
	require.Equal(t, watermark.Watermark{Oldest: 500, Newest: 500}, w)

	reader.Cancel()
	runToDone(t, reader)

	seen := make(map[string]struct{})
	for _, rec := range store.Records() {
		seen[rec.NativeID] = struct{}{}
	}
	require.Len(t, seen, 30)

	w, _ = marks.Get(context.Background(), watermark.KindCall)
	require.Equal(t, watermark.Watermark{Oldest: 500, Newest: 30_000}, w)
}

func TestPager_SourceError(t *testing.T) {
	deps, _, _ := newDeps()
	reader := NewCallLogReader(&SliceSource[CallEvent]{Err: errors.New("provider gone")}, deps, true)

	_, err := reader.Run(context.Background())
	require.ErrorContains(t, err, "provider gone")
}

func TestPager_WriteErrorLeavesWatermark(t *testing.T) {
	deps, store, marks := newDeps()
	store.WriteErr = errors.New("disk full")
	reader := NewCallLogReader(&SliceSource[CallEvent]{Events: calls(3)}, deps, true)

	_, err := reader.Run(context.Background())
	require.ErrorContains(t, err, "disk full")

	w, _ := marks.Get(context.Background(), watermark.KindCall)
	require.False(t, w.IsSet())
}

func TestCallLogReader_ResolvesContacts(t *testing.T) {
	deps, store, _ := newDeps()
	resolver := &mocks.ContactResolver{}
	contactID, localID := int64(12), int64(3)
	resolver.On("LookupByAddress", mock.Anything, "+1 555 0100").Return(&contact.Match{
		ContactID:   &contactID,
		LocalID:     &localID,
		DisplayName: "Ada",
		NetworkTag:  "jabber",
	}, nil)
	resolver.On("LookupByAddress", mock.Anything, "(555) 0199").Return(nil, nil)
	deps.Contacts = resolver

	events := []CallEvent{
		{ID: 1, Number: "+1 555 0100", Date: 60_000, Type: CallOutgoing},
		{ID: 2, Number: "(555) 0199", Date: 120_000, Type: CallMissed},
		{ID: 3, Number: "", Date: 180_000, Type: CallIncoming},
	}
	reader := NewCallLogReader(&SliceSource[CallEvent]{Events: events}, deps, true)
	runToDone(t, reader)

	records := store.Records()
	require.Len(t, records, 3)

	byID := make(map[string]timeline.Record)
	for _, rec := range records {
		byID[rec.NativeID] = rec
	}

	known := byID["1"]
	require.Equal(t, timeline.SourceCall, known.Source)
	require.Equal(t, timeline.DirectionOutgoing, known.Direction)
	require.Equal(t, "Ada", known.ContactName)
	require.Equal(t, "jabber", known.ContactNetwork)
	require.Equal(t, &contactID, known.RemoteContactID)
	require.Equal(t, &localID, known.LocalContactID)
	require.Equal(t, "Thu Jan 1 00:01", known.Title)

	unknown := byID["2"]
	require.Equal(t, timeline.DirectionMissed, unknown.Direction)
	require.Equal(t, "5550199", unknown.ContactName)
	require.Nil(t, unknown.LocalContactID)

	require.Equal(t, "", byID["3"].ContactName)
	resolver.AssertExpectations(t)
}

func TestQuery_Crosses(t *testing.T) {
	require.False(t, Query{Refresh: true}.Crosses(1))
	require.True(t, Query{Refresh: true, Bound: 10}.Crosses(10))
	require.False(t, Query{Refresh: true, Bound: 10}.Crosses(11))
	require.True(t, Query{Bound: 10}.Crosses(10))
	require.False(t, Query{Bound: 10}.Crosses(9))
}
