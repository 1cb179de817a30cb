package devicelog

import (
	"context"
	"testing"

	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/stretchr/testify/require"
)

func TestMessageLogReader_SMSThenMMS(t *testing.T) {
	deps, store, marks := newDeps()

	sms := &SliceSource[SMSEvent]{Events: []SMSEvent{
		{ID: 1, Date: 1000, Address: "555-0100", Body: "hi there", Type: SMSInbox},
		{ID: 2, Date: 2000, Address: "555-0100", Body: "draft", Type: SMSDraft},
		{ID: 3, Date: 3000, Address: "555-0100", Body: "  ", Subject: "re: lunch", Type: SMSSent},
	}}
	mms := &SliceSource[MMSEvent]{Events: []MMSEvent{
		{
			ID: 10, Date: 5000, Box: MMSBoxInbox,
			Addresses: []MMSAddress{{Address: "555-0111", Type: AddrFrom}},
			Parts:     []MMSPart{{ContentType: "text/plain", Text: "picture!"}},
		},
	}}
	reader := NewMessageLogReader(sms, mms, deps, true)

	progress, err := reader.Run(context.Background())
	require.NoError(t, err)
	require.False(t, progress.Done)
	require.True(t, progress.Updated)

	progress, err = reader.Run(context.Background())
	require.NoError(t, err)
	require.True(t, progress.Done)
	require.True(t, progress.Updated)

	records := store.Records()
	require.Len(t, records, 3)

	require.Equal(t, timeline.SourceSMS, records[0].Source)
	require.Equal(t, "3", records[0].NativeID)
	require.Equal(t, timeline.DirectionOutgoing, records[0].Direction)
	require.Equal(t, "re: lunch", records[0].Description)

	require.Equal(t, "1", records[1].NativeID)
	require.Equal(t, timeline.DirectionIncoming, records[1].Direction)
	require.Equal(t, "hi there", records[1].Description)
	require.Equal(t, "5550100", records[1].ContactName)

	require.Equal(t, timeline.SourceMMS, records[2].Source)
	require.Equal(t, "picture!", records[2].Description)
	require.Equal(t, "5550111", records[2].ContactName)

	smsMark, _ := marks.Get(context.Background(), watermark.KindSMS)
	require.Equal(t, watermark.Watermark{Oldest: 1000, Newest: 3000}, smsMark)
	mmsMark, _ := marks.Get(context.Background(), watermark.KindMMS)
	require.Equal(t, watermark.Watermark{Oldest: 5000, Newest: 5000}, mmsMark)
}

func TestMessageLogReader_EmptyLogIsNotUpdated(t *testing.T) {
	deps, store, _ := newDeps()
	reader := NewMessageLogReader(&SliceSource[SMSEvent]{}, &SliceSource[MMSEvent]{}, deps, false)

	progress, invocations := runToDone(t, reader)
	require.False(t, progress.Updated)
	require.Equal(t, 2, invocations)
	require.Empty(t, store.Records())
}

func TestMessageLogReader_CancelResets(t *testing.T) {
	deps, store, _ := newDeps()
	sms := &SliceSource[SMSEvent]{Events: []SMSEvent{{ID: 1, Date: 1000, Body: "a", Type: SMSInbox}}}
	reader := NewMessageLogReader(sms, &SliceSource[MMSEvent]{}, deps, true)

	_, err := reader.Run(context.Background())
	require.NoError(t, err)
	reader.Cancel()
	reader.Cancel()

	progress, _ := runToDone(t, reader)
	require.False(t, progress.Updated)
	require.Len(t, store.Records(), 1)
}

func TestReaders_NilSourcesReadEmpty(t *testing.T) {
	deps, _, _ := newDeps()
	readers := &Readers{Deps: deps}

	progress, _ := runToDone(t, readers.CallLog(true))
	require.False(t, progress.Updated)
	progress, _ = runToDone(t, readers.MessageLog(false))
	require.False(t, progress.Updated)
}
