package remote

import (
	"testing"
	"time"

	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/stretchr/testify/require"
)

func TestDecode_Activities(t *testing.T) {
	body := []byte(`{"activities":[
		{"activityid":"7","time":250,"text":"hello","contactid":12,"userid":34,"contactname":"Bo","network":"skype","parentid":"0","haschildren":true,"flags":3},
		{"activityid":9,"time":350}
	]}`)

	batch, err := Decode(body, nil)
	require.NoError(t, err)
	require.Len(t, batch.Activities, 2)
	require.Zero(t, batch.Dropped)

	first := batch.Activities[0]
	require.Equal(t, "7", first.ID)
	require.Equal(t, int64(250), first.Time)
	require.Equal(t, "", first.ParentID)
	require.Equal(t, int64(12), *first.ContactID)
	require.True(t, first.HasChildren)
	require.Equal(t, int64(3), first.Flags)

	second := batch.Activities[1]
	require.Equal(t, "9", second.ID)
	require.Nil(t, second.ContactID)
}

func TestDecode_DropsMalformedRecords(t *testing.T) {
	body := []byte(`{"activities":[
		{"activityid":"1","time":100},
		{"time":200},
		{"activityid":"3","time":"soon"},
		"garbage",
		{"activityid":"5","time":500}
	]}`)

	batch, err := Decode(body, nil)
	require.NoError(t, err)
	require.Equal(t, 3, batch.Dropped)
	require.Len(t, batch.Activities, 2)
	require.Equal(t, "1", batch.Activities[0].ID)
	require.Equal(t, "5", batch.Activities[1].ID)
}

func TestDecode_ServerError(t *testing.T) {
	_, err := Decode([]byte(`{"error":{"code":"E42","description":"bad filter"}}`), nil)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, "E42", serverErr.Code)
	require.Equal(t, "bad filter", serverErr.Description)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`<html>`), nil)
	require.ErrorIs(t, err, ErrMalformedResponse)

	_, err = Decode([]byte(`{"items":[]}`), nil)
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestBatch_Records(t *testing.T) {
	userID := int64(34)
	batch := &Batch{Activities: []Activity{
		{ID: "9", Time: 350, Text: "  status text  ", UserID: &userID, ParentID: "4"},
	}}

	records := batch.Records(time.UTC, 6)
	require.Len(t, records, 1)
	rec := records[0]
	require.Equal(t, timeline.SourceRemoteStatus, rec.Source)
	require.Equal(t, int64(350_000), rec.Timestamp)
	require.Equal(t, "9", rec.ActivityID)
	require.Equal(t, "9", rec.NativeID)
	require.Equal(t, "4", rec.ParentActivityID)
	require.Equal(t, "status", rec.Description)
	require.Equal(t, "Thu Jan 1 00:05", rec.Title)
	require.Equal(t, &userID, rec.RemoteUserID)

	var nilBatch *Batch
	require.Nil(t, nilBatch.Records(time.UTC, 0))
}
