package watermark_test

import (
	"testing"

	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/stretchr/testify/require"
)

func TestWatermark_ExtendFromUnset(t *testing.T) {
	w, moved := watermark.Watermark{}.Extend(100, 300)
	require.True(t, moved)
	require.Equal(t, watermark.Watermark{Oldest: 100, Newest: 300}, w)
}

func TestWatermark_ExtendIsMonotonic(t *testing.T) {
	start := watermark.Watermark{Oldest: 100, Newest: 300}

	w, moved := start.Extend(150, 250)
	require.False(t, moved)
	require.Equal(t, start, w)

	w, moved = start.Extend(200, 400)
	require.True(t, moved)
	require.Equal(t, watermark.Watermark{Oldest: 100, Newest: 400}, w)

	w, moved = start.Extend(50, 60)
	require.True(t, moved)
	require.Equal(t, watermark.Watermark{Oldest: 50, Newest: 300}, w)
}

func TestWatermark_ExtendSwapsReversedBounds(t *testing.T) {
	w, _ := watermark.Watermark{}.Extend(300, 100)
	require.Equal(t, watermark.Watermark{Oldest: 100, Newest: 300}, w)
}

func TestParseKind(t *testing.T) {
	kind, err := watermark.ParseKind("sms")
	require.NoError(t, err)
	require.Equal(t, watermark.KindSMS, kind)

	_, err = watermark.ParseKind("fax")
	require.Error(t, err)
}
