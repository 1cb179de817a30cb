package remote

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func TestFilter_Rendering(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
	}{
		{"first_page", FirstPageFilter(0)},
		{"refresh", RefreshFilter(300_000)},
		{"older", OlderFilter(1_700_000_000_500, 7*24*time.Hour)},
	}

	var b strings.Builder
	for _, tc := range cases {
		fmt.Fprintf(&b, "%s: %s\n", tc.name, tc.filter)
		fmt.Fprintf(&b, "  query: %s\n", tc.filter.Values().Encode())
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "filters", []byte(b.String()))
}

func TestRefreshFilter_TruncatesToSeconds(t *testing.T) {
	require.Equal(t, int64(300), RefreshFilter(300_999).UpdatedAfter)
	require.Equal(t, []string{"status=true"}, RefreshFilter(0).Clauses())
}

func TestOlderFilter_Bounds(t *testing.T) {
	f := OlderFilter(100_000, time.Hour)
	require.Equal(t, int64(0), f.UpdatedAfter)
	require.Equal(t, int64(100), f.UpdatedBefore)
	require.Equal(t, []string{"status=true", "updated<100"}, f.Clauses())

	f = OlderFilter(100_001, 0)
	require.Equal(t, int64(101), f.UpdatedBefore)
}
