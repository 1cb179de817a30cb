package remote

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultFirstPageSize is the number of activities requested on first sync.
const DefaultFirstPageSize = 150

// Filter selects the activities returned by one fetch. Only status
// activities are ever requested.
type Filter struct {
	// FirstPage asks for the newest PageSize activities by update time
	// instead of a time bound.
	FirstPage bool
	PageSize  int
	// Exclusive bounds in unix seconds. Zero leaves a side open.
	UpdatedAfter  int64
	UpdatedBefore int64
}

// FirstPageFilter requests the newest pageSize activities.
func FirstPageFilter(pageSize int) Filter {
	if pageSize <= 0 {
		pageSize = DefaultFirstPageSize
	}
	return Filter{FirstPage: true, PageSize: pageSize}
}

// RefreshFilter requests activities updated after the newest watermark.
func RefreshFilter(newestMS int64) Filter {
	return Filter{UpdatedAfter: newestMS / 1000}
}

// OlderFilter requests activities updated in the window ending at the oldest
// watermark.
func OlderFilter(oldestMS int64, window time.Duration) Filter {
	after := (oldestMS - window.Milliseconds()) / 1000
	if after < 0 {
		after = 0
	}
	return Filter{
		UpdatedAfter:  after,
		UpdatedBefore: (oldestMS + 999) / 1000,
	}
}

// Clauses renders the filter as feed filter clauses.
func (f Filter) Clauses() []string {
	clauses := []string{"status=true"}
	if f.FirstPage {
		size := f.PageSize
		if size <= 0 {
			size = DefaultFirstPageSize
		}
		return append(clauses, fmt.Sprintf("lids=0-%d", size), "sort=updated?rev")
	}
	if f.UpdatedAfter > 0 {
		clauses = append(clauses, fmt.Sprintf("updated>%d", f.UpdatedAfter))
	}
	if f.UpdatedBefore > 0 {
		clauses = append(clauses, fmt.Sprintf("updated<%d", f.UpdatedBefore))
	}
	return clauses
}

// Values renders the filter as repeated filter query parameters.
func (f Filter) Values() url.Values {
	v := url.Values{}
	for _, c := range f.Clauses() {
		v.Add("filter", c)
	}
	return v
}

func (f Filter) String() string {
	return strings.Join(f.Clauses(), " ")
}
