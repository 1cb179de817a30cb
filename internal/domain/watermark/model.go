package watermark

import (
	"errors"
	"fmt"
)

// Kind identifies an event class with its own pair of watermarks.
type Kind string

const (
	KindRemoteStatus Kind = "remote_status"
	KindCall         Kind = "call"
	KindSMS          Kind = "sms"
	KindMMS          Kind = "mms"
)

// Kinds lists every watermark kind in display order.
var Kinds = []Kind{KindRemoteStatus, KindCall, KindSMS, KindMMS}

// Unset marks a watermark bound that has never been captured.
const Unset int64 = 0

// Watermark is the (oldest, newest) timestamp range, in milliseconds, already
// captured in the timeline store for one kind.
type Watermark struct {
	Oldest int64 `json:"oldest"`
	Newest int64 `json:"newest"`
}

// IsSet reports whether any data has been captured for the kind.
func (w Watermark) IsSet() bool {
	return w.Oldest != Unset || w.Newest != Unset
}

// Extend widens w to include [batchMin, batchMax]. Newest never decreases and
// oldest never increases. moved reports whether either bound changed.
func (w Watermark) Extend(batchMin, batchMax int64) (Watermark, bool) {
	if batchMin > batchMax {
		batchMin, batchMax = batchMax, batchMin
	}
	next := w
	if next.Newest == Unset || batchMax > next.Newest {
		next.Newest = batchMax
	}
	if next.Oldest == Unset || batchMin < next.Oldest {
		next.Oldest = batchMin
	}
	return next, next != w
}

// ErrUnknownKind rejects a watermark kind name.
var ErrUnknownKind = errors.New("unknown watermark kind")

// ParseKind validates a watermark kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownKind, s)
}
