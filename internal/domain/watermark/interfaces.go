package watermark

import "context"

// Store persists watermarks. A kind that was never written reads back as the
// zero Watermark.
type Store interface {
	Get(ctx context.Context, kind Kind) (Watermark, error)
	// Set updates the non-nil bounds of kind.
	Set(ctx context.Context, kind Kind, oldest, newest *int64) error
}
