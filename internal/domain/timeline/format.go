package timeline

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDescriptionRunes caps the description stored with each record.
const MaxDescriptionRunes = 255

const titleLayout = "Mon Jan 2 15:04"

// FormatTitle renders the short display title for a timestamp in loc.
func FormatTitle(timestampMS int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(timestampMS).In(loc).Format(titleLayout)
}

// CapDescription trims surrounding whitespace and truncates s to max runes.
func CapDescription(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// ParseSourceKind validates a source kind name.
func ParseSourceKind(s string) (SourceKind, error) {
	switch kind := SourceKind(s); kind {
	case SourceRemoteStatus, SourceCall, SourceSMS, SourceMMS:
		return kind, nil
	default:
		return "", ErrUnknownSource
	}
}
