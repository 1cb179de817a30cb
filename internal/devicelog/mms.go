package devicelog

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rpggio/feedsync/internal/domain/timeline"
)

// MMSBox is the native pdu msg_box column.
type MMSBox int

const (
	MMSBoxInbox  MMSBox = 1
	MMSBoxSent   MMSBox = 2
	MMSBoxDrafts MMSBox = 3
	MMSBoxOutbox MMSBox = 4
)

// PDU address header types.
const (
	AddrFrom = 137
	AddrTo   = 151
	AddrCc   = 130
	AddrBcc  = 129
)

// DefaultSnippetRunes is the length of the text part snippet used when an MMS has no subject.
const DefaultSnippetRunes = 60

const ellipsis = "..."

// MMSAddress is one row of the native addr table.
type MMSAddress struct {
	Address string
	Type    int
	Charset int
}

// MMSPart is one row of the native part table. Text holds the inline text
// column; Data holds the part body when it is stored out of line.
type MMSPart struct {
	ContentType string
	Charset     int
	Text        string
	Data        []byte
}

// MMSEvent is one multi-part message assembled from pdu, addr and part rows.
type MMSEvent struct {
	ID             int64
	Date           int64 // milliseconds
	Box            MMSBox
	Subject        string
	SubjectCharset int
	ThreadID       int64
	Addresses      []MMSAddress
	Parts          []MMSPart
}

// Millis implements Event.
func (e MMSEvent) Millis() int64 { return e.Date }

// MMSDecoder extracts the displayable pieces of an MMS.
type MMSDecoder struct {
	SnippetRunes int
	Logger       *slog.Logger
}

// Direction is outgoing for anything the device sent or is sending.
func (d MMSDecoder) Direction(e MMSEvent) timeline.Direction {
	if e.Box == MMSBoxInbox {
		return timeline.DirectionIncoming
	}
	return timeline.DirectionOutgoing
}

// Address returns the sender of an incoming message or the first recipient
// of an outgoing one.
func (d MMSDecoder) Address(e MMSEvent) string {
	want := AddrTo
	if d.Direction(e) == timeline.DirectionIncoming {
		want = AddrFrom
	}
	for _, a := range e.Addresses {
		if a.Type == want && !isInsertAddressToken(a.Address) {
			return a.Address
		}
	}
	return ""
}

// Subject decodes the subject with its declared character set.
func (d MMSDecoder) Subject(e MMSEvent) string {
	if e.Subject == "" {
		return ""
	}
	return strings.TrimSpace(decodeStored(e.Subject, e.SubjectCharset, d.logger()))
}

// Snippet returns the first text part, truncated with an ellipsis.
func (d MMSDecoder) Snippet(e MMSEvent) string {
	for _, part := range e.Parts {
		if !isTextPart(part) {
			continue
		}
		text := part.Text
		if text == "" && len(part.Data) > 0 {
			text = decodeBytes(part.Data, part.Charset, d.logger())
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		return truncate(text, d.snippetRunes())
	}
	return ""
}

// Description is the subject when present and the text snippet otherwise.
func (d MMSDecoder) Description(e MMSEvent) string {
	if subject := d.Subject(e); subject != "" {
		return subject
	}
	return d.Snippet(e)
}

func (d MMSDecoder) snippetRunes() int {
	if d.SnippetRunes <= 0 {
		return DefaultSnippetRunes
	}
	return d.SnippetRunes
}

func (d MMSDecoder) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + ellipsis
}

// isInsertAddressToken matches the placeholder written for the device's own number.
func isInsertAddressToken(addr string) bool {
	return addr == "" || addr == "insert-address-token"
}

func isTextPart(part MMSPart) bool {
	ct := strings.ToLower(strings.TrimSpace(part.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "text/plain":
		return true
	case "", "application/octet-stream":
		if len(part.Data) == 0 {
			return part.Text != ""
		}
		return mimetype.Detect(part.Data).Is("text/plain")
	default:
		return false
	}
}
