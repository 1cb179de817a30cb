package devicelog

import (
	"log/slog"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// IANA MIBenum character set codes as they appear in MMS headers.
const (
	CharsetUnspecified = 0
	CharsetASCII       = 3
	CharsetISO8859_1   = 4
	CharsetISO8859_2   = 5
	CharsetISO8859_5   = 8
	CharsetISO8859_7   = 10
	CharsetISO8859_9   = 12
	CharsetShiftJIS    = 17
	CharsetEUCKR       = 38
	CharsetISO2022JP   = 39
	CharsetUTF8        = 106
	CharsetGBK         = 113
	CharsetGB18030     = 114
	CharsetUCS2        = 1000
	CharsetUTF16BE     = 1013
	CharsetUTF16LE     = 1014
	CharsetUTF16       = 1015
	CharsetGB2312      = 2025
	CharsetBig5        = 2026
	CharsetKOI8R       = 2084
	CharsetWindows1251 = 2251
	CharsetWindows1252 = 2252
)

var charsets = map[int]encoding.Encoding{
	CharsetASCII:       unicode.UTF8,
	CharsetISO8859_1:   charmap.ISO8859_1,
	CharsetISO8859_2:   charmap.ISO8859_2,
	CharsetISO8859_5:   charmap.ISO8859_5,
	CharsetISO8859_7:   charmap.ISO8859_7,
	CharsetISO8859_9:   charmap.ISO8859_9,
	CharsetShiftJIS:    japanese.ShiftJIS,
	CharsetEUCKR:       korean.EUCKR,
	CharsetISO2022JP:   japanese.ISO2022JP,
	CharsetUTF8:        unicode.UTF8,
	CharsetGBK:         simplifiedchinese.GBK,
	CharsetGB18030:     simplifiedchinese.GB18030,
	CharsetUCS2:        unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	CharsetUTF16BE:     unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	CharsetUTF16LE:     unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	CharsetUTF16:       unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM),
	CharsetGB2312:      simplifiedchinese.GBK,
	CharsetBig5:        traditionalchinese.Big5,
	CharsetKOI8R:       charmap.KOI8R,
	CharsetWindows1251: charmap.Windows1251,
	CharsetWindows1252: charmap.Windows1252,
}

// decodeStored decodes a text column that the device stored by widening each
// raw header byte into one rune. Values holding runes beyond Latin-1 were
// already decoded and are returned unchanged.
func decodeStored(s string, mib int, logger *slog.Logger) string {
	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return s
	}
	return decodeBytes([]byte(raw), mib, logger)
}

// decodeBytes decodes raw with the declared charset. An unspecified charset
// uses the platform default (UTF-8). An unsupported or failing charset falls
// back to Latin-1.
func decodeBytes(raw []byte, mib int, logger *slog.Logger) string {
	if mib == CharsetUnspecified {
		if utf8.Valid(raw) {
			return string(raw)
		}
		return latin1(raw)
	}

	enc, ok := charsets[mib]
	if !ok {
		logger.Debug("unsupported charset, decoding as latin-1", "mib", mib)
		return latin1(raw)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		logger.Warn("charset decode failed, decoding as latin-1", "mib", mib, "error", err)
		return latin1(raw)
	}
	return string(out)
}

func latin1(raw []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
