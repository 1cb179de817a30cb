package contact

import (
	"strings"
	"unicode"
)

// NormalizeAddress canonicalizes a phone number or message address so that
// equivalent spellings compare equal. Phone numbers keep digits and a leading
// '+'; e-mail addresses are lower-cased. Anything else is returned trimmed.
func NormalizeAddress(raw string) string {
	addr := strings.TrimSpace(raw)
	lower := strings.ToLower(addr)
	switch {
	case strings.HasPrefix(lower, "tel:"):
		addr = addr[len("tel:"):]
	case strings.HasPrefix(lower, "mailto:"):
		addr = addr[len("mailto:"):]
	}
	if addr == "" {
		return ""
	}
	if strings.Contains(addr, "@") {
		return strings.ToLower(addr)
	}
	if !looksLikePhone(addr) {
		return addr
	}

	var b strings.Builder
	for i, r := range addr {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func looksLikePhone(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' || r == '-' || r == '(' || r == ')' || r == '.' || unicode.IsSpace(r):
		default:
			return false
		}
	}
	return digits > 0
}
