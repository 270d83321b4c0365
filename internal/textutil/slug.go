package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slug lowercases value, folds accents, and joins the remaining ASCII letter
// and digit runs with single hyphens. The result is at most limit bytes (no
// limit when limit <= 0) and never starts or ends with a hyphen. It returns ""
// when nothing usable remains.
func Slug(value string, limit int) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), value)
	if err != nil {
		folded = value
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	out := b.String()
	if limit > 0 && len(out) > limit {
		out = strings.TrimRight(out[:limit], "-")
	}
	return out
}
