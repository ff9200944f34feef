package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// unaccent decomposes and drops combining marks, so "Déjà" becomes "Deja".
var unaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeToken turns value into an ASCII tag: lowercase letters, digits and
// hyphens, with every other run of characters folded into one underscore.
// Empty results become "unknown".
func SanitizeToken(value string) string {
	folded, _, err := transform.String(unaccent, value)
	if err != nil {
		folded = value
	}
	var b strings.Builder
	gap := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			if gap && b.Len() > 0 {
				b.WriteByte('_')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		gap = true
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
