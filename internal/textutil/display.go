package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// MaxDisplayNameLength bounds display names, counted in runes.
const MaxDisplayNameLength = 120

// DisplayName returns an NFC-normalised single-line label with control
// characters removed and whitespace collapsed.
func DisplayName(value string) string {
	value = norm.NFC.String(value)
	var b strings.Builder
	space := false
	for _, r := range value {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	out := b.String()
	if runes := []rune(out); len(runes) > MaxDisplayNameLength {
		out = strings.TrimSpace(string(runes[:MaxDisplayNameLength]))
	}
	return out
}

// TitleTag normalises a free-form tag to title case ("open world" -> "Open World").
func TitleTag(value string) string {
	value = DisplayName(value)
	if value == "" {
		return ""
	}
	return cases.Title(language.Und).String(strings.ToLower(value))
}

// UniqueTags normalises tags, dropping blanks and case-insensitive duplicates
// while keeping first-seen order.
func UniqueTags(tags []string, limit int) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = TitleTag(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Truncate shortens value to at most limit runes, marking the cut with "…".
func Truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit == 1 {
		return "…"
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
