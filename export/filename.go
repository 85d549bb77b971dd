package export

import (
	"strings"
	"time"
	"unicode"
)

// fallbackLabel names exports whose reel title sanitizes to nothing.
const fallbackLabel = "recording"

// baseName derives the artifact base name from a reel title: lower-cased,
// non-alphanumeric runs collapsed to a single dash, leading and trailing
// dashes trimmed, plus a timestamp for uniqueness.
func baseName(title string, at time.Time) string {
	name := sanitizeTitle(title)
	if name == "" {
		name = fallbackLabel
	}
	return name + "-" + at.Format("20060102-150405")
}

func sanitizeTitle(title string) string {
	var b strings.Builder
	dash := true
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteRune('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
