package vision

import (
	"regexp"
	"strings"
)

var (
	whitespaceRuns = regexp.MustCompile(`\s+`)
	// Everything outside word characters, whitespace and common punctuation
	// is stripped; OCR noise tends to land in this band.
	disallowedChars = regexp.MustCompile("[^a-zA-Z0-9_\\s.,!?;:()\\[\\]{}\"'\\-/\\\\@#$%^&*+=<>|`~]")
	doubleSpaces    = regexp.MustCompile(` {2,}`)
)

// CleanText normalizes raw OCR output: whitespace runs collapse to single
// spaces, the result is trimmed, and characters outside the allow-list are
// dropped.
func CleanText(raw string) string {
	if raw == "" {
		return ""
	}

	out := whitespaceRuns.ReplaceAllString(raw, " ")
	out = strings.TrimSpace(out)
	out = disallowedChars.ReplaceAllString(out, "")
	out = doubleSpaces.ReplaceAllString(out, " ")
	return out
}
