package quality

import (
	"strings"
)

var smartPunctuation = strings.NewReplacer(
	"\u201c", `"`,
	"\u201d", `"`,
	"\u2018", "'",
	"\u2019", "'",
	"\u2026", "...",
	"\u2014", " - ",
	"\u2013", "-",
	"\u2022", "-",
)

var smartGlyphs = []rune{'\u201c', '\u201d', '\u2018', '\u2019', '\u2026', '\u2014', '\u2013', '\u2022'}

// isEmoji reports whether r falls in a disallowed pictograph range.
func isEmoji(r rune) bool {
	return (r >= 0x1F300 && r <= 0x1F9FF) ||
		(r >= 0x2600 && r <= 0x26FF) ||
		(r >= 0x2700 && r <= 0x27BF)
}

// Clean replaces typographic punctuation with ASCII forms and strips emoji.
// Clean(Clean(s)) == Clean(s).
func Clean(text string) string {
	text = smartPunctuation.Replace(text)
	return strings.Map(func(r rune) rune {
		if isEmoji(r) || r == '\ufe0f' {
			return -1
		}
		return r
	}, text)
}

func findEmoji(text string) []string {
	var found []string
	seen := make(map[rune]bool)
	for _, r := range text {
		if isEmoji(r) && !seen[r] {
			seen[r] = true
			found = append(found, string(r))
		}
	}
	return found
}

func findSmartPunctuation(text string) []string {
	var found []string
	for _, g := range smartGlyphs {
		if strings.ContainsRune(text, g) {
			found = append(found, string(g))
		}
	}
	return found
}
